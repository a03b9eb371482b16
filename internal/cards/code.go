package cards

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet avoids the glyphs operators misread on printed cards:
// no 0/O and no 1/I. 32 symbols, so a random byte masks down evenly.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const codeRandomLen = 10

// newCode returns prefix + codeRandomLen random alphabet characters.
func newCode(prefix string) (string, error) {
	buf := make([]byte, codeRandomLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[b&31]
	}
	return prefix + string(buf), nil
}
