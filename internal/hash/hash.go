// Package hash defines the digest contract used for card code storage.
package hash

// Hasher produces a stable hex digest for the given bytes.
type Hasher interface {
	Hash(data []byte) (string, error)
}
