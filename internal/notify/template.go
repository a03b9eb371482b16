// Package notify manages notification templates and rules and delivers
// test sends through the configured channels.
package notify

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/strataisp/console/internal/store"
)

// placeholderPattern matches {{name}} tokens. Names are lowercase
// identifiers with underscores; anything else fails template validation.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// allowedPlaceholders is the vocabulary the platform can fill at send
// time. Templates referencing anything else are rejected at save.
var allowedPlaceholders = map[string]struct{}{
	"name":       {},
	"phone":      {},
	"plan":       {},
	"amount":     {},
	"currency":   {},
	"due_date":   {},
	"quota_pct":  {},
	"expiry":     {},
	"company":    {},
	"support":    {},
	"invoice_id": {},
}

// sampleData fills placeholders for test sends.
var sampleData = map[string]string{
	"name":       "Dana Osei",
	"phone":      "+15550100200",
	"plan":       "Fiber 100",
	"amount":     "49.90",
	"currency":   "USD",
	"due_date":   "2026-09-05",
	"quota_pct":  "80",
	"expiry":     "2026-09-30",
	"company":    "Strata ISP",
	"support":    "+15550100999",
	"invoice_id": "INV-2026-0831",
}

// ValidatePlaceholders rejects templates using names outside the send
// vocabulary, listing every offender.
func ValidatePlaceholders(text string) error {
	var unknown []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(match[1])
		if _, ok := allowedPlaceholders[name]; !ok {
			unknown = append(unknown, match[1])
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w: unknown placeholders: %s", store.ErrInvalid, strings.Join(unknown, ", "))
}

// Render substitutes placeholders from data. Placeholders without a
// value render as empty strings; send-time data wins over sample data
// only through the caller's choice of map.
func Render(text string, data map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		name := strings.ToLower(placeholderPattern.FindStringSubmatch(token)[1])
		return data[name]
	})
}

// RenderSample substitutes the built-in sample data, used by test sends.
func RenderSample(text string) string {
	return Render(text, sampleData)
}
