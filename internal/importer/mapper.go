package importer

import (
	"fmt"
	"strings"

	"github.com/strataisp/console/internal/store"
)

// Canonical row fields.
const (
	fieldName    = "name"
	fieldPhone   = "phone"
	fieldEmail   = "email"
	fieldPlan    = "plan_code"
	fieldAddress = "address"
)

// headerAliases maps normalized CSV header cells to canonical fields.
// Operators export from half a dozen billing systems; the alias table
// absorbs their naming.
var headerAliases = map[string]string{
	"name":       fieldName,
	"fullname":   fieldName,
	"customer":   fieldName,
	"subscriber": fieldName,

	"phone":  fieldPhone,
	"mobile": fieldPhone,
	"msisdn": fieldPhone,
	"tel":    fieldPhone,

	"email": fieldEmail,
	"mail":  fieldEmail,

	"plan":     fieldPlan,
	"plancode": fieldPlan,
	"tariff":   fieldPlan,
	"package":  fieldPlan,

	"address":  fieldAddress,
	"addr":     fieldAddress,
	"location": fieldAddress,
}

var requiredFields = []string{fieldName, fieldPhone, fieldPlan}

// normalizeHeader strips case, whitespace, underscores, and hyphens so
// "Full_Name", "full name", and "FULLNAME" all resolve alike.
func normalizeHeader(cell string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(cell) {
		switch r {
		case ' ', '\t', '_', '-':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// mapHeader resolves the CSV header row to canonical field positions.
// Unknown columns are ignored; missing required columns are an error.
func mapHeader(header []string) (map[string]int, error) {
	columns := make(map[string]int)
	for i, cell := range header {
		field, ok := headerAliases[normalizeHeader(cell)]
		if !ok {
			continue
		}
		if _, dup := columns[field]; dup {
			return nil, fmt.Errorf("%w: columns %q and %q both map to %s",
				store.ErrInvalid, header[columns[field]], cell, field)
		}
		columns[field] = i
	}
	var missing []string
	for _, field := range requiredFields {
		if _, ok := columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: header is missing required columns: %s",
			store.ErrInvalid, strings.Join(missing, ", "))
	}
	return columns, nil
}

func cellAt(record []string, columns map[string]int, field string) string {
	i, ok := columns[field]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
