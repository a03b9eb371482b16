package importer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strataisp/console/internal/store"
)

// TestMapHeaderAliases resolves mixed-case, spaced, and underscored
// headers to canonical fields.
func TestMapHeaderAliases(t *testing.T) {
	t.Parallel()

	columns, err := mapHeader([]string{"Full_Name", "MSISDN", " Tariff ", "E-Mail", "addr", "notes"})
	require.NoError(t, err)
	require.Equal(t, 0, columns[fieldName])
	require.Equal(t, 1, columns[fieldPhone])
	require.Equal(t, 2, columns[fieldPlan])
	require.Equal(t, 3, columns[fieldEmail])
	require.Equal(t, 4, columns[fieldAddress])
	require.Len(t, columns, 5)
}

// TestMapHeaderMissingRequired names every missing column.
func TestMapHeaderMissingRequired(t *testing.T) {
	t.Parallel()

	_, err := mapHeader([]string{"email", "notes"})
	require.ErrorIs(t, err, store.ErrInvalid)
	require.ErrorContains(t, err, "name")
	require.ErrorContains(t, err, "phone")
	require.ErrorContains(t, err, "plan_code")
}

// TestMapHeaderDuplicateAlias rejects two columns landing on one field.
func TestMapHeaderDuplicateAlias(t *testing.T) {
	t.Parallel()

	_, err := mapHeader([]string{"name", "customer", "phone", "plan"})
	require.ErrorIs(t, err, store.ErrInvalid)
}
