package notify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strataisp/console/internal/store"
)

// TestValidatePlaceholders checks vocabulary enforcement including
// whitespace-padded and mixed-case tokens.
func TestValidatePlaceholders(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidatePlaceholders("Hi {{name}}, {{ plan }} renews {{DUE_DATE}}."))
	require.NoError(t, ValidatePlaceholders("no placeholders at all"))

	err := ValidatePlaceholders("Hi {{nmae}}, balance {{amnt}}")
	require.ErrorIs(t, err, store.ErrInvalid)
	require.ErrorContains(t, err, "amnt, nmae")
}

// TestRender substitutes known names and blanks unknown-but-valid ones
// missing from the data map.
func TestRender(t *testing.T) {
	t.Parallel()

	out := Render("Hi {{name}}, pay {{amount}} {{currency}}", map[string]string{
		"name":   "Ana",
		"amount": "12.50",
	})
	require.Equal(t, "Hi Ana, pay 12.50 ", out)
}

// TestRenderSample leaves no unresolved tokens for any allowed name.
func TestRenderSample(t *testing.T) {
	t.Parallel()

	text := "{{name}} {{phone}} {{plan}} {{amount}} {{currency}} {{due_date}} {{quota_pct}} {{expiry}} {{company}} {{support}} {{invoice_id}}"
	out := RenderSample(text)
	require.NotContains(t, out, "{{")
	require.Contains(t, out, "Fiber 100")
}
