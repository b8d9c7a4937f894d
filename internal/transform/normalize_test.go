package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		assumedYear int
		want        string
		ok          bool
	}{
		{"ISO passthrough", "2024-01-01", 0, "2024-01-01", true},
		{"slash US", "04/16/2025", 0, "2025-04-16", true},
		{"slash single digits", "4/5/2025", 0, "2025-04-05", true},
		{"slash two-digit year", "04/16/25", 0, "2025-04-16", true},
		{"dash delimited", "04-16-2025", 0, "2025-04-16", true},
		{"month name with year", "Jan 2, 2025", 0, "2025-01-02", true},
		{"day month year", "2 Jan 2025", 0, "2025-01-02", true},
		{"short date with assumed year", "Apr 16", 2025, "2025-04-16", true},
		{"short date day-first", "16 Apr", 2025, "2025-04-16", true},
		{"surrounding whitespace", "  Apr 16  ", 2025, "2025-04-16", true},
		{"unparsable passed through unmodified", "not a date", 2025, "not a date", false},
		{"empty", "", 2025, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeDate(tt.input, tt.assumedYear)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDateRoundTrip(t *testing.T) {
	// A short date completed with an assumed year, normalized then
	// re-normalized, must land on the same calendar date.
	first, ok := NormalizeDate("Apr 16", 2025)
	require.True(t, ok)

	second, ok := NormalizeDate(first, 2030)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"plain", "26.03", 26.03},
		{"dollar prefixed", "$26.03", 26.03},
		{"thousands separator", "$1,000.00", 1000.00},
		{"leading minus", "-50.00", -50.00},
		{"minus before dollar", "-$50.00", -50.00},
		{"parenthesized negative", "(26.03)", -26.03},
		{"parenthesized with dollar", "($1,234.56)", -1234.56},
		{"explicit plus", "+12.00", 12.00},
		{"no decimals", "518", 518},
		{"multiple dots keep last as decimal", "1.234.56", 1234.56},
		{"embedded spaces", " $ 26.03 ", 26.03},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseAmountErrors(t *testing.T) {
	for _, input := range []string{"", "   ", "abc", "$", "--"} {
		t.Run("input "+input, func(t *testing.T) {
			_, err := ParseAmount(input)
			assert.Error(t, err)
		})
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"collapses whitespace runs", "UBER*   EATS\n\tMEXICO", "UBER EATSMEXICO"},
		{"keeps statement punctuation", "$1,234.56 (credit) a/b-c", "$1,234.56 (credit) a/b-c"},
		{"strips disallowed characters", "café @ home!", "caf home"},
		{"trims", "  total  ", "total"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanCell(tt.input))
		})
	}
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strips processor prefix", "TST* PANERA BREAD", "PANERA BREAD"},
		{"asterisks become spaces", "UBER* EATSCIUDAD", "UBER EATSCIUDAD"},
		{"collapses whitespace", "WOOD   CITY  LLC", "WOOD CITY LLC"},
		{"square prefix", "SQ *COFFEE CART", "COFFEE CART"},
		{"plain untouched", "CAPITAL ONE MOBILE PYMT", "CAPITAL ONE MOBILE PYMT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanDescription(tt.input))
		})
	}
}

func TestLooksLikeDate(t *testing.T) {
	for _, s := range []string{"04/16/2025", "4/16", "2024-01-01", "Apr 16", "apr 16", "16-04-2025"} {
		assert.True(t, LooksLikeDate(s), "expected date-like: %q", s)
	}
	for _, s := range []string{"UBER* EATS", "$26.03", "", "May flowers bloom"} {
		assert.False(t, LooksLikeDate(s), "expected not date-like: %q", s)
	}
}

func TestLooksLikeAmount(t *testing.T) {
	for _, s := range []string{"$26.03", "26.03", "-50.00", "(1,234.56)", "$1,000.00", "+12"} {
		assert.True(t, LooksLikeAmount(s), "expected amount-like: %q", s)
	}
	for _, s := range []string{"UBER EATS", "Apr 16", "", "26.03 USD"} {
		assert.False(t, LooksLikeAmount(s), "expected not amount-like: %q", s)
	}
}

func TestFindDate(t *testing.T) {
	assert.Equal(t, "04/16/2025", FindDate("posted 04/16/2025 ref 123"))
	assert.Equal(t, "2024-01-01", FindDate("2024-01-01,Coffee Shop"))
	assert.Equal(t, "Apr 16", FindDate("Apr 16 UBER EATS"))
	assert.Equal(t, "", FindDate("no dates here"))
}

func TestSlugifyInstitution(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "American Express", "american-express", false},
		{"accented", "Compañía de Gas", "compania-de-gas", false},
		{"punctuation", "U.S. Bank", "u-s-bank", false},
		{"empty", "", "", true},
		{"only symbols", "!!!", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SlugifyInstitution(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractLast4(t *testing.T) {
	assert.Equal(t, "2345", ExtractLast4("12345"))
	assert.Equal(t, "123", ExtractLast4("123"))
	assert.Equal(t, "", ExtractLast4(""))
	assert.Equal(t, "1234", ExtractLast4("1234"))
}
