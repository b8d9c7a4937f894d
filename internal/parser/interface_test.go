package parser

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsThreshold(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want float64
	}{
		{"zero value uses standard threshold", Options{}, 50},
		{"negative uses standard threshold", Options{AccuracyThreshold: -1}, 50},
		{"explicit value wins", Options{AccuracyThreshold: 75}, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.Threshold())
		})
	}
}

func TestCountSkips(t *testing.T) {
	skips := []Skip{
		{Row: 0, Reason: SkipNoDate},
		{Row: 1, Reason: SkipNoDate},
		{Row: 2, Reason: SkipBoilerplate},
		{Row: 5, Reason: SkipForexDetail},
	}

	counts := CountSkips(skips)
	assert.Equal(t, 2, counts[SkipNoDate])
	assert.Equal(t, 1, counts[SkipBoilerplate])
	assert.Equal(t, 1, counts[SkipForexDetail])
	assert.Equal(t, 0, counts[SkipZeroAmount])
}

func TestCountSkipsEmpty(t *testing.T) {
	counts := CountSkips(nil)
	assert.Empty(t, counts)
}

func TestLogSkipsDebugOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	LogSkips(logger, []Skip{{Row: 3, Reason: SkipNoAmount, Detail: "TOTAL FEES"}})
	assert.Contains(t, buf.String(), "no_amount")
	assert.Contains(t, buf.String(), "TOTAL FEES")

	// At info level the noise disappears entirely.
	buf.Reset()
	LogSkips(zerolog.New(&buf).Level(zerolog.InfoLevel), []Skip{{Row: 3, Reason: SkipNoAmount}})
	assert.Empty(t, buf.String())
}

func TestRawRowGet(t *testing.T) {
	row := RawRow{" Apr 16 ", "UBER* EATS", "", "$26.03"}

	assert.Equal(t, "Apr 16", row.Get(0))
	assert.Equal(t, "", row.Get(2))
	assert.Equal(t, "$26.03", row.Get(3))
	assert.Equal(t, "", row.Get(4), "out of range is empty, not a panic")
	assert.Equal(t, "", row.Get(-1))
}

func TestColumnMappingFirstBindingWins(t *testing.T) {
	m := NewColumnMapping([]string{"Trans Date", "Post Date", "Description", "Amount"})
	m.Set(FieldDate, 0)
	m.Set(FieldDate, 1) // second date column must not displace the first
	m.Set(FieldDescription, 2)
	m.Set(FieldAmount, 3)

	i, ok := m.Index(FieldDate)
	require.True(t, ok)
	assert.Equal(t, 0, i)

	row := RawRow{"Apr 15", "Apr 16", "UBER* EATS", "$26.03"}
	assert.Equal(t, "Apr 15", m.Cell(row, FieldDate))
	assert.Equal(t, "UBER* EATS", m.Cell(row, FieldDescription))
	assert.Equal(t, "", m.Cell(row, FieldCategory), "unmapped field reads empty")
	assert.True(t, m.Has(FieldAmount))
	assert.False(t, m.Has(FieldCredit))
}

func TestColumnMappingSourceName(t *testing.T) {
	m := NewColumnMapping([]string{"Date", "", "Amount"})

	assert.Equal(t, "Date", m.SourceName(0))
	assert.Equal(t, "col_1", m.SourceName(1), "blank header gets positional placeholder")
	assert.Equal(t, "col_7", m.SourceName(7), "index past header gets positional placeholder")
}

func TestColumnMappingRawData(t *testing.T) {
	m := NewColumnMapping([]string{"Date", "Description", "Amount", ""})
	row := RawRow{"2024-01-01", "Coffee Shop", "-5.75", ""}

	raw := m.RawData(row)
	assert.Equal(t, map[string]string{
		"Date":        "2024-01-01",
		"Description": "Coffee Shop",
		"Amount":      "-5.75",
	}, raw)

	assert.Nil(t, m.RawData(RawRow{"", "", ""}), "all-empty row yields nil, not an empty map")
}

func TestNewMetadata(t *testing.T) {
	now := time.Now()

	meta, err := NewMetadata("/statements/chase/1234/stmt.pdf", now)
	require.NoError(t, err)
	assert.Equal(t, "/statements/chase/1234/stmt.pdf", meta.FilePath())
	assert.Equal(t, now, meta.DetectedAt())
	assert.Empty(t, meta.Institution())

	meta.SetInstitution("Chase")
	meta.SetAccountNumber("1234")
	meta.SetPeriod("2025-04")
	assert.Equal(t, "Chase", meta.Institution())
	assert.Equal(t, "1234", meta.AccountNumber())
	assert.Equal(t, "2025-04", meta.Period())
}

func TestNewMetadataValidation(t *testing.T) {
	_, err := NewMetadata("", time.Now())
	assert.ErrorContains(t, err, "file path cannot be empty")

	_, err = NewMetadata("/some/file.csv", time.Time{})
	assert.ErrorContains(t, err, "detected time cannot be zero")
}

func TestSkipReasonStrings(t *testing.T) {
	// Skip reasons surface in logs and stats; the wire strings are part of
	// the contract.
	for reason, want := range map[SkipReason]string{
		SkipNoDate:        "no_date",
		SkipNoAmount:      "no_amount",
		SkipNoDescription: "no_description",
		SkipZeroAmount:    "zero_amount",
		SkipHeaderRow:     "header_row",
		SkipBoilerplate:   "boilerplate",
		SkipForexDetail:   "forex_detail",
		SkipMalformed:     "malformed",
	} {
		if !strings.EqualFold(string(reason), want) {
			t.Errorf("SkipReason %q != %q", reason, want)
		}
	}
}
