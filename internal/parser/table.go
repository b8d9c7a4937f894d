package parser

import (
	"strconv"
	"strings"
)

// Field is a canonical column name shared by the PDF table structurer and
// the CSV header mapper, so bank-specific and generic row code read columns
// the same way instead of re-deriving positions ad hoc.
type Field string

const (
	FieldDate             Field = "date"
	FieldTransDate        Field = "trans_date"
	FieldPostDate         Field = "post_date"
	FieldDescription      Field = "description"
	FieldAmount           Field = "amount"
	FieldDebit            Field = "debit"
	FieldCredit           Field = "credit"
	FieldCategory         Field = "category"
	FieldType             Field = "type"
	FieldOriginalAmount   Field = "original_amount"
	FieldOriginalCurrency Field = "original_currency"
	FieldExchangeRate     Field = "exchange_rate"
)

// RawRow is one extracted table row: ordered cells, empty string for a
// missing cell.
type RawRow []string

// Get returns the trimmed cell at index i, or "" when the row is short.
func (r RawRow) Get(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

// RawTable is the extraction engine's output for one detected table. It is
// consumed by the structurer and discarded; nothing downstream sees it.
type RawTable struct {
	// Page is the zero-based page index the table came from.
	Page int
	// Accuracy is the detection engine's confidence score (0-100) that the
	// detected cell boundaries reflect the actual layout.
	Accuracy float64
	Rows     []RawRow
}

// ColumnMapping maps canonical fields to source column indexes. Computed
// once per table or CSV header and read-only afterwards.
type ColumnMapping struct {
	columns map[Field]int
	// names holds the original header text by column index, preserved for
	// Transaction.RawData.
	names []string
}

// NewColumnMapping creates a mapping over the given original header names.
func NewColumnMapping(names []string) *ColumnMapping {
	return &ColumnMapping{
		columns: make(map[Field]int),
		names:   names,
	}
}

// Set binds a canonical field to a column index. The first binding wins;
// later columns matching the same field (e.g. two "date" headers) are left
// under their positional names.
func (m *ColumnMapping) Set(field Field, index int) {
	if _, ok := m.columns[field]; ok {
		return
	}
	m.columns[field] = index
}

// Index returns the column index for a canonical field.
func (m *ColumnMapping) Index(field Field) (int, bool) {
	i, ok := m.columns[field]
	return i, ok
}

// Cell returns the row's cell for a canonical field, or "" when the field
// is unmapped or the row is short.
func (m *ColumnMapping) Cell(row RawRow, field Field) string {
	i, ok := m.columns[field]
	if !ok {
		return ""
	}
	return row.Get(i)
}

// Has reports whether the field is mapped.
func (m *ColumnMapping) Has(field Field) bool {
	_, ok := m.columns[field]
	return ok
}

// SourceName returns the original header text for column i, or a positional
// placeholder when the header was blank or unmatched.
func (m *ColumnMapping) SourceName(i int) string {
	if i >= 0 && i < len(m.names) {
		if name := strings.TrimSpace(m.names[i]); name != "" {
			return name
		}
	}
	return positionalName(i)
}

// RawData builds the audit mapping of original source field names to the
// row's original string values. Empty cells are omitted.
func (m *ColumnMapping) RawData(row RawRow) map[string]string {
	raw := make(map[string]string)
	for i := range row {
		value := row.Get(i)
		if value == "" {
			continue
		}
		raw[m.SourceName(i)] = value
	}
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func positionalName(i int) string {
	return "col_" + strconv.Itoa(i)
}
