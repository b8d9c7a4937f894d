package pdf

import (
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/parser"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/transform"
)

// structured is a raw table after cleaning and header resolution: canonical
// column mapping plus the data rows that follow the header.
type structured struct {
	mapping *parser.ColumnMapping
	rows    []parser.RawRow
}

// genericHeaderKeywords qualify a row as a table header in the generic scan.
var genericHeaderKeywords = []string{
	"date", "description", "amount", "debit", "credit", "transaction",
}

// structureTable cleans a raw table and locates its header. Rows at or
// before the header are discarded. Returns an error when no row qualifies
// as a header; the caller skips the table and keeps processing siblings.
func structureTable(table parser.RawTable, bank domain.Bank) (*structured, error) {
	rows := cleanRows(table.Rows)
	rows = dropEmptyColumns(rows)
	if len(rows) == 0 {
		return nil, fmt.Errorf("table on page %d is empty after cleaning", table.Page)
	}

	headerIdx := findHeader(rows, bank)
	if headerIdx < 0 {
		return nil, fmt.Errorf("no header row found in table on page %d", table.Page)
	}
	if headerIdx == len(rows)-1 {
		return nil, fmt.Errorf("table on page %d has a header but no data rows", table.Page)
	}

	header := rows[headerIdx]
	mapping := mapHeader(header, bank)

	return &structured{
		mapping: mapping,
		rows:    rows[headerIdx+1:],
	}, nil
}

// cleanRows cleans every cell and drops rows that are entirely empty.
func cleanRows(rows []parser.RawRow) []parser.RawRow {
	cleaned := make([]parser.RawRow, 0, len(rows))
	for _, row := range rows {
		out := make(parser.RawRow, len(row))
		empty := true
		for i, cell := range row {
			out[i] = transform.CleanCell(cell)
			if out[i] != "" {
				empty = false
			}
		}
		if !empty {
			cleaned = append(cleaned, out)
		}
	}
	return cleaned
}

// dropEmptyColumns removes columns with no content in any row.
func dropEmptyColumns(rows []parser.RawRow) []parser.RawRow {
	if len(rows) == 0 {
		return rows
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	keep := make([]bool, width)
	for _, row := range rows {
		for i, cell := range row {
			if cell != "" {
				keep[i] = true
			}
		}
	}

	out := make([]parser.RawRow, len(rows))
	for r, row := range rows {
		var compact parser.RawRow
		for i := 0; i < width; i++ {
			if !keep[i] {
				continue
			}
			compact = append(compact, row.Get(i))
		}
		out[r] = compact
	}
	return out
}

// findHeader locates the header row: a bank-specific phrase match first,
// then a generic keyword scan. Returns -1 when nothing qualifies.
func findHeader(rows []parser.RawRow, bank domain.Bank) int {
	if bank == domain.BankCapitalOne {
		for i, row := range rows {
			joined := strings.ToLower(strings.Join(row, " "))
			hasDate := strings.Contains(joined, "trans date") || strings.Contains(joined, "post date")
			if hasDate && strings.Contains(joined, "description") {
				return i
			}
		}
	}

	for i, row := range rows {
		joined := strings.ToLower(strings.Join(row, " "))
		for _, kw := range genericHeaderKeywords {
			if strings.Contains(joined, kw) {
				return i
			}
		}
	}
	return -1
}

// mapHeader lower-cases header cells and maps them to canonical fields by
// substring. Unmatched headers keep their positional placeholder names.
func mapHeader(header parser.RawRow, bank domain.Bank) *parser.ColumnMapping {
	mapping := parser.NewColumnMapping(header)

	for i, cell := range header {
		lower := strings.ToLower(cell)
		switch {
		case strings.Contains(lower, "trans date"):
			mapping.Set(parser.FieldTransDate, i)
			mapping.Set(parser.FieldDate, i)
		case strings.Contains(lower, "post date"):
			mapping.Set(parser.FieldPostDate, i)
			// Post date is the canonical transaction date for two-date
			// statements; bind it when no date column is mapped yet.
			mapping.Set(parser.FieldDate, i)
		case strings.Contains(lower, "date"):
			mapping.Set(parser.FieldDate, i)
		case strings.Contains(lower, "desc"), strings.Contains(lower, "merchant"):
			mapping.Set(parser.FieldDescription, i)
		case strings.Contains(lower, "amount"):
			mapping.Set(parser.FieldAmount, i)
		case strings.Contains(lower, "debit"):
			mapping.Set(parser.FieldDebit, i)
		case strings.Contains(lower, "credit"):
			mapping.Set(parser.FieldCredit, i)
		case strings.Contains(lower, "category"):
			mapping.Set(parser.FieldCategory, i)
		}
	}

	// Two-date statements put the amount in the last column even when its
	// header text is decoration.
	if bank == domain.BankCapitalOne && !mapping.Has(parser.FieldAmount) && len(header) >= 4 {
		mapping.Set(parser.FieldAmount, len(header)-1)
	}

	return mapping
}
