package csv

import (
	"strings"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/parser"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/transform"
)

// mapColumns resolves a header row to canonical fields by substring
// synonym. First binding wins, so "Transaction Date" claims the date slot
// before a later "Posted Date" column can.
func mapColumns(header parser.RawRow) *parser.ColumnMapping {
	mapping := parser.NewColumnMapping(header)

	for i, cell := range header {
		lower := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case strings.Contains(lower, "original") && strings.Contains(lower, "amount"),
			strings.Contains(lower, "instructed") && strings.Contains(lower, "amount"):
			mapping.Set(parser.FieldOriginalAmount, i)
		// "Currency Exchange Rate" names both concepts; the rate case must
		// win before the bare currency case.
		case strings.Contains(lower, "rate"):
			mapping.Set(parser.FieldExchangeRate, i)
		case strings.Contains(lower, "currency"):
			mapping.Set(parser.FieldOriginalCurrency, i)
		case strings.Contains(lower, "trans") && strings.Contains(lower, "date"):
			mapping.Set(parser.FieldTransDate, i)
			mapping.Set(parser.FieldDate, i)
		case strings.Contains(lower, "post") && strings.Contains(lower, "date"):
			mapping.Set(parser.FieldPostDate, i)
			mapping.Set(parser.FieldDate, i)
		case strings.Contains(lower, "date"):
			mapping.Set(parser.FieldDate, i)
		case strings.Contains(lower, "desc"), strings.Contains(lower, "merchant"),
			strings.Contains(lower, "payee"), strings.Contains(lower, "memo"),
			lower == "name", lower == "details":
			mapping.Set(parser.FieldDescription, i)
		case strings.Contains(lower, "indicator"), lower == "type", lower == "transaction type":
			// Indicator columns name both words, e.g. "Credit/Debit
			// Indicator"; they must win before the debit/credit cases.
			mapping.Set(parser.FieldType, i)
		case strings.Contains(lower, "debit"), strings.Contains(lower, "withdrawal"):
			mapping.Set(parser.FieldDebit, i)
		case strings.Contains(lower, "credit"), strings.Contains(lower, "deposit"):
			mapping.Set(parser.FieldCredit, i)
		case strings.Contains(lower, "amount"):
			mapping.Set(parser.FieldAmount, i)
		case strings.Contains(lower, "category"):
			mapping.Set(parser.FieldCategory, i)
		}
	}
	return mapping
}

// parseRow converts one data row to a transaction. Rows lacking a date,
// description, or nonzero amount become skips, never errors: exports pad
// sections with running-balance and subtotal rows.
func parseRow(row parser.RawRow, mapping *parser.ColumnMapping, bank domain.Bank, assumedYear int) (*domain.Transaction, *parser.Skip) {
	dateCell := mapping.Cell(row, parser.FieldPostDate)
	if dateCell == "" {
		dateCell = mapping.Cell(row, parser.FieldDate)
	}
	if dateCell == "" {
		return nil, &parser.Skip{Reason: parser.SkipNoDate, Detail: strings.Join(row, ",")}
	}
	date, ok := transform.NormalizeDate(dateCell, assumedYear)
	if !ok {
		return nil, &parser.Skip{Reason: parser.SkipNoDate, Detail: dateCell}
	}

	description := transform.CleanDescription(mapping.Cell(row, parser.FieldDescription))
	if description == "" {
		return nil, &parser.Skip{Reason: parser.SkipNoDescription, Detail: strings.Join(row, ",")}
	}

	amount, ok := resolveAmount(row, mapping)
	if !ok {
		return nil, &parser.Skip{Reason: parser.SkipNoAmount, Detail: strings.Join(row, ",")}
	}
	amount = applyIndicator(amount, mapping.Cell(row, parser.FieldType))
	if amount == 0 {
		return nil, &parser.Skip{Reason: parser.SkipZeroAmount, Detail: description}
	}

	txn, err := domain.NewTransaction(date, description, amount, bank, domain.MethodCSV)
	if err != nil {
		return nil, &parser.Skip{Reason: parser.SkipMalformed, Detail: err.Error()}
	}
	txn.RawData = mapping.RawData(row)

	if cat, ok := matchCategory(mapping.Cell(row, parser.FieldCategory)); ok {
		txn.Category = cat
	}

	attachForex(txn, row, mapping)
	return txn, nil
}

// resolveAmount reads the signed amount: a dedicated amount column first,
// then debit (forced negative) and credit columns.
func resolveAmount(row parser.RawRow, mapping *parser.ColumnMapping) (float64, bool) {
	if cell := mapping.Cell(row, parser.FieldAmount); cell != "" {
		if amount, err := transform.ParseAmount(cell); err == nil {
			return amount, true
		}
	}
	if cell := mapping.Cell(row, parser.FieldDebit); cell != "" {
		if amount, err := transform.ParseAmount(cell); err == nil {
			if amount > 0 {
				amount = -amount
			}
			return amount, true
		}
	}
	if cell := mapping.Cell(row, parser.FieldCredit); cell != "" {
		if amount, err := transform.ParseAmount(cell); err == nil {
			if amount < 0 {
				amount = -amount
			}
			return amount, true
		}
	}
	return 0, false
}

// applyIndicator overrides the amount's sign from a credit/debit indicator
// column when present. Exports that carry one print unsigned magnitudes.
func applyIndicator(amount float64, indicator string) float64 {
	switch strings.ToUpper(strings.TrimSpace(indicator)) {
	case "DEBIT", "DBIT", "DR":
		if amount > 0 {
			amount = -amount
		}
	case "CREDIT", "CRDT", "CR":
		if amount < 0 {
			amount = -amount
		}
	}
	return amount
}

// matchCategory maps a category cell onto the standard set, ignoring case.
// Unknown labels are dropped; the classifier assigns those rows later.
func matchCategory(cell string) (domain.Category, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return "", false
	}
	for _, c := range domain.Categories() {
		if strings.EqualFold(cell, string(c)) {
			return c, true
		}
	}
	return "", false
}

// attachForex attaches a foreign-currency block when the row carries an
// original amount in a non-USD currency. A missing exchange rate is
// recovered from the two amounts.
func attachForex(txn *domain.Transaction, row parser.RawRow, mapping *parser.ColumnMapping) {
	currency := strings.ToUpper(strings.TrimSpace(mapping.Cell(row, parser.FieldOriginalCurrency)))
	if currency == "" || currency == "USD" {
		return
	}

	origCell := mapping.Cell(row, parser.FieldOriginalAmount)
	if origCell == "" {
		return
	}
	orig, err := transform.ParseAmount(origCell)
	if err != nil || orig == 0 {
		return
	}

	rate := 0.0
	if rateCell := mapping.Cell(row, parser.FieldExchangeRate); rateCell != "" {
		if r, err := transform.ParseAmount(rateCell); err == nil {
			rate = r
		}
	}
	if rate <= 0 && txn.Amount != 0 {
		rate = abs(orig / txn.Amount)
	}

	_ = txn.SetForex(orig, currency, rate)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
