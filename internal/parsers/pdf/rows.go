package pdf

import (
	"regexp"
	"strings"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/parser"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/transform"
)

// paymentMarkers force a positive sign on two-date statement rows: a
// payment reduces the balance while everything else on a credit-card
// statement is a charge.
var paymentMarkers = []string{"PAYMENT", "PYMT", "PMT"}

// isPayment reports whether an upper-cased description marks a balance
// payment.
func isPayment(description string) bool {
	upper := strings.ToUpper(description)
	for _, marker := range paymentMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// parseGenericRow extracts a transaction from a structured table row. When
// the mapping resolves the needed columns they are used directly; otherwise
// every cell is searched independently: a date-shaped cell, the longest
// cell that is neither date- nor amount-shaped, and an amount-shaped cell.
// All three must resolve or the row is dropped with a skip reason.
func parseGenericRow(row parser.RawRow, mapping *parser.ColumnMapping, bank domain.Bank, assumedYear int) (*domain.Transaction, *parser.Skip) {
	dateCell := mapping.Cell(row, parser.FieldDate)
	descCell := mapping.Cell(row, parser.FieldDescription)
	amountCell := mapping.Cell(row, parser.FieldAmount)

	if dateCell == "" {
		dateCell = findDateCell(row)
	}
	if descCell == "" {
		descCell = findDescriptionCell(row)
	}

	amount, amountOK := resolveAmount(row, mapping, amountCell)

	if dateCell == "" {
		return nil, &parser.Skip{Reason: parser.SkipNoDate, Detail: strings.Join(row, "|")}
	}
	if descCell == "" {
		return nil, &parser.Skip{Reason: parser.SkipNoDescription, Detail: strings.Join(row, "|")}
	}
	if !amountOK {
		return nil, &parser.Skip{Reason: parser.SkipNoAmount, Detail: strings.Join(row, "|")}
	}
	if amount == 0 {
		return nil, &parser.Skip{Reason: parser.SkipZeroAmount, Detail: descCell}
	}

	date, ok := transform.NormalizeDate(transform.FindDate(dateCell), assumedYear)
	if !ok {
		return nil, &parser.Skip{Reason: parser.SkipNoDate, Detail: dateCell}
	}

	// Header echoes sometimes survive into data rows.
	if lower := strings.ToLower(dateCell); lower == "date" || lower == "transaction date" {
		return nil, &parser.Skip{Reason: parser.SkipHeaderRow, Detail: dateCell}
	}

	description := transform.CleanDescription(descCell)
	if description == "" {
		return nil, &parser.Skip{Reason: parser.SkipNoDescription, Detail: descCell}
	}

	txn, err := domain.NewTransaction(date, description, amount, bank, domain.MethodTable)
	if err != nil {
		return nil, &parser.Skip{Reason: parser.SkipMalformed, Detail: err.Error()}
	}
	txn.RawData = mapping.RawData(row)
	return txn, nil
}

// resolveAmount resolves the row's signed amount: a mapped amount column
// first, then separate debit/credit columns (debit forces negative), then a
// per-cell scan.
func resolveAmount(row parser.RawRow, mapping *parser.ColumnMapping, amountCell string) (float64, bool) {
	if amountCell != "" {
		amount, err := transform.ParseAmount(amountCell)
		if err == nil {
			return amount, true
		}
	}

	if mapping.Has(parser.FieldDebit) || mapping.Has(parser.FieldCredit) {
		if debit := mapping.Cell(row, parser.FieldDebit); debit != "" {
			if amount, err := transform.ParseAmount(debit); err == nil {
				if amount > 0 {
					amount = -amount
				}
				return amount, true
			}
		}
		if credit := mapping.Cell(row, parser.FieldCredit); credit != "" {
			if amount, err := transform.ParseAmount(credit); err == nil {
				if amount < 0 {
					amount = -amount
				}
				return amount, true
			}
		}
	}

	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if transform.LooksLikeAmount(cell) {
			if amount, err := transform.ParseAmount(cell); err == nil {
				return amount, true
			}
		}
	}
	return 0, false
}

// findDateCell returns the first cell containing a date shape.
func findDateCell(row parser.RawRow) string {
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell != "" && transform.LooksLikeDate(cell) {
			return cell
		}
	}
	return ""
}

// findDescriptionCell returns the longest cell that is neither date- nor
// amount-shaped.
func findDescriptionCell(row parser.RawRow) string {
	best := ""
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" || transform.LooksLikeDate(cell) || transform.LooksLikeAmount(cell) {
			continue
		}
		if len(cell) > len(best) {
			best = cell
		}
	}
	return best
}

// shortDateRE matches the "Mon D" dates of two-date statement rows.
var shortDateRE = regexp.MustCompile(`^[A-Za-z]{3}\s+\d{1,2}$`)

// parseCapitalOneRow extracts a transaction from a structured two-date
// table row: transaction date, post date, description, dollar amount. The
// post date is the transaction date. Sign policy: payments positive,
// everything else negative.
func parseCapitalOneRow(row parser.RawRow, mapping *parser.ColumnMapping, assumedYear int) (*domain.Transaction, *parser.Skip) {
	transDate := mapping.Cell(row, parser.FieldTransDate)
	postDate := mapping.Cell(row, parser.FieldPostDate)
	if postDate == "" {
		postDate = transDate
	}
	if transDate == "" || !shortDateRE.MatchString(transDate) {
		return nil, &parser.Skip{Reason: parser.SkipNoDate, Detail: strings.Join(row, "|")}
	}

	descCell := mapping.Cell(row, parser.FieldDescription)
	if descCell == "" {
		return nil, &parser.Skip{Reason: parser.SkipNoDescription, Detail: strings.Join(row, "|")}
	}
	if strings.Contains(strings.ToLower(descCell), "exchange rate") {
		return nil, &parser.Skip{Reason: parser.SkipForexDetail, Detail: descCell}
	}

	amountCell := mapping.Cell(row, parser.FieldAmount)
	if !strings.Contains(amountCell, "$") {
		return nil, &parser.Skip{Reason: parser.SkipNoAmount, Detail: strings.Join(row, "|")}
	}

	amount, err := transform.ParseAmount(amountCell)
	if err != nil {
		return nil, &parser.Skip{Reason: parser.SkipNoAmount, Detail: amountCell}
	}
	if amount == 0 {
		return nil, &parser.Skip{Reason: parser.SkipZeroAmount, Detail: descCell}
	}

	description := transform.CleanDescription(descCell)
	if description == "" {
		return nil, &parser.Skip{Reason: parser.SkipNoDescription, Detail: descCell}
	}

	if isPayment(description) {
		amount = abs(amount)
	} else {
		amount = -abs(amount)
	}

	date, ok := transform.NormalizeDate(postDate, assumedYear)
	if !ok {
		return nil, &parser.Skip{Reason: parser.SkipNoDate, Detail: postDate}
	}

	txn, err := domain.NewTransaction(date, description, amount, domain.BankCapitalOne, domain.MethodTable)
	if err != nil {
		return nil, &parser.Skip{Reason: parser.SkipMalformed, Detail: err.Error()}
	}
	txn.RawData = mapping.RawData(row)
	return txn, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
