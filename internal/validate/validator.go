// Package validate checks result envelopes for internal consistency before
// they are written anywhere. Validation never mutates; it reports every
// problem it finds so a caller sees the whole picture at once.
package validate

import (
	"fmt"
	"math"
	"time"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
)

// ValidationResult contains all validation errors and warnings for a result.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// Valid reports whether validation found no errors. Warnings do not fail
// validation.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ValidationError represents a constraint violation.
type ValidationError struct {
	Entity  string // "transaction", "summary", "metadata"
	ID      string
	Field   string
	Value   string
	Message string
}

// ValidationWarning represents a non-critical issue.
type ValidationWarning struct {
	Entity  string
	ID      string
	Field   string
	Value   string
	Message string
}

// totalsTolerance absorbs float accumulation error when cross-checking
// summary totals against the transaction list.
const totalsTolerance = 0.01

// ValidateResult performs comprehensive validation of a processing result:
// per-transaction constraints plus summary consistency against the
// transaction list. Error results are exempt from summary cross-checks but
// must still carry a well-formed empty summary.
func ValidateResult(res *domain.Result) *ValidationResult {
	out := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	for i, txn := range res.Transactions {
		validateTransaction(out, i, txn)
	}

	if !res.Success && res.Error == "" {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "metadata",
			Field:   "Error",
			Message: "failed result must say why",
		})
	}

	validateSummary(out, res)
	return out
}

func validateTransaction(out *ValidationResult, index int, txn domain.Transaction) {
	id := fmt.Sprintf("transactions[%d]", index)

	if _, err := time.Parse("2006-01-02", txn.Date); err != nil {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "transaction",
			ID:      id,
			Field:   "Date",
			Value:   txn.Date,
			Message: fmt.Sprintf("invalid date format (expected YYYY-MM-DD): %v", err),
		})
	}

	if txn.Description == "" {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "transaction",
			ID:      id,
			Field:   "Description",
			Message: "description cannot be empty",
		})
	}

	if txn.Amount == 0 {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "transaction",
			ID:      id,
			Field:   "Amount",
			Value:   "0",
			Message: "amount cannot be zero",
		})
	}

	if !domain.ValidateCategory(txn.Category) {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "transaction",
			ID:      id,
			Field:   "Category",
			Value:   string(txn.Category),
			Message: fmt.Sprintf("invalid category: %s", txn.Category),
		})
	}

	if !domain.ValidateBank(txn.Bank) {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "transaction",
			ID:      id,
			Field:   "Bank",
			Value:   string(txn.Bank),
			Message: fmt.Sprintf("invalid bank: %s", txn.Bank),
		})
	}

	if !domain.ValidateExtractionMethod(txn.ExtractionMethod) {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "transaction",
			ID:      id,
			Field:   "ExtractionMethod",
			Value:   string(txn.ExtractionMethod),
			Message: fmt.Sprintf("invalid extraction method: %s", txn.ExtractionMethod),
		})
	}

	if txn.Confidence < 0 || txn.Confidence > 1 {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "transaction",
			ID:      id,
			Field:   "Confidence",
			Value:   fmt.Sprintf("%f", txn.Confidence),
			Message: fmt.Sprintf("confidence must be in [0,1], got %f", txn.Confidence),
		})
	}

	// The forex flag and block travel together or not at all.
	if txn.HasForex && txn.Forex == nil {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "transaction",
			ID:      id,
			Field:   "Forex",
			Message: "has_forex set without a forex block",
		})
	}
	if !txn.HasForex && txn.Forex != nil {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "transaction",
			ID:      id,
			Field:   "HasForex",
			Message: "forex block present without has_forex",
		})
	}
	if txn.Forex != nil {
		if txn.Forex.OriginalAmount == 0 {
			out.Errors = append(out.Errors, ValidationError{
				Entity:  "transaction",
				ID:      id,
				Field:   "Forex.OriginalAmount",
				Value:   "0",
				Message: "forex original amount cannot be zero",
			})
		}
		if txn.Forex.ExchangeRate <= 0 {
			out.Errors = append(out.Errors, ValidationError{
				Entity:  "transaction",
				ID:      id,
				Field:   "Forex.ExchangeRate",
				Value:   fmt.Sprintf("%f", txn.Forex.ExchangeRate),
				Message: fmt.Sprintf("exchange rate must be positive, got %f", txn.Forex.ExchangeRate),
			})
		}
		if txn.Forex.OriginalCurrency == "USD" {
			out.Errors = append(out.Errors, ValidationError{
				Entity:  "transaction",
				ID:      id,
				Field:   "Forex.OriginalCurrency",
				Value:   "USD",
				Message: "forex block cannot carry USD",
			})
		}
	}
}

// validateSummary cross-checks summary aggregates against the transaction
// list: the count, both totals, the net identity, and the date range.
func validateSummary(out *ValidationResult, res *domain.Result) {
	sum := res.Summary

	if sum.CategoryBreakdown == nil {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "summary",
			Field:   "CategoryBreakdown",
			Message: "category breakdown map must be initialized",
		})
	}

	if sum.TransactionCount != len(res.Transactions) {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "summary",
			Field:   "TransactionCount",
			Value:   fmt.Sprintf("%d", sum.TransactionCount),
			Message: fmt.Sprintf("summary counts %d transactions, result carries %d", sum.TransactionCount, len(res.Transactions)),
		})
	}

	var debits, credits float64
	earliest, latest := "", ""
	for _, txn := range res.Transactions {
		if txn.Amount < 0 {
			debits += -txn.Amount
		} else {
			credits += txn.Amount
		}
		if earliest == "" || txn.Date < earliest {
			earliest = txn.Date
		}
		if latest == "" || txn.Date > latest {
			latest = txn.Date
		}
	}

	if math.Abs(sum.TotalDebits-debits) > totalsTolerance {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "summary",
			Field:   "TotalDebits",
			Value:   fmt.Sprintf("%f", sum.TotalDebits),
			Message: fmt.Sprintf("total debits %f does not match transactions (%f)", sum.TotalDebits, debits),
		})
	}
	if math.Abs(sum.TotalCredits-credits) > totalsTolerance {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "summary",
			Field:   "TotalCredits",
			Value:   fmt.Sprintf("%f", sum.TotalCredits),
			Message: fmt.Sprintf("total credits %f does not match transactions (%f)", sum.TotalCredits, credits),
		})
	}
	if math.Abs(sum.NetAmount-(sum.TotalCredits-sum.TotalDebits)) > totalsTolerance {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "summary",
			Field:   "NetAmount",
			Value:   fmt.Sprintf("%f", sum.NetAmount),
			Message: "net amount must equal credits minus debits",
		})
	}

	if sum.DateRange.Earliest != earliest || sum.DateRange.Latest != latest {
		out.Errors = append(out.Errors, ValidationError{
			Entity:  "summary",
			Field:   "DateRange",
			Value:   fmt.Sprintf("%s..%s", sum.DateRange.Earliest, sum.DateRange.Latest),
			Message: fmt.Sprintf("date range does not span the transactions (%s..%s)", earliest, latest),
		})
	}
}
