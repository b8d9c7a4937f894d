// Package summary aggregates normalized transactions into result totals.
package summary

import (
	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
)

// Aggregate computes the summary block for a transaction list. Totals are
// accumulated in exact decimals and converted to float64 only at the edge,
// so a long statement cannot drift from float addition.
//
// Sign convention: TotalDebits is the positive magnitude of outflows,
// TotalCredits the sum of inflows, NetAmount = TotalCredits - TotalDebits.
// An empty list yields a well-formed all-zero summary.
func Aggregate(transactions []domain.Transaction) domain.Summary {
	s := domain.NewEmptySummary()
	if len(transactions) == 0 {
		return s
	}

	debits := decimal.Zero
	credits := decimal.Zero
	categoryTotals := make(map[domain.Category]decimal.Decimal)

	var earliest, latest string
	for _, txn := range transactions {
		amount := decimal.NewFromFloat(txn.Amount)
		if amount.IsNegative() {
			debits = debits.Add(amount.Neg())
		} else {
			credits = credits.Add(amount)
		}

		cat := txn.Category
		if cat == "" {
			cat = domain.CategoryOther
		}
		categoryTotals[cat] = categoryTotals[cat].Add(amount)
		entry := s.CategoryBreakdown[cat]
		entry.Count++
		s.CategoryBreakdown[cat] = entry

		// ISO dates order lexicographically
		if earliest == "" || txn.Date < earliest {
			earliest = txn.Date
		}
		if latest == "" || txn.Date > latest {
			latest = txn.Date
		}
	}

	for cat, total := range categoryTotals {
		entry := s.CategoryBreakdown[cat]
		entry.Total = total.Round(2).InexactFloat64()
		s.CategoryBreakdown[cat] = entry
	}

	s.TransactionCount = len(transactions)
	s.TotalDebits = debits.Round(2).InexactFloat64()
	s.TotalCredits = credits.Round(2).InexactFloat64()
	s.NetAmount = credits.Sub(debits).Round(2).InexactFloat64()
	s.DateRange = domain.DateRange{Earliest: earliest, Latest: latest}

	return s
}
