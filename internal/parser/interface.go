package parser

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
)

// Parser is the strategy interface for all statement file formats.
type Parser interface {
	// Name returns parser identifier (e.g., "pdf", "csv", "ofx")
	Name() string

	// CanParse checks if parser can handle this file
	// Returns true if this parser should be used for the file
	CanParse(path string, header []byte) bool

	// Parse extracts and normalizes transactions from the file. The returned
	// Parsed is non-nil whenever error is nil, even if no transactions were
	// found: an empty statement is a valid outcome, not an error.
	Parse(ctx context.Context, path string, opts Options) (*Parsed, error)
}

// Options carries the per-run tunables handed to every parser. A zero
// Options is usable; parsers substitute their documented defaults.
type Options struct {
	// BankHint forces the bank instead of detecting it from document text.
	BankHint domain.Bank
	// AccuracyThreshold is the minimum usable table accuracy (0-100).
	// Zero means the standard threshold of 50.
	AccuracyThreshold float64
	// AssumedYear completes year-less dates like "Apr 16". Zero means the
	// current year.
	AssumedYear int
	// Logger receives debug-level parse noise. The zero value drops it.
	Logger zerolog.Logger
}

// Threshold returns the effective accuracy threshold.
func (o Options) Threshold() float64 {
	if o.AccuracyThreshold <= 0 {
		return 50
	}
	return o.AccuracyThreshold
}

// Parsed represents one file's extraction output before categorization,
// deduplication, and summarization.
type Parsed struct {
	Transactions []domain.Transaction
	Bank         domain.Bank
	Method       domain.ExtractionMethod
	TablesFound  int
	Skips        []Skip
}

// SkipReason classifies why a row or line produced no transaction. Most
// skips are expected noise (headers, boilerplate, decoration); they are
// recorded so tests and verbose output can account for every input row
// without intercepting panics.
type SkipReason string

const (
	// SkipNoDate means no cell or segment matched a date pattern.
	SkipNoDate SkipReason = "no_date"
	// SkipNoAmount means no cell or segment matched an amount pattern.
	SkipNoAmount SkipReason = "no_amount"
	// SkipNoDescription means no cell qualified as a description.
	SkipNoDescription SkipReason = "no_description"
	// SkipZeroAmount means the amount parsed but was zero.
	SkipZeroAmount SkipReason = "zero_amount"
	// SkipHeaderRow means the row repeated the table header.
	SkipHeaderRow SkipReason = "header_row"
	// SkipBoilerplate means the line matched a known non-transaction phrase
	// (section dividers, fee summaries, marketing text).
	SkipBoilerplate SkipReason = "boilerplate"
	// SkipForexDetail means the line was consumed as foreign-currency
	// detail attached to the preceding transaction.
	SkipForexDetail SkipReason = "forex_detail"
	// SkipMalformed means the unit failed in a way the parser could not
	// classify; the sibling units were still processed.
	SkipMalformed SkipReason = "malformed"
)

// Skip records one dropped unit of input.
type Skip struct {
	// Row is the zero-based row or line index within its table, section, or
	// page.
	Row int
	// Reason classifies the drop.
	Reason SkipReason
	// Detail is an optional snippet of the offending input for debugging.
	Detail string
}

// CountSkips tallies skips by reason.
func CountSkips(skips []Skip) map[SkipReason]int {
	counts := make(map[SkipReason]int)
	for _, s := range skips {
		counts[s.Reason]++
	}
	return counts
}

// LogSkips writes each skip at debug level. Dropped rows are expected,
// high-frequency noise; they never log above debug.
func LogSkips(logger zerolog.Logger, skips []Skip) {
	for _, s := range skips {
		logger.Debug().
			Int("row", s.Row).
			Str("reason", string(s.Reason)).
			Str("detail", s.Detail).
			Msg("row skipped")
	}
}
