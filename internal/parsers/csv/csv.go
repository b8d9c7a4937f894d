// Package csv extracts transactions from delimited statement exports. Files
// are split into header-led sections so multi-account exports, where several
// tables with differing column orders share one file, parse in one pass.
package csv

import (
	"context"
	enccsv "encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/detect"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/parser"
)

// Parser extracts transactions from CSV statement exports.
type Parser struct {
	detector *detect.Detector
}

// New creates a CSV statement parser.
func New(detector *detect.Detector) *Parser {
	return &Parser{detector: detector}
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "csv"
}

// CanParse accepts .csv files whose leading lines contain a column header.
// The strict header test keeps free-form exports without a transaction
// table from claiming this parser.
func (p *Parser) CanParse(path string, header []byte) bool {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return false
	}
	if len(header) == 0 {
		return true
	}

	lines := strings.Split(string(header), "\n")
	limit := len(lines)
	if limit > 5 {
		limit = 5
	}
	for _, line := range lines[:limit] {
		if isHeaderLine(strings.TrimRight(line, "\r")) {
			return true
		}
	}
	return false
}

// Parse extracts transactions from every section of the file. Sections
// whose rows cannot be read are skipped whole; row-level problems become
// per-row skips. A file with no recognizable section is an error.
func (p *Parser) Parse(ctx context.Context, path string, opts parser.Options) (*parser.Parsed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	sections := splitSections(strings.Split(string(raw), "\n"))
	if len(sections) == 0 {
		return nil, fmt.Errorf("%s contains no transaction table", filepath.Base(path))
	}

	bank := opts.BankHint
	if bank == "" || bank == domain.BankUnknown {
		bank = p.detector.Detect(string(raw)).Bank
	}

	out := &parser.Parsed{Bank: bank, Method: domain.MethodCSV}
	for _, sec := range sections {
		txns, skips, err := p.parseSection(sec, bank, opts)
		if err != nil {
			opts.Logger.Warn().
				Int("line", sec.start+1).
				Err(err).
				Msg("section unreadable, skipping")
			out.Skips = append(out.Skips, parser.Skip{
				Row: sec.start, Reason: parser.SkipMalformed, Detail: err.Error(),
			})
			continue
		}
		out.Transactions = append(out.Transactions, txns...)
		out.Skips = append(out.Skips, skips...)
	}

	parser.LogSkips(opts.Logger, out.Skips)
	return out, nil
}

// parseSection reads one section's rows with the delimiter its header uses
// and converts them to transactions.
func (p *Parser) parseSection(sec section, bank domain.Bank, opts parser.Options) ([]domain.Transaction, []parser.Skip, error) {
	delim := detectDelimiter(sec.header)

	// Dividers and summary decoration ride along in the section data; they
	// are excluded here, at row-parse time.
	rows := make([]string, 0, len(sec.data))
	for _, line := range sec.data {
		if isDivider(line) {
			continue
		}
		rows = append(rows, line)
	}

	reader := enccsv.NewReader(strings.NewReader(sec.header + "\n" + strings.Join(rows, "\n")))
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading section rows: %w", err)
	}
	// A header with no data rows yields zero transactions, not an error.
	if len(records) < 2 {
		return nil, nil, nil
	}

	mapping := mapColumns(parser.RawRow(records[0]))

	var txns []domain.Transaction
	var skips []parser.Skip
	for i, record := range records[1:] {
		txn, skip := parseRow(parser.RawRow(record), mapping, bank, opts.AssumedYear)
		if txn == nil {
			skip.Row = sec.start + 1 + i
			skips = append(skips, *skip)
			continue
		}
		txns = append(txns, *txn)
	}
	return txns, skips, nil
}
