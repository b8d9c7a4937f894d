// Package pdf extracts transactions from PDF bank statements. Extraction is
// two-tier: geometric table reconstruction first, gated by an accuracy
// score, then a line-oriented regex fallback when no table clears the gate.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/detect"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/parser"
)

// textFallbackConfidence is the confidence carried by transactions from the
// regex fallback. Line shapes are unambiguous when they match but the scan
// has no structural cross-check, so it scores below a clean table.
const textFallbackConfidence = 0.75

// capitalOneGeometry pins the four-column layout of two-date statements:
// transaction date, post date, description, amount. Fixed edges beat
// inference here because the description column is wide and sparse rows
// would otherwise merge it with its neighbors.
var capitalOneGeometry = geometry{
	columnEdges: []float64{40, 110, 180, 470},
}

// Parser extracts transactions from PDF statements.
type Parser struct {
	detector *detect.Detector
}

// New creates a PDF statement parser.
func New(detector *detect.Detector) *Parser {
	return &Parser{detector: detector}
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "pdf"
}

// CanParse accepts .pdf files and anything carrying the PDF magic bytes.
func (p *Parser) CanParse(path string, header []byte) bool {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return true
	}
	return bytes.HasPrefix(header, []byte("%PDF"))
}

// Parse extracts transactions from a PDF statement. Per-table and per-row
// failures are recorded as skips and never abort the file; only an unreadable
// document returns an error.
func (p *Parser) Parse(ctx context.Context, path string, opts parser.Options) (*parser.Parsed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pages, err := readPDF(path)
	if err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", filepath.Base(path), err)
	}

	bank := opts.BankHint
	if bank == "" || bank == domain.BankUnknown {
		bank = p.detectBank(pages)
	}

	out := &parser.Parsed{Bank: bank, Method: domain.MethodTable}

	var geom *geometry
	if bank == domain.BankCapitalOne {
		geom = &capitalOneGeometry
	}

	threshold := opts.Threshold()
	for _, pg := range pages {
		table, ok := detectTable(pg, geom)
		if !ok {
			continue
		}
		out.TablesFound++

		if table.Accuracy <= threshold {
			opts.Logger.Debug().
				Int("page", table.Page).
				Float64("accuracy", table.Accuracy).
				Float64("threshold", threshold).
				Msg("table below accuracy threshold")
			continue
		}

		txns, skips := p.parseTable(table, bank, opts)
		out.Transactions = append(out.Transactions, txns...)
		out.Skips = append(out.Skips, skips...)
	}

	// Nothing usable from tables: rescan the raw text lines.
	if len(out.Transactions) == 0 {
		txns, skips := scanTextLines(pages, bank, opts.AssumedYear)
		for i := range txns {
			txns[i].Confidence = textFallbackConfidence
		}
		out.Transactions = txns
		out.Skips = append(out.Skips, skips...)
		out.Method = domain.MethodTextFallback
	}

	parser.LogSkips(opts.Logger, out.Skips)
	return out, nil
}

// detectBank runs institution detection over the document's text, first
// page first since branding lives there.
func (p *Parser) detectBank(pages []page) domain.Bank {
	for _, pg := range pages {
		d := p.detector.Detect(strings.Join(pg.lines, "\n"))
		if d.Bank != domain.BankUnknown {
			return d.Bank
		}
	}
	return domain.BankUnknown
}

// parseTable structures one detected table and parses its rows. A table
// whose header cannot be located is skipped whole; its siblings still parse.
func (p *Parser) parseTable(table parser.RawTable, bank domain.Bank, opts parser.Options) ([]domain.Transaction, []parser.Skip) {
	st, err := structureTable(table, bank)
	if err != nil {
		return nil, []parser.Skip{{Reason: parser.SkipMalformed, Detail: err.Error()}}
	}

	confidence := table.Accuracy / 100
	lines := joinRowLines(st.rows)

	var txns []domain.Transaction
	var skips []parser.Skip
	for i, row := range st.rows {
		var txn *domain.Transaction
		var skip *parser.Skip
		if bank == domain.BankCapitalOne {
			txn, skip = parseCapitalOneRow(row, st.mapping, opts.AssumedYear)
		} else {
			txn, skip = parseGenericRow(row, st.mapping, bank, opts.AssumedYear)
		}
		if txn == nil {
			skip.Row = i
			skips = append(skips, *skip)
			continue
		}
		txn.Confidence = confidence

		if fx, consumed := tryConsumeForex(lines, i); consumed > 0 {
			attachForex(txn, fx)
		}

		txns = append(txns, *txn)
	}
	return txns, skips
}

// joinRowLines flattens table rows to single lines for the foreign-currency
// lookahead, built once per table. Consumed detail rows are not removed;
// they fail row parsing on their own and surface as skips.
func joinRowLines(rows []parser.RawRow) []string {
	lines := make([]string, len(rows))
	for r, row := range rows {
		var parts []string
		for _, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell != "" {
				parts = append(parts, cell)
			}
		}
		lines[r] = strings.Join(parts, " ")
	}
	return lines
}
