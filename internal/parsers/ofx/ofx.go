// Package ofx extracts transactions from OFX/QFX statement downloads. The
// format is already structured, so extraction is a mapping exercise: resolve
// dates and descriptions from their fallback chains and normalize signs.
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/detect"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/parser"
)

// Parser extracts transactions from OFX/QFX files.
type Parser struct {
	detector *detect.Detector
}

// New creates an OFX statement parser.
func New(detector *detect.Detector) *Parser {
	return &Parser{detector: detector}
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "ofx"
}

// CanParse accepts .ofx and .qfx files carrying an OFX marker, v1 SGML or
// v2 XML.
func (p *Parser) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ofx" && ext != ".qfx" {
		return false
	}

	upper := strings.ToUpper(string(header))
	return strings.Contains(upper, "OFXHEADER") ||
		strings.Contains(upper, "<?OFX") ||
		strings.Contains(upper, "<OFX>")
}

// Parse extracts transactions from an OFX/QFX file. Credit card and bank
// statements are supported; a response carrying neither is an error.
func (p *Parser) Parse(ctx context.Context, path string, opts parser.Options) (*parser.Parsed, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	// ofxgo.ParseResponse does not support cancellation; this check covers
	// the gap between read and parse.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing OFX file %s (%d bytes): %w", filepath.Base(path), len(content), err)
	}

	bank := opts.BankHint
	if bank == "" || bank == domain.BankUnknown {
		bank = p.detector.Detect(response.Signon.Org.String()).Bank
	}

	var tranList *ofxgo.TransactionList
	switch {
	case len(response.CreditCard) > 0:
		ccStmt, ok := response.CreditCard[0].(*ofxgo.CCStatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected credit card statement type %T", response.CreditCard[0])
		}
		tranList = ccStmt.BankTranList
	case len(response.Bank) > 0:
		bankStmt, ok := response.Bank[0].(*ofxgo.StatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected bank statement type %T", response.Bank[0])
		}
		tranList = bankStmt.BankTranList
	default:
		return nil, fmt.Errorf("no supported statement in OFX file: expected a credit card (CREDITCARDMSGSRSV1) or bank (BANKMSGSRSV1) statement (creditcard: %d, bank: %d, investment: %d)",
			len(response.CreditCard), len(response.Bank), len(response.InvStmt))
	}
	if tranList == nil {
		return nil, fmt.Errorf("OFX statement carries no transaction list")
	}

	out := &parser.Parsed{Bank: bank, Method: domain.MethodOFX}
	for i, txn := range tranList.Transactions {
		converted, skip := p.convert(txn, bank, opts)
		if converted == nil {
			skip.Row = i
			out.Skips = append(out.Skips, *skip)
			continue
		}
		out.Transactions = append(out.Transactions, *converted)
	}

	parser.LogSkips(opts.Logger, out.Skips)
	return out, nil
}

// convert maps one OFX transaction to the normalized form. Posted date wins
// over user date; the name field wins over memo. A DEBIT type forces the
// amount negative since some producers print unsigned debits.
func (p *Parser) convert(txn ofxgo.Transaction, bank domain.Bank, opts parser.Options) (*domain.Transaction, *parser.Skip) {
	date := txn.DtPosted.Time
	if date.IsZero() {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		return nil, &parser.Skip{Reason: parser.SkipNoDate, Detail: txn.FiTID.String()}
	}

	description := strings.TrimSpace(txn.Name.String())
	if description == "" {
		description = strings.TrimSpace(txn.Memo.String())
	}
	if description == "" {
		return nil, &parser.Skip{Reason: parser.SkipNoDescription, Detail: txn.FiTID.String()}
	}

	// Float64 reports whether the rational amount is exactly representable.
	// Two-decimal currency always is; log the exceptions.
	amount, exact := txn.TrnAmt.Float64()
	if !exact {
		opts.Logger.Warn().
			Str("transaction", txn.FiTID.String()).
			Str("amount", txn.TrnAmt.String()).
			Msg("amount not exactly representable as float64")
	}
	if amount == 0 {
		return nil, &parser.Skip{Reason: parser.SkipZeroAmount, Detail: description}
	}
	if txn.TrnType == ofxgo.TrnTypeDebit && amount > 0 {
		amount = -amount
	}

	converted, err := domain.NewTransaction(date.Format("2006-01-02"), description, amount, bank, domain.MethodOFX)
	if err != nil {
		return nil, &parser.Skip{Reason: parser.SkipMalformed, Detail: err.Error()}
	}
	converted.RawData = map[string]string{
		"fitid": txn.FiTID.String(),
		"type":  fmt.Sprintf("%v", txn.TrnType),
	}
	return converted, nil
}
