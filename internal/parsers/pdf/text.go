package pdf

import (
	"regexp"
	"strings"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/parser"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/transform"
)

// skipPhrases mark statement boilerplate that a line scan must never treat
// as a transaction: section dividers, fee and interest summaries, marketing
// text, header echoes.
var skipPhrases = []string{
	"visit capitalone",
	"total fees",
	"interest charge",
	"annual percentage",
	"your apr",
	"rewards summary",
	"trans date post date description amount",
	"total transactions for this period",
	"payments credits and adjustments",
}

func isBoilerplate(line string) bool {
	lower := strings.ToLower(line)
	for _, phrase := range skipPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

var (
	// twoDateLineRE matches the two-date statement line shape:
	// "Apr 15 Apr 16 UBER* EATSCIUDAD DE MEXCDM $26.03".
	twoDateLineRE = regexp.MustCompile(`^([A-Za-z]{3}\.?\s+\d{1,2})\s+([A-Za-z]{3}\.?\s+\d{1,2})\s+(.+?)\s+(\(?-?\$\s?[\d,]+\.?\d*\)?)$`)

	// genericLineRE matches the common "MM/DD/YYYY description amount" shape.
	genericLineRE = regexp.MustCompile(`^(\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?)\s+(.+?)\s+(\(?-?\$?\s?[\d,]+\.\d{2}\)?)$`)
)

// scanTextLines is the regex fallback used when table detection produces
// nothing usable. It walks every line of every page, extracting the bank's
// line shape first and the generic shape second, and looks ahead after each
// hit for a foreign-currency block.
func scanTextLines(pages []page, bank domain.Bank, assumedYear int) ([]domain.Transaction, []parser.Skip) {
	var txns []domain.Transaction
	var skips []parser.Skip

	for _, pg := range pages {
		for i := 0; i < len(pg.lines); i++ {
			line := strings.TrimSpace(pg.lines[i])
			if line == "" {
				continue
			}
			if isBoilerplate(line) {
				skips = append(skips, parser.Skip{Row: i, Reason: parser.SkipBoilerplate, Detail: line})
				continue
			}

			txn, skip := parseTextLine(line, bank, assumedYear)
			if txn == nil {
				if skip != nil {
					skip.Row = i
					skips = append(skips, *skip)
				}
				continue
			}
			txn.ExtractionMethod = domain.MethodTextFallback

			if fx, consumed := tryConsumeForex(pg.lines, i); consumed > 0 {
				attachForex(txn, fx)
				for j := 1; j <= consumed; j++ {
					skips = append(skips, parser.Skip{
						Row:    i + j,
						Reason: parser.SkipForexDetail,
						Detail: strings.TrimSpace(pg.lines[i+j]),
					})
				}
				i += consumed
			}

			txns = append(txns, *txn)
		}
	}
	return txns, skips
}

// parseTextLine extracts one transaction from a text line, or a skip when
// the line is shaped like a transaction but fails to parse. Lines matching
// neither shape return (nil, nil): most lines on a statement page are not
// transactions and are not worth recording.
func parseTextLine(line string, bank domain.Bank, assumedYear int) (*domain.Transaction, *parser.Skip) {
	if bank == domain.BankCapitalOne {
		if m := twoDateLineRE.FindStringSubmatch(line); m != nil {
			return buildTwoDateTxn(m[2], m[3], m[4], assumedYear)
		}
	}

	if m := genericLineRE.FindStringSubmatch(line); m != nil {
		return buildGenericTxn(m[1], m[2], m[3], bank, assumedYear)
	}
	return nil, nil
}

// buildTwoDateTxn assembles a transaction from the two-date line shape. The
// post date is the transaction date. Sign policy: payments positive,
// everything else negative.
func buildTwoDateTxn(postDate, desc, amountStr string, assumedYear int) (*domain.Transaction, *parser.Skip) {
	amount, err := transform.ParseAmount(amountStr)
	if err != nil {
		return nil, &parser.Skip{Reason: parser.SkipNoAmount, Detail: amountStr}
	}
	if amount == 0 {
		return nil, &parser.Skip{Reason: parser.SkipZeroAmount, Detail: desc}
	}

	description := transform.CleanDescription(desc)
	if description == "" {
		return nil, &parser.Skip{Reason: parser.SkipNoDescription, Detail: desc}
	}

	if isPayment(description) {
		amount = abs(amount)
	} else {
		amount = -abs(amount)
	}

	date, ok := transform.NormalizeDate(strings.ReplaceAll(postDate, ".", ""), assumedYear)
	if !ok {
		return nil, &parser.Skip{Reason: parser.SkipNoDate, Detail: postDate}
	}

	txn, err := domain.NewTransaction(date, description, amount, domain.BankCapitalOne, domain.MethodTextFallback)
	if err != nil {
		return nil, &parser.Skip{Reason: parser.SkipMalformed, Detail: err.Error()}
	}
	return txn, nil
}

// buildGenericTxn assembles a transaction from the single-date line shape.
// The amount keeps the sign the statement printed.
func buildGenericTxn(dateStr, desc, amountStr string, bank domain.Bank, assumedYear int) (*domain.Transaction, *parser.Skip) {
	amount, err := transform.ParseAmount(amountStr)
	if err != nil {
		return nil, &parser.Skip{Reason: parser.SkipNoAmount, Detail: amountStr}
	}
	if amount == 0 {
		return nil, &parser.Skip{Reason: parser.SkipZeroAmount, Detail: desc}
	}

	description := transform.CleanDescription(desc)
	if description == "" {
		return nil, &parser.Skip{Reason: parser.SkipNoDescription, Detail: desc}
	}

	date, ok := transform.NormalizeDate(dateStr, assumedYear)
	if !ok {
		return nil, &parser.Skip{Reason: parser.SkipNoDate, Detail: dateStr}
	}

	txn, err := domain.NewTransaction(date, description, amount, bank, domain.MethodTextFallback)
	if err != nil {
		return nil, &parser.Skip{Reason: parser.SkipMalformed, Detail: err.Error()}
	}
	return txn, nil
}
