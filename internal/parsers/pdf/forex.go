package pdf

import (
	"regexp"
	"strings"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/transform"
)

// Foreign-currency detail follows a charge as three consecutive lines:
// original amount, currency code, exchange rate. All three must match or
// none of them are consumed.
var (
	forexAmountRE   = regexp.MustCompile(`^\$?([\d,]+\.?\d*)$`)
	forexCurrencyRE = regexp.MustCompile(`^([A-Z]{3})$`)
	forexRateRE     = regexp.MustCompile(`(?i)^([\d.]+)\s+exchange\s+rate$`)
)

// tryConsumeForex inspects the three lines after index i for a complete
// foreign-currency block. On a full match it returns the block and the
// number of lines consumed (always 3); on any partial match it returns
// (nil, 0) and the caller processes those lines normally.
func tryConsumeForex(lines []string, i int) (*domain.Forex, int) {
	if i+3 >= len(lines) {
		return nil, 0
	}

	amountLine := strings.TrimSpace(lines[i+1])
	currencyLine := strings.TrimSpace(lines[i+2])
	rateLine := strings.TrimSpace(lines[i+3])

	am := forexAmountRE.FindStringSubmatch(amountLine)
	cm := forexCurrencyRE.FindStringSubmatch(currencyLine)
	rm := forexRateRE.FindStringSubmatch(rateLine)
	if am == nil || cm == nil || rm == nil {
		return nil, 0
	}

	amount, err := transform.ParseAmount(am[1])
	if err != nil || amount == 0 {
		return nil, 0
	}
	rate, err := transform.ParseAmount(rm[1])
	if err != nil || rate <= 0 {
		return nil, 0
	}

	return &domain.Forex{
		OriginalAmount:   amount,
		OriginalCurrency: cm[1],
		ExchangeRate:     rate,
	}, 3
}

// attachForex associates a detected block with a transaction. USD blocks are
// rejected by the domain layer; the lines stay consumed either way since
// they are detail of this charge, not transactions.
func attachForex(txn *domain.Transaction, fx *domain.Forex) {
	if fx == nil {
		return
	}
	_ = txn.SetForex(fx.OriginalAmount, fx.OriginalCurrency, fx.ExchangeRate)
}
