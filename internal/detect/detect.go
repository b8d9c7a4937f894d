// Package detect identifies the issuing institution of a statement from its
// first-page text, plus best-effort account metadata.
package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
)

// Detection is the outcome of a bank scan. Unknown documents carry
// domain.BankUnknown with zero confidence and no evidence; that is a valid
// outcome, not an error.
type Detection struct {
	Bank       domain.Bank
	Confidence float64
	Evidence   string
}

// AccountInfo is best-effort account metadata pulled from statement text.
// Number is always masked to the last four digits.
type AccountInfo struct {
	Number string
	Type   domain.AccountType
}

// signature pairs a bank with the text fragments that identify it.
// Fragments are matched case-insensitively as substrings.
type signature struct {
	bank     domain.Bank
	patterns []string
}

// Detector scans statement text for known institutions. The signature table
// is fixed at construction; a Detector is safe for concurrent use.
type Detector struct {
	signatures []signature
	accountRE  *regexp.Regexp
}

// NewDetector creates a detector with the standard signature table.
//
// Order matters: the first signature with a matching pattern wins, so
// institutions whose names embed another's (e.g. "us bank" inside
// "usaa federal savings bank") rely on this ordering to resolve correctly.
func NewDetector() *Detector {
	return &Detector{
		signatures: []signature{
			{domain.BankChase, []string{"chase bank", "jpmorgan chase", "chase.com"}},
			{domain.BankBankOfAmerica, []string{"bank of america", "bofa", "bankofamerica.com"}},
			{domain.BankWellsFargo, []string{"wells fargo", "wellsfargo.com"}},
			{domain.BankCapitalOne, []string{"capital one", "capitalone.com"}},
			{domain.BankCiti, []string{"citibank", "citi bank", "citibank.com", "citi.com"}},
			{domain.BankUSAA, []string{"usaa federal savings", "usaa.com"}},
			{domain.BankNavyFederal, []string{"navy federal", "navyfederal.org"}},
			{domain.BankPNC, []string{"pnc bank", "pnc.com"}},
			{domain.BankUSBank, []string{"u.s. bank", "us bank", "usbank.com"}},
			{domain.BankTDBank, []string{"td bank", "tdbank.com"}},
			{domain.BankAlly, []string{"ally bank", "ally.com"}},
			{domain.BankDiscover, []string{"discover bank", "discover.com"}},
			{domain.BankAmex, []string{"american express", "americanexpress.com"}},
		},
		accountRE: regexp.MustCompile(`(?i)(?:account|acct|ending)\D{0,40}?(\d{4})`),
	}
}

// matchConfidence is the confidence assigned to any signature hit. Substring
// matching either finds the institution's own branding or it doesn't, so a
// single fixed value covers all hits.
const matchConfidence = 0.95

// Detect scans text for a known institution and returns the first hit in
// signature order. No hit returns BankUnknown with zero confidence.
func (d *Detector) Detect(text string) Detection {
	lower := strings.ToLower(text)

	for _, sig := range d.signatures {
		for _, pattern := range sig.patterns {
			if strings.Contains(lower, pattern) {
				return Detection{
					Bank:       sig.bank,
					Confidence: matchConfidence,
					Evidence:   fmt.Sprintf("Found %q in text", pattern),
				}
			}
		}
	}

	return Detection{Bank: domain.BankUnknown}
}

// AccountInfo extracts a masked account number and account type from
// statement text. Returns false when no account reference is found; account
// type may be empty even on a hit.
func (d *Detector) AccountInfo(text string) (AccountInfo, bool) {
	m := d.accountRE.FindStringSubmatch(text)
	if m == nil {
		return AccountInfo{}, false
	}

	info := AccountInfo{Number: "****" + m[1]}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "checking"):
		info.Type = domain.AccountTypeChecking
	case strings.Contains(lower, "savings"):
		info.Type = domain.AccountTypeSavings
	case strings.Contains(lower, "credit"):
		info.Type = domain.AccountTypeCredit
	}

	return info, true
}
