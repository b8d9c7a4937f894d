package dedup

import (
	"math"
	"regexp"
	"strings"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
)

// Config holds the fuzzy matcher thresholds. The defaults reproduce the
// behavior most statements need; loosen Tolerance for banks that round
// pending and posted amounts differently.
type Config struct {
	Enabled bool `yaml:"enabled"`
	// Tolerance is the maximum amount difference, in dollars, between two
	// transactions still considered the same charge.
	Tolerance float64 `yaml:"tolerance"`
	// MinContainmentLen is the minimum length of the shorter description for
	// substring containment to count as a match. Below it, fragments like
	// "POS" would swallow unrelated charges.
	MinContainmentLen int `yaml:"min_containment_len"`
	// MinTokenLen is the minimum token length kept during token comparison.
	MinTokenLen int `yaml:"min_token_len"`
	// TokenOverlapRatio is the fraction of the smaller token set that must be
	// shared for a token-overlap match.
	TokenOverlapRatio float64 `yaml:"token_overlap_ratio"`
}

// DefaultConfig returns the standard matcher thresholds with the matcher
// disabled; deduplication is opt-in.
func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		Tolerance:         0.01,
		MinContainmentLen: 10,
		MinTokenLen:       3,
		TokenOverlapRatio: 0.6,
	}
}

// boilerplateTokens carry no merchant identity and are ignored during token
// comparison.
var boilerplateTokens = map[string]struct{}{
	"purchase": {}, "payment": {}, "debit": {}, "credit": {},
	"card": {}, "transaction": {}, "pos": {}, "online": {},
	"recurring": {}, "automatic": {}, "auth": {}, "pending": {},
}

var (
	trailingDateRE = regexp.MustCompile(`\s+\d{1,2}/\d{1,2}(/\d{2,4})?$`)
	trailingIDRE   = regexp.MustCompile(`\s+\d{4,}$`)
	digitsOnlyRE   = regexp.MustCompile(`^\d+$`)
)

// Matcher collapses duplicate transactions within one document. A Matcher
// holds only its thresholds and is safe for concurrent use.
type Matcher struct {
	cfg Config
}

// NewMatcher creates a matcher with the given thresholds.
func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

// Collapse returns the surviving transactions in input order plus the
// duplicates that were dropped. A transaction is a duplicate when some
// already-accepted survivor has the same date, an amount within Tolerance,
// and a similar description; the first match wins. Comparison against
// survivors only keeps chains of near-matches from collapsing transitively.
func (m *Matcher) Collapse(txns []domain.Transaction) (kept, dropped []domain.Transaction) {
	kept = make([]domain.Transaction, 0, len(txns))

	for _, txn := range txns {
		duplicate := false
		for _, survivor := range kept {
			if m.isDuplicate(txn, survivor) {
				duplicate = true
				break
			}
		}
		if duplicate {
			dropped = append(dropped, txn)
			continue
		}
		kept = append(kept, txn)
	}

	return kept, dropped
}

func (m *Matcher) isDuplicate(a, b domain.Transaction) bool {
	if a.Date != b.Date {
		return false
	}
	if math.Abs(a.Amount-b.Amount) > m.cfg.Tolerance {
		return false
	}
	return m.descriptionsSimilar(a.Description, b.Description)
}

// descriptionsSimilar applies a three-stage cascade: exact match, substring
// containment, then significant-token overlap.
func (m *Matcher) descriptionsSimilar(a, b string) bool {
	d1 := strings.ToLower(strings.TrimSpace(a))
	d2 := strings.ToLower(strings.TrimSpace(b))

	if d1 == d2 {
		return true
	}

	shorter, longer := d1, d2
	if len(d2) < len(d1) {
		shorter, longer = d2, d1
	}
	if len(shorter) >= m.cfg.MinContainmentLen && strings.Contains(longer, shorter) {
		return true
	}

	t1 := m.significantTokens(d1)
	t2 := m.significantTokens(d2)
	if len(t1) == 0 || len(t2) == 0 {
		return false
	}

	set1 := make(map[string]struct{}, len(t1))
	for _, tok := range t1 {
		set1[tok] = struct{}{}
	}
	set2 := make(map[string]struct{}, len(t2))
	for _, tok := range t2 {
		set2[tok] = struct{}{}
	}

	common := 0
	for tok := range set1 {
		if _, ok := set2[tok]; ok {
			common++
		}
	}

	smaller := len(set1)
	if len(set2) < smaller {
		smaller = len(set2)
	}

	// A description whose only significant token appears in the other is the
	// token-level analogue of containment ("WALMART" vs "WALMART SUPERCENTER").
	if smaller == 1 {
		return common == 1
	}

	return common >= 2 && float64(common) >= m.cfg.TokenOverlapRatio*float64(smaller)
}

// significantTokens strips trailing dates and reference IDs, then drops
// short, numeric, and boilerplate tokens. Only the first three surviving
// tokens matter: merchant identity lives at the front of a description.
func (m *Matcher) significantTokens(desc string) []string {
	desc = trailingDateRE.ReplaceAllString(desc, "")
	desc = trailingIDRE.ReplaceAllString(desc, "")

	var tokens []string
	for _, word := range strings.Fields(desc) {
		// Store numbers like "#123" carry no merchant identity.
		word = strings.TrimPrefix(word, "#")
		if len(word) < m.cfg.MinTokenLen {
			continue
		}
		if digitsOnlyRE.MatchString(word) {
			continue
		}
		if _, ok := boilerplateTokens[word]; ok {
			continue
		}
		tokens = append(tokens, word)
		if len(tokens) == 3 {
			break
		}
	}

	return tokens
}
