package csv

import (
	"regexp"
	"strings"
	"unicode"
)

// headerKeywords qualify a line as a column header. A strict header test
// keeps narrative lines and transaction rows from being mistaken for
// headers: real headers name at least two of these concepts.
var headerKeywords = []string{
	"date", "trans", "post", "description", "amount", "debit", "credit",
	"balance", "category", "type", "merchant", "payee",
}

// maxHeaderCellLen rejects lines whose cells run long. Header cells are
// short labels; a 20+ character cell is data or narrative.
const maxHeaderCellLen = 20

var cellSplitRE = regexp.MustCompile(`[,;\t|]`)

// isHeaderLine applies the strict header test: at least two keyword hits,
// no cell opening with a digit or currency symbol, no overlong cell. It
// gates whether a file has a transaction table at all.
func isHeaderLine(line string) bool {
	return headerLine(line, true)
}

// looksLikeHeader is the looser test used when splitting sections: the
// overlong-cell rejection is dropped so a header carrying one long column
// label still starts its section instead of leaking rows into the previous
// one.
func looksLikeHeader(line string) bool {
	return headerLine(line, false)
}

func headerLine(line string, strict bool) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	cells := cellSplitRE.Split(line, -1)
	hits := 0
	for _, cell := range cells {
		cell = strings.TrimSpace(strings.Trim(strings.TrimSpace(cell), `"`))
		if cell == "" {
			continue
		}
		if strict && len(cell) > maxHeaderCellLen {
			return false
		}
		first := rune(cell[0])
		if unicode.IsDigit(first) || first == '$' || first == '-' || first == '+' {
			return false
		}

		lower := strings.ToLower(cell)
		for _, kw := range headerKeywords {
			if strings.Contains(lower, kw) {
				hits++
				break
			}
		}
	}
	return hits >= 2
}

// dividerREs match the decoration lines that separate sections of exported
// statements: section titles, summary blocks, rule lines.
var dividerREs = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z\s]+\d+\s+Transactions$`),
	regexp.MustCompile(`^[-=]+$`),
	regexp.MustCompile(`^[A-Z\s]+Summary$`),
	regexp.MustCompile(`^Additional\s+Information`),
}

func isDivider(line string) bool {
	line = strings.TrimSpace(line)
	for _, re := range dividerREs {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// detectDelimiter picks the delimiter with the most occurrences in the
// header line. Comma wins ties and empty headers.
func detectDelimiter(header string) rune {
	best, bestCount := ',', strings.Count(header, ",")
	for _, d := range []rune{';', '\t', '|'} {
		if c := strings.Count(header, string(d)); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

// section is one header-led run of data lines. Multi-account exports carry
// several sections in one file, each with its own header and column order.
type section struct {
	header string
	data   []string
	// start is the zero-based line number of the header in the file, for
	// skip reporting.
	start int
}

// splitSections walks the file's lines and groups them into header-led
// sections. Any header-looking line starts a new section; blank lines are
// dropped but dividers stay in the data until row parsing, where they are
// excluded. Lines before the first header are ignored.
func splitSections(lines []string) []section {
	var sections []section
	var current *section

	for i, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			continue
		}

		if looksLikeHeader(line) {
			sections = append(sections, section{header: line, start: i})
			current = &sections[len(sections)-1]
			continue
		}

		if current != nil {
			current.data = append(current.data, line)
		}
	}

	return sections
}
