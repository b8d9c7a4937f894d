package pdf

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/parser"
)

// word is one positioned text fragment from a PDF content stream.
type word struct {
	x, y float64
	s    string
}

// page holds everything extracted from one PDF page: positioned words for
// table reconstruction and assembled text lines for the regex fallback.
type page struct {
	number int
	words  []word
	lines  []string
}

// columnGap is the horizontal gap, in points, that separates two words into
// different columns when assembling a text line.
const columnGap = 15

// readPDF extracts every page's words and text lines. The pdf library can
// panic on malformed files; that is the catastrophic failure path and is
// converted to an error here so one corrupt document fails cleanly.
func readPDF(path string) (pages []page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf library crashed reading %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	for i := 1; i <= numPages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		pg := page{number: i - 1}
		content := p.Content()
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			pg.words = append(pg.words, word{x: t.X, y: t.Y, s: t.S})
		}

		if len(pg.words) > 0 {
			pg.lines = assembleLines(pg.words)
		} else {
			// Some generators produce no per-word coordinates; fall back to
			// the library's row grouping for this page.
			pg.lines = rowLines(p)
		}

		pages = append(pages, pg)
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf contains no extractable pages")
	}
	return pages, nil
}

// rowLines extracts text lines via the library's own row detection.
func rowLines(p pdf.Page) []string {
	rows, err := p.GetTextByRow()
	if err != nil {
		return nil
	}
	var lines []string
	for _, row := range rows {
		var parts []string
		for _, w := range row.Content {
			parts = append(parts, w.S)
		}
		line := strings.TrimSpace(strings.Join(parts, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// assembleLines groups positioned words into text lines: cluster by rounded
// Y (PDF Y grows bottom-to-top, so rows sort descending), order each row by
// X, and join with spaces.
func assembleLines(words []word) []string {
	rows := groupRows(words)

	var lines []string
	for _, row := range rows {
		var b strings.Builder
		var prev *word
		for i := range row {
			w := &row[i]
			if prev != nil {
				b.WriteString(" ")
			}
			b.WriteString(w.s)
			prev = w
		}
		line := strings.TrimSpace(b.String())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// groupRows clusters words into visual rows, top of page first, each row
// sorted left to right.
func groupRows(words []word) [][]word {
	byY := make(map[int][]word)
	for _, w := range words {
		key := int(math.Round(w.y))
		byY[key] = append(byY[key], w)
	}

	keys := make([]int, 0, len(byY))
	for y := range byY {
		keys = append(keys, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))

	rows := make([][]word, 0, len(keys))
	for _, y := range keys {
		row := byY[y]
		sort.Slice(row, func(a, b int) bool { return row[a].x < row[b].x })
		rows = append(rows, row)
	}
	return rows
}

// geometry describes a bank's fixed table layout: the left edge of each
// column, in points. Words are binned into the column whose range contains
// their X coordinate.
type geometry struct {
	columnEdges []float64
}

// detectTable reconstructs one table from a page's positioned words. With a
// geometry the column edges are fixed (stream-style detection for banks with
// known layouts); without one the edges are inferred from the word positions
// themselves (generic lattice-style detection). Returns false when the page
// holds nothing table-shaped.
func detectTable(pg page, geom *geometry) (parser.RawTable, bool) {
	if len(pg.words) == 0 {
		return parser.RawTable{}, false
	}

	rows := groupRows(pg.words)

	var edges []float64
	if geom != nil {
		edges = geom.columnEdges
	} else {
		edges = inferColumnEdges(rows)
	}
	if len(edges) < 2 {
		return parser.RawTable{}, false
	}

	table := parser.RawTable{Page: pg.number}
	aligned := 0
	for _, row := range rows {
		cells := make(parser.RawRow, len(edges))
		misplaced := 0
		for _, w := range row {
			col := columnFor(edges, w.x)
			if col < 0 {
				misplaced++
				col = 0
			}
			if cells[col] == "" {
				cells[col] = w.s
			} else {
				cells[col] += " " + w.s
			}
		}

		filled := 0
		for _, c := range cells {
			if strings.TrimSpace(c) != "" {
				filled++
			}
		}
		if filled == 0 {
			continue
		}
		if filled >= 2 && misplaced == 0 {
			aligned++
		}
		table.Rows = append(table.Rows, cells)
	}

	if len(table.Rows) == 0 {
		return parser.RawTable{}, false
	}

	// Accuracy estimates how faithfully the detected column edges describe
	// the layout: the share of rows whose words all landed cleanly in two or
	// more columns.
	table.Accuracy = 100 * float64(aligned) / float64(len(table.Rows))
	return table, true
}

// inferColumnEdges clusters word start positions across all rows into column
// edges. A cluster must recur in at least a quarter of the rows to count as
// a column; sparse decoration (page numbers, footers) never recurs enough.
func inferColumnEdges(rows [][]word) []float64 {
	const tolerance = 12.0

	type cluster struct {
		sum   float64
		count int
	}
	var clusters []*cluster

	for _, row := range rows {
		for _, w := range row {
			found := false
			for _, c := range clusters {
				if math.Abs(c.sum/float64(c.count)-w.x) <= tolerance {
					c.sum += w.x
					c.count++
					found = true
					break
				}
			}
			if !found {
				clusters = append(clusters, &cluster{sum: w.x, count: 1})
			}
		}
	}

	minCount := len(rows) / 4
	if minCount < 2 {
		minCount = 2
	}

	var edges []float64
	for _, c := range clusters {
		if c.count >= minCount {
			edges = append(edges, c.sum/float64(c.count))
		}
	}
	sort.Float64s(edges)
	return edges
}

// columnFor returns the index of the column whose range contains x, or -1
// when x sits left of the first edge.
func columnFor(edges []float64, x float64) int {
	const slack = 2.0
	for i := len(edges) - 1; i >= 0; i-- {
		if x >= edges[i]-slack {
			return i
		}
	}
	return -1
}
