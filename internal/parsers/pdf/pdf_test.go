package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/parser"
)

func TestStructureTableCapitalOne(t *testing.T) {
	table := parser.RawTable{
		Page:     0,
		Accuracy: 90,
		Rows: []parser.RawRow{
			{"Transactions", "", "", ""},
			{"Trans Date", "Post Date", "Description", "Amount"},
			{"Apr 15", "Apr 16", "UBER* EATSCIUDAD DE MEXCDM", "$26.03"},
		},
	}

	st, err := structureTable(table, domain.BankCapitalOne)
	require.NoError(t, err)
	require.Len(t, st.rows, 1)
	assert.True(t, st.mapping.Has(parser.FieldTransDate))
	assert.True(t, st.mapping.Has(parser.FieldPostDate))
	assert.True(t, st.mapping.Has(parser.FieldDescription))
	assert.True(t, st.mapping.Has(parser.FieldAmount))
	assert.Equal(t, "Apr 16", st.mapping.Cell(st.rows[0], parser.FieldPostDate))
}

func TestStructureTableGenericHeader(t *testing.T) {
	table := parser.RawTable{
		Rows: []parser.RawRow{
			{"Date", "Description", "Debit", "Credit"},
			{"04/16/2025", "COFFEE SHOP", "4.50", ""},
		},
	}

	st, err := structureTable(table, domain.BankChase)
	require.NoError(t, err)
	assert.True(t, st.mapping.Has(parser.FieldDebit))
	assert.True(t, st.mapping.Has(parser.FieldCredit))
}

func TestStructureTableErrors(t *testing.T) {
	_, err := structureTable(parser.RawTable{}, domain.BankUnknown)
	assert.Error(t, err, "empty table")

	_, err = structureTable(parser.RawTable{
		Rows: []parser.RawRow{{"just", "noise", "here"}},
	}, domain.BankUnknown)
	assert.Error(t, err, "no header row")

	_, err = structureTable(parser.RawTable{
		Rows: []parser.RawRow{{"Date", "Description", "Amount"}},
	}, domain.BankUnknown)
	assert.Error(t, err, "header but no data")
}

func capitalOneMapping(t *testing.T) *parser.ColumnMapping {
	t.Helper()
	st, err := structureTable(parser.RawTable{
		Rows: []parser.RawRow{
			{"Trans Date", "Post Date", "Description", "Amount"},
			{"placeholder", "", "", ""},
		},
	}, domain.BankCapitalOne)
	require.NoError(t, err)
	return st.mapping
}

func TestParseCapitalOneRowCharge(t *testing.T) {
	mapping := capitalOneMapping(t)

	row := parser.RawRow{"Apr 15", "Apr 16", "UBER* EATSCIUDAD DE MEXCDM", "$26.03"}
	txn, skip := parseCapitalOneRow(row, mapping, 2025)
	require.Nil(t, skip)
	require.NotNil(t, txn)

	assert.Equal(t, "2025-04-16", txn.Date, "post date is the transaction date")
	assert.Equal(t, "UBER EATSCIUDAD DE MEXCDM", txn.Description)
	assert.InDelta(t, -26.03, txn.Amount, 1e-9, "charges are negative")
	assert.Equal(t, domain.BankCapitalOne, txn.Bank)
}

func TestParseCapitalOneRowPayment(t *testing.T) {
	mapping := capitalOneMapping(t)

	row := parser.RawRow{"Apr 1", "Apr 2", "CAPITAL ONE MOBILE PYMT", "$1,000.00"}
	txn, skip := parseCapitalOneRow(row, mapping, 2025)
	require.Nil(t, skip)
	require.NotNil(t, txn)

	assert.InDelta(t, 1000.00, txn.Amount, 1e-9, "payments are positive")
}

func TestParseCapitalOneRowSkips(t *testing.T) {
	mapping := capitalOneMapping(t)

	tests := []struct {
		name   string
		row    parser.RawRow
		reason parser.SkipReason
	}{
		{"date not Mon D shaped", parser.RawRow{"04/15", "04/16", "SOMETHING", "$5.00"}, parser.SkipNoDate},
		{"amount missing dollar sign", parser.RawRow{"Apr 15", "Apr 16", "SOMETHING", "26.03"}, parser.SkipNoAmount},
		{"zero amount", parser.RawRow{"Apr 15", "Apr 16", "SOMETHING", "$0.00"}, parser.SkipZeroAmount},
		{"empty description", parser.RawRow{"Apr 15", "Apr 16", "", "$5.00"}, parser.SkipNoDescription},
		{"forex detail row", parser.RawRow{"Apr 15", "Apr 16", "19.931617365 Exchange Rate", "$5.00"}, parser.SkipForexDetail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn, skip := parseCapitalOneRow(tt.row, mapping, 2025)
			assert.Nil(t, txn)
			require.NotNil(t, skip)
			assert.Equal(t, tt.reason, skip.Reason)
		})
	}
}

func TestParseGenericRowDebitCredit(t *testing.T) {
	st, err := structureTable(parser.RawTable{
		Rows: []parser.RawRow{
			{"Date", "Description", "Debit", "Credit"},
			{"placeholder", "", "", ""},
		},
	}, domain.BankPNC)
	require.NoError(t, err)

	txn, skip := parseGenericRow(parser.RawRow{"04/16/2025", "GROCERY STORE", "54.12", ""}, st.mapping, domain.BankPNC, 0)
	require.Nil(t, skip)
	assert.InDelta(t, -54.12, txn.Amount, 1e-9, "debit column forces negative")

	txn, skip = parseGenericRow(parser.RawRow{"04/17/2025", "REFUND", "", "20.00"}, st.mapping, domain.BankPNC, 0)
	require.Nil(t, skip)
	assert.InDelta(t, 20.00, txn.Amount, 1e-9, "credit column stays positive")
}

func TestParseGenericRowCellSearch(t *testing.T) {
	// No useful header mapping: every cell is searched by shape.
	mapping := parser.NewColumnMapping(parser.RawRow{"a", "b", "c"})

	txn, skip := parseGenericRow(parser.RawRow{"$12.50", "04/16/2025", "HARDWARE STORE PURCHASE"}, mapping, domain.BankUnknown, 0)
	require.Nil(t, skip)
	require.NotNil(t, txn)
	assert.Equal(t, "2025-04-16", txn.Date)
	assert.Equal(t, "HARDWARE STORE PURCHASE", txn.Description)
	assert.InDelta(t, 12.50, txn.Amount, 1e-9)
}

func TestParseGenericRowSkips(t *testing.T) {
	mapping := parser.NewColumnMapping(parser.RawRow{"a", "b", "c"})

	_, skip := parseGenericRow(parser.RawRow{"no date here", "text", "more text"}, mapping, domain.BankUnknown, 0)
	require.NotNil(t, skip)
	assert.Equal(t, parser.SkipNoDate, skip.Reason)

	_, skip = parseGenericRow(parser.RawRow{"04/16/2025", "DESCRIPTION", "not money"}, mapping, domain.BankUnknown, 0)
	require.NotNil(t, skip)
	assert.Equal(t, parser.SkipNoAmount, skip.Reason)
}

func TestTryConsumeForex(t *testing.T) {
	lines := []string{
		"Apr 15 Apr 16 UBER* EATSCIUDAD DE MEXCDM $26.03",
		"$518.81",
		"MXN",
		"19.931617365 Exchange Rate",
	}

	fx, consumed := tryConsumeForex(lines, 0)
	require.NotNil(t, fx)
	assert.Equal(t, 3, consumed)
	assert.InDelta(t, 518.81, fx.OriginalAmount, 1e-9)
	assert.Equal(t, "MXN", fx.OriginalCurrency)
	assert.InDelta(t, 19.931617365, fx.ExchangeRate, 1e-12)
}

func TestTryConsumeForexAllOrNothing(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"missing rate line", []string{"txn", "$518.81", "MXN", "some other text"}},
		{"missing currency", []string{"txn", "$518.81", "Mexico", "19.93 Exchange Rate"}},
		{"amount not shaped", []string{"txn", "about $518", "MXN", "19.93 Exchange Rate"}},
		{"too few lines", []string{"txn", "$518.81", "MXN"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx, consumed := tryConsumeForex(tt.lines, 0)
			assert.Nil(t, fx)
			assert.Zero(t, consumed)
		})
	}
}

func TestScanTextLinesCapitalOne(t *testing.T) {
	pg := page{lines: []string{
		"Visit capitalone.com to manage your account",
		"Trans Date Post Date Description Amount",
		"Apr 15 Apr 16 UBER* EATSCIUDAD DE MEXCDM $26.03",
		"$518.81",
		"MXN",
		"19.931617365 Exchange Rate",
		"Apr 20 Apr 21 CAPITAL ONE MOBILE PYMT $1,000.00",
		"Total Fees for this period $0.00",
	}}

	txns, skips := scanTextLines([]page{pg}, domain.BankCapitalOne, 2025)
	require.Len(t, txns, 2)

	uber := txns[0]
	assert.Equal(t, "2025-04-16", uber.Date)
	assert.Equal(t, "UBER EATSCIUDAD DE MEXCDM", uber.Description)
	assert.InDelta(t, -26.03, uber.Amount, 1e-9)
	assert.True(t, uber.HasForex)
	require.NotNil(t, uber.Forex)
	assert.Equal(t, "MXN", uber.Forex.OriginalCurrency)
	assert.InDelta(t, 518.81, uber.Forex.OriginalAmount, 1e-9)
	assert.InDelta(t, 19.931617365, uber.Forex.ExchangeRate, 1e-12)

	pymt := txns[1]
	assert.InDelta(t, 1000.00, pymt.Amount, 1e-9)
	assert.False(t, pymt.HasForex)

	counts := parser.CountSkips(skips)
	assert.Equal(t, 3, counts[parser.SkipForexDetail], "forex lines consumed, not parsed as transactions")
	assert.GreaterOrEqual(t, counts[parser.SkipBoilerplate], 2)
}

func TestScanTextLinesGeneric(t *testing.T) {
	pg := page{lines: []string{
		"04/16/2025 COFFEE SHOP DOWNTOWN -4.50",
		"04/17/2025 PAYROLL DEPOSIT $2,500.00",
		"random narrative text with no transaction shape",
	}}

	txns, _ := scanTextLines([]page{pg}, domain.BankPNC, 0)
	require.Len(t, txns, 2)
	assert.InDelta(t, -4.50, txns[0].Amount, 1e-9)
	assert.InDelta(t, 2500.00, txns[1].Amount, 1e-9)
	assert.Equal(t, domain.MethodTextFallback, txns[0].ExtractionMethod)
}

func TestScanTextLinesUSDForexRejected(t *testing.T) {
	pg := page{lines: []string{
		"Apr 15 Apr 16 ONLINE PURCHASE $26.03",
		"$26.03",
		"USD",
		"1.0 Exchange Rate",
	}}

	txns, _ := scanTextLines([]page{pg}, domain.BankCapitalOne, 2025)
	require.Len(t, txns, 1)
	assert.False(t, txns[0].HasForex, "USD blocks carry no foreign detail")
}

func TestDetectTableAccuracy(t *testing.T) {
	// Four aligned rows sharing column starts, plus one stray word left of
	// every column.
	var words []word
	for i := 0; i < 4; i++ {
		y := float64(700 - i*20)
		words = append(words,
			word{x: 50, y: y, s: "Apr"},
			word{x: 120, y: y, s: "Apr"},
			word{x: 200, y: y, s: "MERCHANT"},
			word{x: 480, y: y, s: "$1.00"},
		)
	}
	words = append(words, word{x: 10, y: 600, s: "stray"})

	table, ok := detectTable(page{words: words}, &geometry{columnEdges: []float64{40, 110, 180, 470}})
	require.True(t, ok)
	assert.Len(t, table.Rows, 5)
	assert.InDelta(t, 80.0, table.Accuracy, 1e-9, "4 of 5 rows aligned")
}

func TestInferColumnEdges(t *testing.T) {
	var rows [][]word
	for i := 0; i < 8; i++ {
		rows = append(rows, []word{
			{x: 50.0 + float64(i%3), s: "a"},
			{x: 200.0, s: "b"},
			{x: 480.0, s: "c"},
		})
	}
	rows = append(rows, []word{{x: 320.0, s: "once"}})

	edges := inferColumnEdges(rows)
	require.Len(t, edges, 3, "recurring starts become columns, one-offs do not")
	assert.InDelta(t, 51.0, edges[0], 2.0)
	assert.InDelta(t, 200.0, edges[1], 1e-9)
	assert.InDelta(t, 480.0, edges[2], 1e-9)
}

func TestCanParse(t *testing.T) {
	p := New(nil)
	assert.True(t, p.CanParse("statement.pdf", nil))
	assert.True(t, p.CanParse("statement.PDF", nil))
	assert.True(t, p.CanParse("noext", []byte("%PDF-1.7")))
	assert.False(t, p.CanParse("statement.csv", []byte("Date,Amount")))
}

func TestParseTableConfidenceAndForex(t *testing.T) {
	p := New(nil)
	table := parser.RawTable{
		Accuracy: 84,
		Rows: []parser.RawRow{
			{"Trans Date", "Post Date", "Description", "Amount"},
			{"Apr 15", "Apr 16", "UBER* EATSCIUDAD DE MEXCDM", "$26.03"},
			{"", "", "$518.81", ""},
			{"", "", "MXN", ""},
			{"", "", "19.931617365 Exchange Rate", ""},
		},
	}

	txns, skips := p.parseTable(table, domain.BankCapitalOne, parser.Options{AssumedYear: 2025})
	require.Len(t, txns, 1)
	assert.InDelta(t, 0.84, txns[0].Confidence, 1e-9)
	assert.True(t, txns[0].HasForex)
	require.NotNil(t, txns[0].Forex)
	assert.Equal(t, "MXN", txns[0].Forex.OriginalCurrency)

	// The three detail rows fail row parsing on their own.
	assert.Len(t, skips, 3)
}

func TestJoinRowLines(t *testing.T) {
	rows := []parser.RawRow{
		{"Apr 15", "Apr 16", "UBER* EATSCIUDAD DE MEXCDM", "$26.03"},
		{"", "  $518.81 ", "", ""},
		{"", "", "", ""},
	}

	lines := joinRowLines(rows)
	require.Len(t, lines, len(rows))
	assert.Equal(t, "Apr 15 Apr 16 UBER* EATSCIUDAD DE MEXCDM $26.03", lines[0])
	assert.Equal(t, "$518.81", lines[1], "cells are trimmed and empties dropped")
	assert.Equal(t, "", lines[2])
}
