// Package output serializes processing results: the JSON result envelope,
// flat CSV exports, and a two-sheet spreadsheet.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/summary"
)

// WriteOptions configures where and how the result is written.
type WriteOptions struct {
	// FilePath is the output path; empty writes to stdout.
	FilePath string
	// MergeMode loads an existing result file and folds the new
	// transactions into it, re-aggregating the summary.
	MergeMode bool
}

// WriteResult serializes a result to JSON with 2-space indentation.
func WriteResult(res *domain.Result, w io.Writer) error {
	if res == nil {
		return fmt.Errorf("result cannot be nil")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(res); err != nil {
		return fmt.Errorf("failed to encode result as JSON: %w", err)
	}
	return nil
}

// WriteResultToFile writes a result to a file or stdout per options.
func WriteResultToFile(res *domain.Result, opts WriteOptions) (err error) {
	if res == nil {
		return fmt.Errorf("result cannot be nil")
	}

	if opts.MergeMode && opts.FilePath != "" {
		existing, err := LoadResult(opts.FilePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("failed to load existing result for merge: %w", err)
			}
			// No prior file; merge degrades to a fresh write.
			fmt.Fprintf(os.Stderr, "Warning: merge mode requested but %s does not exist, creating new file\n", opts.FilePath)
		} else {
			res = mergeResults(existing, res)
		}
	}

	if opts.FilePath == "" {
		return WriteResult(res, os.Stdout)
	}

	f, err := os.Create(opts.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", opts.FilePath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", opts.FilePath, closeErr)
		}
	}()

	if err = WriteResult(res, f); err != nil {
		return fmt.Errorf("failed to write result to %s: %w", opts.FilePath, err)
	}
	return nil
}

// LoadResult reads an existing result file for merge mode.
func LoadResult(filePath string) (*domain.Result, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	f, err := os.Open(filePath)
	if err != nil {
		// Unwrapped so the caller can check os.IsNotExist.
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close %s: %v\n", filePath, closeErr)
		}
	}()

	var res domain.Result
	if err := json.NewDecoder(f).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode result JSON: %w", err)
	}
	return &res, nil
}

// mergeResults appends the new result's transactions to the existing set
// and re-aggregates the summary over the union. The new run's metadata
// wins: it describes the write that produced the file's current state.
func mergeResults(existing, incoming *domain.Result) *domain.Result {
	merged := *incoming
	merged.Transactions = append(append([]domain.Transaction{}, existing.Transactions...), incoming.Transactions...)
	merged.Summary = summary.Aggregate(merged.Transactions)
	merged.Success = existing.Success && incoming.Success
	return &merged
}

// csvHeader is the column order of the flat transaction export.
var csvHeader = []string{
	"Date", "Description", "Amount", "Type", "Category", "Bank",
	"Extraction Method", "Original Amount", "Original Currency", "Exchange Rate",
}

// WriteCSV writes the transactions as a flat CSV, date-sorted, with forex
// columns left empty for domestic rows.
func WriteCSV(res *domain.Result, w io.Writer) error {
	if res == nil {
		return fmt.Errorf("result cannot be nil")
	}

	sorted := make([]domain.Transaction, len(res.Transactions))
	copy(sorted, res.Transactions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, txn := range sorted {
		row := []string{
			txn.Date,
			txn.Description,
			strconv.FormatFloat(txn.Amount, 'f', 2, 64),
			flowType(txn.Amount),
			string(txn.Category),
			string(txn.Bank),
			string(txn.ExtractionMethod),
			"", "", "",
		}
		if txn.Forex != nil {
			row[7] = strconv.FormatFloat(txn.Forex.OriginalAmount, 'f', 2, 64)
			row[8] = txn.Forex.OriginalCurrency
			row[9] = strconv.FormatFloat(txn.Forex.ExchangeRate, 'f', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteSummaryCSV writes the aggregate summary: metric rows first, then one
// row per category in classifier priority order.
func WriteSummaryCSV(res *domain.Result, w io.Writer) error {
	if res == nil {
		return fmt.Errorf("result cannot be nil")
	}
	sum := res.Summary

	cw := csv.NewWriter(w)
	rows := [][]string{
		{"Metric", "Value"},
		{"Total Transactions", strconv.Itoa(sum.TransactionCount)},
		{"Total Credits", strconv.FormatFloat(sum.TotalCredits, 'f', 2, 64)},
		{"Total Debits", strconv.FormatFloat(sum.TotalDebits, 'f', 2, 64)},
		{"Net Amount", strconv.FormatFloat(sum.NetAmount, 'f', 2, 64)},
		{"Earliest Date", sum.DateRange.Earliest},
		{"Latest Date", sum.DateRange.Latest},
		{},
		{"Category", "Count", "Total"},
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	for _, cat := range domain.Categories() {
		ct, ok := sum.CategoryBreakdown[cat]
		if !ok {
			continue
		}
		row := []string{
			string(cat),
			strconv.Itoa(ct.Count),
			strconv.FormatFloat(ct.Total, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a two-sheet workbook: Transactions (date-sorted, same
// columns as the CSV export) and Summary.
func WriteXLSX(res *domain.Result, filePath string) error {
	if res == nil {
		return fmt.Errorf("result cannot be nil")
	}

	f := excelize.NewFile()
	defer f.Close()

	const txnSheet = "Transactions"
	if err := f.SetSheetName(f.GetSheetName(0), txnSheet); err != nil {
		return fmt.Errorf("failed to name transactions sheet: %w", err)
	}

	header := make([]interface{}, len(csvHeader))
	for i, h := range csvHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(txnSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	sorted := make([]domain.Transaction, len(res.Transactions))
	copy(sorted, res.Transactions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	for i, txn := range sorted {
		row := []interface{}{
			txn.Date, txn.Description, txn.Amount, flowType(txn.Amount),
			string(txn.Category), string(txn.Bank), string(txn.ExtractionMethod),
			nil, nil, nil,
		}
		if txn.Forex != nil {
			row[7] = txn.Forex.OriginalAmount
			row[8] = txn.Forex.OriginalCurrency
			row[9] = txn.Forex.ExchangeRate
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(txnSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write transaction row %d: %w", i, err)
		}
	}

	const sumSheet = "Summary"
	if _, err := f.NewSheet(sumSheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	sum := res.Summary
	sumRows := [][]interface{}{
		{"Metric", "Value"},
		{"Total Transactions", sum.TransactionCount},
		{"Total Credits", sum.TotalCredits},
		{"Total Debits", sum.TotalDebits},
		{"Net Amount", sum.NetAmount},
		{"Earliest Date", sum.DateRange.Earliest},
		{"Latest Date", sum.DateRange.Latest},
		{},
		{"Category", "Count", "Total"},
	}
	for _, cat := range domain.Categories() {
		if ct, ok := sum.CategoryBreakdown[cat]; ok {
			sumRows = append(sumRows, []interface{}{string(cat), ct.Count, ct.Total})
		}
	}
	for i := range sumRows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(sumSheet, cell, &sumRows[i]); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i, err)
		}
	}

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", filePath, err)
	}
	return nil
}

// flowType labels a transaction by sign for the flat exports.
func flowType(amount float64) string {
	if amount < 0 {
		return "debit"
	}
	return "credit"
}
