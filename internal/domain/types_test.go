package domain

import (
	"errors"
	"testing"
)

var errTest = errors.New("boom")

func TestValidateCategory(t *testing.T) {
	t.Run("valid categories", func(t *testing.T) {
		validCategories := []Category{
			CategoryTaxes,
			CategoryBusiness,
			CategoryDining,
			CategoryTransportation,
			CategoryGroceries,
			CategorySubscriptions,
			CategoryHealthcare,
			CategoryShopping,
			CategoryLodging,
			CategoryUtilities,
			CategoryPayment,
			CategoryOther,
		}

		for _, cat := range validCategories {
			if !ValidateCategory(cat) {
				t.Errorf("Expected %s to be valid", cat)
			}
		}
	})

	t.Run("invalid categories", func(t *testing.T) {
		invalidCases := []Category{
			"invalid",
			"dining",    // wrong case
			"",          // empty
			"Dinning",   // typo
			"DINING",    // wrong case
			"Shopping ", // trailing space
			" Shopping", // leading space
		}

		for _, cat := range invalidCases {
			if ValidateCategory(cat) {
				t.Errorf("Expected %s to be invalid", cat)
			}
		}
	})
}

func TestValidateBank(t *testing.T) {
	t.Run("valid banks", func(t *testing.T) {
		validList := []Bank{
			BankChase, BankBankOfAmerica, BankWellsFargo, BankCapitalOne,
			BankCiti, BankUSAA, BankNavyFederal, BankPNC, BankUSBank,
			BankTDBank, BankAlly, BankDiscover, BankAmex, BankUnknown,
		}

		for _, b := range validList {
			if !ValidateBank(b) {
				t.Errorf("Expected %s to be valid", b)
			}
		}
	})

	t.Run("invalid banks", func(t *testing.T) {
		invalidCases := []Bank{
			"",
			"Chase",       // wrong case
			"capitalone",  // missing underscore
			"capital one", // space instead of underscore
			"schwab",      // not a known institution
		}

		for _, b := range invalidCases {
			if ValidateBank(b) {
				t.Errorf("Expected %s to be invalid", b)
			}
		}
	})
}

func TestValidateExtractionMethod(t *testing.T) {
	t.Run("valid methods", func(t *testing.T) {
		for _, m := range []ExtractionMethod{MethodTable, MethodTextFallback, MethodCSV, MethodOFX} {
			if !ValidateExtractionMethod(m) {
				t.Errorf("Expected %s to be valid", m)
			}
		}
	})

	t.Run("invalid methods", func(t *testing.T) {
		invalidCases := []ExtractionMethod{
			"",
			"TABLE",         // wrong case
			"text_fallback", // underscore instead of hyphen
			"pdf",           // format, not method
		}

		for _, m := range invalidCases {
			if ValidateExtractionMethod(m) {
				t.Errorf("Expected %s to be invalid", m)
			}
		}
	})
}

func TestNewTransaction_Validation(t *testing.T) {
	t.Run("invalid date format", func(t *testing.T) {
		invalidDates := []string{
			"2024-13-01", // invalid month
			"2024-01-32", // invalid day
			"01-01-2024", // wrong format
			"2024/01/01", // wrong separator
			"Apr 16",     // short form must be completed before construction
			"invalid",    // not a date
			"",           // empty
		}

		for _, date := range invalidDates {
			_, err := NewTransaction(date, "test", -10.0, BankCapitalOne, MethodTable)
			if err == nil {
				t.Errorf("Expected error for invalid date format: %s", date)
			}
		}
	})

	t.Run("empty description", func(t *testing.T) {
		_, err := NewTransaction("2024-01-01", "", -10.0, BankCapitalOne, MethodTable)
		if err == nil {
			t.Error("Expected error for empty description")
		}
		if err != nil && err.Error() != "description cannot be empty" {
			t.Errorf("Expected 'description cannot be empty', got '%s'", err.Error())
		}
	})

	t.Run("zero amount", func(t *testing.T) {
		_, err := NewTransaction("2024-01-01", "test", 0, BankCapitalOne, MethodTable)
		if err == nil {
			t.Error("Expected error for zero amount")
		}
	})

	t.Run("invalid bank", func(t *testing.T) {
		_, err := NewTransaction("2024-01-01", "test", -10.0, "schwab", MethodTable)
		if err == nil {
			t.Error("Expected error for invalid bank")
		}
	})

	t.Run("invalid method", func(t *testing.T) {
		_, err := NewTransaction("2024-01-01", "test", -10.0, BankCapitalOne, "scan")
		if err == nil {
			t.Error("Expected error for invalid extraction method")
		}
	})

	t.Run("valid transaction", func(t *testing.T) {
		txn, err := NewTransaction("2024-01-15", "UBER TRIP", -26.03, BankCapitalOne, MethodTable)
		if err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
		if txn == nil {
			t.Fatal("Expected transaction, got nil")
		}
		if txn.Date != "2024-01-15" {
			t.Errorf("Expected Date '2024-01-15', got '%s'", txn.Date)
		}
		if txn.Description != "UBER TRIP" {
			t.Errorf("Expected Description 'UBER TRIP', got '%s'", txn.Description)
		}
		if txn.Amount != -26.03 {
			t.Errorf("Expected Amount -26.03, got %f", txn.Amount)
		}
		if txn.Category != CategoryOther {
			t.Errorf("Expected default category Other, got %s", txn.Category)
		}
		if txn.Confidence != 1.0 {
			t.Errorf("Expected default confidence 1.0, got %f", txn.Confidence)
		}
		if txn.HasForex {
			t.Error("Expected HasForex false before SetForex")
		}
		if txn.Forex != nil {
			t.Error("Expected nil Forex block before SetForex")
		}
	})
}

func TestSetConfidence_Validation(t *testing.T) {
	t.Run("out of range", func(t *testing.T) {
		txn, _ := NewTransaction("2024-01-01", "test", -10.0, BankUnknown, MethodCSV)
		if err := txn.SetConfidence(-0.1); err == nil {
			t.Error("Expected error for negative confidence")
		}
		if err := txn.SetConfidence(1.1); err == nil {
			t.Error("Expected error for confidence > 1")
		}
	})

	t.Run("valid values", func(t *testing.T) {
		validValues := []float64{0.0, 0.5, 0.8, 0.95, 1.0}

		for _, c := range validValues {
			txn, _ := NewTransaction("2024-01-01", "test", -10.0, BankUnknown, MethodCSV)
			if err := txn.SetConfidence(c); err != nil {
				t.Errorf("Expected no error for confidence %f, got %v", c, err)
			}
			if txn.Confidence != c {
				t.Errorf("Expected Confidence %f, got %f", c, txn.Confidence)
			}
		}
	})
}

func TestSetForex_Validation(t *testing.T) {
	newTxn := func() *Transaction {
		txn, err := NewTransaction("2025-04-16", "UBER* EATS CIUDAD DE MEX", -26.03, BankCapitalOne, MethodTable)
		if err != nil {
			t.Fatalf("fixture transaction: %v", err)
		}
		return txn
	}

	t.Run("zero original amount", func(t *testing.T) {
		if err := newTxn().SetForex(0, "MXN", 19.93); err == nil {
			t.Error("Expected error for zero original amount")
		}
	})

	t.Run("invalid currency codes", func(t *testing.T) {
		invalidCodes := []string{
			"",
			"MX",    // too short
			"MXNN",  // too long
			"mxn",   // lowercase
			"M X N", // spaces
			"123",   // digits
		}

		for _, code := range invalidCodes {
			if err := newTxn().SetForex(518.82, code, 19.93); err == nil {
				t.Errorf("Expected error for currency code %q", code)
			}
		}
	})

	t.Run("USD rejected", func(t *testing.T) {
		if err := newTxn().SetForex(26.03, "USD", 1.0); err == nil {
			t.Error("Expected error for USD original currency")
		}
	})

	t.Run("non-positive rate", func(t *testing.T) {
		if err := newTxn().SetForex(518.82, "MXN", 0); err == nil {
			t.Error("Expected error for zero rate")
		}
		if err := newTxn().SetForex(518.82, "MXN", -19.93); err == nil {
			t.Error("Expected error for negative rate")
		}
	})

	t.Run("complete block", func(t *testing.T) {
		txn := newTxn()
		if err := txn.SetForex(518.82, "MXN", 19.931617365); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !txn.HasForex {
			t.Error("Expected HasForex true after SetForex")
		}
		if txn.Forex == nil {
			t.Fatal("Expected Forex block, got nil")
		}
		if txn.Forex.OriginalAmount != 518.82 {
			t.Errorf("Expected original amount 518.82, got %f", txn.Forex.OriginalAmount)
		}
		if txn.Forex.OriginalCurrency != "MXN" {
			t.Errorf("Expected currency MXN, got %s", txn.Forex.OriginalCurrency)
		}
		if txn.Forex.ExchangeRate != 19.931617365 {
			t.Errorf("Expected rate 19.931617365, got %f", txn.Forex.ExchangeRate)
		}
	})
}

func TestNewEmptySummary(t *testing.T) {
	s := NewEmptySummary()
	if s.TransactionCount != 0 || s.NetAmount != 0 || s.TotalDebits != 0 || s.TotalCredits != 0 {
		t.Error("Expected all-zero totals")
	}
	if s.CategoryBreakdown == nil {
		t.Error("Expected initialized category breakdown map, got nil")
	}
	if len(s.CategoryBreakdown) != 0 {
		t.Errorf("Expected empty breakdown, got %d entries", len(s.CategoryBreakdown))
	}
	if s.DateRange.Earliest != "" || s.DateRange.Latest != "" {
		t.Error("Expected empty date range")
	}
}

func TestResultConstructors(t *testing.T) {
	meta := Metadata{
		Bank:             BankCapitalOne,
		ExtractionMethod: MethodTable,
		SourcePath:       "statement.pdf",
	}

	t.Run("empty success result", func(t *testing.T) {
		r := NewResult(meta)
		if !r.Success {
			t.Error("Expected Success true")
		}
		if r.Transactions == nil {
			t.Error("Expected empty transaction slice, not nil")
		}
		if r.Summary.CategoryBreakdown == nil {
			t.Error("Expected well-formed summary")
		}
		if r.Error != "" {
			t.Errorf("Expected no error string, got %q", r.Error)
		}
	})

	t.Run("error result", func(t *testing.T) {
		r := NewErrorResult(meta, errTest)
		if r.Success {
			t.Error("Expected Success false")
		}
		if r.Error != "boom" {
			t.Errorf("Expected error 'boom', got %q", r.Error)
		}
		if r.Transactions == nil || r.Summary.CategoryBreakdown == nil {
			t.Error("Error results must still carry well-formed collections")
		}
	})
}

func TestCategoriesOrder(t *testing.T) {
	order := Categories()
	if len(order) != 12 {
		t.Fatalf("Expected 12 categories, got %d", len(order))
	}
	if order[0] != CategoryTaxes {
		t.Errorf("Expected Taxes first, got %s", order[0])
	}
	if order[len(order)-1] != CategoryOther {
		t.Errorf("Expected Other last, got %s", order[len(order)-1])
	}
	// Payment outranks only Other: payment markers must not shadow
	// merchant-specific categories.
	if order[len(order)-2] != CategoryPayment {
		t.Errorf("Expected Payment second to last, got %s", order[len(order)-2])
	}
}
