package domain

import (
	"fmt"
	"regexp"
	"time"
)

// Category represents the spending category enum (12 standard categories).
// Use ValidateCategory to ensure validity before use.
type Category string

const (
	CategoryTaxes          Category = "Taxes"
	CategoryBusiness       Category = "Business"
	CategoryDining         Category = "Dining"
	CategoryTransportation Category = "Transportation"
	CategoryGroceries      Category = "Groceries"
	CategorySubscriptions  Category = "Subscriptions"
	CategoryHealthcare     Category = "Healthcare"
	CategoryShopping       Category = "Shopping"
	CategoryLodging        Category = "Lodging"
	CategoryUtilities      Category = "Utilities"
	CategoryPayment        Category = "Payment"
	CategoryOther          Category = "Other"
)

// Bank identifies the issuing institution of a statement. Detection is
// best-effort: documents that match no known institution carry BankUnknown.
type Bank string

const (
	BankChase         Bank = "chase"
	BankBankOfAmerica Bank = "bank_of_america"
	BankWellsFargo    Bank = "wells_fargo"
	BankCapitalOne    Bank = "capital_one"
	BankCiti          Bank = "citi"
	BankUSAA          Bank = "usaa"
	BankNavyFederal   Bank = "navy_federal"
	BankPNC           Bank = "pnc"
	BankUSBank        Bank = "us_bank"
	BankTDBank        Bank = "td_bank"
	BankAlly          Bank = "ally"
	BankDiscover      Bank = "discover"
	BankAmex          Bank = "amex"
	BankUnknown       Bank = "unknown"
)

// ExtractionMethod records which pipeline path produced a transaction.
type ExtractionMethod string

const (
	// MethodTable means structured table extraction from PDF geometry.
	MethodTable ExtractionMethod = "table"
	// MethodTextFallback means line-oriented regex extraction after table
	// extraction produced nothing usable.
	MethodTextFallback ExtractionMethod = "text-fallback"
	// MethodCSV means delimited-text extraction.
	MethodCSV ExtractionMethod = "csv"
	// MethodOFX means the transaction came pre-structured from an OFX/QFX file.
	MethodOFX ExtractionMethod = "ofx"
)

// AccountType represents the account type enum.
// Use ValidateAccountType to ensure validity before use.
type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
	AccountTypeCredit   AccountType = "credit"
)

var (
	validCategories = map[Category]struct{}{
		CategoryTaxes: {}, CategoryBusiness: {}, CategoryDining: {},
		CategoryTransportation: {}, CategoryGroceries: {}, CategorySubscriptions: {},
		CategoryHealthcare: {}, CategoryShopping: {}, CategoryLodging: {},
		CategoryUtilities: {}, CategoryPayment: {}, CategoryOther: {},
	}

	validBanks = map[Bank]struct{}{
		BankChase: {}, BankBankOfAmerica: {}, BankWellsFargo: {},
		BankCapitalOne: {}, BankCiti: {}, BankUSAA: {},
		BankNavyFederal: {}, BankPNC: {}, BankUSBank: {},
		BankTDBank: {}, BankAlly: {}, BankDiscover: {},
		BankAmex: {}, BankUnknown: {},
	}

	validMethods = map[ExtractionMethod]struct{}{
		MethodTable: {}, MethodTextFallback: {}, MethodCSV: {}, MethodOFX: {},
	}

	validAccountTypes = map[AccountType]struct{}{
		AccountTypeChecking: {}, AccountTypeSavings: {}, AccountTypeCredit: {},
	}

	currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Forex holds the original-currency detail for a transaction charged in a
// foreign currency. All three fields are required together: a transaction
// either carries a complete block or none at all.
type Forex struct {
	OriginalAmount   float64 `json:"original_amount"`
	OriginalCurrency string  `json:"original_currency"`
	ExchangeRate     float64 `json:"exchange_rate"`
}

// Transaction is a single normalized statement entry.
type Transaction struct {
	Date        string `json:"date"` // ISO format YYYY-MM-DD
	Description string `json:"description"`
	// Sign convention:
	//   Positive = money in (payments received, deposits, refunds)
	//   Negative = money out (charges, withdrawals, fees)
	// Parsers must normalize to this convention regardless of how the
	// source statement represents it.
	Amount           float64           `json:"amount"`
	Category         Category          `json:"category"`
	Bank             Bank              `json:"bank"`
	ExtractionMethod ExtractionMethod  `json:"extraction_method"`
	Confidence       float64           `json:"confidence"`
	HasForex         bool              `json:"has_forex"`
	Forex            *Forex            `json:"forex,omitempty"`
	RawData          map[string]string `json:"raw_data,omitempty"`
}

// NewTransaction creates a validated transaction. Category defaults to
// CategoryOther; classification happens later in the pipeline.
func NewTransaction(date, description string, amount float64, bank Bank, method ExtractionMethod) (*Transaction, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid date format: %w", err)
	}
	if description == "" {
		return nil, fmt.Errorf("description cannot be empty")
	}
	if amount == 0 {
		return nil, fmt.Errorf("amount cannot be zero")
	}
	if !ValidateBank(bank) {
		return nil, fmt.Errorf("invalid bank: %s", bank)
	}
	if !ValidateExtractionMethod(method) {
		return nil, fmt.Errorf("invalid extraction method: %s", method)
	}

	return &Transaction{
		Date:             date,
		Description:      description,
		Amount:           amount,
		Category:         CategoryOther,
		Bank:             bank,
		ExtractionMethod: method,
		Confidence:       1.0,
	}, nil
}

// SetConfidence validates and sets the extraction confidence.
func (t *Transaction) SetConfidence(c float64) error {
	if c < 0 || c > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %f", c)
	}
	t.Confidence = c
	return nil
}

// SetForex attaches a complete foreign-currency block. USD originals are
// rejected: a USD charge has no foreign detail to carry.
func (t *Transaction) SetForex(originalAmount float64, currency string, rate float64) error {
	if originalAmount == 0 {
		return fmt.Errorf("original amount cannot be zero")
	}
	if !currencyCodePattern.MatchString(currency) {
		return fmt.Errorf("invalid currency code: %q", currency)
	}
	if currency == "USD" {
		return fmt.Errorf("foreign currency block cannot carry USD")
	}
	if rate <= 0 {
		return fmt.Errorf("exchange rate must be positive, got %f", rate)
	}
	t.Forex = &Forex{
		OriginalAmount:   originalAmount,
		OriginalCurrency: currency,
		ExchangeRate:     rate,
	}
	t.HasForex = true
	return nil
}

// CategoryTotal is one line of the summary category breakdown.
type CategoryTotal struct {
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// DateRange spans the earliest and latest transaction dates, ISO format.
// Both fields are empty when the result carries no transactions.
type DateRange struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

// Summary aggregates a result's transactions.
//
// Sign convention: TotalDebits is the positive magnitude of outflows,
// TotalCredits the sum of inflows, and NetAmount = TotalCredits - TotalDebits.
type Summary struct {
	TransactionCount  int                        `json:"total_transactions"`
	NetAmount         float64                    `json:"net_amount"`
	TotalDebits       float64                    `json:"total_debits"`
	TotalCredits      float64                    `json:"total_credits"`
	CategoryBreakdown map[Category]CategoryTotal `json:"category_breakdown"`
	DateRange         DateRange                  `json:"date_range"`
}

// NewEmptySummary returns a well-formed all-zero summary. Results with no
// transactions carry this instead of a null.
func NewEmptySummary() Summary {
	return Summary{
		CategoryBreakdown: map[Category]CategoryTotal{},
	}
}

// Metadata describes how a result was produced.
type Metadata struct {
	Bank             Bank             `json:"bank"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	TablesFound      int              `json:"tables_found"`
	SourcePath       string           `json:"source_path"`
	Timestamp        string           `json:"timestamp"` // RFC 3339
	DedupEnabled     bool             `json:"dedup_enabled"`
	RunID            string           `json:"run_id,omitempty"`
}

// Result is the full outcome of processing one statement file. Success with
// zero transactions is a valid outcome (e.g. a statement with no activity);
// Success false means the input could not be processed at all, and Error
// says why. The two cases are distinguished only by these fields.
type Result struct {
	Success      bool          `json:"success"`
	Transactions []Transaction `json:"transactions"`
	Summary      Summary       `json:"summary"`
	Metadata     Metadata      `json:"metadata"`
	Error        string        `json:"error,omitempty"`
}

// NewResult creates an empty successful result with initialized collections.
func NewResult(meta Metadata) *Result {
	return &Result{
		Success:      true,
		Transactions: []Transaction{},
		Summary:      NewEmptySummary(),
		Metadata:     meta,
	}
}

// NewErrorResult creates a failed result for an input that could not be
// processed. The summary is well-formed and all-zero.
func NewErrorResult(meta Metadata, err error) *Result {
	return &Result{
		Success:      false,
		Transactions: []Transaction{},
		Summary:      NewEmptySummary(),
		Metadata:     meta,
		Error:        err.Error(),
	}
}

// ValidateCategory checks if category is valid
func ValidateCategory(c Category) bool {
	_, ok := validCategories[c]
	return ok
}

// ValidateBank checks if bank is valid
func ValidateBank(b Bank) bool {
	_, ok := validBanks[b]
	return ok
}

// ValidateExtractionMethod checks if method is valid
func ValidateExtractionMethod(m ExtractionMethod) bool {
	_, ok := validMethods[m]
	return ok
}

// ValidateAccountType checks if account type is valid
func ValidateAccountType(t AccountType) bool {
	_, ok := validAccountTypes[t]
	return ok
}

// Categories returns the classifier's priority order. First match wins, so
// more specific categories come before broader ones.
func Categories() []Category {
	return []Category{
		CategoryTaxes, CategoryBusiness, CategoryDining,
		CategoryTransportation, CategoryGroceries, CategorySubscriptions,
		CategoryHealthcare, CategoryShopping, CategoryLodging,
		CategoryUtilities, CategoryPayment, CategoryOther,
	}
}
