// Package transform holds the pure string-to-value normalizers shared by
// every parser: dates to ISO-8601, amount strings to signed floats, cell and
// description cleanup, and institution slugs.
package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// longDateFormats are tried in order for dates that carry their own year.
var longDateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"1-2-2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
}

// shortDateFormats are year-less statement dates completed with the assumed
// year.
var shortDateFormats = []string{
	"Jan 2",
	"2 Jan",
	"January 2",
}

// NormalizeDate converts a statement date string to ISO-8601 (YYYY-MM-DD).
// Year-less dates like "Apr 16" are completed with assumedYear (zero means
// the current year). Unparsable input is returned unmodified with ok=false
// so callers never mis-map a date they could not read.
func NormalizeDate(s string, assumedYear int) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s, false
	}

	for _, layout := range longDateFormats {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02"), true
		}
	}

	for _, layout := range shortDateFormats {
		if t, err := time.Parse(layout, trimmed); err == nil {
			year := assumedYear
			if year == 0 {
				year = time.Now().Year()
			}
			completed := time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return completed.Format("2006-01-02"), true
		}
	}

	return s, false
}

var amountAllowedRE = regexp.MustCompile(`[^0-9.+\-,()]`)

// ParseAmount converts an amount string to a signed float. Handles currency
// symbols, thousands separators, parenthesized negatives, and a leading
// minus. Multiple dots (OCR artifacts like "1.234.56") keep only the last as
// the decimal point.
func ParseAmount(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.Contains(cleaned, "(") && strings.Contains(cleaned, ")") {
		negative = true
	}

	cleaned = amountAllowedRE.ReplaceAllString(cleaned, "")
	cleaned = strings.ReplaceAll(cleaned, "(", "")
	cleaned = strings.ReplaceAll(cleaned, ")", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	if strings.HasPrefix(cleaned, "-") {
		negative = true
		cleaned = strings.TrimPrefix(cleaned, "-")
	}
	cleaned = strings.TrimPrefix(cleaned, "+")

	if parts := strings.Split(cleaned, "."); len(parts) > 2 {
		cleaned = strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable amount %q: %w", s, err)
	}

	if negative {
		value = -value
	}
	return value, nil
}

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	// cellAllowedRE strips everything outside word characters, whitespace,
	// and the punctuation that carries meaning in statement cells.
	cellAllowedRE = regexp.MustCompile(`[^\w\s\-.,$()/]`)
)

// CleanCell normalizes one extracted table cell: whitespace runs collapse to
// a single space and characters outside the allow-list are stripped.
func CleanCell(s string) string {
	s = cellAllowedRE.ReplaceAllString(s, "")
	s = whitespaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// merchantPrefixes are processor tokens prepended to merchant names that
// carry no identity (e.g. "TST* PANERA BREAD").
var merchantPrefixes = []string{"TST*", "SQ *", "SQ*"}

// CleanDescription lightly normalizes a merchant description: processor
// prefixes stripped, asterisks become spaces, whitespace runs collapse.
func CleanDescription(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(strings.ToUpper(s), prefix) {
			s = s[len(prefix):]
			break
		}
	}
	s = strings.ReplaceAll(s, "*", " ")
	s = whitespaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var (
	slashDateRE = regexp.MustCompile(`\b\d{1,2}/\d{1,2}(/\d{2,4})?\b`)
	dashDateRE  = regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{2,4}\b`)
	isoDateRE   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	monthDayRE  = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}\b`)
	amountRE    = regexp.MustCompile(`^[-+]?\(?\$?\s?[\d,]+\.?\d*\)?$`)
)

// LooksLikeDate reports whether the string matches any supported date shape.
// Used by the generic row parser to keep dates out of descriptions.
func LooksLikeDate(s string) bool {
	s = strings.TrimSpace(s)
	return isoDateRE.MatchString(s) || slashDateRE.MatchString(s) ||
		dashDateRE.MatchString(s) || monthDayRE.MatchString(s)
}

// LooksLikeAmount reports whether the whole string is an amount: an optional
// sign or parentheses around a currency-prefixed decimal.
func LooksLikeAmount(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return amountRE.MatchString(s)
}

// FindDate returns the first date-shaped substring of s, or "".
func FindDate(s string) string {
	if m := isoDateRE.FindString(s); m != "" {
		return m
	}
	if m := slashDateRE.FindString(s); m != "" {
		return m
	}
	if m := dashDateRE.FindString(s); m != "" {
		return m
	}
	if m := monthDayRE.FindString(s); m != "" {
		return m
	}
	return ""
}
