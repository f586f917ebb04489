// Package core provides the domain types of the ledger and the helpers
// that parse them from spreadsheet cells.
//
// This file contains amount parsing and rounding. Amounts are decimals
// (shopspring/decimal) so that conversions and sums never drift the way
// float64 arithmetic does.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// HomePlaces is the number of decimal places kept for converted amounts.
const HomePlaces = 2

// ParseAmount parses a spreadsheet amount cell.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, strips
// thousands separators ("1,234.50"), currency symbols and spaces, and keeps
// the sign. An empty or unparseable cell returns ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")     -> 12.34
//	ParseAmount("12,34")     -> 12.34
//	ParseAmount("1,234.50")  -> 1234.5
//	ParseAmount("$ -7")      -> -7
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',', r == '-', r == '+':
			return r
		}
		return -1
	}, s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	switch {
	case strings.Contains(s, ".") && strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") > 1 || isThousandsGrouped(s):
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// isThousandsGrouped reports a single comma followed by exactly three digits
// ("1,234"). That is read as grouping, not as a decimal comma.
func isThousandsGrouped(s string) bool {
	i := strings.IndexByte(s, ',')
	if i < 1 {
		return false
	}
	frac := s[i+1:]
	if len(frac) != 3 {
		return false
	}
	for _, r := range frac {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Round2 rounds half away from zero to HomePlaces.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(HomePlaces)
}

// FormatAmount renders an amount for a sheet cell without trailing zeros.
func FormatAmount(d decimal.Decimal) string {
	return d.String()
}
