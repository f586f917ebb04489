package core

import "github.com/shopspring/decimal"

// MonthSummary is the income/expense/balance figure for one period.
type MonthSummary struct {
	Period     Period
	BaseIncome decimal.Decimal // budgeted income target, zero when none
	Income     decimal.Decimal // income posted in the ledger
	Expense    decimal.Decimal
	Balance    decimal.Decimal
	Excluded   int // rows skipped because of unparseable dates or amounts
}

// TotalIncome is base income plus ledger income.
func (s MonthSummary) TotalIncome() decimal.Decimal {
	return s.BaseIncome.Add(s.Income)
}

// Settings holds the user-editable lists.
type Settings struct {
	Categories      []Category
	PaymentMethods  []string
	Currencies      []string
	DefaultCurrency string
}

// Category is a main category with its ordered sub-categories.
type Category struct {
	Main string
	Subs []string
}

// CategoryMap returns the categories keyed by main category.
func (s Settings) CategoryMap() map[string][]string {
	out := make(map[string][]string, len(s.Categories))
	for _, c := range s.Categories {
		out[c.Main] = append(make([]string, 0, len(c.Subs)), c.Subs...)
	}
	return out
}
