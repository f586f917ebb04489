package ledger

import (
	"sheetledger/internal/core"

	"github.com/shopspring/decimal"
)

// Aggregate sums the home amounts of the entries dated in p. Income rows go
// to Income, everything else to Expense. Invalid entries are counted in
// Excluded and otherwise ignored.
func Aggregate(entries []Entry, p core.Period) core.MonthSummary {
	s := core.MonthSummary{
		Period:     p,
		BaseIncome: decimal.Zero,
		Income:     decimal.Zero,
		Expense:    decimal.Zero,
	}
	for _, e := range entries {
		if !e.Valid {
			s.Excluded++
			continue
		}
		if !p.Contains(e.Date) {
			continue
		}
		if e.Type.IsIncome() {
			s.Income = s.Income.Add(e.AmountHome)
		} else {
			s.Expense = s.Expense.Add(e.AmountHome)
		}
	}
	s.Balance = s.Income.Sub(s.Expense)
	return s
}

// TrendPoint is the income and expense of one month. Income includes the
// month's budgeted base income.
type TrendPoint struct {
	Period  core.Period
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// trend builds one point per month from..to inclusive.
func trend(entries []Entry, targets map[core.Period]decimal.Decimal, from, to core.Period) []TrendPoint {
	var out []TrendPoint
	for p := from; !to.Before(p); p = p.Next() {
		s := Aggregate(entries, p)
		out = append(out, TrendPoint{
			Period:  p,
			Income:  targets[p].Add(s.Income),
			Expense: s.Expense,
		})
	}
	return out
}
