package ledger

import (
	"context"
	"fmt"

	"sheetledger/internal/core"
	ports "sheetledger/internal/sheets"

	"github.com/shopspring/decimal"
)

// BudgetRepository reads and writes the monthly income targets.
type BudgetRepository struct {
	store ports.RowStore
}

func NewBudgetRepository(store ports.RowStore) *BudgetRepository {
	return &BudgetRepository{store: store}
}

// Targets returns the income target per month. Rows with an unparseable
// month are skipped; an unparseable target reads as zero. When a month
// appears twice the first row wins.
func (r *BudgetRepository) Targets(ctx context.Context) (map[core.Period]decimal.Decimal, error) {
	rows, err := r.rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[core.Period]decimal.Decimal, len(rows))
	for _, b := range rows {
		if _, seen := out[b.target.Month]; !seen {
			out[b.target.Month] = b.target.IncomeTarget
		}
	}
	return out, nil
}

// Set writes the income target for a month, updating the existing row or
// appending a new one.
func (r *BudgetRepository) Set(ctx context.Context, target core.BudgetTarget) error {
	if target.Month.IsZero() {
		return core.ErrInvalidPeriod
	}
	if target.IncomeTarget.IsNegative() {
		return core.ErrInvalidAmount
	}
	rows, err := r.rows(ctx)
	if err != nil {
		return err
	}
	value := core.FormatAmount(target.IncomeTarget)
	for _, b := range rows {
		if b.target.Month == target.Month {
			col := ports.BudgetSchema.Column("Income_Target")
			if err := r.store.UpdateCell(ctx, ports.BudgetSheet, ports.PhysicalRow(b.index), col, value); err != nil {
				return fmt.Errorf("update budget %s: %w", target.Month, err)
			}
			return nil
		}
	}
	if err := r.store.Append(ctx, ports.BudgetSheet, []string{target.Month.String(), value}); err != nil {
		return fmt.Errorf("append budget %s: %w", target.Month, err)
	}
	return nil
}

type budgetRow struct {
	index  int
	target core.BudgetTarget
}

func (r *BudgetRepository) rows(ctx context.Context) ([]budgetRow, error) {
	t, err := r.store.Read(ctx, ports.BudgetSheet)
	if err != nil {
		return nil, fmt.Errorf("read budget: %w", err)
	}
	var out []budgetRow
	for i, rec := range ports.BudgetSchema.Normalize(t) {
		p, err := core.ParsePeriod(rec[0])
		if err != nil {
			continue
		}
		amt, err := core.ParseAmount(rec[1])
		if err != nil {
			amt = decimal.Zero
		}
		out = append(out, budgetRow{index: i, target: core.BudgetTarget{Month: p, IncomeTarget: amt}})
	}
	return out, nil
}
