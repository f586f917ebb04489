package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"sheetledger/internal/core"
	"sheetledger/internal/fx"

	"github.com/shopspring/decimal"
)

var (
	ErrZeroAmount            = fmt.Errorf("%w: amount cannot be 0", core.ErrInvalidAmount)
	ErrConversionUnavailable = errors.New("conversion unavailable: enter the home amount")
)

// Service combines transactions and budget targets. Reads degrade to empty
// results when the store is unreachable; writes return their errors.
type Service struct {
	tx     *Repository
	budget *BudgetRepository
	now    func() time.Time
}

func NewService(tx *Repository, budget *BudgetRepository) *Service {
	return &Service{tx: tx, budget: budget, now: time.Now}
}

// WithClock replaces the time source used for CreatedAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// MonthSummary aggregates period p and adds its budgeted base income.
func (s *Service) MonthSummary(ctx context.Context, p core.Period) core.MonthSummary {
	sum := Aggregate(s.entries(ctx), p)
	if base, ok := s.targets(ctx)[p]; ok {
		sum.BaseIncome = base
		sum.Balance = sum.TotalIncome().Sub(sum.Expense)
	}
	return sum
}

// Trend returns one point per month from..to inclusive.
func (s *Service) Trend(ctx context.Context, from, to core.Period) []TrendPoint {
	if to.Before(from) {
		from, to = to, from
	}
	return trend(s.entries(ctx), s.targets(ctx), from, to)
}

// Months lists every month that has a valid transaction or a budget target,
// oldest first.
func (s *Service) Months(ctx context.Context) []core.Period {
	seen := map[core.Period]bool{}
	for _, e := range s.entries(ctx) {
		if e.Valid {
			seen[core.PeriodOf(e.Date)] = true
		}
	}
	for p := range s.targets(ctx) {
		seen[p] = true
	}
	out := make([]core.Period, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// RecordInput is a manually entered transaction. HomeAmount overrides the
// converted amount when set.
type RecordInput struct {
	Date          time.Time
	MainCategory  string
	SubCategory   string
	PaymentMethod string
	Currency      string
	Amount        decimal.Decimal
	HomeAmount    decimal.NullDecimal
	Note          string
}

// Record converts in.Amount to home and appends the transaction. The type
// follows the main category.
func (s *Service) Record(ctx context.Context, in RecordInput, rates fx.Rates, home string) (core.Transaction, error) {
	tx := core.Transaction{
		Date:           in.Date,
		Type:           core.TypeForCategory(in.MainCategory),
		MainCategory:   strings.TrimSpace(in.MainCategory),
		SubCategory:    strings.TrimSpace(in.SubCategory),
		PaymentMethod:  strings.TrimSpace(in.PaymentMethod),
		Currency:       core.NormalizeCurrency(in.Currency),
		AmountOriginal: in.Amount,
		Note:           strings.TrimSpace(in.Note),
		CreatedAt:      s.now(),
	}
	if in.HomeAmount.Valid {
		tx.AmountHome = in.HomeAmount.Decimal
	} else {
		amt, ok := fx.Convert(in.Amount, tx.Currency, home, rates).Home()
		if !ok {
			return core.Transaction{}, ErrConversionUnavailable
		}
		tx.AmountHome = amt
	}
	if tx.AmountHome.IsZero() {
		return core.Transaction{}, ErrZeroAmount
	}
	if err := s.tx.Append(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (s *Service) entries(ctx context.Context) []Entry {
	entries, err := s.tx.List(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Transactions unavailable", "error", err)
		return nil
	}
	return entries
}

func (s *Service) targets(ctx context.Context) map[core.Period]decimal.Decimal {
	if s.budget == nil {
		return nil
	}
	t, err := s.budget.Targets(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Budget unavailable", "error", err)
		return nil
	}
	return t
}
