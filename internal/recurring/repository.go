package recurring

import (
	"context"
	"fmt"

	"sheetledger/internal/core"
	ports "sheetledger/internal/sheets"
)

// NewRuleMarker is the Last_Run_Month value of a rule that has never run.
const NewRuleMarker = "New"

// Invalid is a Recurring row that could not be read as a rule.
type Invalid struct {
	ID  int
	Err error
}

// Repository is the Recurring sheet accessor. A rule's ID is its data-row
// position, so deleting a rule shifts the IDs of the rules below it.
type Repository struct {
	store ports.RowStore
}

var _ Marker = (*Repository)(nil)

func NewRepository(store ports.RowStore) *Repository {
	return &Repository{store: store}
}

// List reads every rule. Rows that cannot be parsed are returned apart,
// keeping their position so the remaining IDs stay correct.
func (r *Repository) List(ctx context.Context) ([]core.RecurringRule, []Invalid, error) {
	t, err := r.store.Read(ctx, ports.RecurringSheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read recurring rules: %w", err)
	}
	var (
		rules   []core.RecurringRule
		invalid []Invalid
	)
	for i, rec := range ports.RecurringSchema.Normalize(t) {
		if isBlank(rec) {
			continue
		}
		rule, err := DecodeRule(i, rec)
		if err != nil {
			invalid = append(invalid, Invalid{ID: i, Err: err})
			continue
		}
		rules = append(rules, rule)
	}
	return rules, invalid, nil
}

// Add appends a rule that has never run.
func (r *Repository) Add(ctx context.Context, rule core.RecurringRule) error {
	rule.LastRunMonth = core.NeverRun
	rule.Currency = core.NormalizeCurrency(rule.Currency)
	if rule.Status == "" {
		rule.Status = core.Active
	}
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}
	if err := r.store.Append(ctx, ports.RecurringSheet, EncodeRule(rule)); err != nil {
		return fmt.Errorf("add rule: %w", err)
	}
	return nil
}

// Delete removes the rule at data row id.
func (r *Repository) Delete(ctx context.Context, id int) error {
	if id < 0 {
		return fmt.Errorf("delete rule %d: %w", id, ports.ErrRowOutOfRange)
	}
	if err := r.store.DeleteRow(ctx, ports.RecurringSheet, ports.PhysicalRow(id)); err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	return nil
}

// MarkSettled stamps Last_Run_Month of rule id with p.
func (r *Repository) MarkSettled(ctx context.Context, id int, p core.Period) error {
	col := ports.RecurringSchema.Column("Last_Run_Month")
	if err := r.store.UpdateCell(ctx, ports.RecurringSheet, ports.PhysicalRow(id), col, p.String()); err != nil {
		return fmt.Errorf("mark rule %d settled: %w", id, err)
	}
	return nil
}

// SetStatus activates or deactivates rule id.
func (r *Repository) SetStatus(ctx context.Context, id int, status core.RuleStatus) error {
	switch status {
	case core.Active, core.Inactive:
	default:
		return core.ErrInvalidStatus
	}
	col := ports.RecurringSchema.Column("Status")
	if err := r.store.UpdateCell(ctx, ports.RecurringSheet, ports.PhysicalRow(id), col, string(status)); err != nil {
		return fmt.Errorf("set rule %d status: %w", id, err)
	}
	return nil
}

// EncodeRule renders rule in Recurring column order.
func EncodeRule(rule core.RecurringRule) []string {
	last := rule.LastRunMonth.String()
	if last == "" {
		last = NewRuleMarker
	}
	return []string{
		fmt.Sprint(rule.ScheduledDay),
		string(rule.Type),
		rule.MainCategory,
		rule.SubCategory,
		rule.PaymentMethod,
		rule.Currency,
		core.FormatAmount(rule.AmountOriginal),
		rule.Note,
		last,
		string(rule.Status),
	}
}

// DecodeRule parses a normalized Recurring row. Day and amount must parse;
// an unreadable type falls back to the main category, and an unreadable
// status reads as Active.
func DecodeRule(id int, rec []string) (core.RecurringRule, error) {
	rule := core.RecurringRule{
		ID:            id,
		MainCategory:  rec[2],
		SubCategory:   rec[3],
		PaymentMethod: rec[4],
		Currency:      core.NormalizeCurrency(rec[5]),
		Note:          rec[7],
		LastRunMonth:  core.ParseLastRun(rec[8]),
	}

	day, err := core.ParseAmount(rec[0])
	if err != nil || !day.IsInteger() {
		return rule, fmt.Errorf("day %q: %w", rec[0], core.ErrInvalidDay)
	}
	rule.ScheduledDay = int(day.IntPart())

	if t, err := core.ParseTxType(rec[1]); err == nil {
		rule.Type = t
	} else {
		rule.Type = core.TypeForCategory(rule.MainCategory)
	}

	amt, err := core.ParseAmount(rec[6])
	if err != nil {
		return rule, fmt.Errorf("amount %q: %w", rec[6], err)
	}
	rule.AmountOriginal = amt

	if st, err := core.ParseRuleStatus(rec[9]); err == nil {
		rule.Status = st
	} else {
		rule.Status = core.Active
	}

	if err := rule.Validate(); err != nil {
		return rule, err
	}
	return rule, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if v != "" {
			return false
		}
	}
	return true
}
