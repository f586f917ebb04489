package recurring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sheetledger/internal/core"
	"sheetledger/internal/fx"
)

type (
	// Ledger receives posted transactions.
	Ledger interface {
		Append(ctx context.Context, tx core.Transaction) error
	}

	// Marker records that a rule settled in a period.
	Marker interface {
		MarkSettled(ctx context.Context, id int, p core.Period) error
	}
)

type Options struct {
	// SkipInactive leaves Inactive rules untouched. Off by default: the
	// status column has always been informational.
	SkipInactive bool
}

// Posting is a transaction the engine appended for a rule.
type Posting struct {
	RuleID      int
	Transaction core.Transaction
	// Degraded is set when no rate was available and the original amount
	// was posted as the home amount.
	Degraded bool
	// Settled is false when the transaction was written but the rule could
	// not be stamped; it will post again next time.
	Settled bool
}

// Failure names a rule and the write that failed for it.
type Failure struct {
	RuleID int
	Note   string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("rule %d (%s): %v", f.RuleID, f.Note, f.Err)
}

// Report is the outcome of one RunDue call.
type Report struct {
	Period       core.Period
	Evaluated    int
	Settled      int
	Posted       []Posting
	AppendFailed []Failure
	MarkFailed   []Failure
	Rejected     []Failure // invalid rules and unexpected errors
	Degraded     []int
	Skipped      []int
}

// Wrote reports whether any row was written.
func (r Report) Wrote() bool { return len(r.Posted) > 0 }

func (r Report) Failed() int {
	return len(r.AppendFailed) + len(r.MarkFailed) + len(r.Rejected)
}

type Engine struct {
	ledger Ledger
	marker Marker
	opts   Options
	now    func() time.Time
}

func NewEngine(ledger Ledger, marker Marker, opts Options) *Engine {
	return &Engine{ledger: ledger, marker: marker, opts: opts, now: time.Now}
}

// WithClock replaces the time source used for CreatedAt.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RunDue posts every Due rule for the period containing asOf. Rules are
// independent: a failure on one never stops the others. Once started the
// run is not cancelled; each Due rule is taken to completion or failure.
func (e *Engine) RunDue(ctx context.Context, asOf time.Time, rules []core.RecurringRule, rates fx.Rates, home string) Report {
	ctx = context.WithoutCancel(ctx)
	period := core.PeriodOf(asOf)
	rep := Report{Period: period}

	for _, rule := range rules {
		rep.Evaluated++
		if e.opts.SkipInactive && rule.Status == core.Inactive {
			rep.Skipped = append(rep.Skipped, rule.ID)
			continue
		}
		if StateOf(rule, asOf) != Due {
			continue
		}
		e.post(ctx, &rep, rule, asOf, rates, home)
	}

	slog.InfoContext(ctx, "Recurring rules evaluated",
		"period", period.String(),
		"evaluated", rep.Evaluated,
		"posted", len(rep.Posted),
		"settled", rep.Settled,
		"failed", rep.Failed())
	return rep
}

func (e *Engine) post(ctx context.Context, rep *Report, rule core.RecurringRule, asOf time.Time, rates fx.Rates, home string) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Recurring rule panicked", "rule_id", rule.ID, "panic", r)
			rep.Rejected = append(rep.Rejected, Failure{RuleID: rule.ID, Note: rule.Note, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	if err := rule.Validate(); err != nil {
		rep.Rejected = append(rep.Rejected, Failure{RuleID: rule.ID, Note: rule.Note, Err: err})
		return
	}

	conv := fx.Convert(rule.AmountOriginal, rule.Currency, home, rates)
	tx := core.Transaction{
		Date:           time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, asOf.Location()),
		Type:           rule.Type,
		MainCategory:   rule.MainCategory,
		SubCategory:    rule.SubCategory,
		PaymentMethod:  rule.PaymentMethod,
		Currency:       rule.Currency,
		AmountOriginal: rule.AmountOriginal,
		AmountHome:     conv.Amount,
		Note:           core.AutoNotePrefix + rule.Note,
		CreatedAt:      e.now(),
	}

	if tx.AmountHome.IsZero() {
		err := fmt.Errorf("%w: %s %s converts to 0 %s", core.ErrInvalidAmount, core.FormatAmount(rule.AmountOriginal), rule.Currency, home)
		slog.WarnContext(ctx, "Recurring rule rounds to zero in home currency", "rule_id", rule.ID, "note", rule.Note)
		rep.Rejected = append(rep.Rejected, Failure{RuleID: rule.ID, Note: rule.Note, Err: err})
		return
	}

	if err := e.ledger.Append(ctx, tx); err != nil {
		slog.ErrorContext(ctx, "Failed to post recurring rule", "rule_id", rule.ID, "note", rule.Note, "error", err)
		rep.AppendFailed = append(rep.AppendFailed, Failure{RuleID: rule.ID, Note: rule.Note, Err: err})
		return
	}

	posting := Posting{RuleID: rule.ID, Transaction: tx, Degraded: !conv.OK}
	if !conv.OK {
		slog.WarnContext(ctx, "Recurring rule posted without conversion",
			"rule_id", rule.ID, "currency", rule.Currency, "home", home)
		rep.Degraded = append(rep.Degraded, rule.ID)
	}

	if err := e.marker.MarkSettled(ctx, rule.ID, rep.Period); err != nil {
		slog.ErrorContext(ctx, "Posted rule could not be marked settled; it will post again",
			"rule_id", rule.ID, "period", rep.Period.String(), "error", err)
		rep.MarkFailed = append(rep.MarkFailed, Failure{RuleID: rule.ID, Note: rule.Note, Err: err})
		rep.Posted = append(rep.Posted, posting)
		return
	}

	posting.Settled = true
	rep.Settled++
	rep.Posted = append(rep.Posted, posting)
	slog.InfoContext(ctx, "Recurring rule posted",
		"rule_id", rule.ID,
		"note", rule.Note,
		"amount_home", tx.AmountHome.String(),
		"period", rep.Period.String())
}
