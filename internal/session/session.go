// Package session holds per-session state. The recurring check runs at
// most once per Session; a new Session (a new process or a new user
// session) checks again.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sheetledger/internal/core"
	"sheetledger/internal/fx"
	"sheetledger/internal/recurring"

	"github.com/google/uuid"
)

type (
	// RateSource yields the current rate snapshot.
	RateSource interface {
		Rates(ctx context.Context) fx.Rates
	}

	// HomeCurrency yields the currency amounts are converted to.
	HomeCurrency interface {
		LoadDefaultCurrency(ctx context.Context) string
	}

	// RuleSource lists the recurring rules.
	RuleSource interface {
		List(ctx context.Context) ([]core.RecurringRule, []recurring.Invalid, error)
	}

	// Notifier is told about every run that wrote something.
	Notifier interface {
		NotifyRecurring(ctx context.Context, sessionID string, rep recurring.Report) error
	}

	// Purger clears cached reads after writes.
	Purger interface {
		PurgeAll()
	}
)

type Deps struct {
	Rules    RuleSource
	Engine   *recurring.Engine
	Rates    RateSource
	Home     HomeCurrency
	Caches   Purger   // optional
	Notifier Notifier // optional
	Now      func() time.Time
}

type Session struct {
	id   string
	deps Deps

	mu      sync.Mutex
	checked bool
	last    *recurring.Report
}

func New(deps Deps) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Session{id: uuid.NewString(), deps: deps}
}

func (s *Session) ID() string { return s.id }

// Checked reports whether the recurring check already ran.
func (s *Session) Checked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checked
}

// CheckRecurring posts the due rules once per session. Later calls return
// the first report with ran set to false. If the rules cannot be read the
// session stays unchecked so a later call can retry.
func (s *Session) CheckRecurring(ctx context.Context) (rep recurring.Report, ran bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checked {
		if s.last != nil {
			rep = *s.last
		}
		return rep, false, nil
	}

	rules, invalid, err := s.deps.Rules.List(ctx)
	if err != nil {
		return recurring.Report{}, false, fmt.Errorf("load recurring rules: %w", err)
	}
	for _, inv := range invalid {
		slog.WarnContext(ctx, "Skipping unreadable recurring rule", "session_id", s.id, "rule_id", inv.ID, "error", inv.Err)
	}

	rates := s.deps.Rates.Rates(ctx)
	home := s.deps.Home.LoadDefaultCurrency(ctx)
	rep = s.deps.Engine.RunDue(ctx, s.deps.Now(), rules, rates, home)
	for _, inv := range invalid {
		rep.Rejected = append(rep.Rejected, recurring.Failure{RuleID: inv.ID, Err: inv.Err})
	}

	s.checked = true
	s.last = &rep

	if rep.Wrote() {
		if s.deps.Caches != nil {
			s.deps.Caches.PurgeAll()
		}
		if s.deps.Notifier != nil {
			if err := s.deps.Notifier.NotifyRecurring(ctx, s.id, rep); err != nil {
				slog.WarnContext(ctx, "Failed to publish recurring report", "session_id", s.id, "error", err)
			}
		}
	}
	return rep, true, nil
}
