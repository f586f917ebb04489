// Package recurring posts recurring rules to the ledger once per calendar
// month.
//
// A rule's state in a period is derived, never stored:
//
//	Settled  Last_Run_Month == period
//	Due      not settled and day-of-month >= Day
//	Pending  not settled and day-of-month <  Day
//
// Posting a Due rule is two independent writes: append the transaction,
// then stamp Last_Run_Month. If the stamp fails the rule stays Due and is
// posted again on the next evaluation.
package recurring

import (
	"time"

	"sheetledger/internal/core"
)

type State int

const (
	Pending State = iota
	Due
	Settled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Due:
		return "due"
	case Settled:
		return "settled"
	}
	return "unknown"
}

// StateOf evaluates rule on the calendar day of asOf. A Day of 31 is never
// reached in shorter months.
func StateOf(rule core.RecurringRule, asOf time.Time) State {
	if rule.LastRunMonth == core.PeriodOf(asOf) {
		return Settled
	}
	if asOf.Day() >= rule.ScheduledDay {
		return Due
	}
	return Pending
}
