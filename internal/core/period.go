package core

import (
	"strings"
	"time"
)

// PeriodLayout is the wire format of a period.
const PeriodLayout = "2006-01"

// Period is a calendar month. The zero value is NeverRun.
type Period struct {
	Year  int
	Month time.Month
}

// NeverRun marks a rule that has not settled in any period.
var NeverRun = Period{}

// PeriodOf returns the calendar month containing t, in t's location.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses a "YYYY-MM" string.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse(PeriodLayout, strings.TrimSpace(s))
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return PeriodOf(t), nil
}

// ParseLastRun is lenient: blank cells, the "New" marker and anything
// unparseable mean the rule never ran.
func ParseLastRun(s string) Period {
	p, err := ParsePeriod(s)
	if err != nil {
		return NeverRun
	}
	return p
}

func (p Period) IsZero() bool { return p == NeverRun }

func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return p.Start().Format(PeriodLayout)
}

// Start is midnight UTC of the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (p Period) Next() Period { return PeriodOf(p.Start().AddDate(0, 1, 0)) }

func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// Contains reports whether t falls within the period, ignoring location.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

// DaysIn returns the number of days in the period.
func (p Period) DaysIn() int {
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
