// Package fx provides exchange-rate snapshots and currency conversion.
//
// A snapshot maps currency codes to a rate against one reference currency
// (TWD for the bank page). Converting between two currencies divides their
// rates, so the reference itself never has to be the home currency.
package fx

import (
	"sort"
	"time"

	"sheetledger/internal/core"

	"github.com/shopspring/decimal"
)

// Rates is a point-in-time snapshot of currency rates.
type Rates struct {
	Values    map[string]decimal.Decimal
	FetchedAt time.Time
}

// NewRates builds a snapshot, normalizing the currency codes.
func NewRates(values map[string]decimal.Decimal, at time.Time) Rates {
	out := make(map[string]decimal.Decimal, len(values))
	for code, v := range values {
		out[core.NormalizeCurrency(code)] = v
	}
	return Rates{Values: out, FetchedAt: at}
}

// Rate returns the usable rate for code. Missing and zero rates are both
// reported as unavailable.
func (r Rates) Rate(code string) (decimal.Decimal, bool) {
	v, ok := r.Values[core.NormalizeCurrency(code)]
	if !ok || v.IsZero() {
		return decimal.Zero, false
	}
	return v, true
}

func (r Rates) Empty() bool { return len(r.Values) == 0 }

// Codes lists the currencies of the snapshot in order.
func (r Rates) Codes() []string {
	codes := make([]string, 0, len(r.Values))
	for c := range r.Values {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Conversion is the outcome of Convert. When OK is false the conversion was
// unavailable: Amount is the unconverted input and Factor is zero.
type Conversion struct {
	Amount decimal.Decimal
	Factor decimal.Decimal
	OK     bool
}

// Home returns the converted amount only if the conversion succeeded.
func (c Conversion) Home() (decimal.Decimal, bool) {
	if !c.OK {
		return decimal.Zero, false
	}
	return c.Amount, true
}

// Convert converts amount from one currency to another using rates.
//
//	from == to            -> (amount, 1, OK)
//	both rates available  -> (round2(amount * rates[from]/rates[to]), factor, OK)
//	otherwise             -> (amount, 0, !OK)
func Convert(amount decimal.Decimal, from, to string, rates Rates) Conversion {
	from, to = core.NormalizeCurrency(from), core.NormalizeCurrency(to)
	if from == to {
		return Conversion{Amount: amount, Factor: decimal.NewFromInt(1), OK: true}
	}
	src, ok := rates.Rate(from)
	if !ok {
		return Conversion{Amount: amount, Factor: decimal.Zero}
	}
	dst, ok := rates.Rate(to)
	if !ok {
		return Conversion{Amount: amount, Factor: decimal.Zero}
	}
	factor := src.Div(dst)
	return Conversion{Amount: core.Round2(amount.Mul(factor)), Factor: factor, OK: true}
}

// ConvertLegacy returns the bare (amount, factor) pair where a zero factor
// means the conversion was unavailable.
func ConvertLegacy(amount decimal.Decimal, from, to string, rates Rates) (decimal.Decimal, decimal.Decimal) {
	c := Convert(amount, from, to, rates)
	return c.Amount, c.Factor
}
