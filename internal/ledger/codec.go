// Package ledger reads and appends transactions and aggregates them into
// monthly figures in the home currency.
package ledger

import (
	"strings"
	"time"

	"sheetledger/internal/core"
)

const (
	DateLayout      = "2006-01-02"
	CreatedAtLayout = "2006-01-02 15:04:05"
)

// dateLayouts are tried in order when reading a Date cell. Sheets reformat
// dates by locale, so a few spellings show up in practice.
var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"2006-1-2",
	"2006/1/2",
	CreatedAtLayout,
	time.RFC3339,
}

// Entry is a transaction read back from the sheet. Valid is false when the
// date or the home amount could not be parsed; such rows are kept so row
// positions stay meaningful but are excluded from aggregation.
type Entry struct {
	core.Transaction
	Row   int // 0-based data row
	Valid bool
}

// EncodeRow renders tx in Transactions column order.
func EncodeRow(tx core.Transaction) []string {
	return []string{
		tx.Date.Format(DateLayout),
		string(tx.Type),
		tx.MainCategory,
		tx.SubCategory,
		tx.PaymentMethod,
		tx.Currency,
		core.FormatAmount(tx.AmountOriginal),
		core.FormatAmount(tx.AmountHome),
		tx.Note,
		tx.CreatedAt.Format(CreatedAtLayout),
	}
}

// DecodeRow parses a normalized Transactions row. Unknown type labels are
// read as expenses: everything that is not income counts against the month.
func DecodeRow(i int, rec []string) Entry {
	e := Entry{Row: i, Valid: true}
	e.MainCategory = rec[2]
	e.SubCategory = rec[3]
	e.PaymentMethod = rec[4]
	e.Currency = core.NormalizeCurrency(rec[5])
	e.Note = rec[8]

	if t, err := core.ParseTxType(rec[1]); err == nil {
		e.Type = t
	} else {
		e.Type = core.Expense
	}

	d, ok := parseDate(rec[0])
	if !ok {
		e.Valid = false
	}
	e.Date = d

	if v, err := core.ParseAmount(rec[6]); err == nil {
		e.AmountOriginal = v
	}
	if v, err := core.ParseAmount(rec[7]); err == nil {
		e.AmountHome = v
	} else {
		e.Valid = false
	}

	if c, ok := parseDate(rec[9]); ok {
		e.CreatedAt = c
	}
	return e
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
