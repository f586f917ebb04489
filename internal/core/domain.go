package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Income  TxType = "Income"
	Expense TxType = "Expense"

	Active   RuleStatus = "Active"
	Inactive RuleStatus = "Inactive"
)

// NoteLimit is the soft display limit for notes. It is not enforced at storage.
const NoteLimit = 20

// AutoNotePrefix marks transactions posted by the recurring engine.
const AutoNotePrefix = "(auto) "

type (
	TxType     string
	RuleStatus string

	// Transaction is one ledger line. Once appended it is never changed.
	Transaction struct {
		Date           time.Time
		Type           TxType
		MainCategory   string
		SubCategory    string
		PaymentMethod  string
		Currency       string
		AmountOriginal decimal.Decimal
		AmountHome     decimal.Decimal
		Note           string
		CreatedAt      time.Time
	}

	// RecurringRule is a posting instruction evaluated once per period.
	RecurringRule struct {
		ID             int // data-row position in the Recurring sheet
		ScheduledDay   int
		Type           TxType
		MainCategory   string
		SubCategory    string
		PaymentMethod  string
		Currency       string
		AmountOriginal decimal.Decimal
		Note           string
		LastRunMonth   Period // NeverRun when the rule has not posted yet
		Status         RuleStatus
	}

	// BudgetTarget is the planned base income for a month.
	BudgetTarget struct {
		Month        Period
		IncomeTarget decimal.Decimal
	}
)

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidStatus   = errors.New("invalid rule status")
	ErrEmptyCurrency   = errors.New("empty currency")
	ErrEmptyMain       = errors.New("empty main category")
	ErrMissingDate     = errors.New("missing date")
	ErrInvalidPeriod   = errors.New("invalid period")
	ErrInvalidCurrency = errors.New("invalid currency code")
)

// ParseTxType accepts the canonical labels and the legacy ones the sheet
// may still carry. Unknown labels return ErrInvalidType.
func ParseTxType(s string) (TxType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "收入":
		return Income, nil
	case "expense", "支出":
		return Expense, nil
	}
	return "", ErrInvalidType
}

// TypeForCategory mirrors how entries are typed at input time: the main
// category named Income produces income, everything else is an expense.
func TypeForCategory(main string) TxType {
	if t, err := ParseTxType(main); err == nil && t == Income {
		return Income
	}
	return Expense
}

func (t TxType) IsIncome() bool { return t == Income }

func (t TxType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	}
	return ErrInvalidType
}

// ParseRuleStatus defaults to Active for blank cells.
func ParseRuleStatus(s string) (RuleStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active":
		return Active, nil
	case "inactive":
		return Inactive, nil
	}
	return "", ErrInvalidStatus
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCurrency checks for a 3-letter alphabetic code.
func ValidateCurrency(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrEmptyCurrency
	}
	if len(code) != 3 {
		return ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return ErrInvalidCurrency
		}
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.MainCategory) == "" {
		return ErrEmptyMain
	}
	if err := ValidateCurrency(t.Currency); err != nil {
		return err
	}
	if t.AmountOriginal.IsZero() || t.AmountHome.IsZero() {
		return ErrInvalidAmount
	}
	return nil
}

func (r RecurringRule) Validate() error {
	if r.ScheduledDay < 1 || r.ScheduledDay > 31 {
		return ErrInvalidDay
	}
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.MainCategory) == "" {
		return ErrEmptyMain
	}
	if err := ValidateCurrency(r.Currency); err != nil {
		return err
	}
	if !r.AmountOriginal.IsPositive() {
		return ErrInvalidAmount
	}
	switch r.Status {
	case Active, Inactive:
	default:
		return ErrInvalidStatus
	}
	return nil
}

// TruncateNote shortens a note to NoteLimit runes for display.
func TruncateNote(note string) string {
	if utf8.RuneCountInString(note) <= NoteLimit {
		return note
	}
	r := []rune(note)
	return string(r[:NoteLimit])
}
