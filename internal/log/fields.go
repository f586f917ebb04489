package log

import (
	"sheetledger/internal/core"
)

// Field names shared across packages.
const (
	FieldComponent = "component"
	FieldSession   = "session_id"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldSheet     = "sheet"
	FieldBackend   = "backend"
	FieldPeriod    = "period"
	FieldRuleID    = "rule_id"
	FieldCurrency  = "currency"
	FieldAmount    = "amount"
	FieldEvaluated = "evaluated"
	FieldPosted    = "posted"
	FieldFailed    = "failed"
)

const (
	ComponentApp       = "app"
	ComponentBackend   = "backend"
	ComponentSession   = "session"
	ComponentRecurring = "recurring"
	ComponentLedger    = "ledger"
	ComponentRates     = "rates"
	ComponentAMQP      = "amqp"
	ComponentSettings  = "settings"
)

const (
	OpRun      = "run"
	OpRecord   = "record"
	OpSummary  = "summary"
	OpTrend    = "trend"
	OpRules    = "rules"
	OpRates    = "rates"
	OpSettings = "settings"
	OpBudget   = "budget"
	OpWatch    = "watch"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// LogFields builds attribute lists for slog calls.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithSheet(sheet string) LogFields {
	f[FieldSheet] = sheet
	return f
}

func (f LogFields) WithPeriod(p core.Period) LogFields {
	f[FieldPeriod] = p.String()
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithTransaction adds the identifying fields of a ledger row.
func (f LogFields) WithTransaction(tx core.Transaction) LogFields {
	f[FieldPeriod] = core.PeriodOf(tx.Date).String()
	f[FieldCurrency] = tx.Currency
	f[FieldAmount] = tx.AmountOriginal.String()
	return f
}

// ToSlice flattens the fields into slog's alternating key/value form.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
