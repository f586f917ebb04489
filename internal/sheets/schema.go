package sheets

import "strings"

// Sheet names and their column contracts. Column order is part of the
// wire format shared with the spreadsheet.
const (
	TransactionsSheet = "Transactions"
	RecurringSheet    = "Recurring"
	SettingsSheet     = "Settings"
	BudgetSheet       = "Budget"
)

// Schema names a sheet and its expected columns.
type Schema struct {
	Name    string
	Columns []string
}

var (
	TransactionsSchema = Schema{
		Name: TransactionsSheet,
		Columns: []string{
			"Date", "Type", "Main_Category", "Sub_Category", "Payment_Method",
			"Currency", "Amount_Original", "Amount_SGD", "Note", "CreatedAt",
		},
	}

	RecurringSchema = Schema{
		Name: RecurringSheet,
		Columns: []string{
			"Day", "Type", "Main_Category", "Sub_Category", "Payment_Method",
			"Currency", "Amount_Original", "Note", "Last_Run_Month", "Status",
		},
	}

	SettingsSchema = Schema{
		Name:    SettingsSheet,
		Columns: []string{"Main_Category", "Sub_Category", "Payment_Method", "Currency", "Default_Currency"},
	}

	BudgetSchema = Schema{
		Name:    BudgetSheet,
		Columns: []string{"Month", "Income_Target"},
	}
)

// AllSchemas lists every sheet the application reads or writes.
func AllSchemas() []Schema {
	return []Schema{TransactionsSchema, RecurringSchema, SettingsSchema, BudgetSchema}
}

// Column returns the 1-based position of name in the schema, or 0.
func (s Schema) Column(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i + 1
		}
	}
	return 0
}

// Header returns a copy of the column names for writing a header row.
func (s Schema) Header() []string {
	return append([]string(nil), s.Columns...)
}

// Normalize projects every data row of t onto the schema's column order,
// matching header names case-insensitively. Columns missing from the sheet
// come back as "" so callers always get fully populated rows. Row order and
// count are preserved because positions identify rules.
//
// A table without a header row is read positionally.
func (s Schema) Normalize(t Table) [][]string {
	index := make([]int, len(s.Columns))
	if len(t.Header) == 0 {
		for i := range index {
			index[i] = i
		}
	} else {
		for i, col := range s.Columns {
			index[i] = indexOf(t.Header, col)
		}
	}

	out := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		rec := make([]string, len(s.Columns))
		for i, src := range index {
			rec[i] = safeGet(row, src)
		}
		out[r] = rec
	}
	return out
}

// Missing lists schema columns absent from the header.
func (s Schema) Missing(header []string) []string {
	var missing []string
	for _, col := range s.Columns {
		if indexOf(header, col) == -1 {
			missing = append(missing, col)
		}
	}
	return missing
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return strings.TrimSpace(arr[idx])
}
