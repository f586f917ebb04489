// Package settings stores the user-editable lists: categories, payment
// methods, currencies and the default currency.
//
// The Settings sheet packs independent lists side by side. Row i holds the
// i-th category pair, the i-th payment method and the i-th currency; shorter
// lists are padded with empty cells. Default_Currency lives in the first
// data row. Saving clears the sheet and writes it again.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sheetledger/internal/core"
	ports "sheetledger/internal/sheets"
)

// IncomeCategory is always offered so income can be recorded.
const IncomeCategory = "Income"

var (
	DefaultIncomeSubs     = []string{"Salary", "Bonus"}
	DefaultPaymentMethods = []string{"Cash"}
	DefaultCurrencies     = []string{"SGD", "TWD"}
)

type Store struct {
	store ports.RowStore
	home  string
}

// New returns a store whose default currency falls back to home.
func New(store ports.RowStore, home string) *Store {
	return &Store{store: store, home: core.NormalizeCurrency(home)}
}

// Load reads all lists, filling in defaults for empty ones. A sheet that
// cannot be read yields the defaults.
func (s *Store) Load(ctx context.Context) core.Settings {
	raw, err := s.read(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Settings unavailable, using defaults", "error", err)
	}
	return s.withDefaults(raw)
}

func (s *Store) LoadCategories(ctx context.Context) map[string][]string {
	return s.Load(ctx).CategoryMap()
}

func (s *Store) LoadPaymentMethods(ctx context.Context) []string {
	return s.Load(ctx).PaymentMethods
}

func (s *Store) LoadCurrencies(ctx context.Context) []string {
	return s.Load(ctx).Currencies
}

func (s *Store) LoadDefaultCurrency(ctx context.Context) string {
	return s.Load(ctx).DefaultCurrency
}

// Save replaces the sheet with st.
func (s *Store) Save(ctx context.Context, st core.Settings) error {
	rows, err := Encode(st)
	if err != nil {
		return err
	}
	if err := s.store.Rewrite(ctx, ports.SettingsSheet, rows); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	slog.InfoContext(ctx, "Settings saved",
		"categories", len(st.Categories),
		"payment_methods", len(st.PaymentMethods),
		"currencies", len(st.Currencies))
	return nil
}

func (s *Store) read(ctx context.Context) (core.Settings, error) {
	t, err := s.store.Read(ctx, ports.SettingsSheet)
	if err != nil {
		return core.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	return Decode(ports.SettingsSchema.Normalize(t)), nil
}

func (s *Store) withDefaults(st core.Settings) core.Settings {
	if len(st.Categories) == 0 {
		st.Categories = []core.Category{{Main: IncomeCategory, Subs: clone(DefaultIncomeSubs)}}
	} else if _, ok := st.CategoryMap()[IncomeCategory]; !ok {
		st.Categories = append(st.Categories, core.Category{Main: IncomeCategory, Subs: clone(DefaultIncomeSubs)})
	}
	if len(st.PaymentMethods) == 0 {
		st.PaymentMethods = clone(DefaultPaymentMethods)
	}
	if len(st.Currencies) == 0 {
		st.Currencies = clone(DefaultCurrencies)
	}
	if st.DefaultCurrency == "" {
		st.DefaultCurrency = s.home
	}
	if st.DefaultCurrency == "" {
		st.DefaultCurrency = DefaultCurrencies[0]
	}
	return st
}

// Decode unpacks normalized Settings rows. Padding cells and duplicates
// are dropped; category order follows first appearance.
func Decode(recs [][]string) core.Settings {
	var st core.Settings
	index := map[string]int{}
	pays := newSet()
	curs := newSet()

	for _, rec := range recs {
		if main := rec[0]; main != "" {
			i, ok := index[main]
			if !ok {
				i = len(st.Categories)
				index[main] = i
				st.Categories = append(st.Categories, core.Category{Main: main, Subs: []string{}})
			}
			if sub := rec[1]; sub != "" && !contains(st.Categories[i].Subs, sub) {
				st.Categories[i].Subs = append(st.Categories[i].Subs, sub)
			}
		}
		if pays.add(rec[2]) {
			st.PaymentMethods = append(st.PaymentMethods, rec[2])
		}
		if c := core.NormalizeCurrency(rec[3]); curs.add(c) {
			st.Currencies = append(st.Currencies, c)
		}
		if st.DefaultCurrency == "" {
			st.DefaultCurrency = core.NormalizeCurrency(rec[4])
		}
	}
	return st
}

// Encode packs st into Settings rows, header first.
func Encode(st core.Settings) ([][]string, error) {
	var cats [][2]string
	for _, c := range st.Categories {
		main := strings.TrimSpace(c.Main)
		if main == "" {
			continue
		}
		subs := 0
		for _, sub := range c.Subs {
			if sub = strings.TrimSpace(sub); sub != "" {
				cats = append(cats, [2]string{main, sub})
				subs++
			}
		}
		if subs == 0 {
			cats = append(cats, [2]string{main, ""})
		}
	}

	pays := compact(st.PaymentMethods, strings.TrimSpace)
	curs := compact(st.Currencies, core.NormalizeCurrency)
	for _, c := range curs {
		if err := core.ValidateCurrency(c); err != nil {
			return nil, fmt.Errorf("currency %q: %w", c, err)
		}
	}
	def := core.NormalizeCurrency(st.DefaultCurrency)
	if def != "" {
		if err := core.ValidateCurrency(def); err != nil {
			return nil, fmt.Errorf("default currency %q: %w", def, err)
		}
	}

	n := max(len(cats), len(pays), len(curs))
	if n == 0 && def != "" {
		n = 1
	}
	rows := make([][]string, 0, n+1)
	rows = append(rows, ports.SettingsSchema.Header())
	for i := 0; i < n; i++ {
		row := make([]string, len(ports.SettingsSchema.Columns))
		if i < len(cats) {
			row[0], row[1] = cats[i][0], cats[i][1]
		}
		row[2] = at(pays, i)
		row[3] = at(curs, i)
		if i == 0 {
			row[4] = def
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type set map[string]bool

func newSet() set { return set{} }

// add reports whether v is non-empty and new.
func (s set) add(v string) bool {
	if v == "" || s[v] {
		return false
	}
	s[v] = true
	return true
}

func compact(in []string, norm func(string) string) []string {
	seen := newSet()
	var out []string
	for _, v := range in {
		if v = norm(v); seen.add(v) {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func at(list []string, i int) string {
	if i < len(list) {
		return list[i]
	}
	return ""
}

func clone(in []string) []string { return append([]string(nil), in...) }
