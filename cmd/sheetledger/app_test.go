package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"sheetledger/internal/config"
	"sheetledger/internal/fx"
	applog "sheetledger/internal/log"
	ports "sheetledger/internal/sheets"
	"sheetledger/internal/sheets/cached"
	"sheetledger/internal/sheets/memory"

	"github.com/shopspring/decimal"
)

func testApp(t *testing.T) (*app, *memory.Store, *bytes.Buffer) {
	t.Helper()
	store := memory.New()
	for _, s := range ports.AllSchemas() {
		store.Ensure(s.Name, s.Header())
	}
	store.Seed(ports.RecurringSheet,
		ports.RecurringSchema.Header(),
		[]string{"5", "Expense", "Housing", "Rent", "Bank", "TWD", "15000", "Rent", "2024-05", "Active"},
		[]string{"28", "Expense", "Utilities", "Phone", "Card", "SGD", "30", "Phone", "2024-05", "Active"},
	)

	out := &bytes.Buffer{}
	cfg := &config.Config{HomeCurrency: "SGD", RatesTTL: time.Hour}
	a := newApp(appDeps{
		Config: cfg,
		Logger: applog.New(applog.Config{Output: io.Discard}),
		Out:    out,
		Store:  cached.New(store, time.Minute),
		Rates: fx.StaticSource{
			"TWD": decimal.NewFromInt(1),
			"SGD": decimal.RequireFromString("23.5"),
			"USD": decimal.RequireFromString("31.5"),
		},
		Now: func() time.Time { return time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC) },
	})
	return a, store, out
}

func TestDispatchRunPostsOncePerSession(t *testing.T) {
	a, store, out := testApp(t)
	ctx := context.Background()

	if err := a.dispatch(ctx, []string{"run"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "2 evaluated, 1 settled, 1 posted, 0 failed") {
		t.Errorf("report = %q", out.String())
	}
	txs := store.Rows(ports.TransactionsSheet)
	if len(txs) != 2 {
		t.Fatalf("transactions = %d rows, want header + 1", len(txs))
	}
	if got := txs[1][7]; got != "638.3" {
		t.Errorf("home amount = %q, want 638.3", got)
	}
	if got := store.Rows(ports.RecurringSheet)[1][8]; got != "2024-06" {
		t.Errorf("Last_Run_Month = %q, want 2024-06", got)
	}

	out.Reset()
	if err := a.dispatch(ctx, []string{"run"}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if n := len(store.Rows(ports.TransactionsSheet)); n != 2 {
		t.Errorf("second run wrote rows: %d", n)
	}
}

func TestDispatchSummaryAfterPosting(t *testing.T) {
	a, _, out := testApp(t)
	ctx := context.Background()
	if err := a.dispatch(ctx, []string{"budget", "set", "-month", "2024-06", "-target", "5000"}); err != nil {
		t.Fatalf("budget set: %v", err)
	}
	out.Reset()
	if err := a.dispatch(ctx, []string{"summary", "-month", "2024-06"}); err != nil {
		t.Fatalf("summary: %v", err)
	}
	s := out.String()
	for _, want := range []string{"5000.00 SGD", "638.30 SGD", "4361.70 SGD"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}

func TestDispatchRecord(t *testing.T) {
	a, store, out := testApp(t)
	ctx := context.Background()

	err := a.dispatch(ctx, []string{"record", "-date", "2024-06-09", "-main", "Food", "-sub", "Lunch",
		"-pay", "Cash", "-currency", "USD", "-amount", "10", "-note", "noodles"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	rows := store.Rows(ports.TransactionsSheet)
	last := rows[len(rows)-1]
	if last[5] != "USD" || last[7] != "13.4" {
		t.Errorf("recorded row = %v", last)
	}
	if !strings.Contains(out.String(), "recorded Expense 10 USD") {
		t.Errorf("output = %q", out.String())
	}

	err = a.dispatch(ctx, []string{"record", "-main", "Food", "-currency", "JPY", "-amount", "500"})
	if err == nil {
		t.Error("expected error for currency without a rate")
	}
	if err := a.dispatch(ctx, []string{"record", "-main", "Food", "-currency", "JPY", "-amount", "500", "-home", "4.6"}); err != nil {
		t.Errorf("record with home override: %v", err)
	}
}

func TestDispatchRules(t *testing.T) {
	a, store, out := testApp(t)
	ctx := context.Background()

	if err := a.dispatch(ctx, []string{"rules", "add", "-day", "15", "-main", "Income", "-sub", "Salary",
		"-currency", "SGD", "-amount", "4000", "-note", "pay"}); err != nil {
		t.Fatalf("rules add: %v", err)
	}
	rules := store.Rows(ports.RecurringSheet)
	added := rules[len(rules)-1]
	if added[1] != "Income" || added[8] != "New" || added[9] != "Active" {
		t.Errorf("added rule = %v", added)
	}

	if err := a.dispatch(ctx, []string{"rules", "status", "1", "Inactive"}); err != nil {
		t.Fatalf("rules status: %v", err)
	}
	if got := store.Rows(ports.RecurringSheet)[2][9]; got != "Inactive" {
		t.Errorf("status = %q", got)
	}

	out.Reset()
	if err := a.dispatch(ctx, []string{"rules"}); err != nil {
		t.Fatalf("rules list: %v", err)
	}
	for _, want := range []string{"settled", "pending", "Inactive"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("list missing %q:\n%s", want, out.String())
		}
	}

	if err := a.dispatch(ctx, []string{"rules", "delete", "0"}); err != nil {
		t.Fatalf("rules delete: %v", err)
	}
	if n := len(store.Rows(ports.RecurringSheet)); n != 3 {
		t.Errorf("rows after delete = %d, want 3", n)
	}
	if err := a.dispatch(ctx, []string{"rules", "delete", "x"}); err == nil {
		t.Error("expected error for bad ID")
	}
}

func TestDispatchSettings(t *testing.T) {
	a, store, out := testApp(t)
	ctx := context.Background()

	if err := a.dispatch(ctx, []string{"settings", "add-category", "Food", "Lunch", "Dinner"}); err != nil {
		t.Fatalf("add-category: %v", err)
	}
	if err := a.dispatch(ctx, []string{"settings", "set-default", "twd"}); err != nil {
		t.Fatalf("set-default: %v", err)
	}
	if got := store.Rows(ports.SettingsSheet)[1][4]; got != "TWD" {
		t.Errorf("Default_Currency cell = %q", got)
	}

	out.Reset()
	if err := a.dispatch(ctx, []string{"settings"}); err != nil {
		t.Fatalf("show: %v", err)
	}
	s := out.String()
	if !strings.Contains(s, "default currency: TWD") || !strings.Contains(s, "Food: Lunch, Dinner") {
		t.Errorf("settings output:\n%s", s)
	}
	if err := a.dispatch(ctx, []string{"settings", "add-currency", "DOLLAR"}); err == nil {
		t.Error("expected error for invalid currency")
	}
}

func TestDispatchRatesConvert(t *testing.T) {
	a, _, out := testApp(t)
	if err := a.dispatch(context.Background(), []string{"rates", "-convert", "100", "-from", "usd"}); err != nil {
		t.Fatalf("rates: %v", err)
	}
	if !strings.Contains(out.String(), "100 USD = 134.04 SGD") {
		t.Errorf("output = %q", out.String())
	}
}

func TestDispatchUsage(t *testing.T) {
	a, _, _ := testApp(t)
	ctx := context.Background()
	if err := a.dispatch(ctx, nil); !errors.Is(err, errUsage) {
		t.Errorf("no args error = %v", err)
	}
	if err := a.dispatch(ctx, []string{"frobnicate"}); !errors.Is(err, errUsage) {
		t.Errorf("unknown command error = %v", err)
	}
	if err := a.dispatch(ctx, []string{"watch"}); err == nil {
		t.Error("watch without AMQP_URL should fail")
	}
}
