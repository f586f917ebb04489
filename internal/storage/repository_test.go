package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	ports "sheetledger/internal/sheets"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepositoryRowStore(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.EnsureSheet(ctx, "Recurring", []string{"Day", "Note", "Last_Run_Month"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	// Second call must not add another header.
	if err := repo.EnsureSheet(ctx, "Recurring", []string{"Day", "Note", "Last_Run_Month"}); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	for _, row := range [][]string{{"5", "rent", "New"}, {"25", "salary", "New"}, {"1", "gym", "New"}} {
		if err := repo.Append(ctx, "Recurring", row); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := repo.UpdateCell(ctx, "Recurring", ports.PhysicalRow(1), 3, "2024-06"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.DeleteRow(ctx, "Recurring", ports.PhysicalRow(0)); err != nil {
		t.Fatalf("delete: %v", err)
	}

	tb, err := repo.Read(ctx, "Recurring")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(tb.Header, []string{"Day", "Note", "Last_Run_Month"}) {
		t.Fatalf("header = %v", tb.Header)
	}
	want := [][]string{{"25", "salary", "2024-06"}, {"1", "gym", "New"}}
	if !reflect.DeepEqual(tb.Rows, want) {
		t.Fatalf("rows = %v, want %v", tb.Rows, want)
	}
}

func TestRepositoryUpdateExtendsShortRow(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if err := repo.Rewrite(ctx, "Budget", [][]string{{"Month", "Income_Target"}, {"2024-06"}}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := repo.UpdateCell(ctx, "Budget", 2, 2, "3000"); err != nil {
		t.Fatalf("update: %v", err)
	}
	tb, _ := repo.Read(ctx, "Budget")
	if !reflect.DeepEqual(tb.Rows, [][]string{{"2024-06", "3000"}}) {
		t.Fatalf("rows = %v", tb.Rows)
	}
}

func TestRepositoryRewriteReplacesContent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	repo.Rewrite(ctx, "Settings", [][]string{{"Main_Category"}, {"Food"}, {"Rent"}})
	if err := repo.Rewrite(ctx, "Settings", [][]string{{"Main_Category"}, {"Travel"}}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	tb, _ := repo.Read(ctx, "Settings")
	if !reflect.DeepEqual(tb.Rows, [][]string{{"Travel"}}) {
		t.Fatalf("rewrite must replace, got %v", tb.Rows)
	}
}

func TestRepositoryErrors(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if _, err := repo.Read(ctx, "Nope"); !errors.Is(err, ports.ErrSheetNotFound) {
		t.Fatalf("expected ErrSheetNotFound, got %v", err)
	}
	if err := repo.Append(ctx, "Nope", []string{"x"}); !errors.Is(err, ports.ErrSheetNotFound) {
		t.Fatalf("expected ErrSheetNotFound, got %v", err)
	}
	repo.EnsureSheet(ctx, "Transactions", []string{"Date"})
	if err := repo.UpdateCell(ctx, "Transactions", 9, 1, "x"); !errors.Is(err, ports.ErrRowOutOfRange) {
		t.Fatalf("expected ErrRowOutOfRange, got %v", err)
	}
	if err := repo.DeleteRow(ctx, "Transactions", 0); !errors.Is(err, ports.ErrRowOutOfRange) {
		t.Fatalf("expected ErrRowOutOfRange, got %v", err)
	}
}
