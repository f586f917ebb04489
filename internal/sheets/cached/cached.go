// Package cached wraps a RowStore with a read cache. Any write clears the
// whole cache rather than the touched sheet: reads are cheap to redo and a
// sheet can feed several views.
package cached

import (
	"context"
	"log/slog"
	"time"

	"sheetledger/internal/cache"
	ports "sheetledger/internal/sheets"
)

type Store struct {
	next  ports.RowStore
	reads *cache.LRUCache[ports.Table]
}

var (
	_ ports.RowStore    = (*Store)(nil)
	_ ports.Invalidator = (*Store)(nil)
)

// New caches reads from next for ttl.
func New(next ports.RowStore, ttl time.Duration) *Store {
	return &Store{next: next, reads: cache.NewLRUCache[ports.Table](32, ttl)}
}

// Cache exposes the underlying cache so it can be registered with a manager.
func (s *Store) Cache() *cache.LRUCache[ports.Table] { return s.reads }

func (s *Store) Read(ctx context.Context, sheet string) (ports.Table, error) {
	if t, ok := s.reads.Get(sheet); ok {
		return t, nil
	}
	t, err := s.next.Read(ctx, sheet)
	if err != nil {
		return ports.Table{}, err
	}
	s.reads.Set(sheet, t)
	return t, nil
}

func (s *Store) Append(ctx context.Context, sheet string, row []string) error {
	defer s.Invalidate()
	return s.next.Append(ctx, sheet, row)
}

func (s *Store) UpdateCell(ctx context.Context, sheet string, row, col int, value string) error {
	defer s.Invalidate()
	return s.next.UpdateCell(ctx, sheet, row, col, value)
}

func (s *Store) DeleteRow(ctx context.Context, sheet string, row int) error {
	defer s.Invalidate()
	return s.next.DeleteRow(ctx, sheet, row)
}

func (s *Store) Rewrite(ctx context.Context, sheet string, rows [][]string) error {
	defer s.Invalidate()
	return s.next.Rewrite(ctx, sheet, rows)
}

// Invalidate clears every cached read.
func (s *Store) Invalidate() {
	if n := s.reads.Size(); n > 0 {
		slog.Debug("Row cache cleared", "entries", n)
	}
	s.reads.Purge()
}
