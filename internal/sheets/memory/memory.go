package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ports "sheetledger/internal/sheets"
)

// Hooks let tests fail individual writes. A non-nil error returned by a
// hook aborts the operation before the table changes.
type Hooks struct {
	Append     func(sheet string, row []string) error
	UpdateCell func(sheet string, row, col int, value string) error
}

type Store struct {
	mu     sync.Mutex
	tables map[string][][]string // physical rows, header first
	hooks  Hooks
	writes int
}

var _ ports.RowStore = (*Store)(nil)

func New() *Store {
	return &Store{tables: map[string][][]string{}}
}

// NewFromDir seeds one sheet per "<Sheet>.csv" file found in base. Missing
// or unreadable files are ignored.
func NewFromDir(base string) *Store {
	s := New()
	for _, name := range []string{ports.TransactionsSheet, ports.RecurringSheet, ports.SettingsSheet, ports.BudgetSheet} {
		rows := readCSV(filepath.Join(base, name+".csv"))
		if len(rows) > 0 {
			s.tables[name] = rows
		}
	}
	return s
}

// Seed replaces a sheet with a copy of rows (header first).
func (s *Store) Seed(sheet string, rows ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[sheet] = cloneRows(rows)
}

// Ensure creates sheet with header unless it already exists.
func (s *Store) Ensure(sheet string, header []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[sheet]; !ok {
		s.tables[sheet] = [][]string{append([]string(nil), header...)}
	}
}

// SetHooks installs failure hooks.
func (s *Store) SetHooks(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

// Rows returns a copy of the physical rows of a sheet.
func (s *Store) Rows(sheet string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRows(s.tables[sheet])
}

// Writes counts successful mutating calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) Read(_ context.Context, sheet string) (ports.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[sheet]
	if !ok {
		return ports.Table{}, fmt.Errorf("%w: %s", ports.ErrSheetNotFound, sheet)
	}
	return ports.TableFromValues(cloneRows(rows)), nil
}

func (s *Store) Append(_ context.Context, sheet string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hooks.Append != nil {
		if err := s.hooks.Append(sheet, row); err != nil {
			return err
		}
	}
	rows, ok := s.tables[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", ports.ErrSheetNotFound, sheet)
	}
	s.tables[sheet] = append(rows, append([]string(nil), row...))
	s.writes++
	return nil
}

func (s *Store) UpdateCell(_ context.Context, sheet string, row, col int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hooks.UpdateCell != nil {
		if err := s.hooks.UpdateCell(sheet, row, col, value); err != nil {
			return err
		}
	}
	rows, ok := s.tables[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", ports.ErrSheetNotFound, sheet)
	}
	if col < 1 {
		return fmt.Errorf("%w: col %d", ports.ErrInvalidLocation, col)
	}
	if row < 1 || row > len(rows) {
		return fmt.Errorf("%w: row %d of %d", ports.ErrRowOutOfRange, row, len(rows))
	}
	r := rows[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = value
	rows[row-1] = r
	s.writes++
	return nil
}

func (s *Store) DeleteRow(_ context.Context, sheet string, row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", ports.ErrSheetNotFound, sheet)
	}
	if row < 1 || row > len(rows) {
		return fmt.Errorf("%w: row %d of %d", ports.ErrRowOutOfRange, row, len(rows))
	}
	s.tables[sheet] = append(rows[:row-1:row-1], rows[row:]...)
	s.writes++
	return nil
}

func (s *Store) Rewrite(_ context.Context, sheet string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[sheet] = cloneRows(rows)
	s.writes++
	return nil
}

func readCSV(path string) [][]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	rows, err := r.ReadAll()
	if err != nil {
		return nil
	}
	for _, row := range rows {
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
	}
	return rows
}

func cloneRows(in [][]string) [][]string {
	if in == nil {
		return nil
	}
	out := make([][]string, len(in))
	for i, r := range in {
		out[i] = append([]string(nil), r...)
	}
	return out
}
