package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	ports "sheetledger/internal/sheets"

	_ "modernc.org/sqlite"
)

// SQLiteRepository keeps sheets in a local SQLite file so the ledger can run
// without a spreadsheet. Each sheet is an ordered list of JSON-encoded rows;
// a row's position is its ordinal by insertion id, header first.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.RowStore = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite would otherwise answer SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// EnsureSheet creates sheet with a header row unless it already exists.
func (r *SQLiteRepository) EnsureSheet(ctx context.Context, sheet string, header []string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO sheets(name) VALUES (?)`, sheet)
		if err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		slog.InfoContext(ctx, "Sheet created in SQLite", "sheet", sheet)
		return insertRow(ctx, tx, sheet, header)
	})
}

func (r *SQLiteRepository) Read(ctx context.Context, sheet string) (ports.Table, error) {
	if err := r.requireSheet(ctx, r.db, sheet); err != nil {
		return ports.Table{}, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY id`, sheet)
	if err != nil {
		return ports.Table{}, fmt.Errorf("read %s: %w", sheet, err)
	}
	defer rows.Close()

	var values [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return ports.Table{}, fmt.Errorf("scan %s: %w", sheet, err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return ports.Table{}, fmt.Errorf("decode row of %s: %w", sheet, err)
		}
		values = append(values, cells)
	}
	if err := rows.Err(); err != nil {
		return ports.Table{}, fmt.Errorf("read %s: %w", sheet, err)
	}
	return ports.TableFromValues(values), nil
}

func (r *SQLiteRepository) Append(ctx context.Context, sheet string, row []string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.requireSheet(ctx, tx, sheet); err != nil {
			return err
		}
		return insertRow(ctx, tx, sheet, row)
	})
}

func (r *SQLiteRepository) UpdateCell(ctx context.Context, sheet string, row, col int, value string) error {
	if col < 1 {
		return fmt.Errorf("%w: col %d", ports.ErrInvalidLocation, col)
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		id, cells, err := rowAt(ctx, tx, sheet, row)
		if err != nil {
			return err
		}
		for len(cells) < col {
			cells = append(cells, "")
		}
		cells[col-1] = value
		raw, err := json.Marshal(cells)
		if err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sheet_rows SET cells = ? WHERE id = ?`, string(raw), id); err != nil {
			return fmt.Errorf("update %s row %d: %w", sheet, row, err)
		}
		return nil
	})
}

func (r *SQLiteRepository) DeleteRow(ctx context.Context, sheet string, row int) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		id, _, err := rowAt(ctx, tx, sheet, row)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete %s row %d: %w", sheet, row, err)
		}
		return nil
	})
}

func (r *SQLiteRepository) Rewrite(ctx context.Context, sheet string, rows [][]string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO sheets(name) VALUES (?)`, sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet = ?`, sheet); err != nil {
			return fmt.Errorf("clear %s: %w", sheet, err)
		}
		for _, row := range rows {
			if err := insertRow(ctx, tx, sheet, row); err != nil {
				return err
			}
		}
		return nil
	})
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) requireSheet(ctx context.Context, q querier, sheet string) error {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sheets WHERE name = ?`, sheet).Scan(&n); err != nil {
		return fmt.Errorf("lookup sheet %s: %w", sheet, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ports.ErrSheetNotFound, sheet)
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// rowAt finds the physical row (1-based, header included) of a sheet.
func rowAt(ctx context.Context, tx *sql.Tx, sheet string, row int) (int64, []string, error) {
	if row < 1 {
		return 0, nil, fmt.Errorf("%w: row %d", ports.ErrRowOutOfRange, row)
	}
	var (
		id  int64
		raw string
	)
	err := tx.QueryRowContext(ctx,
		`SELECT id, cells FROM sheet_rows WHERE sheet = ? ORDER BY id LIMIT 1 OFFSET ?`, sheet, row-1,
	).Scan(&id, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("%w: %s row %d", ports.ErrRowOutOfRange, sheet, row)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("locate %s row %d: %w", sheet, row, err)
	}
	var cells []string
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return 0, nil, fmt.Errorf("decode row of %s: %w", sheet, err)
	}
	return id, cells, nil
}

func insertRow(ctx context.Context, tx *sql.Tx, sheet string, row []string) error {
	if row == nil {
		row = []string{}
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO sheet_rows(sheet, cells) VALUES (?, ?)`, sheet, string(raw)); err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	return nil
}
