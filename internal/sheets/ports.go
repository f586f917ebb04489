package sheets

import (
	"context"
	"errors"
)

// Ports for outbound adapters.
type (
	// RowStore is a spreadsheet-like store of named tables. Coordinates are
	// 1-based and physical: row 1 is the header row, so data row i lives at
	// PhysicalRow(i).
	RowStore interface {
		Read(ctx context.Context, sheet string) (Table, error)
		Append(ctx context.Context, sheet string, row []string) error
		UpdateCell(ctx context.Context, sheet string, row, col int, value string) error
		DeleteRow(ctx context.Context, sheet string, row int) error
		// Rewrite clears the sheet and writes rows, header included.
		Rewrite(ctx context.Context, sheet string, rows [][]string) error
	}

	// Invalidator is implemented by stores that keep a read cache.
	Invalidator interface {
		Invalidate()
	}
)

var (
	ErrSheetNotFound   = errors.New("sheet not found")
	ErrRowOutOfRange   = errors.New("row out of range")
	ErrNotInitialized  = errors.New("sheets service not initialized")
	ErrInvalidLocation = errors.New("invalid cell location")
)

// Table is a sheet snapshot: the header row followed by the data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// PhysicalRow maps a 0-based data row index to its 1-based sheet row.
func PhysicalRow(dataIndex int) int {
	return dataIndex + 2
}

// Invalidate drops cached reads when the store supports it.
func Invalidate(s RowStore) {
	if inv, ok := s.(Invalidator); ok {
		inv.Invalidate()
	}
}

// TableFromValues splits raw values into header and data rows. Trailing
// cells are kept as-is; ragged rows are normalized later by a Schema.
func TableFromValues(values [][]string) Table {
	if len(values) == 0 {
		return Table{}
	}
	return Table{Header: values[0], Rows: values[1:]}
}
