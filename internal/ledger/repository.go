package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"sheetledger/internal/core"
	ports "sheetledger/internal/sheets"
)

// Repository is the Transactions sheet accessor. The ledger is append-only.
type Repository struct {
	store ports.RowStore
}

func NewRepository(store ports.RowStore) *Repository {
	return &Repository{store: store}
}

// Append validates tx and writes it as a new row.
func (r *Repository) Append(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	if err := r.store.Append(ctx, ports.TransactionsSheet, EncodeRow(tx)); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction appended",
		"date", tx.Date.Format(DateLayout),
		"type", tx.Type,
		"main_category", tx.MainCategory,
		"amount_home", tx.AmountHome.String())
	return nil
}

// List returns every transaction row. Malformed rows come back with
// Valid set to false.
func (r *Repository) List(ctx context.Context) ([]Entry, error) {
	t, err := r.store.Read(ctx, ports.TransactionsSheet)
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	recs := ports.TransactionsSchema.Normalize(t)
	out := make([]Entry, 0, len(recs))
	for i, rec := range recs {
		out = append(out, DecodeRow(i, rec))
	}
	return out, nil
}
