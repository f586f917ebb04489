package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sheetledger/internal/sheets"
	"sheetledger/internal/sheets/cached"
	gsheet "sheetledger/internal/sheets/google"
	"sheetledger/internal/sheets/memory"
	"sheetledger/internal/storage"
)

// DefaultRowCacheTTL applies when the config leaves RowCacheTTL unset.
const DefaultRowCacheTTL = time.Minute

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the configured row store and wraps it in a read cache.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		raw     sheets.RowStore
		cleanup CleanupFunc
		err     error
	)
	switch config.Type {
	case SQLiteBackend:
		raw, cleanup, err = f.createSQLiteBackend(ctx, config)
	case SheetsBackend:
		raw, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		raw = f.createMemoryBackend(config)
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	ttl := config.RowCacheTTL
	if ttl <= 0 {
		ttl = DefaultRowCacheTTL
	}
	return &Result{
		Store:   cached.New(raw, ttl),
		Raw:     raw,
		Type:    config.Type,
		Cleanup: cleanup,
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (sheets.RowStore, CleanupFunc, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	for _, s := range sheets.AllSchemas() {
		if err := repo.EnsureSheet(ctx, s.Name, s.Header()); err != nil {
			_ = repo.Close()
			return nil, nil, fmt.Errorf("failed to prepare sheet %s: %w", s.Name, err)
		}
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, repo.Close, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (sheets.RowStore, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		Spreadsheet:        config.Spreadsheet,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		OAuthClientJSON:    config.GoogleOAuthClientJSON,
		OAuthClientFile:    config.GoogleOAuthClientFile,
		OAuthTokenJSON:     config.GoogleOAuthTokenJSON,
		OAuthTokenFile:     config.GoogleOAuthTokenFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", cli.SpreadsheetID())
	return cli, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) sheets.RowStore {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store := memory.NewFromDir(dataDir)
	for _, s := range sheets.AllSchemas() {
		store.Ensure(s.Name, s.Header())
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return store
}
