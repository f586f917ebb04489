package backend

import (
	"context"
	"time"

	"sheetledger/internal/sheets"
	"sheetledger/internal/sheets/cached"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result is a ready-to-use row store. Store is the cached view every
// repository should share; Cleanup may be nil.
type Result struct {
	Store   *cached.Store
	Raw     sheets.RowStore
	Type    BackendType
	Cleanup CleanupFunc
}

// Close runs Cleanup when present.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type BackendType

	// Google Sheets
	Spreadsheet              string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenJSON     string

	// SQLite
	SQLiteDBPath string

	// Memory
	DataDirectory string

	// RowCacheTTL bounds how long reads are served from memory.
	RowCacheTTL time.Duration
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
