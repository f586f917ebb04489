package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	ports "sheetledger/internal/sheets"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSpreadsheetName is looked up through Drive when no ID is given.
const DefaultSpreadsheetName = "My_Expense_Tracker"

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// Config selects the spreadsheet and the credentials used to reach it.
type Config struct {
	// Spreadsheet is an ID, a full spreadsheet URL, or empty to search by Name.
	Spreadsheet string
	Name        string

	ServiceAccountJSON string
	ServiceAccountFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

// Client is a RowStore backed by one Google spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// Ensure interface conformance
var _ ports.RowStore = (*Client)(nil)

// New authenticates with the configured credentials and resolves the
// spreadsheet reference.
func New(ctx context.Context, cfg Config) (*Client, error) {
	ts, err := tokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	base := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return NewWithOptions(ctx, cfg.Spreadsheet, cfg.Name, goption.WithHTTPClient(oauth2.NewClient(base, ts)))
}

// NewWithOptions builds a client from explicit API options. A reference
// that is neither an ID nor a URL is resolved by name through Drive.
func NewWithOptions(ctx context.Context, ref, name string, opts ...goption.ClientOption) (*Client, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	id, ok := SpreadsheetIDFromRef(ref)
	if !ok {
		if name == "" {
			name = strings.TrimSpace(ref)
		}
		if name == "" {
			name = DefaultSpreadsheetName
		}
		drv, err := gdrive.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create drive service: %w", err)
		}
		id, err = findSpreadsheetByName(ctx, drv, name)
		if err != nil {
			return nil, err
		}
	}

	slog.InfoContext(ctx, "Google Sheets client ready", "spreadsheet_id", id)
	return &Client{svc: svc, spreadsheetID: id, sheetIDs: map[string]int64{}}, nil
}

// SpreadsheetID returns the resolved spreadsheet ID.
func (c *Client) SpreadsheetID() string { return c.spreadsheetID }

// tokenSource prefers a service account and falls back to an OAuth client
// with a stored token (see cmd/oauth-init).
func tokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	scopes := []string{gsheet.SpreadsheetsScope, gdrive.DriveMetadataReadonlyScope}

	saJSON, err := inlineOrFile(cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	if saJSON == nil {
		if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" && cfg.OAuthClientJSON == "" && cfg.OAuthClientFile == "" {
			if saJSON, err = os.ReadFile(path); err != nil {
				return nil, fmt.Errorf("read service account file: %w", err)
			}
		}
	}
	if saJSON != nil {
		slog.InfoContext(ctx, "Using service account credentials", "credentials_size", len(saJSON))
		creds, err := goauth.CredentialsFromJSON(ctx, saJSON, scopes...)
		if err != nil {
			return nil, fmt.Errorf("service account credentials: %w", err)
		}
		return creds.TokenSource, nil
	}

	clientJSON, err := inlineOrFile(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	tokenJSON, err := inlineOrFile(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	if clientJSON == nil || tokenJSON == nil {
		return nil, errors.New("missing Google credentials (set a service account or an OAuth client and token)")
	}
	oc, err := goauth.ConfigFromJSON(clientJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	slog.InfoContext(ctx, "Using OAuth token credentials", "token_expiry", tok.Expiry)
	return oc.TokenSource(ctx, &tok), nil
}

func inlineOrFile(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if p := strings.TrimSpace(path); p != "" {
		return os.ReadFile(p)
	}
	return nil, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Google APIs with
// connection pooling and timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func findSpreadsheetByName(ctx context.Context, drv *gdrive.Service, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(name, "'", `\'`), spreadsheetMimeType)
	res, err := drv.Files.List().Q(q).Fields("files(id, name)").PageSize(10).
		SupportsAllDrives(true).IncludeItemsFromAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("search spreadsheet %q: %w", name, err)
	}
	if len(res.Files) == 0 {
		return "", fmt.Errorf("spreadsheet %q: %w", name, ports.ErrSheetNotFound)
	}
	if len(res.Files) > 1 {
		slog.WarnContext(ctx, "Several spreadsheets share the name, using the first", "name", name, "matches", len(res.Files))
	}
	return res.Files[0].Id, nil
}

func (c *Client) Read(ctx context.Context, sheet string) (ports.Table, error) {
	if c.svc == nil {
		return ports.Table{}, ports.ErrNotInitialized
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, quoteSheet(sheet)).
		ValueRenderOption("FORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return ports.Table{}, c.wrap("read", sheet, err)
	}
	values := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		values[i] = toStrings(row)
	}
	return ports.TableFromValues(values), nil
}

func (c *Client) Append(ctx context.Context, sheet string, row []string) error {
	if c.svc == nil {
		return ports.ErrNotInitialized
	}
	vr := &gsheet.ValueRange{Values: [][]any{toCells(row)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, quoteSheet(sheet)+"!A1", vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return c.wrap("append", sheet, err)
	}
	return nil
}

func (c *Client) UpdateCell(ctx context.Context, sheet string, row, col int, value string) error {
	if c.svc == nil {
		return ports.ErrNotInitialized
	}
	if row < 1 || col < 1 {
		return fmt.Errorf("%w: row %d col %d", ports.ErrInvalidLocation, row, col)
	}
	rng := fmt.Sprintf("%s!%s%d", quoteSheet(sheet), columnLetter(col), row)
	vr := &gsheet.ValueRange{Values: [][]any{{value}}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return c.wrap("update "+rng, sheet, err)
	}
	return nil
}

func (c *Client) DeleteRow(ctx context.Context, sheet string, row int) error {
	if c.svc == nil {
		return ports.ErrNotInitialized
	}
	if row < 1 {
		return fmt.Errorf("%w: row %d", ports.ErrRowOutOfRange, row)
	}
	sheetID, err := c.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:         sheetID,
			Dimension:       "ROWS",
			StartIndex:      int64(row - 1),
			EndIndex:        int64(row),
			ForceSendFields: []string{"SheetId", "StartIndex"},
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return c.wrap("delete row", sheet, err)
	}
	return nil
}

func (c *Client) Rewrite(ctx context.Context, sheet string, rows [][]string) error {
	if c.svc == nil {
		return ports.ErrNotInitialized
	}
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, quoteSheet(sheet), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return c.wrap("clear", sheet, err)
	}
	if len(rows) == 0 {
		return nil
	}
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = toCells(r)
	}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, quoteSheet(sheet)+"!A1", &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return c.wrap("rewrite", sheet, err)
	}
	return nil
}

// sheetID resolves a tab title to its numeric id, caching the result.
func (c *Client) sheetID(ctx context.Context, sheet string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[sheet]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, c.wrap("get spreadsheet", sheet, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	id, ok = c.sheetIDs[sheet]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ports.ErrSheetNotFound, sheet)
	}
	return id, nil
}

// wrap maps an unknown-range API error to ErrSheetNotFound.
func (c *Client) wrap(op, sheet string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range") {
		return fmt.Errorf("%s %s: %w", op, sheet, ports.ErrSheetNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, sheet, err)
}
