package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"

	ports "sheetledger/internal/sheets"

	goption "google.golang.org/api/option"
)

const testSpreadsheetID = "1testSpreadsheetIdentifier_abcdefghij"

// fakeAPI emulates the subset of the Sheets v4 and Drive v3 REST APIs the
// client uses.
type fakeAPI struct {
	mu       sync.Mutex
	sheets   map[string][][]string
	ids      map[string]int64
	files    []map[string]string
	lastQ    string
	requests []string
	raw      [][]any // cells of the last append or update, as decoded JSON
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		sheets: map[string][][]string{},
		ids:    map[string]int64{},
	}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if r.URL.Path == "/files" {
		f.lastQ = r.URL.Query().Get("q")
		writeJSON(w, map[string]any{"files": f.files})
		return
	}

	prefix := "/v4/spreadsheets/" + testSpreadsheetID
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	switch {
	case rest == "" && r.Method == http.MethodGet:
		var sheets []map[string]any
		for title, id := range f.ids {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": title, "sheetId": id}})
		}
		writeJSON(w, map[string]any{"sheets": sheets})
	case rest == ":batchUpdate":
		f.batchUpdate(w, r)
	case strings.HasPrefix(rest, "/values/"):
		f.values(w, r, strings.TrimPrefix(rest, "/values/"))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) values(w http.ResponseWriter, r *http.Request, rng string) {
	action := ""
	if i := strings.LastIndex(rng, ":"); i >= 0 {
		rng, action = rng[:i], rng[i+1:]
	}
	sheet, cell := splitRange(rng)
	rows, ok := f.sheets[sheet]
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]any{"error": map[string]any{"code": 400, "message": "Unable to parse range: " + rng}})
		return
	}

	switch {
	case r.Method == http.MethodGet:
		writeJSON(w, map[string]any{"range": rng, "values": rows})
	case action == "append":
		vals := f.decodeValues(r)
		f.sheets[sheet] = append(rows, vals...)
		writeJSON(w, map[string]any{})
	case action == "clear":
		f.sheets[sheet] = nil
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodPut:
		vals := f.decodeValues(r)
		col, row := parseCell(cell)
		for i, v := range vals {
			for j, s := range v {
				rows = setCell(rows, row+i, col+j, s)
			}
		}
		f.sheets[sheet] = rows
		writeJSON(w, map[string]any{})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) batchUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Requests []struct {
			DeleteDimension struct {
				Range struct {
					SheetID    int64 `json:"sheetId"`
					StartIndex int   `json:"startIndex"`
					EndIndex   int   `json:"endIndex"`
				} `json:"range"`
			} `json:"deleteDimension"`
		} `json:"requests"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	for _, rq := range req.Requests {
		dr := rq.DeleteDimension.Range
		for title, id := range f.ids {
			if id != dr.SheetID {
				continue
			}
			rows := f.sheets[title]
			f.sheets[title] = append(rows[:dr.StartIndex:dr.StartIndex], rows[dr.EndIndex:]...)
		}
	}
	writeJSON(w, map[string]any{})
}

func splitRange(rng string) (sheet, cell string) {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		sheet, cell = rng[:i], rng[i+1:]
	} else {
		sheet = rng
	}
	sheet = strings.ReplaceAll(strings.Trim(sheet, "'"), "''", "'")
	return sheet, cell
}

func parseCell(cell string) (col, row int) {
	i := 0
	for i < len(cell) && cell[i] >= 'A' && cell[i] <= 'Z' {
		col = col*26 + int(cell[i]-'A'+1)
		i++
	}
	row, _ = strconv.Atoi(cell[i:])
	return col, row
}

func setCell(rows [][]string, row, col int, v string) [][]string {
	for len(rows) < row {
		rows = append(rows, nil)
	}
	r := rows[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = v
	rows[row-1] = r
	return rows
}

func (f *fakeAPI) decodeValues(r *http.Request) [][]string {
	var vr struct {
		Values [][]any `json:"values"`
	}
	_ = json.NewDecoder(r.Body).Decode(&vr)
	f.raw = vr.Values
	out := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		out[i] = toStrings(row)
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, api *fakeAPI, ref, name string) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := NewWithOptions(context.Background(), ref, name,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestClientReadAppendUpdate(t *testing.T) {
	api := newFakeAPI()
	api.sheets["Recurring"] = [][]string{
		{"Day", "Type", "Main_Category", "Sub_Category", "Payment_Method", "Currency", "Amount_Original", "Note", "Last_Run_Month", "Status"},
		{"5", "Expense", "Housing", "Rent", "Bank", "SGD", "1500", "rent", "2024-05", "Active"},
	}
	c := newTestClient(t, api, testSpreadsheetID, "")
	ctx := context.Background()

	tb, err := c.Read(ctx, "Recurring")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(tb.Header) != 10 || len(tb.Rows) != 1 || tb.Rows[0][8] != "2024-05" {
		t.Fatalf("unexpected table: %+v", tb)
	}

	if err := c.UpdateCell(ctx, "Recurring", ports.PhysicalRow(0), 9, "2024-06"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.Append(ctx, "Recurring", []string{"25", "Income", "Income", "Salary", "Bank", "SGD", "5000", "pay", "New", "Active"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows := api.sheets["Recurring"]
	if rows[1][8] != "2024-06" {
		t.Fatalf("Last_Run_Month not updated: %v", rows[1])
	}
	if len(rows) != 3 || rows[2][6] != "5000" || rows[2][8] != "New" {
		t.Fatalf("append not applied: %v", rows)
	}
}

func TestClientWritesCellsAsText(t *testing.T) {
	api := newFakeAPI()
	api.sheets["Transactions"] = [][]string{{"Date", "Type", "Main_Category", "Sub_Category", "Payment_Method", "Currency", "Amount_Original", "Amount_SGD", "Note", "CreatedAt"}}
	c := newTestClient(t, api, testSpreadsheetID, "")
	ctx := context.Background()

	row := []string{"2024-06-05", "Expense", "Food", "0800", "007", "SGD", "1.50", "1.50", "007", "2024-06-05 08:00:00"}
	if err := c.Append(ctx, "Transactions", row); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(api.raw) != 1 || len(api.raw[0]) != len(row) {
		t.Fatalf("unexpected request values: %#v", api.raw)
	}
	for i, v := range api.raw[0] {
		if s, ok := v.(string); !ok || s != row[i] {
			t.Errorf("column %d sent as %#v, want string %q", i+1, v, row[i])
		}
	}

	if err := c.UpdateCell(ctx, "Transactions", ports.PhysicalRow(0), 9, "0042"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if s, ok := api.raw[0][0].(string); !ok || s != "0042" {
		t.Errorf("updated cell sent as %#v, want string \"0042\"", api.raw[0][0])
	}
	if got := api.sheets["Transactions"][1][8]; got != "0042" {
		t.Errorf("stored note = %q", got)
	}
}

func TestClientDeleteRowAndRewrite(t *testing.T) {
	api := newFakeAPI()
	api.sheets["Recurring"] = [][]string{{"Day"}, {"1"}, {"2"}, {"3"}}
	api.ids["Recurring"] = 0
	api.sheets["Settings"] = [][]string{{"Main_Category"}, {"Old"}}
	api.ids["Settings"] = 42
	c := newTestClient(t, api, testSpreadsheetID, "")
	ctx := context.Background()

	if err := c.DeleteRow(ctx, "Recurring", ports.PhysicalRow(1)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	want := [][]string{{"Day"}, {"1"}, {"3"}}
	if !reflect.DeepEqual(api.sheets["Recurring"], want) {
		t.Fatalf("rows after delete = %v, want %v", api.sheets["Recurring"], want)
	}

	if err := c.Rewrite(ctx, "Settings", [][]string{{"Main_Category", "Sub_Category"}, {"Food", "Lunch"}}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	want = [][]string{{"Main_Category", "Sub_Category"}, {"Food", "Lunch"}}
	if !reflect.DeepEqual(api.sheets["Settings"], want) {
		t.Fatalf("rows after rewrite = %v, want %v", api.sheets["Settings"], want)
	}

	if err := c.DeleteRow(ctx, "Unknown", 2); !errors.Is(err, ports.ErrSheetNotFound) {
		t.Fatalf("expected ErrSheetNotFound, got %v", err)
	}
}

func TestClientMissingSheet(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api, testSpreadsheetID, "")
	if _, err := c.Read(context.Background(), "Budget"); !errors.Is(err, ports.ErrSheetNotFound) {
		t.Fatalf("expected ErrSheetNotFound, got %v", err)
	}
}

func TestNewWithOptionsResolvesName(t *testing.T) {
	api := newFakeAPI()
	api.files = []map[string]string{{"id": testSpreadsheetID, "name": "My_Expense_Tracker"}}
	c := newTestClient(t, api, "", "")
	if c.SpreadsheetID() != testSpreadsheetID {
		t.Fatalf("got id %q", c.SpreadsheetID())
	}
	if !strings.Contains(api.lastQ, "name = 'My_Expense_Tracker'") {
		t.Fatalf("unexpected drive query: %q", api.lastQ)
	}
}

func TestNewWithOptionsNameNotFound(t *testing.T) {
	api := newFakeAPI()
	srv := httptest.NewServer(api)
	defer srv.Close()
	_, err := NewWithOptions(context.Background(), "Budget 2024", "",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication(),
	)
	if !errors.Is(err, ports.ErrSheetNotFound) {
		t.Fatalf("expected ErrSheetNotFound, got %v", err)
	}
	if !strings.Contains(fmt.Sprint(err), "Budget 2024") {
		t.Fatalf("error should name the spreadsheet: %v", err)
	}
}

func TestNewMissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{Spreadsheet: testSpreadsheetID})
	if err == nil || !strings.Contains(err.Error(), "missing Google credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestNewInvalidOAuthClient(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{
		Spreadsheet:     testSpreadsheetID,
		OAuthClientJSON: "invalid-json",
		OAuthTokenJSON:  `{"access_token":"test"}`,
	})
	if err == nil || !strings.Contains(err.Error(), "oauth config") {
		t.Fatalf("expected oauth config error, got %v", err)
	}
}
