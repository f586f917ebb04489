package google

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	urlIDPattern  = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
	bareIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{25,}$`)
)

// SpreadsheetIDFromRef extracts a spreadsheet ID from a URL or accepts a
// bare ID. Anything else is treated as a spreadsheet name by the caller.
func SpreadsheetIDFromRef(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if m := urlIDPattern.FindStringSubmatch(ref); m != nil {
		return m[1], true
	}
	if bareIDPattern.MatchString(ref) {
		return ref, true
	}
	return "", false
}

// quoteSheet quotes a tab title for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// columnLetter converts a 1-based column index to its A1 letters.
func columnLetter(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// toCells sends every cell as text. Values are written RAW, so notes like
// "007" and amounts like "1.50" reach the sheet exactly as given.
func toCells(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
