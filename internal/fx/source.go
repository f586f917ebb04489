package fx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"sheetledger/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// DefaultRatesURL is the Bank of Taiwan daily rate board.
	DefaultRatesURL = "https://rate.bot.com.tw/xrt?Lang=zh-TW"
	// ReferenceCurrency is the currency the bank page quotes against.
	ReferenceCurrency = "TWD"
)

var (
	ErrNoRates = errors.New("no exchange rates found")

	codePattern = regexp.MustCompile(`\(([A-Z]+)\)`)
)

// Source fetches a fresh set of rates.
type Source interface {
	Fetch(ctx context.Context) (map[string]decimal.Decimal, error)
}

// BankPageSource scrapes the first table of a published rate page. Columns
// are name, cash buy, cash sell, spot buy and spot sell; the spot-sell rate
// is used and the code is read from "(XXX)" in the name.
type BankPageSource struct {
	URL    string
	Client *http.Client
}

func NewBankPageSource(url string) *BankPageSource {
	if url == "" {
		url = DefaultRatesURL
	}
	return &BankPageSource{URL: url, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (s *BankPageSource) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("rates request: %w", err)
	}
	req.Header.Set("User-Agent", "sheetledger/1.0")
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch rates: unexpected status %d", resp.StatusCode)
	}
	return ParseRatePage(resp.Body)
}

// ParseRatePage extracts spot-sell rates from a rate page. Rows without a
// currency code or a numeric spot-sell cell are skipped. The reference
// currency is always present with rate 1.
func ParseRatePage(r io.Reader) (map[string]decimal.Decimal, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse rate page: %w", err)
	}
	table := findFirst(doc, atom.Table)
	if table == nil {
		return nil, ErrNoRates
	}

	rates := map[string]decimal.Decimal{}
	for _, cells := range tableRows(table) {
		if len(cells) < 5 {
			continue
		}
		m := codePattern.FindStringSubmatch(cells[0])
		if m == nil {
			continue
		}
		v, err := decimal.NewFromString(strings.TrimSpace(cells[4]))
		if err != nil {
			continue
		}
		rates[m[1]] = v
	}
	if len(rates) == 0 {
		return nil, ErrNoRates
	}
	rates[ReferenceCurrency] = decimal.NewFromInt(1)
	return rates, nil
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// tableRows returns the cell texts of every row of table, not descending
// into nested tables.
func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Table:
				continue
			case atom.Tr:
				var cells []string
				for td := c.FirstChild; td != nil; td = td.NextSibling {
					if td.Type == html.ElementNode && (td.DataAtom == atom.Td || td.DataAtom == atom.Th) {
						cells = append(cells, textOf(td))
					}
				}
				rows = append(rows, cells)
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// StaticSource serves a fixed set of rates.
type StaticSource map[string]decimal.Decimal

func (s StaticSource) Fetch(context.Context) (map[string]decimal.Decimal, error) {
	if len(s) == 0 {
		return nil, ErrNoRates
	}
	out := make(map[string]decimal.Decimal, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// ParseStaticRates reads "USD=31.5,SGD=23.4".
func ParseStaticRates(s string) (StaticSource, error) {
	out := StaticSource{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("static rate %q: expected CODE=RATE", part)
		}
		code = core.NormalizeCurrency(code)
		if err := core.ValidateCurrency(code); err != nil {
			return nil, fmt.Errorf("static rate %q: %w", part, err)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil || !v.IsPositive() {
			return nil, fmt.Errorf("static rate %q: invalid rate", part)
		}
		out[code] = v
	}
	return out, nil
}
