// Package spotrac fetches contract listing pages and parses their tables.
package spotrac

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/albapepper/mlb-contract-value/internal/extract"
	"github.com/albapepper/mlb-contract-value/internal/provider/web"
	"github.com/albapepper/mlb-contract-value/internal/record"
)

const baseURL = "https://www.spotrac.com/mlb"

// Source is one listing page that yields contracts of a single type.
type Source struct {
	Name string
	URL  string
	Type record.ContractType
}

// Sources returns the settled and extension listing pages for a season, in
// ingestion order.
func Sources(year int) []Source {
	ext := func(kind string) string {
		return fmt.Sprintf("%s/contracts/extensions/_/year/%d/type/%s/", baseURL, year, kind)
	}
	return []Source{
		{Name: "pre-arb", URL: fmt.Sprintf("%s/pre-arbitration/_/year/%d/", baseURL, year), Type: record.PreArb},
		{Name: "pre-arb-extension", URL: ext("pre-arbitration-extension"), Type: record.PreArb},
		{Name: "arb", URL: fmt.Sprintf("%s/arbitration/_/year/%d", baseURL, year), Type: record.Arb},
		{Name: "arb-extension", URL: ext("arbitration-extension"), Type: record.Arb},
		{Name: "free-agent", URL: fmt.Sprintf("%s/free-agents/_/year/%d/level/mlb", baseURL, year), Type: record.FreeAgent},
		{Name: "veteran-extension", URL: ext("extension"), Type: record.FreeAgent},
	}
}

// ParseTable reads the first table of a listing page. ok is false when the
// page has no table.
func ParseTable(doc *goquery.Document) (extract.Table, bool) {
	sel := doc.Find("table").First()
	if sel.Length() == 0 {
		return extract.Table{}, false
	}

	var t extract.Table
	sel.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		t.Header = append(t.Header, th.Text())
	})
	sel.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		var row []extract.Cell
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			href, _ := td.Find("a").First().Attr("href")
			row = append(row, extract.Cell{
				Text: strings.TrimSpace(td.Text()),
				Href: strings.TrimSpace(href),
			})
		})
		if len(row) > 0 {
			t.Rows = append(t.Rows, row)
		}
	})
	return t, true
}

// Fetcher retrieves listing tables over HTTP.
type Fetcher struct {
	client *web.Client
}

// NewFetcher wraps a web client.
func NewFetcher(client *web.Client) *Fetcher {
	return &Fetcher{client: client}
}

// FetchTable downloads a listing page and parses its table. A page without a
// table yields an empty table, not an error.
func (f *Fetcher) FetchTable(ctx context.Context, url string) (extract.Table, error) {
	doc, err := f.client.Document(ctx, url)
	if err != nil {
		return extract.Table{}, err
	}
	t, _ := ParseTable(doc)
	return t, nil
}
