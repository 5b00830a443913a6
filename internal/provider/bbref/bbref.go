// Package bbref builds Baseball-Reference profile links and scrapes birth
// dates from profile pages.
package bbref

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/albapepper/mlb-contract-value/internal/provider/web"
)

const profileBase = "https://www.baseball-reference.com/players"

// ProfileURL returns the profile page of a Baseball-Reference id
// ("sotoju01" -> .../players/s/sotoju01.shtml). ok is false for an empty id.
func ProfileURL(bbrefID string) (string, bool) {
	bbrefID = strings.TrimSpace(bbrefID)
	if bbrefID == "" {
		return "", false
	}
	return fmt.Sprintf("%s/%c/%s.shtml", profileBase, bbrefID[0], bbrefID), true
}

// ParseBirthDate reads span#necro-birth[data-birth] from a profile page.
func ParseBirthDate(doc *goquery.Document) (time.Time, bool) {
	raw, ok := doc.Find("span#necro-birth").First().Attr("data-birth")
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Scraper fetches profile pages.
type Scraper struct {
	client *web.Client
}

// NewScraper wraps a web client; the client's pacing sets the delay
// between profile requests.
func NewScraper(client *web.Client) *Scraper {
	return &Scraper{client: client}
}

// BirthDate fetches a profile page and returns the birth date on it. found
// is false when the page has none.
func (s *Scraper) BirthDate(ctx context.Context, profileURL string) (time.Time, bool, error) {
	doc, err := s.client.Document(ctx, profileURL)
	if err != nil {
		return time.Time{}, false, err
	}
	t, ok := ParseBirthDate(doc)
	return t, ok, nil
}
