// Package parser turns raw result pages into a CaseRecord. All
// knowledge of the portal's markup lives here, behind the stable
// CaseRecord contract: a layout change means replacing this package,
// not its callers.
package parser

import (
	"bytes"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"dhc_scraper/models"
)

var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006-01-02",
}

// Parse merges the paginated result pages into one CaseRecord. Orders
// duplicated across pages are dropped; missing next-hearing date is
// nil, not an error. Only absent mandatory fields (parties, filing
// date) fail with ParseError.
func Parse(pages []models.RawResultPage) (*models.CaseRecord, error) {
	rec := &models.CaseRecord{}
	seen := make(map[string]bool)

	for _, page := range pages {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
		if err != nil {
			return nil, &models.ParseError{Missing: "parseable html"}
		}

		if len(rec.Parties) == 0 {
			rec.Parties = extractParties(doc)
		}
		if rec.FilingDate.IsZero() {
			if d := parseDate(extractText(doc, ".case-dates .filing-date")); d != nil {
				rec.FilingDate = *d
			}
		}
		if rec.NextHearingDate == nil {
			rec.NextHearingDate = parseDate(extractText(doc, ".case-dates .next-hearing"))
		}

		for _, order := range extractOrders(doc) {
			key := dedupeKey(order)
			if seen[key] {
				continue
			}
			seen[key] = true
			rec.Orders = append(rec.Orders, order)
		}
	}

	if len(rec.Parties) == 0 {
		return nil, &models.ParseError{Missing: "parties"}
	}
	if rec.FilingDate.IsZero() {
		return nil, &models.ParseError{Missing: "filing date"}
	}

	return rec, nil
}

func extractParties(doc *goquery.Document) []models.Party {
	var parties []models.Party
	doc.Find(".parties-info .party").Each(func(i int, s *goquery.Selection) {
		name := cleanText(s.Find(".party-name").Text())
		role := cleanText(s.Find(".party-type").Text())
		if name == "" {
			return
		}
		parties = append(parties, models.Party{Name: name, Role: role})
	})
	return parties
}

func extractOrders(doc *goquery.Document) []models.Order {
	var orders []models.Order
	doc.Find(".orders-section .order-item").Each(func(i int, s *goquery.Selection) {
		title := cleanText(s.Find(".order-title").Text())
		if title == "" {
			return
		}
		order := models.Order{
			Title: title,
			Date:  parseDate(cleanText(s.Find(".order-date").Text())),
		}
		if href, ok := s.Find("a.order-link").Attr("href"); ok {
			order.DocumentURL = strings.TrimSpace(href)
		}
		orders = append(orders, order)
	})
	return orders
}

func dedupeKey(o models.Order) string {
	date := ""
	if o.Date != nil {
		date = o.Date.Format("2006-01-02")
	}
	return o.Title + "|" + date + "|" + o.DocumentURL
}

func extractText(doc *goquery.Document, selector string) string {
	return cleanText(doc.Find(selector).First().Text())
}

// cleanText collapses whitespace runs and non-breaking spaces the
// portal sprinkles through its tables.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return &d
		}
	}
	return nil
}
