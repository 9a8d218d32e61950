package parser

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"dhc_scraper/models"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func fixturePages(t *testing.T, names ...string) []models.RawResultPage {
	t.Helper()
	pages := make([]models.RawResultPage, 0, len(names))
	for i, name := range names {
		pages = append(pages, models.RawResultPage{
			HTML:      loadFixture(t, name),
			PageIndex: i,
			HasNext:   i < len(names)-1,
		})
	}
	return pages
}

func TestParse_SinglePage(t *testing.T) {
	rec, err := Parse(fixturePages(t, "case_result_page1.html"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if len(rec.Parties) != 2 {
		t.Fatalf("expected 2 parties, got %d", len(rec.Parties))
	}
	if rec.Parties[0].Name != "RAJESH KUMAR" {
		t.Fatalf("expected cleaned petitioner name, got %q", rec.Parties[0].Name)
	}
	if rec.Parties[0].Role != "Petitioner" {
		t.Fatalf("expected Petitioner role, got %q", rec.Parties[0].Role)
	}
	if rec.Parties[1].Name != "UNION OF INDIA" {
		t.Fatalf("expected collapsed whitespace in name, got %q", rec.Parties[1].Name)
	}

	wantFiling := time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)
	if !rec.FilingDate.Equal(wantFiling) {
		t.Fatalf("expected filing date %s, got %s", wantFiling, rec.FilingDate)
	}
	if rec.NextHearingDate == nil {
		t.Fatalf("expected next hearing date")
	}
	if rec.NextHearingDate.Day() != 2 || rec.NextHearingDate.Month() != time.September {
		t.Fatalf("unexpected next hearing date %s", rec.NextHearingDate)
	}

	if len(rec.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(rec.Orders))
	}
	if rec.Orders[0].Title != "Notice issued to respondents" {
		t.Fatalf("unexpected first order title %q", rec.Orders[0].Title)
	}
	if rec.Orders[1].DocumentURL != "https://delhihighcourt.nic.in/orders/1234_1.pdf" {
		t.Fatalf("unexpected order URL %q", rec.Orders[1].DocumentURL)
	}
}

func TestParse_MergesPagesAndDedupesOrders(t *testing.T) {
	rec, err := Parse(fixturePages(t, "case_result_page1.html", "case_result_page2.html"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	// "Order on interim application" appears on both pages and must
	// survive exactly once.
	if len(rec.Orders) != 3 {
		t.Fatalf("expected 3 deduplicated orders, got %d", len(rec.Orders))
	}
	if rec.Orders[2].Title != "Final judgment" {
		t.Fatalf("expected final judgment last, got %q", rec.Orders[2].Title)
	}
	if len(rec.Parties) != 2 {
		t.Fatalf("expected parties extracted once, got %d", len(rec.Parties))
	}
}

func TestParse_MissingNextHearingIsNotAnError(t *testing.T) {
	rec, err := Parse(fixturePages(t, "case_result_minimal.html"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if rec.NextHearingDate != nil {
		t.Fatalf("expected nil next hearing, got %s", rec.NextHearingDate)
	}
	if len(rec.Orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(rec.Orders))
	}
	if rec.Orders[0].Date != nil {
		t.Fatalf("expected undated order, got %s", rec.Orders[0].Date)
	}
	wantFiling := time.Date(2019, 1, 5, 0, 0, 0, 0, time.UTC)
	if !rec.FilingDate.Equal(wantFiling) {
		t.Fatalf("expected long-form filing date parsed, got %s", rec.FilingDate)
	}
}

func TestParse_MissingPartiesFails(t *testing.T) {
	_, err := Parse(fixturePages(t, "case_result_missing_parties.html"))
	if err == nil {
		t.Fatalf("expected parse error")
	}
	var pErr *models.ParseError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected ParseError, got %T", err)
	}
	if pErr.Missing != "parties" {
		t.Fatalf("expected missing parties, got %q", pErr.Missing)
	}
}

func TestParse_Deterministic(t *testing.T) {
	pages := fixturePages(t, "case_result_page1.html", "case_result_page2.html")
	first, err := Parse(pages)
	if err != nil {
		t.Fatalf("first parse failed: %v", err)
	}
	second, err := Parse(pages)
	if err != nil {
		t.Fatalf("second parse failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical records from identical input")
	}
}

func TestParseDate_Layouts(t *testing.T) {
	cases := map[string]time.Time{
		"15/03/2023":     time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC),
		"15-03-2023":     time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC),
		"2 January 2006": time.Date(2006, 1, 2, 0, 0, 0, 0, time.UTC),
		"2023-03-15":     time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC),
	}
	for input, want := range cases {
		got := parseDate(input)
		if got == nil {
			t.Fatalf("failed to parse %q", input)
		}
		if !got.Equal(want) {
			t.Fatalf("parsed %q as %s, want %s", input, got, want)
		}
	}
	if parseDate("not a date") != nil {
		t.Fatalf("expected nil for garbage input")
	}
	if parseDate("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
