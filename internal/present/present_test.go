package present

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/IntelDash/internal/news"
	"github.com/TobiSchelling/IntelDash/internal/taxonomy"
)

func at(day int) *time.Time {
	t := time.Date(2024, 6, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func testTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.New(nil, nil, []taxonomy.Category{
		{Label: "Clinical Trial"},
		{Label: "Data/Publication"},
		{Label: "Funding"},
		{Label: "Upcoming Event"},
	})
	if err != nil {
		t.Fatalf("failed to build taxonomy: %v", err)
	}
	return tax
}

func testLayout(t *testing.T) *Layout {
	t.Helper()
	l, err := NewLayout([]Section{
		{Name: "R&D", Categories: []string{"Clinical Trial", "Data/Publication"}},
		{Name: "Corporate/Strategic", Categories: []string{"Funding"}},
	}, testTaxonomy(t))
	if err != nil {
		t.Fatalf("failed to build layout: %v", err)
	}
	return l
}

func TestNewLayoutAddsOtherSection(t *testing.T) {
	l := testLayout(t)
	sections := l.Sections()
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	if sections[2].Name != OtherSection {
		t.Errorf("expected last section %q, got %q", OtherSection, sections[2].Name)
	}
	want := []string{"Upcoming Event", taxonomy.OtherLabel}
	if !reflect.DeepEqual(sections[2].Categories, want) {
		t.Errorf("expected %v, got %v", want, sections[2].Categories)
	}
}

func TestNewLayoutRejectsBadConfig(t *testing.T) {
	tax := testTaxonomy(t)

	_, err := NewLayout([]Section{{Name: "R&D", Categories: []string{"Nope"}}}, tax)
	if !errors.Is(err, taxonomy.ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}

	_, err = NewLayout([]Section{
		{Name: "A", Categories: []string{"Funding"}},
		{Name: "B", Categories: []string{"Funding"}},
	}, tax)
	if err == nil {
		t.Error("expected error for a category in two sections")
	}

	if _, err = NewLayout([]Section{{Name: "A"}, {Name: "A"}}, tax); err == nil {
		t.Error("expected error for duplicate section names")
	}
}

func TestBuildRecordInSeveralCategories(t *testing.T) {
	l := testLayout(t)
	rec := news.Record{Title: "Phase 2 data", PublishedAt: at(3), Categories: taxonomy.Labels{"Clinical Trial", "Data/Publication"}}

	v := l.Build([]news.Record{rec})
	if v.Total != 1 {
		t.Errorf("expected total 1, got %d", v.Total)
	}
	rd := v.Sections[0]
	if rd.Name != "R&D" || len(rd.Categories) != 2 {
		t.Fatalf("expected R&D with 2 categories, got %+v", rd)
	}
	for _, c := range rd.Categories {
		if len(c.Records) != 1 || c.Records[0].Title != "Phase 2 data" {
			t.Errorf("%s: expected the record, got %+v", c.Label, c.Records)
		}
	}
	if rd.Count != 2 {
		t.Errorf("expected section count 2, got %d", rd.Count)
	}
}

func TestBuildSortsRecentFirstAndOmitsEmptyCategories(t *testing.T) {
	l := testLayout(t)
	records := []news.Record{
		{Title: "old", PublishedAt: at(1), Categories: taxonomy.Labels{"Funding"}},
		{Title: "new", PublishedAt: at(5), Categories: taxonomy.Labels{"Funding"}},
		{Title: "tie-a", PublishedAt: at(3), Categories: taxonomy.Labels{"Funding"}},
		{Title: "tie-b", PublishedAt: at(3), Categories: taxonomy.Labels{"Funding"}},
		{Title: "misc", PublishedAt: at(2), Categories: taxonomy.Labels{taxonomy.OtherLabel}},
	}

	v := l.Build(records)
	if v.Empty() {
		t.Fatal("expected non-empty view")
	}

	corp := v.Sections[1]
	if len(corp.Categories) != 1 {
		t.Fatalf("expected 1 category, got %d", len(corp.Categories))
	}
	var got []string
	for _, r := range corp.Categories[0].Records {
		got = append(got, r.Title)
	}
	want := []string{"new", "tie-a", "tie-b", "old"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if n := len(v.Sections[0].Categories); n != 0 {
		t.Errorf("expected empty categories omitted, got %d", n)
	}
	if title := v.Sections[2].Categories[0].Records[0].Title; title != "misc" {
		t.Errorf("expected misc in the other section, got %q", title)
	}
}

func TestBuildEmpty(t *testing.T) {
	v := testLayout(t).Build(nil)
	if !v.Empty() {
		t.Error("expected empty view")
	}
	if len(v.Sections) != 3 {
		t.Errorf("expected 3 sections, got %d", len(v.Sections))
	}
}

func TestSortRecentUndatedLast(t *testing.T) {
	records := []news.Record{{Title: "undated"}, {Title: "dated", PublishedAt: at(1)}}
	SortRecent(records)
	if records[0].Title != "dated" {
		t.Errorf("expected dated record first, got %q", records[0].Title)
	}
}

func TestMarkdown(t *testing.T) {
	l := testLayout(t)
	v := l.Build([]news.Record{
		{Source: "Hansa", Title: "Hansa [raises] funds", Link: "https://x/1", PublishedAt: at(3), Categories: taxonomy.Labels{"Funding"}},
	})

	md := Markdown(v, Meta{Title: "Intel", Scope: "Clients", Window: "Last 7 days", Failures: []string{"Astria"}})
	if !strings.HasPrefix(md, "# Intel\n") {
		t.Errorf("expected title heading, got:\n%s", md)
	}
	for _, want := range []string{
		"Scope: Clients",
		"could not fetch news for Astria",
		"## Corporate/Strategic",
		"### Funding (1)",
		`- [Hansa \[raises\] funds](<https://x/1>) · Hansa · 2024-06-03`,
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected %q in digest:\n%s", want, md)
		}
	}
	if strings.Contains(md, "## R&D") {
		t.Error("empty sections should be skipped")
	}
}

func TestMarkdownLinkSurvivesSpecialCharacters(t *testing.T) {
	l := testLayout(t)
	v := l.Build([]news.Record{{
		Source:      "Acme_Bio*",
		Title:       "Report",
		Link:        "https://news.example/a (b)?q=<x>",
		PublishedAt: at(3),
		Categories:  taxonomy.Labels{"Funding"},
	}})

	md := Markdown(v, Meta{})
	want := `- [Report](<https://news.example/a (b)?q=%3Cx%3E>) · Acme\_Bio\* · 2024-06-03`
	if !strings.Contains(md, want) {
		t.Fatalf("expected %q in digest:\n%s", want, md)
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		t.Fatalf("rendering digest: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, `href="https://news.example/a`) || !strings.Contains(html, "Report</a>") {
		t.Errorf("expected the whole link to render as one anchor, got:\n%s", html)
	}
	if !strings.Contains(html, "Acme_Bio*") {
		t.Errorf("expected the source rendered literally, got:\n%s", html)
	}
}

func TestMarkdownNoResults(t *testing.T) {
	md := Markdown(testLayout(t).Build(nil), Meta{})
	for _, want := range []string{"# News Digest", "No results for the selected filters."} {
		if !strings.Contains(md, want) {
			t.Errorf("expected %q in digest:\n%s", want, md)
		}
	}
}
