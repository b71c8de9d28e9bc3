package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const twoItemFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>"Hansa Biopharma" - Google News</title>
  <item>
    <title>Hansa Biopharma gets FDA approval</title>
    <link>https://example.com/approval</link>
    <description>&lt;a href="https://example.com/approval"&gt;Hansa Biopharma gets FDA approval&lt;/a&gt; &lt;font color="#6f6f6f"&gt;Reuters&lt;/font&gt;</description>
    <pubDate>Mon, 03 Jun 2024 10:15:00 GMT</pubDate>
  </item>
  <item>
    <title>Hansa Biopharma appoints new CFO</title>
    <link>https://example.com/cfo</link>
  </item>
</channel>
</rss>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Nothing</title></channel></rss>`

func TestSearchURL(t *testing.T) {
	c := NewClient(Options{Endpoint: "https://news.example.com/rss/search"})
	got := c.SearchURL("Cognito Therapeutics")
	want := "https://news.example.com/rss/search?q=Cognito+Therapeutics"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSearchURLEscapesAndParams(t *testing.T) {
	c := NewClient(Options{
		Endpoint: "https://news.example.com/rss/search",
		Params:   map[string]string{"hl": "en-US", "gl": "US", "q": "ignored"},
	})
	got := c.SearchURL("AT&T Inc")
	want := "https://news.example.com/rss/search?q=AT%26T+Inc&gl=US&hl=en-US"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSearchURLDefaultEndpoint(t *testing.T) {
	c := NewClient(Options{})
	if !strings.HasPrefix(c.SearchURL("x"), DefaultEndpoint+"?q=") {
		t.Errorf("expected default endpoint, got %q", c.SearchURL("x"))
	}
}

func TestFetchEntries(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(twoItemFeed))
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL})
	entries, err := c.FetchEntries(context.Background(), "Hansa Biopharma")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "Hansa Biopharma" {
		t.Errorf("expected decoded query 'Hansa Biopharma', got %q", gotQuery)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Title != "Hansa Biopharma gets FDA approval" {
		t.Errorf("unexpected title %q", first.Title)
	}
	if first.Link != "https://example.com/approval" {
		t.Errorf("unexpected link %q", first.Link)
	}
	if first.PublishedRaw != "Mon, 03 Jun 2024 10:15:00 GMT" {
		t.Errorf("unexpected published %q", first.PublishedRaw)
	}
	if first.Summary != "Hansa Biopharma gets FDA approval Reuters" {
		t.Errorf("expected stripped summary, got %q", first.Summary)
	}

	// Optional fields default to empty strings.
	second := entries[1]
	if second.Summary != "" || second.PublishedRaw != "" {
		t.Errorf("expected empty optional fields, got %+v", second)
	}
}

func TestFetchEntriesEmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emptyFeed))
	}))
	defer srv.Close()

	entries, err := NewClient(Options{Endpoint: srv.URL}).FetchEntries(context.Background(), "Nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(entries))
	}
}

func TestFetchEntriesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(Options{Endpoint: srv.URL}).FetchEntries(context.Background(), "Acme")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", fe.StatusCode)
	}
	if fe.Query != "Acme" {
		t.Errorf("expected query 'Acme', got %q", fe.Query)
	}
}

func TestFetchEntriesMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a feed"))
	}))
	defer srv.Close()

	_, err := NewClient(Options{Endpoint: srv.URL}).FetchEntries(context.Background(), "Acme")
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFetchEntriesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(emptyFeed))
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL, Timeout: 20 * time.Millisecond})
	if _, err := c.FetchEntries(context.Background(), "Slow"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestWaitCanceledWhileRateLimited(t *testing.T) {
	c := NewClient(Options{Endpoint: "http://127.0.0.1:0", RequestsPerSecond: 0.001, Burst: 1})
	// Drain the single token.
	c.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Wait(ctx); err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestWaitWithoutLimiter(t *testing.T) {
	c := NewClient(Options{Endpoint: "http://127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Wait(ctx); err != nil {
		t.Errorf("expected no wait without a limiter, got %v", err)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain   text\n here", "plain text here"},
		{"<p>One</p><p>Two</p>", "One Two"},
		{"Fish &amp; Chips", "Fish & Chips"},
	}
	for _, tt := range tests {
		if got := stripHTML(tt.in); got != tt.want {
			t.Errorf("stripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
