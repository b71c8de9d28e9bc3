package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

const (
	DefaultEndpoint  = "https://news.google.com/rss/search"
	DefaultTimeout   = 5 * time.Second
	DefaultUserAgent = "IntelDash/1.0 (news monitor)"
)

// Entry is a feed item before normalization. Optional fields are empty
// strings when the feed omits them.
type Entry struct {
	Title        string
	Link         string
	Summary      string
	PublishedRaw string
}

// FetchError describes a failed search: transport error, non-2xx status or
// an unparseable document.
type FetchError struct {
	Query      string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %q: HTTP %d", e.Query, e.StatusCode)
	}
	return fmt.Sprintf("fetching %q: %v", e.Query, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Options configures a Client. Zero values fall back to defaults;
// RequestsPerSecond <= 0 disables rate limiting.
type Options struct {
	Endpoint          string
	Params            map[string]string
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// Client searches a feed endpoint and parses the returned RSS/Atom document.
type Client struct {
	endpoint  string
	params    map[string]string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a new feed search client.
func NewClient(opts Options) *Client {
	c := &Client{
		endpoint:  opts.Endpoint,
		params:    opts.Params,
		userAgent: opts.UserAgent,
		http:      opts.HTTPClient,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

// SearchURL builds the search URL for a query. Spaces are encoded as '+'.
func (c *Client) SearchURL(query string) string {
	var b strings.Builder
	b.WriteString(c.endpoint)
	if strings.Contains(c.endpoint, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	b.WriteString("q=")
	b.WriteString(url.QueryEscape(query))

	keys := make([]string, 0, len(c.params))
	for k := range c.params {
		if k != "q" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte('&')
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(c.params[k]))
	}
	return b.String()
}

// Wait blocks until the rate limiter admits one request, or ctx is done.
// It returns nil at once when rate limiting is disabled. Callers wait before
// FetchEntries so that time spent queued does not count against the request
// deadline.
func (c *Client) Wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// FetchEntries searches for query and returns the feed's entries in feed
// order. An empty feed yields an empty slice. Errors are returned as
// *FetchError and are never swallowed. FetchEntries does not consult the
// rate limiter; see Wait.
func (c *Client) FetchEntries(ctx context.Context, query string) ([]Entry, error) {
	feedURL := c.SearchURL(query)

	parser := gofeed.NewParser()
	parser.Client = c.http
	parser.UserAgent = c.userAgent

	doc, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		fe := &FetchError{Query: query, URL: feedURL, Err: err}
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			fe.StatusCode = httpErr.StatusCode
		}
		return nil, fe
	}

	entries := make([]Entry, 0, len(doc.Items))
	for _, item := range doc.Items {
		if entry, ok := parseItem(item); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func parseItem(item *gofeed.Item) (Entry, bool) {
	if item == nil {
		return Entry{}, false
	}

	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}
	title := strings.TrimSpace(item.Title)
	if title == "" && link == "" {
		return Entry{}, false
	}

	published := strings.TrimSpace(item.Published)
	if published == "" {
		published = strings.TrimSpace(item.Updated)
	}

	summary := item.Description
	if summary == "" {
		summary = item.Content
	}

	return Entry{
		Title:        title,
		Link:         link,
		Summary:      stripHTML(summary),
		PublishedRaw: published,
	}, true
}

// stripHTML reduces an HTML fragment to its whitespace-normalized text.
func stripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	// Pad tags so adjacent elements don't glue words together.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(strings.ReplaceAll(fragment, "<", " <")))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
