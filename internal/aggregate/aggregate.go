package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/IntelDash/internal/feed"
	"github.com/TobiSchelling/IntelDash/internal/metrics"
	"github.com/TobiSchelling/IntelDash/internal/news"
	"github.com/TobiSchelling/IntelDash/internal/taxonomy"
)

const (
	DefaultConcurrency  = 4
	DefaultFetchTimeout = 5 * time.Second
)

// Fetcher retrieves the raw feed entries for a search query.
type Fetcher interface {
	FetchEntries(ctx context.Context, query string) ([]feed.Entry, error)
}

// Waiter is implemented by fetchers that rate-limit their requests. The
// aggregator calls Wait with the caller's context before the per-fetch
// timeout starts.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Categorizer assigns category labels to text.
type Categorizer interface {
	Categorize(text string) taxonomy.Labels
}

// Failure is a per-name fetch failure surfaced as a warning.
type Failure struct {
	Name string `json:"name"`
	Err  error  `json:"-"`
}

// Message returns the failure's error text.
func (f Failure) Message() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// Result holds the records of an aggregation run in canonical order:
// names in input order, entries in feed order.
type Result struct {
	Records  []news.Record
	Failures []Failure
	Undated  int
}

// Options configures an Aggregator.
type Options struct {
	// MaxConcurrency bounds simultaneous fetches. Values < 1 use DefaultConcurrency.
	MaxConcurrency int
	// FetchTimeout bounds each name's fetch. Zero uses DefaultFetchTimeout.
	FetchTimeout time.Duration
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// Aggregator fetches and normalizes feed entries for a list of tracked names.
type Aggregator struct {
	fetcher     Fetcher
	categorizer Categorizer
	concurrency int
	timeout     time.Duration
	log         *slog.Logger
	metrics     *metrics.Metrics
}

// New creates a new Aggregator.
func New(fetcher Fetcher, categorizer Categorizer, opts Options) *Aggregator {
	a := &Aggregator{
		fetcher:     fetcher,
		categorizer: categorizer,
		concurrency: opts.MaxConcurrency,
		timeout:     opts.FetchTimeout,
		log:         opts.Logger,
		metrics:     opts.Metrics,
	}
	if a.concurrency < 1 {
		a.concurrency = DefaultConcurrency
	}
	if a.timeout <= 0 {
		a.timeout = DefaultFetchTimeout
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	return a
}

type nameResult struct {
	records []news.Record
	undated int
	err     error
}

// Aggregate fetches every name independently. A failing name is recorded in
// Result.Failures and never affects other names; Aggregate itself always
// returns a result.
func (a *Aggregator) Aggregate(ctx context.Context, names []string) *Result {
	results := make([]nameResult, len(names))

	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)
	for i, name := range names {
		g.Go(func() error {
			results[i] = a.collect(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	r := &Result{}
	for i, res := range results {
		if res.err != nil {
			a.log.Warn("feed fetch failed", "name", names[i], "err", res.err)
			r.Failures = append(r.Failures, Failure{Name: names[i], Err: res.err})
			continue
		}
		r.Records = append(r.Records, res.records...)
		r.Undated += res.undated
	}

	a.log.Info("aggregation complete",
		"names", len(names), "records", len(r.Records), "failures", len(r.Failures), "undated", r.Undated)
	return r
}

func (a *Aggregator) collect(ctx context.Context, name string) (res nameResult) {
	if w, ok := a.fetcher.(Waiter); ok {
		if err := w.Wait(ctx); err != nil {
			a.metrics.ObserveFetch(metrics.StatusError, 0)
			return nameResult{err: fmt.Errorf("fetching %q: waiting for rate limiter: %w", name, err)}
		}
	}

	// The timeout covers the request only, not time spent queued above.
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = nameResult{err: fmt.Errorf("fetching %q: panic: %v", name, p)}
		}
		status := metrics.StatusOK
		if res.err != nil {
			status = metrics.StatusError
		}
		a.metrics.ObserveFetch(status, time.Since(start))
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	entries, err := a.fetcher.FetchEntries(fetchCtx, name)
	if err != nil {
		return nameResult{err: err}
	}

	records := make([]news.Record, 0, len(entries))
	undated := 0
	for _, e := range entries {
		rec := a.normalize(name, e)
		if !rec.Dated() {
			undated++
			a.log.Debug("unparseable published date", "name", name, "raw", e.PublishedRaw)
		}
		a.metrics.ObserveRecord(rec.Categories, rec.Dated())
		records = append(records, rec)
	}
	return nameResult{records: records, undated: undated}
}

func (a *Aggregator) normalize(name string, e feed.Entry) news.Record {
	rec := news.Record{
		ID:         news.RecordID(name, e.Link),
		Source:     name,
		Title:      e.Title,
		Link:       e.Link,
		Categories: a.categorizer.Categorize(e.Title + " " + e.Summary),
	}
	if t, ok := news.ParsePublished(e.PublishedRaw); ok {
		rec.PublishedAt = &t
	}
	return rec
}
