package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TobiSchelling/IntelDash/internal/aggregate"
	"github.com/TobiSchelling/IntelDash/internal/categorize"
	"github.com/TobiSchelling/IntelDash/internal/config"
	"github.com/TobiSchelling/IntelDash/internal/feed"
	"github.com/TobiSchelling/IntelDash/internal/filter"
	"github.com/TobiSchelling/IntelDash/internal/metrics"
	"github.com/TobiSchelling/IntelDash/internal/news"
	"github.com/TobiSchelling/IntelDash/internal/present"
	"github.com/TobiSchelling/IntelDash/internal/taxonomy"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
}

// Result holds everything produced by one refresh cycle.
type Result struct {
	Criteria    filter.Criteria
	Names       []string
	Fetched     int
	Records     []news.Record
	Failures    []aggregate.Failure
	View        present.View
	Steps       []StepResult
	GeneratedAt time.Time
}

// FailedNames returns the names whose fetch failed, in scope order.
func (r *Result) FailedNames() []string {
	names := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		names[i] = f.Name
	}
	return names
}

// Meta describes the result for digest headers.
func (r *Result) Meta(title string) present.Meta {
	return present.Meta{
		Title:       title,
		Scope:       ScopeName(r.Criteria),
		Window:      r.Criteria.Window.Label(),
		Search:      r.Criteria.Search,
		GeneratedAt: r.GeneratedAt,
		Failures:    r.FailedNames(),
	}
}

// ScopeName returns a human-readable name for the criteria's scope.
func ScopeName(c filter.Criteria) string {
	if c.Scope == "" || c.Scope == taxonomy.ScopeAll {
		return "All tracked names"
	}
	if c.WithCompetitors {
		return c.Scope + " + competitors"
	}
	return c.Scope
}

// Pipeline runs select -> aggregate -> filter -> group for one set of
// criteria. Nothing is kept between runs.
type Pipeline struct {
	engine     *filter.Engine
	aggregator *aggregate.Aggregator
	layout     *present.Layout
	log        *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New creates a pipeline from already-built components.
func New(engine *filter.Engine, aggregator *aggregate.Aggregator, layout *present.Layout, log *slog.Logger, m *metrics.Metrics) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		engine:     engine,
		aggregator: aggregator,
		layout:     layout,
		log:        log,
		metrics:    m,
		now:        time.Now,
	}
}

// FromConfig wires the feed client, categorizer, aggregator, filter engine
// and layout described by cfg. A nil fetcher uses the configured feed client.
func FromConfig(cfg *config.Config, fetcher aggregate.Fetcher, log *slog.Logger, m *metrics.Metrics) (*Pipeline, error) {
	tax, err := cfg.BuildTaxonomy()
	if err != nil {
		return nil, err
	}
	layout, err := cfg.BuildLayout(tax)
	if err != nil {
		return nil, err
	}

	if fetcher == nil {
		fetcher = feed.NewClient(feed.Options{
			Endpoint:          cfg.Feed.Endpoint,
			Params:            cfg.Feed.Params,
			Timeout:           cfg.Feed.Timeout,
			UserAgent:         cfg.Feed.UserAgent,
			RequestsPerSecond: cfg.Feed.RequestsPerSecond,
			Burst:             cfg.Feed.Burst,
		})
	}

	agg := aggregate.New(fetcher, categorize.New(tax), aggregate.Options{
		MaxConcurrency: cfg.Feed.MaxConcurrency,
		FetchTimeout:   cfg.Feed.Timeout,
		Logger:         log,
		Metrics:        m,
	})

	return New(filter.NewEngine(tax), agg, layout, log, m), nil
}

// Engine returns the filter engine, for callers that need the taxonomy.
func (p *Pipeline) Engine() *filter.Engine {
	return p.engine
}

// Layout returns the section layout.
func (p *Pipeline) Layout() *present.Layout {
	return p.layout
}

// Run executes one refresh cycle. It fails only for invalid criteria; fetch
// failures are reported in Result.Failures.
func (p *Pipeline) Run(ctx context.Context, c filter.Criteria) (*Result, error) {
	if err := p.engine.Validate(c); err != nil {
		return nil, fmt.Errorf("invalid criteria: %w", err)
	}
	start := p.now()
	defer func() { p.metrics.ObserveCycle(time.Since(start)) }()

	r := &Result{Criteria: c, GeneratedAt: start}

	names, err := p.engine.Select(c)
	if err != nil {
		return nil, fmt.Errorf("selecting names: %w", err)
	}
	r.Names = names
	r.Steps = append(r.Steps, StepResult{
		Name:    "Select",
		Summary: fmt.Sprintf("%d tracked names in scope %q", len(names), scopeLabel(c.Scope)),
	})

	agg := p.aggregator.Aggregate(ctx, names)
	r.Fetched = len(agg.Records)
	r.Failures = agg.Failures
	r.Steps = append(r.Steps, StepResult{
		Name: "Aggregate",
		Summary: fmt.Sprintf("Fetched %d records from %d names (%d failed, %d undated)",
			len(agg.Records), len(names)-len(agg.Failures), len(agg.Failures), agg.Undated),
	})

	r.Records = p.engine.Apply(agg.Records, c, start)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Filter",
		Summary: fmt.Sprintf("%d of %d records match", len(r.Records), len(agg.Records)),
	})

	r.View = p.layout.Build(r.Records)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Group",
		Summary: fmt.Sprintf("%d sections", len(r.View.Sections)),
	})

	p.log.Info("refresh complete",
		"scope", scopeLabel(c.Scope), "names", len(names), "fetched", r.Fetched,
		"matched", len(r.Records), "failures", len(r.Failures))
	return r, nil
}

func scopeLabel(scope string) string {
	if scope == "" {
		return "all"
	}
	return scope
}
