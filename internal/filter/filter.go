package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/TobiSchelling/IntelDash/internal/news"
	"github.com/TobiSchelling/IntelDash/internal/taxonomy"
)

// Criteria narrows an aggregated record set. Zero values mean "not set".
type Criteria struct {
	// Scope is a taxonomy group name or taxonomy.ScopeAll.
	Scope string
	// WithCompetitors extends a group scope with its members' competitors.
	WithCompetitors bool
	// Window bounds how old a record may be. Empty or WindowAll is unbounded.
	Window Window
	// Search is matched case-insensitively against title and source.
	Search string
	// Categories is an allow-list; a record needs at least one of them.
	Categories []string
}

// Engine applies Criteria using a taxonomy snapshot to resolve scopes.
type Engine struct {
	tax *taxonomy.Taxonomy
}

// NewEngine creates a filter engine.
func NewEngine(tax *taxonomy.Taxonomy) *Engine {
	return &Engine{tax: tax}
}

// Taxonomy returns the snapshot the engine resolves scopes against.
func (e *Engine) Taxonomy() *taxonomy.Taxonomy {
	return e.tax
}

// Validate reports unknown group scopes, category labels and windows.
func (e *Engine) Validate(c Criteria) error {
	if !c.Window.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownWindow, c.Window)
	}
	if _, err := e.tax.Names(c.Scope, c.WithCompetitors); err != nil {
		return err
	}
	for _, label := range c.Categories {
		label = strings.TrimSpace(label)
		if label != "" && !e.tax.HasLabel(label) {
			return fmt.Errorf("%w: %q", taxonomy.ErrUnknownCategory, label)
		}
	}
	return nil
}

// Select returns the tracked names to fetch for the criteria's scope.
// Restricting at input time avoids fetching names that would be discarded.
func (e *Engine) Select(c Criteria) ([]string, error) {
	return e.tax.Names(c.Scope, c.WithCompetitors)
}

// Apply returns the records matching every predicate, preserving input order.
// Records without a parsed timestamp are always dropped.
func (e *Engine) Apply(records []news.Record, c Criteria, now time.Time) []news.Record {
	var cutoff time.Time
	if d := c.Window.Duration(); d > 0 {
		cutoff = now.Add(-d)
	}
	search := strings.ToLower(strings.TrimSpace(c.Search))
	allow := allowSet(c.Categories)
	members := e.members(c)

	out := make([]news.Record, 0, len(records))
	for _, r := range records {
		if r.PublishedAt == nil {
			continue
		}
		if !cutoff.IsZero() && r.PublishedAt.Before(cutoff) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Title), search) &&
			!strings.Contains(strings.ToLower(r.Source), search) {
			continue
		}
		if allow != nil && !r.Categories.Intersects(allow) {
			continue
		}
		if members != nil {
			if _, ok := members[r.Source]; !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// members returns the allowed sources for a group scope, or nil for "all".
func (e *Engine) members(c Criteria) map[string]struct{} {
	if c.Scope == "" || c.Scope == taxonomy.ScopeAll {
		return nil
	}
	names, err := e.tax.Names(c.Scope, c.WithCompetitors)
	if err != nil {
		// Unknown scopes match nothing.
		return map[string]struct{}{}
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func allowSet(labels []string) map[string]struct{} {
	var set map[string]struct{}
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{}, len(labels))
		}
		set[l] = struct{}{}
	}
	return set
}
