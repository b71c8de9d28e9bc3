// Package present groups filtered records into the sections shown to the
// analyst. Section membership is presentation configuration: the pipeline
// assigns categories, the layout decides where each category is displayed.
package present

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/TobiSchelling/IntelDash/internal/news"
	"github.com/TobiSchelling/IntelDash/internal/taxonomy"
)

// OtherSection collects categories that no configured section claims.
const OtherSection = "Other"

// Section maps a display section to the categories it shows, in order.
type Section struct {
	Name       string
	Categories []string
}

// Layout is a validated list of sections.
type Layout struct {
	sections []Section
}

// NewLayout validates sections against the taxonomy. Every category must be
// known and may appear in at most one section. Categories left unclaimed
// (including taxonomy.OtherLabel) are shown in a trailing OtherSection.
func NewLayout(sections []Section, tax *taxonomy.Taxonomy) (*Layout, error) {
	claimed := make(map[string]string)
	names := make(map[string]struct{})
	var out []Section

	for _, s := range sections {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("section with empty name")
		}
		if _, dup := names[name]; dup {
			return nil, fmt.Errorf("duplicate section %q", name)
		}
		names[name] = struct{}{}

		sec := Section{Name: name}
		for _, c := range s.Categories {
			c = strings.TrimSpace(c)
			if !tax.HasLabel(c) {
				return nil, fmt.Errorf("section %q: %w: %q", name, taxonomy.ErrUnknownCategory, c)
			}
			if owner, ok := claimed[c]; ok {
				return nil, fmt.Errorf("category %q in both %q and %q", c, owner, name)
			}
			claimed[c] = name
			sec.Categories = append(sec.Categories, c)
		}
		out = append(out, sec)
	}

	var rest []string
	for _, label := range tax.Labels() {
		if _, ok := claimed[label]; !ok {
			rest = append(rest, label)
		}
	}
	if len(rest) > 0 {
		if _, taken := names[OtherSection]; taken {
			return nil, fmt.Errorf("section name %q is reserved for unassigned categories", OtherSection)
		}
		out = append(out, Section{Name: OtherSection, Categories: rest})
	}

	return &Layout{sections: out}, nil
}

// Sections returns the effective sections, including OtherSection.
func (l *Layout) Sections() []Section {
	out := make([]Section, len(l.sections))
	for i, s := range l.sections {
		out[i] = Section{Name: s.Name, Categories: slices.Clone(s.Categories)}
	}
	return out
}

// CategoryView lists the records of one category, most recent first.
type CategoryView struct {
	Label   string        `json:"label"`
	Records []news.Record `json:"records"`
}

// SectionView is one rendered section. Categories without records are
// omitted.
type SectionView struct {
	Name       string         `json:"name"`
	Categories []CategoryView `json:"categories"`
	Count      int            `json:"count"`
}

// View is the grouped result handed to a renderer.
type View struct {
	Sections []SectionView `json:"sections"`
	Total    int           `json:"total"`
}

// Empty reports whether no record survived filtering.
func (v View) Empty() bool {
	return v.Total == 0
}

// Build groups records by category and places categories into sections.
// A record with several categories appears under each of them.
func (l *Layout) Build(records []news.Record) View {
	byCategory := GroupByCategory(records)

	v := View{Total: len(records)}
	for _, s := range l.sections {
		sv := SectionView{Name: s.Name}
		for _, label := range s.Categories {
			recs := byCategory[label]
			if len(recs) == 0 {
				continue
			}
			sv.Categories = append(sv.Categories, CategoryView{Label: label, Records: recs})
			sv.Count += len(recs)
		}
		v.Sections = append(v.Sections, sv)
	}
	return v
}

// GroupByCategory indexes records under each of their categories. Each list
// is sorted most recent first; ties keep input order.
func GroupByCategory(records []news.Record) map[string][]news.Record {
	out := make(map[string][]news.Record)
	for _, r := range records {
		for _, label := range r.Categories {
			out[label] = append(out[label], r)
		}
	}
	for _, recs := range out {
		SortRecent(recs)
	}
	return out
}

// SortRecent stable-sorts records by publication time, newest first.
// Undated records sort last.
func SortRecent(records []news.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].PublishedAt, records[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
