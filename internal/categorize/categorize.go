// Package categorize assigns taxonomy category labels to free text by
// case-insensitive keyword containment.
package categorize

import (
	"strings"

	"github.com/TobiSchelling/IntelDash/internal/taxonomy"
)

type rule struct {
	label    string
	keywords []string
}

// Categorizer matches text against a taxonomy snapshot. It is safe for
// concurrent use.
type Categorizer struct {
	rules []rule
}

// New lower-cases every keyword once so matching never depends on the
// casing used in the taxonomy.
func New(tax *taxonomy.Taxonomy) *Categorizer {
	cats := tax.Categories()
	c := &Categorizer{rules: make([]rule, 0, len(cats))}
	for _, cat := range cats {
		r := rule{label: cat.Label}
		for _, k := range cat.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				r.keywords = append(r.keywords, k)
			}
		}
		c.rules = append(c.rules, r)
	}
	return c
}

// Categorize returns the labels whose keywords occur in text, in taxonomy
// order. The result is never empty: unmatched text gets taxonomy.OtherLabel.
func (c *Categorizer) Categorize(text string) taxonomy.Labels {
	lower := strings.ToLower(text)

	var labels taxonomy.Labels
	for _, r := range c.rules {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				labels = append(labels, r.label)
				break
			}
		}
	}

	if len(labels) == 0 {
		return taxonomy.Labels{taxonomy.OtherLabel}
	}
	return labels
}
