package present

import (
	"fmt"
	"strings"
	"time"
)

// Meta describes the criteria a view was built from, for headers.
type Meta struct {
	Title       string
	Scope       string
	Window      string
	Search      string
	GeneratedAt time.Time
	Failures    []string
}

// Markdown renders a view as a Markdown digest.
func Markdown(v View, m Meta) string {
	var b strings.Builder

	title := m.Title
	if title == "" {
		title = "News Digest"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	var facts []string
	if m.Scope != "" {
		facts = append(facts, "Scope: "+m.Scope)
	}
	if m.Window != "" {
		facts = append(facts, "Window: "+m.Window)
	}
	if m.Search != "" {
		facts = append(facts, fmt.Sprintf("Search: %q", m.Search))
	}
	if !m.GeneratedAt.IsZero() {
		facts = append(facts, "Generated: "+m.GeneratedAt.Format("Jan 02, 2006 15:04 MST"))
	}
	if len(facts) > 0 {
		fmt.Fprintf(&b, "_%s_\n\n", strings.Join(facts, " · "))
	}

	if len(m.Failures) > 0 {
		b.WriteString("> **Warning:** could not fetch news for ")
		b.WriteString(strings.Join(m.Failures, ", "))
		b.WriteString(".\n\n")
	}

	if v.Empty() {
		b.WriteString("No results for the selected filters.\n")
		return b.String()
	}

	for _, s := range v.Sections {
		if s.Count == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", s.Name)
		for _, c := range s.Categories {
			fmt.Fprintf(&b, "### %s (%d)\n\n", c.Label, len(c.Records))
			for _, r := range c.Records {
				date := "undated"
				if r.PublishedAt != nil {
					date = r.PublishedAt.Format("2006-01-02")
				}
				fmt.Fprintf(&b, "- [%s](<%s>) · %s · %s\n",
					escapeMarkdown(r.Title), linkDestination(r.Link), escapeMarkdown(r.Source), date)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(`[`, `\[`, `]`, `\]`, `*`, `\*`, `_`, `\_`, "`", "\\`")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Angle brackets let a destination hold spaces and parentheses; only the
// brackets themselves and line breaks must be encoded.
var destinationEscaper = strings.NewReplacer(`<`, "%3C", `>`, "%3E", "\n", "%0A", "\r", "%0D")

func linkDestination(link string) string {
	return destinationEscaper.Replace(link)
}
