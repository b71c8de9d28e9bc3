package taxonomy

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ScopeAll selects every tracked name across all groups.
const ScopeAll = "all"

// OtherLabel is assigned when no category keyword matches.
const OtherLabel = "Other"

var (
	ErrUnknownGroup    = errors.New("unknown group")
	ErrUnknownCategory = errors.New("unknown category")
)

// Group is a named, ordered list of tracked entity names.
type Group struct {
	Name     string
	Entities []string
}

// Category is a label with the keywords that select it.
type Category struct {
	Label    string
	Keywords []string
}

// Taxonomy is the read-only combination of tracked groups, competitor
// mappings and category keyword lists. Accessors return copies.
type Taxonomy struct {
	groups      []Group
	groupIndex  map[string]int
	memberOf    map[string]string
	competitors map[string][]string
	categories  []Category
	labelIndex  map[string]int
}

// New builds a Taxonomy, rejecting names tracked by more than one group and
// duplicate category labels. Categories with no keywords are accepted; they
// simply never match.
func New(groups []Group, competitors map[string][]string, categories []Category) (*Taxonomy, error) {
	t := &Taxonomy{
		groupIndex:  make(map[string]int, len(groups)),
		memberOf:    make(map[string]string),
		competitors: make(map[string][]string, len(competitors)),
		labelIndex:  make(map[string]int, len(categories)),
	}

	for _, g := range groups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return nil, fmt.Errorf("group with empty name")
		}
		if strings.EqualFold(name, ScopeAll) {
			return nil, fmt.Errorf("group name %q is reserved", name)
		}
		if _, dup := t.groupIndex[name]; dup {
			return nil, fmt.Errorf("duplicate group %q", name)
		}

		entities := make([]string, 0, len(g.Entities))
		for _, e := range g.Entities {
			e = strings.TrimSpace(e)
			if e == "" {
				continue
			}
			if owner, ok := t.memberOf[e]; ok {
				return nil, fmt.Errorf("entity %q tracked by both %q and %q", e, owner, name)
			}
			t.memberOf[e] = name
			entities = append(entities, e)
		}

		t.groupIndex[name] = len(t.groups)
		t.groups = append(t.groups, Group{Name: name, Entities: entities})
	}

	for primary, names := range competitors {
		var list []string
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n != "" && n != primary && !slices.Contains(list, n) {
				list = append(list, n)
			}
		}
		t.competitors[strings.TrimSpace(primary)] = list
	}

	for _, c := range categories {
		label := strings.TrimSpace(c.Label)
		if label == "" {
			return nil, fmt.Errorf("category with empty label")
		}
		if _, dup := t.labelIndex[label]; dup {
			return nil, fmt.Errorf("duplicate category %q", label)
		}
		t.labelIndex[label] = len(t.categories)
		t.categories = append(t.categories, Category{Label: label, Keywords: slices.Clone(c.Keywords)})
	}

	return t, nil
}

// Groups returns group names in declared order.
func (t *Taxonomy) Groups() []string {
	names := make([]string, len(t.groups))
	for i, g := range t.groups {
		names[i] = g.Name
	}
	return names
}

// Group returns the group with the given name.
func (t *Taxonomy) Group(name string) (Group, bool) {
	i, ok := t.groupIndex[name]
	if !ok {
		return Group{}, false
	}
	g := t.groups[i]
	return Group{Name: g.Name, Entities: slices.Clone(g.Entities)}, true
}

// GroupOf returns the group tracking name, if any.
func (t *Taxonomy) GroupOf(name string) (string, bool) {
	g, ok := t.memberOf[name]
	return g, ok
}

// Competitors returns the known competitor names of a primary entity.
func (t *Taxonomy) Competitors(primary string) []string {
	return slices.Clone(t.competitors[primary])
}

// Names resolves a scope ("all" or a group name) to the tracked names it
// covers, in declared order. When withCompetitors is set, each member's
// competitors follow the group's own names. No name is returned twice.
func (t *Taxonomy) Names(scope string, withCompetitors bool) ([]string, error) {
	var members []string
	if scope == "" || scope == ScopeAll {
		for _, g := range t.groups {
			members = append(members, g.Entities...)
		}
	} else {
		i, ok := t.groupIndex[scope]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, scope)
		}
		members = t.groups[i].Entities
	}

	seen := make(map[string]struct{}, len(members))
	var names []string
	add := func(n string) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	for _, n := range members {
		add(n)
	}
	if withCompetitors {
		for _, n := range members {
			for _, c := range t.competitors[n] {
				add(c)
			}
		}
	}
	return names, nil
}

// Categories returns categories in declared order.
func (t *Taxonomy) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		out[i] = Category{Label: c.Label, Keywords: slices.Clone(c.Keywords)}
	}
	return out
}

// Labels returns every assignable label: declared categories followed by
// OtherLabel (unless a category already uses it).
func (t *Taxonomy) Labels() Labels {
	labels := make(Labels, 0, len(t.categories)+1)
	for _, c := range t.categories {
		labels = append(labels, c.Label)
	}
	if _, ok := t.labelIndex[OtherLabel]; !ok {
		labels = append(labels, OtherLabel)
	}
	return labels
}

// HasLabel reports whether label can be assigned to a record.
func (t *Taxonomy) HasLabel(label string) bool {
	if label == OtherLabel {
		return true
	}
	_, ok := t.labelIndex[label]
	return ok
}

// Order returns the position of a label in declared order. OtherLabel sorts
// after all declared categories; unknown labels sort last.
func (t *Taxonomy) Order(label string) int {
	if i, ok := t.labelIndex[label]; ok {
		return i
	}
	if label == OtherLabel {
		return len(t.categories)
	}
	return len(t.categories) + 1
}
