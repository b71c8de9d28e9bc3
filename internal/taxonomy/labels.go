package taxonomy

import (
	"slices"
	"strings"
)

// Labels is an ordered set of category labels.
type Labels []string

// Has reports whether label is in the set.
func (l Labels) Has(label string) bool {
	return slices.Contains(l, label)
}

// Intersects reports whether any label in l is in the allow set.
func (l Labels) Intersects(allow map[string]struct{}) bool {
	for _, label := range l {
		if _, ok := allow[label]; ok {
			return true
		}
	}
	return false
}

// String joins labels for display.
func (l Labels) String() string {
	return strings.Join(l, ", ")
}
