package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Window is one of the fixed recency windows offered to the analyst.
type Window string

const (
	WindowDay   Window = "24h"
	WindowWeek  Window = "7d"
	WindowMonth Window = "30d"
	WindowAll   Window = "all"
)

// ErrUnknownWindow is returned for a window outside Windows.
var ErrUnknownWindow = errors.New("unknown recency window")

// Windows lists the selectable windows, narrowest first.
var Windows = []Window{WindowDay, WindowWeek, WindowMonth, WindowAll}

// RecentOnly is the window used by the single "recent only" toggle.
const RecentOnly = WindowWeek

// ParseWindow accepts "24h", "7d", "30d", "all" or the empty string (all).
func ParseWindow(raw string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(raw))); w {
	case "":
		return WindowAll, nil
	case WindowDay, WindowWeek, WindowMonth, WindowAll:
		return w, nil
	default:
		return "", fmt.Errorf("%w %q (want 24h, 7d, 30d or all)", ErrUnknownWindow, raw)
	}
}

// Valid reports whether w is empty or one of Windows.
func (w Window) Valid() bool {
	if w == "" {
		return true
	}
	for _, known := range Windows {
		if w == known {
			return true
		}
	}
	return false
}

// Duration returns the window length; zero means unbounded.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowDay:
		return 24 * time.Hour
	case WindowWeek:
		return 7 * 24 * time.Hour
	case WindowMonth:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Label returns a human-readable name for the window.
func (w Window) Label() string {
	switch w {
	case WindowDay:
		return "Last 24 hours"
	case WindowWeek:
		return "Last 7 days"
	case WindowMonth:
		return "Last 30 days"
	default:
		return "All time"
	}
}
