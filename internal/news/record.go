package news

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/IntelDash/internal/taxonomy"
)

// publishedLayout covers the RFC 1123 date prefix of a feed timestamp. The
// day may be one or two digits. Time of day and zone are ignored.
const (
	publishedLayout = "Mon, 2 Jan 2006"
	publishedPrefix = len("Mon, 02 Jan 2006")
)

var recordNamespace = uuid.MustParse("6f1c2a1e-7b0e-4c59-9d3e-2f8a52c1b0d4")

// Record is one normalized feed entry attributed to the tracked name that
// was searched for. Records are built once per fetch cycle and not modified.
type Record struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Title       string          `json:"title"`
	Link        string          `json:"link"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	Categories  taxonomy.Labels `json:"categories"`
}

// Dated reports whether the record carries a usable timestamp.
func (r Record) Dated() bool {
	return r.PublishedAt != nil
}

// ParsePublished parses at most the first 16 characters of a raw feed
// timestamp ("Mon, 03 Jun 2024 10:15:00 GMT" -> 2024-06-03 UTC). Shorter
// input such as "Mon, 3 Jun 2024" is parsed whole.
func ParsePublished(raw string) (time.Time, bool) {
	prefix := strings.TrimRight(raw[:min(len(raw), publishedPrefix)], " ")
	t, err := time.Parse(publishedLayout, prefix)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// RecordID derives a stable identifier from source and link so the same
// entry gets the same ID on every refresh.
func RecordID(source, link string) string {
	return uuid.NewSHA1(recordNamespace, []byte(source+"\x00"+link)).String()
}
