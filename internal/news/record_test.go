package news

import (
	"testing"
	"time"
)

func TestParsePublished(t *testing.T) {
	got, ok := ParsePublished("Mon, 03 Jun 2024 10:15:00 GMT")
	if !ok {
		t.Fatal("expected timestamp to parse")
	}
	want := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParsePublishedShortPrefix(t *testing.T) {
	want := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{
		"Mon, 3 Jun 2024",
		"Mon, 03 Jun 2024",
		"Mon, 3 Jun 2024 10:15:00 GMT",
	} {
		got, ok := ParsePublished(raw)
		if !ok {
			t.Errorf("expected %q to parse", raw)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("%q: expected %v, got %v", raw, want, got)
		}
	}
}

func TestParsePublishedIgnoresZone(t *testing.T) {
	a, ok1 := ParsePublished("Tue, 04 Jun 2024 23:59:00 +0900")
	b, ok2 := ParsePublished("Tue, 04 Jun 2024 00:01:00 -0700")
	if !ok1 || !ok2 {
		t.Fatal("expected both timestamps to parse")
	}
	if !a.Equal(b) {
		t.Errorf("expected same calendar date, got %v and %v", a, b)
	}
}

func TestParsePublishedInvalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"garbage",
		"2024-06-03T10:15:00Z",
		"Mon, 03 Jun",
		"Mon, 3 Jun 2024X",
		"Xyz, 03 Jun 2024 10:15:00 GMT",
	} {
		if _, ok := ParsePublished(raw); ok {
			t.Errorf("expected %q to be rejected", raw)
		}
	}
}

func TestRecordIDStable(t *testing.T) {
	a := RecordID("Acme", "https://example.com/a")
	b := RecordID("Acme", "https://example.com/a")
	c := RecordID("Other", "https://example.com/a")
	if a != b {
		t.Error("expected identical IDs for identical input")
	}
	if a == c {
		t.Error("expected different IDs for different sources")
	}
}
