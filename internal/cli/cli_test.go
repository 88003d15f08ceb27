package cli

import (
	"testing"
	"time"

	"palate/internal/domain"
)

func TestParseTaste(t *testing.T) {
	got, err := parseTaste("sweet=0.2, spicy=0.9", 1)
	if err != nil {
		t.Fatalf("parseTaste: %v", err)
	}
	if got.Sweet != 0.2 || got.Spicy != 0.9 || got.Salty != 0.5 {
		t.Errorf("unexpected taste %+v", got)
	}

	got, err = parseTaste("spicy=5,umami=1", 5)
	if err != nil {
		t.Fatalf("parseTaste five point: %v", err)
	}
	want := domain.TasteVector{Sweet: 0.5, Salty: 0.5, Sour: 0.5, Bitter: 0.5, Umami: 0, Spicy: 1}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	for _, scale := range []int{1, 5} {
		got, err := parseTaste("", scale)
		if err != nil {
			t.Fatalf("parseTaste empty on scale %d: %v", scale, err)
		}
		if got != domain.NeutralTaste() {
			t.Errorf("empty input on scale %d gave %+v, want neutral", scale, got)
		}
	}

	for _, in := range []string{"spicy", "spicy=hot", "crunchy=0.5", "sweet=1.5"} {
		if _, err := parseTaste(in, 1); err == nil {
			t.Errorf("parseTaste(%q) should fail", in)
		}
	}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		in    string
		liked bool
		ok    bool
	}{
		{"like", true, true},
		{"LIKE", true, true},
		{"dislike", false, true},
		{"-", false, true},
		{"meh", false, false},
	}
	for _, tt := range tests {
		liked, err := parseVerdict(tt.in)
		if (err == nil) != tt.ok || liked != tt.liked {
			t.Errorf("parseVerdict(%q) = %v, %v", tt.in, liked, err)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "<1s"},
		{42 * time.Second, "42s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTasteBars(t *testing.T) {
	if got := tasteBars(nil); got != "  (no taste profile)" {
		t.Errorf("nil taste rendered as %q", got)
	}
	bars := tasteBars(&domain.TasteVector{Spicy: 1})
	want := "  spicy   ########## 10/10"
	if len(bars) < len(want) || bars[len(bars)-len(want):] != want {
		t.Errorf("last line should be %q, got:\n%s", want, bars)
	}
}
