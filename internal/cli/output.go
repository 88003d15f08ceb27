package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/schollz/progressbar/v3"

	"palate/internal/domain"
	"palate/internal/usecase"
)

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// newProgress returns a ProgressFunc drawing a bar once the total is known.
func newProgress(description string) usecase.ProgressFunc {
	var bar *progressbar.ProgressBar
	var start time.Time
	return func(done, total int) {
		if bar == nil {
			start = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)

		if done > 0 && done < total {
			rate := float64(done) / time.Since(start).Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", description, formatDuration(eta)))
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

// parseTaste reads "sweet=0.2,spicy=0.9" into a vector on the given scale
// and converts it to the canonical one.
func parseTaste(s string, scale int) (domain.TasteVector, error) {
	t, err := parseRawTaste(s, scale)
	if err != nil {
		return t, err
	}
	return domain.Normalize(t, scale)
}

// parseRawTaste reads axis=value pairs without converting them. Unnamed axes
// take the middle of the scale.
func parseRawTaste(s string, scale int) (domain.TasteVector, error) {
	t := domain.NeutralTaste()
	if scale == 5 {
		t = domain.TasteVector{Sweet: 3, Salty: 3, Sour: 3, Bitter: 3, Umami: 3, Spicy: 3}
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return t, fmt.Errorf("%w: expected axis=value, got %q", domain.ErrInvalidTaste, part)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return t, fmt.Errorf("%w: %s: %v", domain.ErrInvalidTaste, name, err)
		}
		if err := t.SetAxis(strings.TrimSpace(name), v); err != nil {
			return t, err
		}
	}
	return t, nil
}

// tasteBars renders each axis as a 0-10 gauge.
func tasteBars(t *domain.TasteVector) string {
	if t == nil {
		return "  (no taste profile)"
	}
	var b strings.Builder
	for i, v := range t.Values() {
		g := domain.Gauge(v)
		fmt.Fprintf(&b, "  %-7s %s%s %2d/10\n", domain.Axes[i], strings.Repeat("#", g), strings.Repeat(".", 10-g), g)
	}
	return strings.TrimRight(b.String(), "\n")
}
