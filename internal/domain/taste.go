package domain

import (
	"fmt"
	"math"
	"strings"
)

// Axes lists the taste axes in display order.
var Axes = []string{"sweet", "salty", "sour", "bitter", "umami", "spicy"}

// TasteVector holds a flavor profile on the canonical [0,1] scale.
type TasteVector struct {
	Sweet  float64 `json:"sweet" yaml:"sweet" validate:"gte=0,lte=1"`
	Salty  float64 `json:"salty" yaml:"salty" validate:"gte=0,lte=1"`
	Sour   float64 `json:"sour" yaml:"sour" validate:"gte=0,lte=1"`
	Bitter float64 `json:"bitter" yaml:"bitter" validate:"gte=0,lte=1"`
	Umami  float64 `json:"umami" yaml:"umami" validate:"gte=0,lte=1"`
	Spicy  float64 `json:"spicy" yaml:"spicy" validate:"gte=0,lte=1"`
}

// NeutralTaste is the mid-scale starting point for taste input. Axes the
// caller leaves out keep this value.
func NeutralTaste() TasteVector {
	return TasteVector{Sweet: 0.5, Salty: 0.5, Sour: 0.5, Bitter: 0.5, Umami: 0.5, Spicy: 0.5}
}

func (t TasteVector) Values() [6]float64 {
	return [6]float64{t.Sweet, t.Salty, t.Sour, t.Bitter, t.Umami, t.Spicy}
}

// Axis returns the value of the named axis.
func (t TasteVector) Axis(name string) (float64, error) {
	switch strings.ToLower(name) {
	case "sweet":
		return t.Sweet, nil
	case "salty":
		return t.Salty, nil
	case "sour":
		return t.Sour, nil
	case "bitter":
		return t.Bitter, nil
	case "umami":
		return t.Umami, nil
	case "spicy":
		return t.Spicy, nil
	}
	return 0, fmt.Errorf("%w: unknown taste axis %q", ErrInvalidTaste, name)
}

// SetAxis sets the named axis.
func (t *TasteVector) SetAxis(name string, v float64) error {
	switch strings.ToLower(name) {
	case "sweet":
		t.Sweet = v
	case "salty":
		t.Salty = v
	case "sour":
		t.Sour = v
	case "bitter":
		t.Bitter = v
	case "umami":
		t.Umami = v
	case "spicy":
		t.Spicy = v
	default:
		return fmt.Errorf("%w: unknown taste axis %q", ErrInvalidTaste, name)
	}
	return nil
}

// Validate checks every axis is a finite value in [0,1].
func (t TasteVector) Validate() error {
	for i, v := range t.Values() {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%v outside [0,1]", ErrInvalidTaste, Axes[i], v)
		}
	}
	return nil
}

// FromFivePoint converts a vector whose axes are on the 1-5 rating scale to the canonical scale.
func FromFivePoint(t TasteVector) TasteVector {
	conv := func(v float64) float64 { return (v - 1) / 4 }
	return TasteVector{
		Sweet:  conv(t.Sweet),
		Salty:  conv(t.Salty),
		Sour:   conv(t.Sour),
		Bitter: conv(t.Bitter),
		Umami:  conv(t.Umami),
		Spicy:  conv(t.Spicy),
	}
}

// Normalize converts a vector declared on the given scale (1 or 5) to the canonical scale.
func Normalize(t TasteVector, scale int) (TasteVector, error) {
	switch scale {
	case 0, 1:
	case 5:
		t = FromFivePoint(t)
	default:
		return TasteVector{}, fmt.Errorf("%w: unsupported taste scale %d", ErrInvalidTaste, scale)
	}
	if err := t.Validate(); err != nil {
		return TasteVector{}, err
	}
	return t, nil
}

// Similarity returns 1 minus the mean absolute difference across the six axes.
// Both vectors must be on the canonical scale; the result is then in [0,1].
func Similarity(a, b TasteVector) float64 {
	av, bv := a.Values(), b.Values()
	var sum float64
	for i := range av {
		sum += math.Abs(av[i] - bv[i])
	}
	return 1 - sum/float64(len(av))
}

// Percent renders a [0,1] value as a whole percentage.
func Percent(v float64) int {
	return int(math.Round(v * 100))
}

// Gauge renders a [0,1] axis value on the 0-10 display gauge.
func Gauge(v float64) int {
	return int(math.Round(v * 10))
}

// MatchesAll reports whether every named axis is at or above threshold.
func (t TasteVector) MatchesAll(axes []string, threshold float64) (bool, error) {
	for _, a := range axes {
		v, err := t.Axis(a)
		if err != nil {
			return false, err
		}
		if v < threshold {
			return false, nil
		}
	}
	return true, nil
}
