// Package stars maps scores onto ten-star rating widgets.
package stars

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Count is the number of stars in every widget.
const Count = 10

// Path is the SVG outline shared by every star.
const Path = "M12 2l2.4 6.8H22l-6.2 4.5 2.4 6.8L12 15.6l-6.2 4.5 2.4-6.8L2 8.8h7.6z"

// Fill describes how much of a star is coloured.
type Fill string

const (
	Full  Fill = "full"
	Half  Fill = "half"
	Empty Fill = "empty"
)

// Star is one rendered star. GradientID is set only for half stars.
type Star struct {
	Fill       Fill
	GradientID string
}

// Widget is a row of Count stars with its accessible label. ID is the
// element id of the row.
type Widget struct {
	ID    string
	Stars []Star
	Value float64
	Label string
}

// Alignment renders a 0–10 daily score rounded to the nearest half star:
// star i (0-based) is full when i+1 <= score and half when the score ends
// halfway into it. Out-of-range scores are clamped.
func Alignment(idPrefix string, score float64) Widget {
	v := halfSteps(clamp(score, 0, Count))
	w := fill(idPrefix, v)
	w.Label = FormatScore(v) + " out of 10"
	return w
}

// CompatibilityStars maps a 0–100 score onto 0–10 stars in half steps.
func CompatibilityStars(score float64) float64 {
	return math.Round(clamp(score, 0, 100)/5) / 2
}

// Compatibility renders a 0–100 compatibility score. Star p (1-based) is
// full up to floor(stars) and half at ceil(stars) when stars is fractional.
// Half-star gradients are named "<idPrefix>-half-<i>" so several widgets
// can share one page.
func Compatibility(idPrefix string, score float64) Widget {
	v := CompatibilityStars(score)
	w := fill(idPrefix, v)
	w.Label = FormatScore(v) + " out of 10 stars"
	return w
}

// Glyphs renders a 0–10 score, rounded to whole stars, as filled and
// hollow star characters.
func Glyphs(score float64) string {
	n := int(math.Round(clamp(score, 0, Count)))
	return strings.Repeat("★", n) + strings.Repeat("☆", Count-n)
}

// FormatScore prints a score without trailing zeros: 72 as "72", 72.5 as
// "72.5".
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// fill lays out Count stars for v, which must be a multiple of 0.5.
func fill(idPrefix string, v float64) Widget {
	floor, ceil := int(math.Floor(v)), int(math.Ceil(v))
	fractional := v != math.Trunc(v)

	w := Widget{ID: idPrefix, Stars: make([]Star, Count), Value: v}
	for i := range w.Stars {
		pos := i + 1
		switch {
		case pos <= floor:
			w.Stars[i] = Star{Fill: Full}
		case pos == ceil && fractional:
			w.Stars[i] = Star{Fill: Half, GradientID: fmt.Sprintf("%s-half-%d", idPrefix, i)}
		default:
			w.Stars[i] = Star{Fill: Empty}
		}
	}
	return w
}

func halfSteps(v float64) float64 {
	return math.Round(v*2) / 2
}

// clamp also maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v) || v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
