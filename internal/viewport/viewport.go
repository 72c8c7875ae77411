// Package viewport tracks the size of the region the graph is drawn into.
package viewport

import (
	"errors"
	"math"
)

const (
	// RadiusDivisor relates viewport width to node radius.
	RadiusDivisor = 50.0

	// MinNodeRadius keeps nodes visible on narrow viewports.
	MinNodeRadius = 10.0
)

// ErrUnsupported is returned by a Source that cannot observe size changes
// in the current environment.
var ErrUnsupported = errors.New("viewport: size observation unsupported")

// Size is a viewport size in canvas pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the viewport.
func (s Size) Center() (x, y float64) {
	return s.Width / 2, s.Height / 2
}

// IsZero reports whether the size has no area.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// NodeRadius derives the node radius from the viewport width.
func NodeRadius(s Size) float64 {
	return math.Max(s.Width/RadiusDivisor, MinNodeRadius)
}
