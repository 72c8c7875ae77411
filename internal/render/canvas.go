// Package render draws a laid-out graph onto an abstract 2D canvas.
package render

import "github.com/matsen/vulngraph/internal/layout"

// Measurer reports the rendered width of text in the current font.
type Measurer interface {
	MeasureText(text string) float64
}

// Style describes how a shape is painted. An empty color skips that part.
type Style struct {
	Fill      string
	Stroke    string
	LineWidth float64
}

// Canvas is the drawing surface the renderer targets. Coordinates pass
// through the current transform; Save and Restore bracket transform and
// font changes.
type Canvas interface {
	Measurer

	Clear(color string)
	SetFontSize(px float64)

	Save()
	Restore()
	Translate(x, y float64)
	Rotate(angle float64)

	Circle(x, y, r float64, s Style)
	Line(x1, y1, x2, y2 float64, s Style)
	Rect(x, y, w, h float64, s Style)
	Polygon(pts []layout.Point, s Style)

	// Text draws text centered on (x, y) using s.Fill.
	Text(x, y float64, text string, s Style)
}
