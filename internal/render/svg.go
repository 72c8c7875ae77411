package render

import (
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"

	"github.com/matsen/vulngraph/internal/layout"
)

// affine is a 2D transform [a c e; b d f].
type affine struct{ a, b, c, d, e, f float64 }

var identity = affine{a: 1, d: 1}

func (m affine) mul(n affine) affine {
	return affine{
		a: m.a*n.a + m.c*n.b,
		b: m.b*n.a + m.d*n.b,
		c: m.a*n.c + m.c*n.d,
		d: m.b*n.c + m.d*n.d,
		e: m.a*n.e + m.c*n.f + m.e,
		f: m.b*n.e + m.d*n.f + m.f,
	}
}

func (m affine) String() string {
	return fmt.Sprintf("matrix(%.4f %.4f %.4f %.4f %.2f %.2f)", m.a, m.b, m.c, m.d, m.e, m.f)
}

type svgState struct {
	m    affine
	size float64
}

// SVGCanvas writes an SVG document. Shapes drawn under a transform are
// wrapped in a group carrying the current matrix.
type SVGCanvas struct {
	svg *svg.SVG
	sizedMeasurer
	width, height int
	m             affine
	stack         []svgState
}

// NewSVGCanvas starts a width x height document on w. Call End to finish it.
func NewSVGCanvas(w io.Writer, width, height int, fonts *Fonts) *SVGCanvas {
	c := &SVGCanvas{
		svg:           svg.New(w),
		sizedMeasurer: sizedMeasurer{fonts: fonts, size: 12},
		width:         width,
		height:        height,
		m:             identity,
	}
	c.svg.Start(width, height)
	return c
}

// End closes the document.
func (c *SVGCanvas) End() {
	c.svg.End()
}

func (c *SVGCanvas) Clear(color string) {
	c.svg.Rect(0, 0, c.width, c.height, "fill:"+color)
}

func (c *SVGCanvas) SetFontSize(px float64) { c.size = px }

func (c *SVGCanvas) Save() {
	c.stack = append(c.stack, svgState{m: c.m, size: c.size})
}

func (c *SVGCanvas) Restore() {
	n := len(c.stack)
	if n == 0 {
		return
	}
	c.m, c.size = c.stack[n-1].m, c.stack[n-1].size
	c.stack = c.stack[:n-1]
}

func (c *SVGCanvas) Translate(x, y float64) {
	c.m = c.m.mul(affine{a: 1, d: 1, e: x, f: y})
}

func (c *SVGCanvas) Rotate(angle float64) {
	sin, cos := math.Sincos(angle)
	c.m = c.m.mul(affine{a: cos, b: sin, c: -sin, d: cos})
}

func (c *SVGCanvas) Circle(x, y, r float64, s Style) {
	c.group(func() { c.svg.Circle(px(x), px(y), px(r), svgStyle(s)) })
}

func (c *SVGCanvas) Line(x1, y1, x2, y2 float64, s Style) {
	c.group(func() { c.svg.Line(px(x1), px(y1), px(x2), px(y2), svgStyle(Style{Stroke: s.Stroke, LineWidth: s.LineWidth})) })
}

func (c *SVGCanvas) Rect(x, y, w, h float64, s Style) {
	c.group(func() { c.svg.Rect(px(x), px(y), px(w), px(h), svgStyle(s)) })
}

func (c *SVGCanvas) Polygon(pts []layout.Point, s Style) {
	xs := make([]int, len(pts))
	ys := make([]int, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = px(p.X), px(p.Y)
	}
	c.group(func() { c.svg.Polygon(xs, ys, svgStyle(s)) })
}

func (c *SVGCanvas) Text(x, y float64, text string, s Style) {
	style := fmt.Sprintf("fill:%s;font-family:Go,sans-serif;font-size:%gpx;text-anchor:middle;dominant-baseline:central", s.Fill, c.size)
	c.group(func() { c.svg.Text(px(x), px(y), text, style) })
}

func (c *SVGCanvas) group(draw func()) {
	if c.m == identity {
		draw()
		return
	}
	c.svg.Gtransform(c.m.String())
	draw()
	c.svg.Gend()
}

func px(v float64) int {
	return int(math.Round(v))
}

func svgStyle(s Style) string {
	fill, stroke := s.Fill, s.Stroke
	if fill == "" {
		fill = "none"
	}
	if stroke == "" {
		return "fill:" + fill
	}
	return fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%g", fill, stroke, s.LineWidth)
}
