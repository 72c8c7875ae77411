package render

import (
	"image"
	"io"

	"github.com/fogleman/gg"

	"github.com/matsen/vulngraph/internal/layout"
)

// PNGCanvas rasterizes onto an RGBA image.
type PNGCanvas struct {
	dc *gg.Context
	sizedMeasurer
	sizes []float64
}

// NewPNGCanvas creates a width x height raster canvas.
func NewPNGCanvas(width, height int, fonts *Fonts) *PNGCanvas {
	c := &PNGCanvas{
		dc:            gg.NewContext(width, height),
		sizedMeasurer: sizedMeasurer{fonts: fonts},
	}
	c.SetFontSize(12)
	return c
}

// Image returns the rendered image.
func (c *PNGCanvas) Image() image.Image {
	return c.dc.Image()
}

// EncodePNG writes the image in PNG format.
func (c *PNGCanvas) EncodePNG(w io.Writer) error {
	return c.dc.EncodePNG(w)
}

func (c *PNGCanvas) Clear(color string) {
	c.dc.SetHexColor(color)
	c.dc.Clear()
}

func (c *PNGCanvas) SetFontSize(px float64) {
	c.size = px
	if face, err := c.fonts.Face(px); err == nil {
		c.dc.SetFontFace(face)
	}
}

func (c *PNGCanvas) Save() {
	c.dc.Push()
	c.sizes = append(c.sizes, c.size)
}

func (c *PNGCanvas) Restore() {
	c.dc.Pop()
	if n := len(c.sizes); n > 0 {
		c.size = c.sizes[n-1]
		c.sizes = c.sizes[:n-1]
	}
}

func (c *PNGCanvas) Translate(x, y float64) { c.dc.Translate(x, y) }
func (c *PNGCanvas) Rotate(angle float64)   { c.dc.Rotate(angle) }

func (c *PNGCanvas) Circle(x, y, r float64, s Style) {
	c.dc.DrawCircle(x, y, r)
	c.paint(s)
}

func (c *PNGCanvas) Line(x1, y1, x2, y2 float64, s Style) {
	c.dc.DrawLine(x1, y1, x2, y2)
	c.paint(Style{Stroke: s.Stroke, LineWidth: s.LineWidth})
}

func (c *PNGCanvas) Rect(x, y, w, h float64, s Style) {
	c.dc.DrawRectangle(x, y, w, h)
	c.paint(s)
}

func (c *PNGCanvas) Polygon(pts []layout.Point, s Style) {
	if len(pts) == 0 {
		return
	}
	c.dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		c.dc.LineTo(p.X, p.Y)
	}
	c.dc.ClosePath()
	c.paint(s)
}

func (c *PNGCanvas) Text(x, y float64, text string, s Style) {
	c.dc.SetHexColor(s.Fill)
	c.dc.DrawStringAnchored(text, x, y, 0.5, 0.35)
}

func (c *PNGCanvas) paint(s Style) {
	switch {
	case s.Fill != "" && s.Stroke != "":
		c.dc.SetHexColor(s.Fill)
		c.dc.FillPreserve()
		c.stroke(s)
	case s.Fill != "":
		c.dc.SetHexColor(s.Fill)
		c.dc.Fill()
	case s.Stroke != "":
		c.stroke(s)
	default:
		c.dc.ClearPath()
	}
}

func (c *PNGCanvas) stroke(s Style) {
	c.dc.SetHexColor(s.Stroke)
	c.dc.SetLineWidth(s.LineWidth)
	c.dc.Stroke()
}
