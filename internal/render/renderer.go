package render

import (
	"math"

	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/layout"
)

// Theme holds colors and sizes used when drawing.
type Theme struct {
	Background string

	LinkStroke          string
	LinkWidth           float64
	LinkLabel           string
	LinkLabelBackground string
	LinkFontSize        float64
	LabelPadding        float64

	ArrowLength float64
	ArrowWidth  float64
	ArrowGap    float64 // distance between the arrow tip and the target's edge

	NodeStroke      string
	NodeStrokeWidth float64
	NodeText        string

	SchemaFill        string
	SchemaStroke      string
	SchemaStrokeWidth float64
	SchemaText        string

	SelectedStroke      string
	SelectedStrokeWidth float64
}

// DefaultTheme returns the standard light theme.
func DefaultTheme() Theme {
	return Theme{
		Background:          "#ffffff",
		LinkStroke:          "#999999",
		LinkWidth:           1.5,
		LinkLabel:           "#555555",
		LinkLabelBackground: "#ffffff",
		LinkFontSize:        10,
		LabelPadding:        2,
		ArrowLength:         8,
		ArrowWidth:          6,
		ArrowGap:            4,
		NodeStroke:          "#eeeeee",
		NodeStrokeWidth:     1,
		NodeText:            "#ffffff",
		SchemaFill:          "#2b2d42",
		SchemaStroke:        "#ffb703",
		SchemaStrokeWidth:   3,
		SchemaText:          "#ffffff",
		SelectedStroke:      "#111111",
		SelectedStrokeWidth: 3,
	}
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTheme overrides the default theme.
func WithTheme(t Theme) Option {
	return func(r *Renderer) {
		r.theme = t
	}
}

// Renderer draws frames. It never modifies the data it draws.
type Renderer struct {
	theme Theme
}

// New creates a renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{theme: DefaultTheme()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Theme returns the renderer's theme.
func (r *Renderer) Theme() Theme {
	return r.theme
}

// NodeFontSize returns the font size for node text at a node radius.
func NodeFontSize(nodeRadius float64) float64 {
	return math.Max(math.Round(nodeRadius*0.6), 8)
}

// Draw clears the canvas and draws every link, then every node, so nodes
// sit on top of link lines.
func (r *Renderer) Draw(c Canvas, f Frame) {
	if f.Palette == nil {
		f.Palette = graph.NewPalette()
	}
	c.Clear(r.theme.Background)

	c.SetFontSize(r.theme.LinkFontSize)
	for _, e := range f.Edges {
		r.drawLink(c, f, e)
	}

	c.SetFontSize(NodeFontSize(f.NodeRadius))
	for i := range f.Nodes {
		r.drawNode(c, f, i)
	}
}

func (r *Renderer) drawLink(c Canvas, f Frame, e layout.Edge) {
	if e.Source == e.Target {
		return
	}
	s, t := f.Positions[e.Source], f.Positions[e.Target]
	dx, dy := t.X-s.X, t.Y-s.Y
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		return
	}
	ux, uy := dx/dist, dy/dist

	c.Line(s.X, s.Y, t.X, t.Y, Style{Stroke: r.theme.LinkStroke, LineWidth: r.theme.LinkWidth})

	tipBack := f.Radii[e.Target] + r.theme.ArrowGap
	tip := layout.Point{X: t.X - ux*tipBack, Y: t.Y - uy*tipBack}
	c.Polygon(arrowhead(tip, ux, uy, r.theme.ArrowLength, r.theme.ArrowWidth), Style{Fill: r.theme.LinkStroke})

	if e.Type == "" {
		return
	}
	c.Save()
	c.Translate((s.X+t.X)/2, (s.Y+t.Y)/2)
	c.Rotate(LabelAngle(dx, dy))
	w := c.MeasureText(e.Type)
	h := r.theme.LinkFontSize * 1.2
	pad := r.theme.LabelPadding
	c.Rect(-w/2-pad, -h/2, w+2*pad, h, Style{Fill: r.theme.LinkLabelBackground})
	c.Text(0, 0, e.Type, Style{Fill: r.theme.LinkLabel})
	c.Restore()
}

// LabelAngle returns the rotation for a label along a link with direction
// (dx, dy), flipped so the text is never upside down.
func LabelAngle(dx, dy float64) float64 {
	angle := math.Atan2(dy, dx)
	switch {
	case angle > math.Pi/2:
		angle -= math.Pi
	case angle < -math.Pi/2:
		angle += math.Pi
	}
	return angle
}

// arrowhead returns the triangle with its tip at tip pointing along (ux, uy).
func arrowhead(tip layout.Point, ux, uy, length, width float64) []layout.Point {
	bx, by := tip.X-ux*length, tip.Y-uy*length
	px, py := -uy*width/2, ux*width/2
	return []layout.Point{
		tip,
		{X: bx + px, Y: by + py},
		{X: bx - px, Y: by - py},
	}
}

func (r *Renderer) drawNode(c Canvas, f Frame, i int) {
	n := f.Nodes[i]
	p := f.Positions[i]
	radius := f.Radii[i]

	var body, text Style
	if n.IsSchema() {
		body = Style{Fill: r.theme.SchemaFill, Stroke: r.theme.SchemaStroke, LineWidth: r.theme.SchemaStrokeWidth}
		text = Style{Fill: r.theme.SchemaText}
	} else {
		body = Style{Fill: f.Palette.ColorOf(n.Label), Stroke: r.theme.NodeStroke, LineWidth: r.theme.NodeStrokeWidth}
		text = Style{Fill: r.theme.NodeText}
	}
	if f.Selected != "" && n.ID == f.Selected {
		body.Stroke = r.theme.SelectedStroke
		body.LineWidth = r.theme.SelectedStrokeWidth
	}
	c.Circle(p.X, p.Y, radius, body)

	label := FitText(c, graph.DisplayText(n), radius*TextFitFactor)
	if label != "" {
		c.Text(p.X, p.Y, label, text)
	}
}
