package render

import (
	"github.com/matsen/vulngraph/internal/layout"
)

// Display list operation codes. The browser console replays them onto an
// HTML canvas 2D context.
const (
	OpClear     = "clear"
	OpFont      = "font"
	OpSave      = "save"
	OpRestore   = "restore"
	OpTranslate = "translate"
	OpRotate    = "rotate"
	OpCircle    = "circle"
	OpLine      = "line"
	OpRect      = "rect"
	OpPolygon   = "poly"
	OpText      = "text"
)

// Op is one display list instruction.
type Op struct {
	Op        string    `json:"op"`
	Args      []float64 `json:"a,omitempty"`
	Text      string    `json:"t,omitempty"`
	Fill      string    `json:"f,omitempty"`
	Stroke    string    `json:"s,omitempty"`
	LineWidth float64   `json:"w,omitempty"`
}

// DisplayList records drawing operations for replay elsewhere. Text ops
// carry their measured width so the replaying side can constrain text to
// the same box.
type DisplayList struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Ops    []Op    `json:"ops"`

	sizedMeasurer
	sizes []float64
}

// NewDisplayList creates an empty display list.
func NewDisplayList(width, height float64, fonts *Fonts) *DisplayList {
	return &DisplayList{
		Width:         width,
		Height:        height,
		sizedMeasurer: sizedMeasurer{fonts: fonts, size: 12},
	}
}

// Reset discards recorded ops so the list can be reused for the next frame.
func (d *DisplayList) Reset(width, height float64) {
	d.Width, d.Height = width, height
	d.Ops = d.Ops[:0]
	d.sizes = d.sizes[:0]
}

func (d *DisplayList) add(op Op) {
	d.Ops = append(d.Ops, op)
}

func (d *DisplayList) Clear(color string) {
	d.add(Op{Op: OpClear, Fill: color})
}

func (d *DisplayList) SetFontSize(px float64) {
	d.size = px
	d.add(Op{Op: OpFont, Args: []float64{px}})
}

func (d *DisplayList) Save() {
	d.sizes = append(d.sizes, d.size)
	d.add(Op{Op: OpSave})
}

func (d *DisplayList) Restore() {
	if n := len(d.sizes); n > 0 {
		d.size = d.sizes[n-1]
		d.sizes = d.sizes[:n-1]
	}
	d.add(Op{Op: OpRestore})
}

func (d *DisplayList) Translate(x, y float64) {
	d.add(Op{Op: OpTranslate, Args: []float64{x, y}})
}

func (d *DisplayList) Rotate(angle float64) {
	d.add(Op{Op: OpRotate, Args: []float64{angle}})
}

func (d *DisplayList) Circle(x, y, r float64, s Style) {
	d.add(Op{Op: OpCircle, Args: []float64{x, y, r}, Fill: s.Fill, Stroke: s.Stroke, LineWidth: s.LineWidth})
}

func (d *DisplayList) Line(x1, y1, x2, y2 float64, s Style) {
	d.add(Op{Op: OpLine, Args: []float64{x1, y1, x2, y2}, Stroke: s.Stroke, LineWidth: s.LineWidth})
}

func (d *DisplayList) Rect(x, y, w, h float64, s Style) {
	d.add(Op{Op: OpRect, Args: []float64{x, y, w, h}, Fill: s.Fill, Stroke: s.Stroke, LineWidth: s.LineWidth})
}

func (d *DisplayList) Polygon(pts []layout.Point, s Style) {
	args := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		args = append(args, p.X, p.Y)
	}
	d.add(Op{Op: OpPolygon, Args: args, Fill: s.Fill, Stroke: s.Stroke, LineWidth: s.LineWidth})
}

func (d *DisplayList) Text(x, y float64, text string, s Style) {
	d.add(Op{Op: OpText, Args: []float64{x, y, d.MeasureText(text)}, Text: text, Fill: s.Fill})
}
