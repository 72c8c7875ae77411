package render

import (
	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/layout"
	"github.com/matsen/vulngraph/internal/viewport"
)

// Frame is a read-only snapshot of everything needed to draw one frame.
type Frame struct {
	Size       viewport.Size
	Nodes      []graph.GraphNode
	Positions  []layout.Point
	Radii      []float64
	Edges      []layout.Edge
	NodeRadius float64
	Palette    *graph.Palette
	Selected   string
}

// NewFrame snapshots the engine's current state.
func NewFrame(e *layout.Engine, palette *graph.Palette, selected string) Frame {
	nodes := e.Nodes()
	radii := make([]float64, len(nodes))
	for i := range nodes {
		radii[i] = e.RadiusOf(i)
	}
	return Frame{
		Size:       e.Size(),
		Nodes:      nodes,
		Positions:  e.Positions(),
		Radii:      radii,
		Edges:      e.Edges(),
		NodeRadius: e.NodeRadius(),
		Palette:    palette,
		Selected:   selected,
	}
}

// NodeAt returns the index of the topmost node whose disc contains (x, y).
// Nodes drawn later are on top.
func (f Frame) NodeAt(x, y float64) (int, bool) {
	for i := len(f.Positions) - 1; i >= 0; i-- {
		p := f.Positions[i]
		r := f.Radii[i]
		dx, dy := x-p.X, y-p.Y
		if dx*dx+dy*dy <= r*r {
			return i, true
		}
	}
	return -1, false
}
