// Package scene ties layout, rendering and selection together for one
// interactive graph view.
package scene

import (
	"go.uber.org/zap"

	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/layout"
	"github.com/matsen/vulngraph/internal/render"
	"github.com/matsen/vulngraph/internal/selection"
	"github.com/matsen/vulngraph/internal/viewport"
)

type options struct {
	logger     *zap.Logger
	renderer   *render.Renderer
	params     *layout.Params
	onActivate func(graph.GraphNode)
	onClear    func()
}

// Option configures a Scene.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRenderer replaces the default renderer.
func WithRenderer(r *render.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithLayoutParams overrides the force constants.
func WithLayoutParams(p layout.Params) Option {
	return func(o *options) { o.params = &p }
}

// WithActivateHandler is notified with the full node when a regular node
// is selected.
func WithActivateHandler(fn func(graph.GraphNode)) Option {
	return func(o *options) { o.onActivate = fn }
}

// WithClearHandler is notified when the selection closes.
func WithClearHandler(fn func()) Option {
	return func(o *options) { o.onClear = fn }
}

// Scene is one graph view. It is not safe for concurrent use; Loop gives
// it a single owning goroutine.
type Scene struct {
	logger    *zap.Logger
	engine    *layout.Engine
	renderer  *render.Renderer
	selection *selection.Controller
	palette   *graph.Palette

	dragging string
}

// New creates an empty scene sized to size.
func New(size viewport.Size, opts ...Option) *Scene {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.renderer == nil {
		o.renderer = render.New()
	}

	engineOpts := []layout.Option{layout.WithLogger(o.logger)}
	if o.params != nil {
		engineOpts = append(engineOpts, layout.WithParams(*o.params))
	}

	return &Scene{
		logger:   o.logger,
		engine:   layout.NewEngine(size, engineOpts...),
		renderer: o.renderer,
		selection: selection.New(
			selection.WithActivateHandler(o.onActivate),
			selection.WithClearHandler(o.onClear),
		),
		palette: graph.NewPalette(),
	}
}

// SetData replaces the result set. Positions, resolved links, colors and
// the selection from the previous set are all discarded before it returns.
func (s *Scene) SetData(data graph.GraphData) graph.Report {
	s.dragging = ""
	report := s.engine.Load(data)
	s.palette = graph.NewPalette()
	s.selection.Reset()
	s.logger.Debug("scene data replaced",
		zap.Int("nodes", report.Nodes),
		zap.Int("links", report.Links))
	return report
}

// Resize applies a new viewport size.
func (s *Scene) Resize(size viewport.Size) {
	if size.IsZero() {
		return
	}
	s.engine.Resize(size)
}

// Tick advances the layout one step and reports whether anything moved.
func (s *Scene) Tick() bool {
	return s.engine.Tick()
}

// Active reports whether the layout is still moving.
func (s *Scene) Active() bool {
	return s.engine.Active()
}

// Settle runs the layout to rest.
func (s *Scene) Settle(maxTicks int) int {
	return s.engine.Settle(maxTicks)
}

// Frame snapshots the current state for drawing.
func (s *Scene) Frame() render.Frame {
	return render.NewFrame(s.engine, s.palette, s.selection.SelectedID())
}

// Draw renders the current frame onto c.
func (s *Scene) Draw(c render.Canvas) {
	s.renderer.Draw(c, s.Frame())
}

// Size returns the current viewport size.
func (s *Scene) Size() viewport.Size {
	return s.engine.Size()
}

// Forces returns the current force parameters.
func (s *Scene) Forces() layout.Forces {
	return s.engine.Forces()
}

// Nodes returns the current nodes.
func (s *Scene) Nodes() []graph.GraphNode {
	return s.engine.Nodes()
}

// Position returns the position of the node with id.
func (s *Scene) Position(id string) (layout.Point, bool) {
	i, ok := s.engine.Index(id)
	if !ok {
		return layout.Point{}, false
	}
	return s.engine.Position(i), true
}

// NodeAt returns the topmost node under (x, y).
func (s *Scene) NodeAt(x, y float64) (graph.GraphNode, bool) {
	i, ok := s.Frame().NodeAt(x, y)
	if !ok {
		return graph.GraphNode{}, false
	}
	return s.engine.Nodes()[i], true
}

// Click handles a pointer click at (x, y). Clicks on empty space are
// ignored. It reports whether a node was hit.
func (s *Scene) Click(x, y float64) bool {
	n, ok := s.NodeAt(x, y)
	if !ok {
		return false
	}
	s.selection.Click(n)
	return true
}

// ClickNode handles a click on the node with id, as when a host performs
// its own hit testing.
func (s *Scene) ClickNode(id string) bool {
	i, ok := s.engine.Index(id)
	if !ok {
		return false
	}
	s.selection.Click(s.engine.Nodes()[i])
	return true
}

// Dismiss closes the detail selection.
func (s *Scene) Dismiss() {
	s.selection.Dismiss()
}

// Selected returns the selected node.
func (s *Scene) Selected() (graph.GraphNode, bool) {
	return s.selection.Selected()
}

// DragStart begins dragging the node under (x, y).
func (s *Scene) DragStart(x, y float64) bool {
	n, ok := s.NodeAt(x, y)
	if !ok {
		return false
	}
	s.dragging = n.ID
	s.engine.Pin(n.ID, x, y)
	return true
}

// Drag moves the dragged node to (x, y).
func (s *Scene) Drag(x, y float64) {
	if s.dragging == "" {
		return
	}
	s.engine.Pin(s.dragging, x, y)
}

// DragEnd releases the dragged node.
func (s *Scene) DragEnd() {
	if s.dragging == "" {
		return
	}
	s.engine.Unpin(s.dragging)
	s.dragging = ""
}
