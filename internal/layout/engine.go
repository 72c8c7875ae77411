package layout

import (
	"math"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/viewport"
)

// EstimatedCharWidth approximates the width of one label character. Link
// distances use it instead of measuring text.
const EstimatedCharWidth = 6.0

// DefaultSettleTicks bounds Settle when the caller has no preference.
const DefaultSettleTicks = 600

// EstimatedTextWidth approximates the rendered width of text.
func EstimatedTextWidth(text string) float64 {
	return EstimatedCharWidth * float64(utf8.RuneCountInString(text))
}

// Params are the tunable force constants.
type Params struct {
	CollideFactor     float64 // minimum center separation as a multiple of node radius
	CollideStrength   float64
	LinkStrength      float64
	MinLinkDistance   float64
	ChargeStrength    float64
	ChargeDistanceMax float64
	ChargeTheta       float64
	CenterStrength    float64
	SchemaScale       float64 // schema node radius as a multiple of node radius
}

// DefaultParams returns the standard force constants.
func DefaultParams() Params {
	return Params{
		CollideFactor:     1.6,
		CollideStrength:   0.7,
		LinkStrength:      0.5,
		MinLinkDistance:   60,
		ChargeStrength:    -500,
		ChargeDistanceMax: 300,
		ChargeTheta:       0.9,
		CenterStrength:    0.05,
		SchemaScale:       1.5,
	}
}

// LinkDistance returns the target length of a link so its label fits.
func (p Params) LinkDistance(linkType string) float64 {
	return math.Max(EstimatedTextWidth(linkType)*2, p.MinLinkDistance)
}

// Forces is a snapshot of the parameters currently driving the simulation.
type Forces struct {
	NodeRadius        float64 `json:"nodeRadius"`
	CollideDistance   float64 `json:"collideDistance"`
	CollideStrength   float64 `json:"collideStrength"`
	LinkStrength      float64 `json:"linkStrength"`
	ChargeStrength    float64 `json:"chargeStrength"`
	ChargeDistanceMax float64 `json:"chargeDistanceMax"`
	CenterX           float64 `json:"centerX"`
	CenterY           float64 `json:"centerY"`
	CenterStrength    float64 `json:"centerStrength"`
}

// Edge is a link resolved to node indices.
type Edge struct {
	Source   int
	Target   int
	Type     string
	Distance float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithParams overrides the force constants.
func WithParams(p Params) Option {
	return func(e *Engine) {
		e.params = p
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine owns the simulation for one result set. It is the only writer of
// node positions.
type Engine struct {
	params Params
	logger *zap.Logger

	nodes []graph.GraphNode
	edges []Edge
	index map[string]int
	sim   *Simulation

	size   viewport.Size
	radius float64
	forces Forces
}

// NewEngine creates an engine for an initially empty result set.
func NewEngine(size viewport.Size, opts ...Option) *Engine {
	e := &Engine{
		params: DefaultParams(),
		logger: zap.NewNop(),
		size:   size,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Load(graph.GraphData{})
	return e
}

// Load replaces the result set. All derived state (positions, resolved
// links) is discarded; dangling links and duplicate nodes are dropped.
func (e *Engine) Load(data graph.GraphData) graph.Report {
	clean, report := graph.Sanitize(data)

	index := make(map[string]int, len(clean.Nodes))
	for i, n := range clean.Nodes {
		index[n.ID] = i
	}
	edges := make([]Edge, len(clean.Links))
	for i, l := range clean.Links {
		edges[i] = Edge{Source: index[l.Source], Target: index[l.Target], Type: l.Type}
	}

	bodies := make([]Body, len(clean.Nodes))
	cx, cy := e.size.Center()
	initialPlacement(bodies, cx, cy)

	e.nodes = clean.Nodes
	e.edges = edges
	e.index = index
	e.sim = NewSimulation(bodies)
	e.configure()

	if report.Dropped() > 0 {
		e.logger.Warn("dropped invalid graph elements",
			zap.Int("droppedNodes", report.DroppedNodes),
			zap.Int("danglingLinks", report.DanglingLinks))
	}
	return report
}

// Resize applies a new viewport size and recomputes the forces.
func (e *Engine) Resize(size viewport.Size) {
	if size == e.size {
		return
	}
	e.size = size
	e.configure()
	if e.sim.Alpha() < DefaultReheatAlpha {
		e.sim.SetAlpha(DefaultReheatAlpha)
	}
}

// configure derives every force from the node radius, the data and the
// viewport. It runs on load and resize, never per tick.
func (e *Engine) configure() {
	p := e.params
	e.radius = viewport.NodeRadius(e.size)
	cx, cy := e.size.Center()

	bodies := e.sim.Bodies()
	for i := range bodies {
		bodies[i].Radius = e.RadiusOf(i) * p.CollideFactor / 2
	}

	springs := make([]Spring, len(e.edges))
	for i := range e.edges {
		e.edges[i].Distance = p.LinkDistance(e.edges[i].Type)
		springs[i] = Spring{Source: e.edges[i].Source, Target: e.edges[i].Target, Distance: e.edges[i].Distance}
	}

	e.sim.SetForces(
		NewLinkForce(springs, len(bodies), p.LinkStrength),
		&ChargeForce{Strength: p.ChargeStrength, DistanceMin: 1, DistanceMax: p.ChargeDistanceMax, Theta: p.ChargeTheta},
		&CenterForce{X: cx, Y: cy, Strength: p.CenterStrength},
		&CollideForce{Strength: p.CollideStrength, Iterations: 1},
	)

	e.forces = Forces{
		NodeRadius:        e.radius,
		CollideDistance:   e.radius * p.CollideFactor,
		CollideStrength:   p.CollideStrength,
		LinkStrength:      p.LinkStrength,
		ChargeStrength:    p.ChargeStrength,
		ChargeDistanceMax: p.ChargeDistanceMax,
		CenterX:           cx,
		CenterY:           cy,
		CenterStrength:    p.CenterStrength,
	}
}

// Tick advances the simulation one step while it is active.
func (e *Engine) Tick() bool {
	return e.sim.Step()
}

// Active reports whether further ticks will move nodes.
func (e *Engine) Active() bool {
	return e.sim.Active()
}

// Settle ticks until the simulation cools or maxTicks is reached, then
// removes any remaining overlaps. It returns the number of ticks run.
func (e *Engine) Settle(maxTicks int) int {
	ticks := 0
	for ticks < maxTicks && e.sim.Step() {
		ticks++
	}
	bodies := e.sim.Bodies()
	if !resolveOverlaps(bodies, overlapPassLimit(len(bodies))) {
		e.logger.Warn("overlap resolution did not converge",
			zap.Int("nodes", len(e.nodes)),
			zap.Int("links", len(e.edges)))
	}
	return ticks
}

// Nodes returns the sanitized nodes in arena order.
func (e *Engine) Nodes() []graph.GraphNode {
	return e.nodes
}

// Edges returns the resolved links.
func (e *Engine) Edges() []Edge {
	return e.edges
}

// Index returns the arena index of a node id.
func (e *Engine) Index(id string) (int, bool) {
	i, ok := e.index[id]
	return i, ok
}

// Position returns the current position of node i.
func (e *Engine) Position(i int) Point {
	b := &e.sim.Bodies()[i]
	return Point{X: b.X, Y: b.Y}
}

// Positions returns a copy of all node positions in arena order.
func (e *Engine) Positions() []Point {
	bodies := e.sim.Bodies()
	pts := make([]Point, len(bodies))
	for i := range bodies {
		pts[i] = Point{X: bodies[i].X, Y: bodies[i].Y}
	}
	return pts
}

// NodeRadius returns the radius of a regular node.
func (e *Engine) NodeRadius() float64 {
	return e.radius
}

// RadiusOf returns the drawn radius of node i. Schema nodes are larger.
func (e *Engine) RadiusOf(i int) float64 {
	if e.nodes[i].IsSchema() {
		return e.radius * e.params.SchemaScale
	}
	return e.radius
}

// Forces returns the current force parameters.
func (e *Engine) Forces() Forces {
	return e.forces
}

// Size returns the viewport size the forces were computed for.
func (e *Engine) Size() viewport.Size {
	return e.size
}

// Pin holds a node at (x, y), typically while it is dragged, and keeps the
// simulation warm so neighbors follow.
func (e *Engine) Pin(id string, x, y float64) bool {
	i, ok := e.index[id]
	if !ok {
		return false
	}
	e.sim.Pin(i, x, y)
	e.sim.SetAlphaTarget(DefaultReheatAlpha)
	if e.sim.Alpha() < DefaultReheatAlpha {
		e.sim.SetAlpha(DefaultReheatAlpha)
	}
	return true
}

// Unpin releases a dragged node and lets the simulation cool.
func (e *Engine) Unpin(id string) bool {
	i, ok := e.index[id]
	if !ok {
		return false
	}
	e.sim.Unpin(i)
	e.sim.SetAlphaTarget(0)
	return true
}
