// Package layout positions graph nodes with a force-directed simulation.
package layout

import "math"

// Simulation defaults, matching the usual d3-force behavior.
const (
	DefaultAlphaMin      = 0.001
	DefaultVelocityDecay = 0.4
	DefaultReheatAlpha   = 0.3

	// decayTicks is the number of ticks for alpha to cool from 1 to alphaMin.
	decayTicks = 300
)

// Point is a position in canvas coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Body is the physical state of one node. Bodies live in an arena parallel
// to the node slice and are addressed by index.
type Body struct {
	X, Y   float64
	VX, VY float64

	// Radius is the collision radius.
	Radius float64

	pinned bool
	px, py float64
}

// Pinned reports whether the body is held at a fixed position.
func (b *Body) Pinned() bool {
	return b.pinned
}

// Force mutates body velocities (or positions) once per tick.
type Force interface {
	Apply(bodies []Body, alpha float64)
}

// Simulation steps a set of bodies under a list of forces.
type Simulation struct {
	bodies []Body
	forces []Force

	alpha         float64
	alphaMin      float64
	alphaDecay    float64
	alphaTarget   float64
	velocityDecay float64
}

// NewSimulation creates a hot simulation over bodies.
func NewSimulation(bodies []Body) *Simulation {
	return &Simulation{
		bodies:        bodies,
		alpha:         1,
		alphaMin:      DefaultAlphaMin,
		alphaDecay:    1 - math.Pow(DefaultAlphaMin, 1.0/decayTicks),
		velocityDecay: DefaultVelocityDecay,
	}
}

// SetForces replaces the active forces. They run in order each tick.
func (s *Simulation) SetForces(forces ...Force) {
	s.forces = forces
}

// Bodies exposes the arena. Callers outside the package must treat it as
// read-only.
func (s *Simulation) Bodies() []Body {
	return s.bodies
}

// Alpha returns the current temperature.
func (s *Simulation) Alpha() float64 {
	return s.alpha
}

// SetAlpha sets the current temperature.
func (s *Simulation) SetAlpha(alpha float64) {
	s.alpha = alpha
}

// SetAlphaTarget sets the temperature alpha decays toward.
func (s *Simulation) SetAlphaTarget(target float64) {
	s.alphaTarget = target
}

// Active reports whether the simulation still moves bodies.
func (s *Simulation) Active() bool {
	return s.alpha >= s.alphaMin || s.alphaTarget >= s.alphaMin
}

// Step advances one tick if the simulation is active and reports whether
// it did.
func (s *Simulation) Step() bool {
	if !s.Active() {
		return false
	}
	s.Tick()
	return true
}

// Tick advances the simulation by one step regardless of temperature.
func (s *Simulation) Tick() {
	s.alpha += (s.alphaTarget - s.alpha) * s.alphaDecay

	for _, f := range s.forces {
		f.Apply(s.bodies, s.alpha)
	}

	keep := 1 - s.velocityDecay
	for i := range s.bodies {
		b := &s.bodies[i]
		if b.pinned {
			b.X, b.Y = b.px, b.py
			b.VX, b.VY = 0, 0
			continue
		}
		b.VX *= keep
		b.VY *= keep
		b.X += b.VX
		b.Y += b.VY
	}
}

// Pin holds body i at (x, y) until Unpin.
func (s *Simulation) Pin(i int, x, y float64) {
	b := &s.bodies[i]
	b.pinned = true
	b.px, b.py = x, y
	b.X, b.Y = x, y
	b.VX, b.VY = 0, 0
}

// Unpin releases body i.
func (s *Simulation) Unpin(i int) {
	s.bodies[i].pinned = false
}

// initialPlacement arranges bodies on a phyllotaxis spiral around (cx, cy)
// so that no two start at the same point.
func initialPlacement(bodies []Body, cx, cy float64) {
	const initialRadius = 10.0
	angle := math.Pi * (3 - math.Sqrt(5))
	for i := range bodies {
		r := initialRadius * math.Sqrt(0.5+float64(i))
		a := float64(i) * angle
		bodies[i].X = cx + r*math.Cos(a)
		bodies[i].Y = cy + r*math.Sin(a)
		bodies[i].VX, bodies[i].VY = 0, 0
	}
}

// jiggle returns a tiny deterministic offset used to separate coincident
// points. The sign alternates with seed.
func jiggle(seed int) float64 {
	v := 1e-6 * float64(seed%7+1)
	if seed%2 == 0 {
		return -v
	}
	return v
}
