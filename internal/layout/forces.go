package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"
)

// Spring is a link resolved to body indices.
type Spring struct {
	Source   int
	Target   int
	Distance float64
}

// LinkForce pulls linked bodies toward their target distance.
type LinkForce struct {
	springs  []Spring
	strength float64
	bias     []float64
}

// NewLinkForce creates a link force over n bodies. Each spring's
// displacement is split between its ends by degree, so hubs move less.
func NewLinkForce(springs []Spring, n int, strength float64) *LinkForce {
	degree := make([]int, n)
	for _, s := range springs {
		degree[s.Source]++
		degree[s.Target]++
	}
	bias := make([]float64, len(springs))
	for i, s := range springs {
		bias[i] = float64(degree[s.Source]) / float64(degree[s.Source]+degree[s.Target])
	}
	return &LinkForce{springs: springs, strength: strength, bias: bias}
}

// Apply implements Force.
func (f *LinkForce) Apply(bodies []Body, alpha float64) {
	for i, sp := range f.springs {
		if sp.Source == sp.Target {
			continue
		}
		s, t := &bodies[sp.Source], &bodies[sp.Target]
		x := t.X + t.VX - s.X - s.VX
		y := t.Y + t.VY - s.Y - s.VY
		if x == 0 {
			x = jiggle(i)
		}
		if y == 0 {
			y = jiggle(i + 1)
		}
		l := math.Sqrt(x*x + y*y)
		l = (l - sp.Distance) / l * alpha * f.strength
		x *= l
		y *= l

		b := f.bias[i]
		t.VX -= x * b
		t.VY -= y * b
		s.VX += x * (1 - b)
		s.VY += y * (1 - b)
	}
}

// ChargeForce is an n-body repulsion (negative strength) or attraction,
// approximated with a Barnes-Hut quadtree.
type ChargeForce struct {
	Strength    float64
	DistanceMin float64
	DistanceMax float64
	Theta       float64
}

// particle adapts a body to the barneshut package.
type particle struct {
	b *Body
}

func (p particle) Coord2() r2.Vec { return r2.Vec{X: p.b.X, Y: p.b.Y} }
func (p particle) Mass() float64  { return 1 }

// Apply implements Force.
func (f *ChargeForce) Apply(bodies []Body, alpha float64) {
	if len(bodies) < 2 {
		return
	}

	particles := make([]barneshut.Particle2, len(bodies))
	for i := range bodies {
		particles[i] = particle{b: &bodies[i]}
	}

	plane, err := barneshut.NewPlane(particles)
	for i, p := range particles {
		var v r2.Vec
		if err == nil {
			v = plane.ForceOn(p, f.Theta, f.pair)
		} else {
			// The tree cannot separate the points; sum directly.
			v = f.direct(particles, i)
		}
		bodies[i].VX += v.X * alpha
		bodies[i].VY += v.Y * alpha
	}
}

// pair is the force on a body from a mass m2 displaced by v.
func (f *ChargeForce) pair(_, _ barneshut.Particle2, _, m2 float64, v r2.Vec) r2.Vec {
	d2 := v.X*v.X + v.Y*v.Y
	if d2 == 0 || (f.DistanceMax > 0 && d2 >= f.DistanceMax*f.DistanceMax) {
		return r2.Vec{}
	}
	if min2 := f.DistanceMin * f.DistanceMin; d2 < min2 {
		d2 = math.Sqrt(min2 * d2)
	}
	return r2.Scale(f.Strength*m2/d2, v)
}

func (f *ChargeForce) direct(particles []barneshut.Particle2, i int) r2.Vec {
	var sum r2.Vec
	pi := particles[i].Coord2()
	for j, pj := range particles {
		if j == i {
			continue
		}
		sum = r2.Add(sum, f.pair(nil, nil, 1, 1, r2.Sub(pj.Coord2(), pi)))
	}
	return sum
}

// CenterForce shifts all bodies so their centroid moves toward (X, Y).
type CenterForce struct {
	X, Y     float64
	Strength float64
}

// Apply implements Force.
func (f *CenterForce) Apply(bodies []Body, _ float64) {
	if len(bodies) == 0 {
		return
	}
	var sx, sy float64
	for i := range bodies {
		sx += bodies[i].X
		sy += bodies[i].Y
	}
	n := float64(len(bodies))
	dx := (sx/n - f.X) * f.Strength
	dy := (sy/n - f.Y) * f.Strength
	for i := range bodies {
		bodies[i].X -= dx
		bodies[i].Y -= dy
	}
}

// CollideForce pushes apart bodies whose collision discs overlap. A strength
// below one lets the layout settle instead of snapping apart.
type CollideForce struct {
	Strength   float64
	Iterations int
}

type cellKey struct{ x, y int }

// Apply implements Force.
func (f *CollideForce) Apply(bodies []Body, _ float64) {
	maxRadius := 0.0
	for i := range bodies {
		maxRadius = math.Max(maxRadius, bodies[i].Radius)
	}
	if maxRadius == 0 || len(bodies) < 2 {
		return
	}
	cell := 2 * maxRadius

	iterations := max(f.Iterations, 1)
	for k := 0; k < iterations; k++ {
		grid := make(map[cellKey][]int, len(bodies))
		for i := range bodies {
			key := cellOf(bodies[i].X+bodies[i].VX, bodies[i].Y+bodies[i].VY, cell)
			grid[key] = append(grid[key], i)
		}

		for i := range bodies {
			node := &bodies[i]
			xi, yi := node.X+node.VX, node.Y+node.VY
			ri := node.Radius
			home := cellOf(xi, yi, cell)

			for gx := home.x - 1; gx <= home.x+1; gx++ {
				for gy := home.y - 1; gy <= home.y+1; gy++ {
					for _, j := range grid[cellKey{gx, gy}] {
						if j <= i {
							continue
						}
						f.separate(node, &bodies[j], xi, yi, ri, i+j)
					}
				}
			}
		}
	}
}

func (f *CollideForce) separate(node, other *Body, xi, yi, ri float64, seed int) {
	rj := other.Radius
	r := ri + rj
	x := xi - other.X - other.VX
	y := yi - other.Y - other.VY
	l := x*x + y*y
	if l >= r*r {
		return
	}
	if x == 0 {
		x = jiggle(seed)
		l += x * x
	}
	if y == 0 {
		y = jiggle(seed + 1)
		l += y * y
	}
	l = math.Sqrt(l)
	l = (r - l) / l * f.Strength

	x *= l
	y *= l
	rj2 := rj * rj
	share := rj2 / (ri*ri + rj2)
	node.VX += x * share
	node.VY += y * share
	other.VX -= x * (1 - share)
	other.VY -= y * (1 - share)
}

func cellOf(x, y, size float64) cellKey {
	return cellKey{int(math.Floor(x / size)), int(math.Floor(y / size))}
}
