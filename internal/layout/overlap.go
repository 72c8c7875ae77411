package layout

import "math"

// Bounds on the hard separation pass run after settling. Dense layouts need
// roughly as many passes as they have nodes to converge.
const (
	minOverlapPasses     = 200
	overlapPassesPerNode = 10
)

// separationSlack keeps separated pairs strictly apart despite rounding.
const separationSlack = 1e-6

// overlapPassLimit returns the pass bound for n bodies.
func overlapPassLimit(n int) int {
	return max(minOverlapPasses, overlapPassesPerNode*n)
}

// resolveOverlaps moves bodies apart until no two collision discs overlap or
// maxPasses is reached. Pinned bodies are never moved. It reports whether
// the layout is overlap free.
//
// Each pass buckets bodies into a grid of cells two maximum radii wide, so
// only neighbouring cells are compared. A pass that moves nothing saw an
// exact grid and therefore proves the layout overlap free.
func resolveOverlaps(bodies []Body, maxPasses int) bool {
	maxRadius := 0.0
	for i := range bodies {
		maxRadius = math.Max(maxRadius, bodies[i].Radius)
	}
	if maxRadius == 0 || len(bodies) < 2 {
		return true
	}
	cell := 2 * maxRadius

	grid := make(map[cellKey][]int, len(bodies))
	for pass := 0; pass < maxPasses; pass++ {
		clear(grid)
		for i := range bodies {
			key := cellOf(bodies[i].X, bodies[i].Y, cell)
			grid[key] = append(grid[key], i)
		}

		moved := false
		for i := range bodies {
			home := cellOf(bodies[i].X, bodies[i].Y, cell)
			for gx := home.x - 1; gx <= home.x+1; gx++ {
				for gy := home.y - 1; gy <= home.y+1; gy++ {
					for _, j := range grid[cellKey{gx, gy}] {
						if j <= i {
							continue
						}
						if separatePair(&bodies[i], &bodies[j], j) {
							moved = true
						}
					}
				}
			}
		}
		if !moved {
			return true
		}
	}
	return false
}

func separatePair(a, b *Body, seed int) bool {
	if a.pinned && b.pinned {
		return false
	}
	minDist := a.Radius + b.Radius
	dx := b.X - a.X
	dy := b.Y - a.Y
	d2 := dx*dx + dy*dy
	if d2 >= minDist*minDist {
		return false
	}

	var ux, uy float64
	d := math.Sqrt(d2)
	if d == 0 {
		ux, uy = math.Cos(float64(seed)), math.Sin(float64(seed))
	} else {
		ux, uy = dx/d, dy/d
	}
	push := minDist - d + separationSlack

	switch {
	case a.pinned:
		b.X += ux * push
		b.Y += uy * push
	case b.pinned:
		a.X -= ux * push
		a.Y -= uy * push
	default:
		half := push / 2
		a.X -= ux * half
		a.Y -= uy * half
		b.X += ux * half
		b.Y += uy * half
	}
	a.VX, a.VY = 0, 0
	b.VX, b.VY = 0, 0
	return true
}
