// Package embedding turns search text into vectors for similarity queries
// against the graph's vector index.
package embedding

import "math"

// Embedding is a text embedding vector.
type Embedding struct {
	Vector []float32
}

// Dimensions returns the length of the vector.
func (e Embedding) Dimensions() int {
	return len(e.Vector)
}

// Float64s returns the vector widened to float64, the element type the
// database driver sends as a list of floats.
func (e Embedding) Float64s() []float64 {
	out := make([]float64, len(e.Vector))
	for i, v := range e.Vector {
		out[i] = float64(v)
	}
	return out
}

// Cosine returns the cosine similarity of two embeddings, or 0 when the
// dimensions differ or either vector is zero.
func (e Embedding) Cosine(other Embedding) float64 {
	if len(e.Vector) != len(other.Vector) || len(e.Vector) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range e.Vector {
		a, b := float64(e.Vector[i]), float64(other.Vector[i])
		dot += a * b
		na += a * a
		nb += b * b
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
