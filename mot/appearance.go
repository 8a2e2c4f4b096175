package mot

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// NormalizeEmbedding scales the vector to unit L2 norm in place and
// returns it. A zero vector is returned unchanged.
func NormalizeEmbedding(v []float64) []float64 {
	norm := floats.Norm(v, 2)
	if norm == 0 {
		return v
	}
	floats.Scale(1.0/norm, v)
	return v
}

// CosineSimilarity returns the cosine of the angle between two vectors
// in [-1, 1]. Mismatched lengths or zero vectors yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}

// CosineDistance is 1 - CosineSimilarity, clamped to [0, 2].
func CosineDistance(a, b []float64) float64 {
	d := 1.0 - CosineSimilarity(a, b)
	return math.Max(0, math.Min(2, d))
}

// blendEmbedding refreshes a track's appearance descriptor with a new
// measurement using an exponential moving average and re-normalizes the
// result. With alpha=0 the old descriptor wins, with alpha=1 the new one.
func blendEmbedding(old, latest []float64, alpha float64) []float64 {
	if len(old) == 0 {
		out := make([]float64, len(latest))
		copy(out, latest)
		return NormalizeEmbedding(out)
	}
	if len(latest) != len(old) {
		return old
	}
	out := make([]float64, len(old))
	for i := range old {
		out[i] = (1.0-alpha)*old[i] + alpha*latest[i]
	}
	return NormalizeEmbedding(out)
}
