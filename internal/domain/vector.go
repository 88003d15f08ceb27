package domain

import (
	"fmt"
	"math"
)

// CheckDimension returns ErrDimensionMismatch unless len(v) == dim.
func CheckDimension(v []float32, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dim, len(v))
	}
	return nil
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Zero vectors and vectors of different length have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineDistance is 1 - CosineSimilarity, in [0,2]; nearer is smaller.
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

// WeightedVector is one input to a weighted centroid.
type WeightedVector struct {
	Vector []float32
	Weight float64
}

// WeightedMean computes sum(v[i]*w) / n over the inputs, where n is the number of inputs.
// Every input must have length dim. An empty input yields nil.
func WeightedMean(inputs []WeightedVector, dim int) ([]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	sum := make([]float64, dim)
	for _, in := range inputs {
		if err := CheckDimension(in.Vector, dim); err != nil {
			return nil, err
		}
		for i, x := range in.Vector {
			sum[i] += float64(x) * in.Weight
		}
	}

	out := make([]float32, dim)
	n := float64(len(inputs))
	for i := range sum {
		out[i] = float32(sum[i] / n)
	}
	return out, nil
}
