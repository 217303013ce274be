// Package similarity computes cosine similarity between embedding vectors.
package similarity

import (
	"math"

	"github.com/formbricks/wordsim/internal/models"
)

// Magnitude returns the Euclidean norm of v.
func Magnitude(v []float32) float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}

	return math.Sqrt(sumSquares)
}

// Cosine returns dot(a, b) / (|a|*|b|).
// The result is NaN when either vector has zero magnitude or the lengths differ;
// NaN is an error marker and must never be ranked.
func Cosine(a, b []float32) float64 {
	return cosine(a, b, Magnitude(a), Magnitude(b))
}

func cosine(a, b []float32, magA, magB float64) float64 {
	if len(a) != len(b) {
		return math.NaN()
	}

	denom := magA * magB
	if denom == 0 || math.IsNaN(denom) {
		return math.NaN()
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	return dot / denom
}

// Valid reports whether score is usable for comparison or ranking.
func Valid(score float64) bool {
	return !math.IsNaN(score) && !math.IsInf(score, 0)
}

// AgainstHistory computes the similarity of vector (with norm magnitude) against
// every entry in history, keyed by entry text in history order. history is not modified.
func AgainstHistory(vector []float32, magnitude float64, history []models.Entry) *models.Similarities {
	sims := models.NewSimilarities(len(history))
	for _, entry := range history {
		sims.Set(entry.Text, cosine(vector, entry.Embedding, magnitude, entry.Magnitude))
	}

	return sims
}
