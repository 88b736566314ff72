package faces

import "math"

// maxDistance is the distance reported for vectors that cannot be compared:
// mismatched lengths, empty inputs, or an all-zero vector.
const maxDistance = 2.0

// CosineSimilarity returns the cosine of the angle between two embeddings,
// accumulated in float64 and clamped to [-1, 1]. Incomparable inputs report
// -1, the similarity of opposite vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dot, sumA, sumB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		sumA += float64(a[i]) * float64(a[i])
		sumB += float64(b[i]) * float64(b[i])
	}
	if sumA == 0 || sumB == 0 {
		return -1
	}
	return clamp(dot / (math.Sqrt(sumA) * math.Sqrt(sumB)))
}

// CosineDistance returns 1 - cosine similarity, in [0, 2]. This is the
// metric the clustering and the representative selection run on.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return maxDistance
	}
	return 1 - CosineSimilarity(a, b)
}

// clamp keeps a similarity inside [-1, 1]; accumulated rounding can push the
// raw ratio slightly outside.
func clamp(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
