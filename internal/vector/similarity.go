package vector

import (
	"math"
	"sort"
)

// InnerProduct returns the inner product of two vectors.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CosineDistance returns 1 - cos(a, b). Zero vectors are at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 || len(a) != len(b) {
		return 1
	}
	return 1 - InnerProduct(a, b)/(na*nb)
}

// nearest ranks records by cosine distance to query and keeps the k closest.
func nearest(records []Record, query []float32, k int) []Match {
	if k <= 0 || len(records) == 0 {
		return nil
	}
	matches := make([]Match, len(records))
	for i, r := range records {
		matches[i] = Match{Record: r, Distance: CosineDistance(query, r.Embedding)}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k]
}
