package gallery

import "math"

// EuclideanDistance computes the Euclidean distance between two vectors.
// Returns +Inf for mismatched lengths or empty input.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// PersonBest returns the minimum distance between the query and any of the
// person's stored descriptors. Returns +Inf for a person with no descriptors.
func PersonBest(query Descriptor, p *Person) float64 {
	best := math.Inf(1)
	for _, d := range p.Descriptors {
		if dist := EuclideanDistance(query, d); dist < best {
			best = dist
		}
	}
	return best
}
