package gallery

import (
	"math"
	"sync"
)

// MatchResult is the outcome of matching one query descriptor against the
// enrolled gallery.
type MatchResult struct {
	// Name is the display name of the best person when the acceptance rule
	// holds, Unknown otherwise.
	Name string `json:"name"`
	// BestName is the display name of the nearest person regardless of
	// acceptance, empty for an empty gallery.
	BestName string `json:"best_name,omitempty"`
	// Distance is the best person-best distance, +Inf for an empty gallery.
	Distance float64 `json:"distance"`
	// SecondBest is the lowest competing person-best distance, +Inf when
	// fewer than two people are enrolled.
	SecondBest float64 `json:"second_best"`
	// Accepted reports whether the acceptance rule held.
	Accepted bool `json:"accepted"`
}

// Matcher applies the nearest-person acceptance rule: a query is attributed
// to the best-matching person only if the best distance is within the
// threshold and the second-best competing person is at least the margin
// further away. Threshold and margin are runtime-adjustable.
type Matcher struct {
	mu        sync.RWMutex
	threshold float64
	margin    float64
}

// NewMatcher creates a matcher with the given distance threshold and
// acceptance margin.
func NewMatcher(threshold, margin float64) *Matcher {
	return &Matcher{threshold: threshold, margin: margin}
}

// Threshold returns the current distance threshold.
func (m *Matcher) Threshold() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.threshold
}

// Margin returns the current acceptance margin.
func (m *Matcher) Margin() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.margin
}

// SetThreshold updates the distance threshold.
func (m *Matcher) SetThreshold(v float64) {
	m.mu.Lock()
	m.threshold = v
	m.mu.Unlock()
}

// SetMargin updates the acceptance margin.
func (m *Matcher) SetMargin(v float64) {
	m.mu.Lock()
	m.margin = v
	m.mu.Unlock()
}

// Match computes per-person best distances for the query and applies the
// acceptance rule. Ties among descriptors of the same person never count
// toward the second-best value; only the lowest competing person does, so a
// single enrolled person always has a second-best of +Inf.
func (m *Matcher) Match(query Descriptor, people []Person) MatchResult {
	best := math.Inf(1)
	secondBest := math.Inf(1)
	bestName := ""

	for i := range people {
		pb := PersonBest(query, &people[i])
		switch {
		case pb < best:
			secondBest = best
			best = pb
			bestName = people[i].Display
		case pb < secondBest:
			secondBest = pb
		}
	}

	result := MatchResult{
		Name:       Unknown,
		BestName:   bestName,
		Distance:   best,
		SecondBest: secondBest,
	}

	m.mu.RLock()
	threshold, margin := m.threshold, m.margin
	m.mu.RUnlock()

	if bestName != "" && best <= threshold && secondBest-best >= margin {
		result.Name = bestName
		result.Accepted = true
	}
	return result
}
