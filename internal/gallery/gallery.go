package gallery

import (
	"context"
	"fmt"
)

// Gallery combines the descriptor store, the matcher, and the optional
// HNSW candidate index behind one identification entry point.
type Gallery struct {
	store   Store
	matcher *Matcher
	index   *Index
}

// New creates a gallery. The index may be nil, in which case every
// identification scans the full store.
func New(store Store, matcher *Matcher, index *Index) *Gallery {
	return &Gallery{store: store, matcher: matcher, index: index}
}

// Store returns the underlying descriptor store.
func (g *Gallery) Store() Store { return g.store }

// Matcher returns the matcher, for runtime threshold adjustment.
func (g *Gallery) Matcher() *Matcher { return g.matcher }

// Identify matches the query descriptor against the enrolled gallery.
// For galleries past the index cutoff the HNSW index narrows the scan to
// candidate people first; the matcher then recomputes exact distances and
// the margin rule over at least two candidates, so acceptance semantics
// are the same on both paths.
func (g *Gallery) Identify(ctx context.Context, query Descriptor) (MatchResult, error) {
	people, err := g.store.List(ctx)
	if err != nil {
		return MatchResult{}, fmt.Errorf("listing gallery: %w", err)
	}

	if g.index != nil && g.index.Samples() >= IndexCutoff {
		if candidates := g.candidatePeople(query, people); candidates != nil {
			people = candidates
		}
	}

	return g.matcher.Match(query, people), nil
}

// RebuildIndex refreshes the candidate index from the store. Call after
// every mutation. A nil index makes this a no-op.
func (g *Gallery) RebuildIndex(ctx context.Context) error {
	if g.index == nil {
		return nil
	}
	people, err := g.store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing gallery: %w", err)
	}
	return g.index.Rebuild(people)
}

// SaveIndex persists the candidate index, if configured.
func (g *Gallery) SaveIndex() error {
	if g.index == nil {
		return nil
	}
	return g.index.Save()
}

// candidatePeople filters the full person list down to index candidates.
// The margin rule needs the best competing person, so at least two distinct
// people are requested. Returns nil when the index yields nothing.
func (g *Gallery) candidatePeople(query Descriptor, people []Person) []Person {
	names := g.index.CandidateNames(query, 2*hnswMaxNeighbors)
	if len(names) == 0 {
		return nil
	}

	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}

	candidates := make([]Person, 0, len(names))
	for i := range people {
		if _, ok := wanted[people[i].Name]; ok {
			candidates = append(candidates, people[i])
		}
	}
	if len(candidates) < 2 && len(candidates) < len(people) {
		// Not enough competitors for the margin rule, fall back to the
		// full scan.
		return nil
	}
	return candidates
}
