package gallery

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/coder/hnsw"
)

// HNSW index parameters for 128-dim face descriptors.
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	hnswMaxNeighbors = 16

	// IndexCutoff is the enrolled-sample count below which the index is
	// skipped and matching scans the gallery directly.
	IndexCutoff = 256
)

// Index is an approximate-nearest-neighbor index over every stored
// descriptor, keyed "person\x00sampleIndex". It only pre-selects candidate
// people for large galleries; exact distances and the acceptance rule are
// always recomputed by the Matcher, so match semantics never depend on it.
type Index struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[string]
	savedGraph *hnsw.SavedGraph[string]
	keyToName  map[string]string
	path       string
	samples    int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{keyToName: make(map[string]string)}
}

func sampleKey(name string, i int) string {
	return fmt.Sprintf("%s\x00%d", name, i)
}

func nameFromKey(key string) string {
	if i := strings.IndexByte(key, 0); i >= 0 {
		return key[:i]
	}
	return key
}

// Rebuild replaces the index contents with the given people's descriptors.
func (ix *Index) Rebuild(people []Person) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.keyToName = make(map[string]string)
	ix.samples = 0
	ix.savedGraph = nil

	if len(people) == 0 {
		ix.graph = nil
		return nil
	}

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	for i := range people {
		p := &people[i]
		for j, d := range p.Descriptors {
			if len(d) == 0 {
				continue
			}
			key := sampleKey(p.Name, j)
			g.Add(hnsw.MakeNode(key, d))
			ix.keyToName[key] = p.Name
			ix.samples++
		}
	}

	ix.graph = g
	return nil
}

// CandidateNames returns the distinct person names owning the k nearest
// stored samples to the query, nearest first.
func (ix *Index) CandidateNames(query Descriptor, k int) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil && ix.savedGraph == nil {
		return nil
	}

	var neighbors []hnsw.Node[string]
	if ix.savedGraph != nil {
		neighbors = ix.savedGraph.Search(query, k)
	} else {
		neighbors = ix.graph.Search(query, k)
	}

	seen := make(map[string]struct{}, len(neighbors))
	names := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		name := nameFromKey(n.Key)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Samples returns the number of indexed descriptors.
func (ix *Index) Samples() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.samples
}

// SetPath sets the file used by Save.
func (ix *Index) SetPath(path string) {
	ix.mu.Lock()
	ix.path = path
	ix.mu.Unlock()
}

// Save persists the index to its configured path, if any. An empty index
// removes a previously saved file.
func (ix *Index) Save() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.path == "" {
		return nil
	}
	if ix.graph == nil {
		os.Remove(ix.path)
		return nil
	}

	f, err := os.Create(ix.path)
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	defer f.Close()

	return ix.graph.Export(f)
}

// Load reads a previously saved index from path.
func (ix *Index) Load(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.path = path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("index file not found: %s", path)
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return fmt.Errorf("loading index: %w", err)
	}
	ix.savedGraph = saved
	return nil
}
