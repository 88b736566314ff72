// Package index keeps an approximate nearest neighbor index over clustered
// face embeddings. It backs cluster suggestions for unclustered faces; the
// clustering itself never goes through it, so its approximate answers cannot
// affect assignment results.
package index

import (
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-sorter/internal/faces"
)

const maxNeighbors = 16

// Index wraps an HNSW graph over the embeddings of clustered observations.
type Index struct {
	mu        sync.RWMutex
	graph     *hnsw.Graph[int64]
	byCluster map[int64]int // observation id -> raw cluster id
}

// New creates an empty index.
func New() *Index {
	return &Index{
		byCluster: make(map[int64]int),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

// Build indexes every clustered observation in the store. Noise observations
// are skipped; they have no cluster to suggest.
func (x *Index) Build(store *faces.Store) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.graph = newGraph()
	x.byCluster = make(map[int64]int)
	for _, obs := range store.Observations() {
		if obs.ClusterID < 0 || len(obs.Embedding) == 0 {
			continue
		}
		x.graph.Add(hnsw.MakeNode(obs.ID, obs.Embedding))
		x.byCluster[obs.ID] = obs.ClusterID
	}
}

// Add indexes one clustered observation.
func (x *Index) Add(obs faces.Observation) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if obs.ClusterID < 0 || len(obs.Embedding) == 0 {
		return
	}
	if x.graph == nil {
		x.graph = newGraph()
	}
	x.graph.Add(hnsw.MakeNode(obs.ID, obs.Embedding))
	x.byCluster[obs.ID] = obs.ClusterID
}

// Count returns the number of indexed observations.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byCluster)
}

// Suggestion is one candidate cluster for a query embedding, ranked by how
// many of the query's nearest neighbors it holds.
type Suggestion struct {
	ClusterRawID int     `json:"cluster_raw_id"`
	Votes        int     `json:"votes"`
	Distance     float64 `json:"distance"` // closest member's cosine distance
}

// Suggest searches the k nearest indexed faces and aggregates them into
// per-cluster suggestions, most votes first, ties broken by distance.
func (x *Index) Suggest(embedding []float32, k int) []Suggestion {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || len(x.byCluster) == 0 {
		return nil
	}

	neighbors := x.graph.Search(embedding, k)
	byCluster := make(map[int]*Suggestion)
	for _, n := range neighbors {
		clusterID, ok := x.byCluster[n.Key]
		if !ok {
			continue
		}
		dist := faces.CosineDistance(embedding, n.Value)
		s, ok := byCluster[clusterID]
		if !ok {
			byCluster[clusterID] = &Suggestion{ClusterRawID: clusterID, Votes: 1, Distance: dist}
			continue
		}
		s.Votes++
		if dist < s.Distance {
			s.Distance = dist
		}
	}

	suggestions := make([]Suggestion, 0, len(byCluster))
	for _, s := range byCluster {
		suggestions = append(suggestions, *s)
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Votes != suggestions[j].Votes {
			return suggestions[i].Votes > suggestions[j].Votes
		}
		return suggestions[i].Distance < suggestions[j].Distance
	})
	return suggestions
}
