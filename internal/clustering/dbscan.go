// Package clustering groups face observations by embedding similarity and
// turns raw clusters into labeled, summarized groups.
//
// The engine is a plain DBSCAN over pairwise cosine distances. That makes it
// O(n²) in the number of observations, which is fine for the intended scale
// (low tens of thousands of faces) and keeps the output fully deterministic:
// no seeds, no approximate index, identical input always yields identical
// assignments.
package clustering

import (
	"github.com/kozaktomas/face-sorter/internal/faces"
)

// Cluster assigns each observation a raw cluster id, or faces.Noise for
// observations without a dense enough neighborhood. The result is aligned
// with the input slice. Epsilon is a cosine distance threshold; minSamples
// counts the point itself, matching the usual DBSCAN definition.
func Cluster(observations []faces.Observation, eps float64, minSamples int) []int {
	n := len(observations)
	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = faces.Noise
	}
	if n == 0 {
		return assignment
	}

	// Precompute epsilon neighborhoods. Neighbor lists are in index order,
	// so the expansion below visits points deterministically.
	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		neighbors[i] = append(neighbors[i], i)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if faces.CosineDistance(observations[i].Embedding, observations[j].Embedding) <= eps {
				neighbors[i] = append(neighbors[i], j)
				neighbors[j] = append(neighbors[j], i)
			}
		}
	}

	const unvisited = -2
	state := make([]int, n) // unvisited, faces.Noise, or a cluster id
	for i := range state {
		state[i] = unvisited
	}

	clusterID := 0
	for i := 0; i < n; i++ {
		if state[i] != unvisited {
			continue
		}
		if len(neighbors[i]) < minSamples {
			state[i] = faces.Noise
			continue
		}

		// New core point: flood the density-connected region.
		state[i] = clusterID
		queue := append([]int(nil), neighbors[i]...)
		for head := 0; head < len(queue); head++ {
			p := queue[head]
			if state[p] == faces.Noise {
				state[p] = clusterID // border point, reachable but not core
			}
			if state[p] != unvisited {
				continue
			}
			state[p] = clusterID
			if len(neighbors[p]) >= minSamples {
				queue = append(queue, neighbors[p]...)
			}
		}
		clusterID++
	}

	copy(assignment, state)
	return assignment
}
