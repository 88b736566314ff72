package index

import (
	"testing"

	"github.com/kozaktomas/face-sorter/internal/faces"
)

func buildStore(t *testing.T) *faces.Store {
	t.Helper()
	store := faces.NewStore()
	add := func(embedding []float32, cluster int) {
		if _, err := store.Add(faces.Observation{
			SourcePath: "img.jpg",
			Embedding:  embedding,
			ClusterID:  cluster,
		}); err != nil {
			t.Fatalf("failed to add observation: %v", err)
		}
	}
	// Cluster 0 sits around the x axis, cluster 1 around the y axis.
	add([]float32{1, 0, 0}, 0)
	add([]float32{0.99, 0.05, 0}, 0)
	add([]float32{0.98, 0, 0.05}, 0)
	add([]float32{0, 1, 0}, 1)
	add([]float32{0.05, 0.99, 0}, 1)
	// Noise stays out of the index.
	add([]float32{0, 0, 1}, faces.Noise)
	return store
}

func TestSuggestRanksNearestCluster(t *testing.T) {
	idx := New()
	idx.Build(buildStore(t))

	if idx.Count() != 5 {
		t.Fatalf("expected 5 indexed observations, got %d", idx.Count())
	}

	suggestions := idx.Suggest([]float32{0.97, 0.1, 0}, 4)
	if len(suggestions) == 0 {
		t.Fatal("expected at least one suggestion")
	}
	if suggestions[0].ClusterRawID != 0 {
		t.Errorf("expected cluster 0 as top suggestion, got %d", suggestions[0].ClusterRawID)
	}
	if suggestions[0].Votes < 2 {
		t.Errorf("expected multiple votes for the near cluster, got %d", suggestions[0].Votes)
	}
	if suggestions[0].Distance < 0 || suggestions[0].Distance > 0.1 {
		t.Errorf("expected small distance to the near cluster, got %f", suggestions[0].Distance)
	}
}

func TestSuggestEmptyIndex(t *testing.T) {
	if got := New().Suggest([]float32{1, 0, 0}, 3); got != nil {
		t.Errorf("expected nil suggestions from an empty index, got %v", got)
	}
}

func TestAddIgnoresNoise(t *testing.T) {
	idx := New()
	idx.Add(faces.Observation{ID: 1, Embedding: []float32{1, 0}, ClusterID: faces.Noise})
	if idx.Count() != 0 {
		t.Errorf("expected noise observation to be skipped, count %d", idx.Count())
	}
	idx.Add(faces.Observation{ID: 2, Embedding: []float32{1, 0}, ClusterID: 3})
	if idx.Count() != 1 {
		t.Errorf("expected one indexed observation, got %d", idx.Count())
	}
}
