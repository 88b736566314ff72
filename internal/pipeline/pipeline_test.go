package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-sorter/internal/detector"
	"github.com/kozaktomas/face-sorter/internal/materialize"
)

// fakeDetector serves canned embeddings per path, one face per entry.
type fakeDetector struct {
	responses map[string][][]float32
	fail      map[string]bool
}

func (f *fakeDetector) DetectFile(ctx context.Context, path string) (*detector.Result, error) {
	if f.fail[path] {
		return nil, errors.New("failed to decode image")
	}
	embeddings := f.responses[path]
	result := &detector.Result{FacesCount: len(embeddings)}
	for i, e := range embeddings {
		result.Faces = append(result.Faces, detector.Detection{
			FaceIndex: i,
			Embedding: e,
			BBox:      []float64{0, 0, 10, 10},
			DetScore:  0.9,
		})
	}
	return result, nil
}

// fixture builds input files for two identities, one stray face, one faceless
// image and one broken image.
func fixture(t *testing.T) ([]string, *fakeDetector) {
	t.Helper()
	input := t.TempDir()

	det := &fakeDetector{
		responses: make(map[string][][]float32),
		fail:      make(map[string]bool),
	}

	var paths []string
	addImage := func(name string, embeddings [][]float32, broken bool) {
		path := filepath.Join(input, name)
		if err := os.WriteFile(path, []byte("pixels of "+name), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		det.responses[path] = embeddings
		if broken {
			det.fail[path] = true
		}
		paths = append(paths, path)
	}

	anna := [][]float32{{1, 0, 0}, {0.99, 0.05, 0}, {0.98, 0.1, 0}, {0.97, 0, 0.1}}
	ben := [][]float32{{0, 1, 0}, {0.05, 0.99, 0}, {0, 0.98, 0.1}}

	for i, e := range anna {
		addImage(string(rune('a'+i))+".jpg", [][]float32{e}, false)
	}
	for i, e := range ben {
		addImage(string(rune('p'+i))+".jpg", [][]float32{e}, false)
	}
	addImage("stray.jpg", [][]float32{{0, 0, 1}}, false)
	addImage("landscape.jpg", nil, false)
	addImage("broken.jpg", nil, true)

	return paths, det
}

func TestRunEndToEnd(t *testing.T) {
	paths, det := fixture(t)
	out := filepath.Join(t.TempDir(), "sorted")

	p := New(det, Params{})
	result, err := p.Run(context.Background(), paths, out, Options{Mode: materialize.ModeCopy, Concurrency: 3})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.ProcessedImages != len(paths) {
		t.Errorf("expected %d processed images, got %d", len(paths), result.ProcessedImages)
	}
	if result.FaceCount != 8 {
		t.Errorf("expected 8 faces, got %d", result.FaceCount)
	}
	if result.ClusterCount != 2 {
		t.Errorf("expected 2 clusters, got %d", result.ClusterCount)
	}
	if result.NoFacesImages != 1 {
		t.Errorf("expected 1 faceless image, got %d", result.NoFacesImages)
	}
	if result.Unclustered != 1 {
		t.Errorf("expected 1 unclustered face, got %d", result.Unclustered)
	}
	if len(result.Errors) != 1 {
		t.Errorf("expected 1 recorded failure for the broken image, got %d", len(result.Errors))
	}

	// Larger identity gets the first label.
	entries, err := os.ReadDir(filepath.Join(out, "Group_01"))
	if err != nil {
		t.Fatalf("expected Group_01 directory: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("expected 4 files in Group_01, got %d", len(entries))
	}
	if _, err := os.Stat(filepath.Join(out, "Group_02")); err != nil {
		t.Errorf("expected Group_02 directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, materialize.UnclusteredDir, "stray.jpg")); err != nil {
		t.Errorf("expected stray face under unclustered: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, materialize.NoFacesDir, "landscape.jpg")); err != nil {
		t.Errorf("expected faceless image under no_faces: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "clusters.json")); err != nil {
		t.Errorf("expected cluster document: %v", err)
	}

	if result.Catalog == nil || result.Index == nil {
		t.Fatal("expected catalog and index on the result")
	}
	if result.Index.Count() != 7 {
		t.Errorf("expected 7 indexed faces, got %d", result.Index.Count())
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	paths, det := fixture(t)
	out := filepath.Join(t.TempDir(), "sorted")

	result, err := New(det, Params{}).Run(context.Background(), paths, out, Options{
		DryRun: true,
		Mode:   materialize.ModeCopy,
	})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if result.PlannedActions == 0 {
		t.Error("expected planned actions in dry run")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("expected output directory untouched in dry run")
	}
}

func TestRunEmptyDataset(t *testing.T) {
	_, err := New(&fakeDetector{}, Params{}).Run(context.Background(), nil, t.TempDir(), Options{})
	if !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestRunDeterministicLayout(t *testing.T) {
	paths, det := fixture(t)

	layout := func() []string {
		out := filepath.Join(t.TempDir(), "sorted")
		result, err := New(det, Params{}).Run(context.Background(), paths, out, Options{Mode: materialize.ModeCopy})
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		var labels []string
		for _, info := range result.Catalog.List() {
			labels = append(labels, info.Label)
		}
		return labels
	}

	first := layout()
	for run := 0; run < 3; run++ {
		again := layout()
		if len(again) != len(first) {
			t.Fatalf("cluster count diverged between runs: %v vs %v", first, again)
		}
		for i := range first {
			if again[i] != first[i] {
				t.Errorf("labels diverged between runs: %v vs %v", first, again)
			}
		}
	}
}
