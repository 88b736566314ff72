// Package pipeline runs the full sorting flow: detect faces in a batch of
// images, cluster the embeddings, allocate labels, and materialize the
// clusters into an output directory with its metadata documents.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/face-sorter/internal/catalog"
	"github.com/kozaktomas/face-sorter/internal/clustering"
	"github.com/kozaktomas/face-sorter/internal/detector"
	"github.com/kozaktomas/face-sorter/internal/faces"
	"github.com/kozaktomas/face-sorter/internal/index"
	"github.com/kozaktomas/face-sorter/internal/materialize"
)

// ErrEmptyDataset means the run had no input images to process.
var ErrEmptyDataset = errors.New("no images to process")

// Detector finds faces in one image file.
type Detector interface {
	DetectFile(ctx context.Context, path string) (*detector.Result, error)
}

// Params are the clustering knobs. Zero values fall back to the defaults
// below.
type Params struct {
	Epsilon     float64 // DBSCAN neighborhood radius in cosine distance
	MinSamples  int     // DBSCAN core point threshold, counting the point itself
	MinFaces    int     // clusters below this size stay unclustered
	LabelPrefix string
}

const (
	DefaultEpsilon    = 0.5
	DefaultMinSamples = 3
	DefaultMinFaces   = 3
)

func (p Params) withDefaults() Params {
	if p.Epsilon <= 0 {
		p.Epsilon = DefaultEpsilon
	}
	if p.MinSamples <= 0 {
		p.MinSamples = DefaultMinSamples
	}
	if p.MinFaces <= 0 {
		p.MinFaces = DefaultMinFaces
	}
	if p.LabelPrefix == "" {
		p.LabelPrefix = clustering.DefaultLabelPrefix
	}
	return p
}

// Options control one run.
type Options struct {
	DryRun       bool // plan everything, touch nothing
	Concurrency  int  // parallel detector requests
	Mode         materialize.Mode
	ShowProgress bool
}

// Result summarizes one run.
type Result struct {
	ProcessedImages int
	FaceCount       int
	NoFacesImages   int
	ClusterCount    int
	Unclustered     int
	DirsCreated     int
	Transferred     int
	PlannedActions  int // dry run only
	Errors          []error

	Catalog *catalog.Catalog
	Index   *index.Index
}

// Pipeline wires a detector to the clustering and materialization stages.
type Pipeline struct {
	detector Detector
	params   Params
}

// New creates a pipeline.
func New(det Detector, params Params) *Pipeline {
	return &Pipeline{
		detector: det,
		params:   params.withDefaults(),
	}
}

// imageResult holds the detection outcome for a single image.
type imageResult struct {
	index  int
	path   string
	result *detector.Result
	err    error
}

// Run processes a batch of images into a sorted output tree. Detection runs
// concurrently; a failed image is recorded and skipped, it never aborts the
// batch. With DryRun the filesystem stays untouched and the result reports
// what would happen.
func (p *Pipeline) Run(ctx context.Context, imagePaths []string, outputDir string, opts Options) (*Result, error) {
	if len(imagePaths) == 0 {
		return nil, ErrEmptyDataset
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	var bar *progressbar.ProgressBar
	if opts.ShowProgress {
		bar = progressbar.NewOptions(len(imagePaths),
			progressbar.OptionSetDescription(fmt.Sprintf("Analyzing images (%d workers)", concurrency)),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	resultsChan := make(chan imageResult, len(imagePaths))
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range imagePaths {
		wg.Add(1)
		go func(idx int, path string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if bar != nil {
				defer bar.Add(1)
			}

			if ctx.Err() != nil {
				resultsChan <- imageResult{index: idx, path: path, err: ctx.Err()}
				return
			}

			result, err := p.detector.DetectFile(ctx, path)
			if err != nil {
				resultsChan <- imageResult{index: idx, path: path, err: fmt.Errorf("failed to analyze %s: %w", path, err)}
				return
			}
			resultsChan <- imageResult{index: idx, path: path, result: result}
		}(i, imagePaths[i])
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	// Collect in input order so observation ids are stable across runs.
	ordered := make([]*imageResult, len(imagePaths))
	for r := range resultsChan {
		r := r
		ordered[r.index] = &r
	}

	run := &Result{}
	store := faces.NewStore()
	var noFaces []string

	for _, r := range ordered {
		if r == nil {
			continue
		}
		run.ProcessedImages++
		if r.err != nil {
			run.Errors = append(run.Errors, r.err)
			continue
		}
		if len(r.result.Faces) == 0 {
			noFaces = append(noFaces, r.path)
			continue
		}
		for _, det := range r.result.Faces {
			if _, err := store.Add(det.Observation(r.path)); err != nil {
				run.Errors = append(run.Errors, fmt.Errorf("skipping face in %s: %w", r.path, err))
			}
		}
	}
	run.FaceCount = store.Len()
	run.NoFacesImages = len(noFaces)

	if store.Len() == 0 && len(noFaces) == 0 {
		return run, ErrEmptyDataset
	}

	assignment := clustering.Cluster(store.Observations(), p.params.Epsilon, p.params.MinSamples)
	if err := store.ApplyAssignment(assignment); err != nil {
		return run, err
	}

	groups := clustering.Allocate(store.ByCluster(), p.params.MinFaces, p.params.LabelPrefix)
	run.ClusterCount = len(groups)

	// Faces whose raw cluster fell below the size threshold go back to noise
	// so the metadata matches the directory layout.
	kept := make(map[int]bool, len(groups))
	for _, g := range groups {
		kept[g.RawID] = true
	}
	for _, obs := range store.Observations() {
		if obs.ClusterID >= 0 && !kept[obs.ClusterID] {
			store.SetCluster(obs.ID, faces.Noise)
		}
	}

	cat := catalog.New(outputDir, store)
	cat.Attach(groups)

	mapping := cat.Mapping()
	if len(noFaces) > 0 {
		mapping[materialize.NoFacesDir] = noFaces
	}
	run.Unclustered = len(mapping[materialize.UnclusteredDir])

	m := materialize.New(outputDir, opts.Mode)
	m.ShowProgress = opts.ShowProgress

	if opts.DryRun {
		actions, err := m.Plan(mapping)
		if err != nil {
			return run, err
		}
		run.PlannedActions = len(actions)
		run.Catalog = cat
		return run, nil
	}

	applied, err := m.Materialize(mapping)
	if applied != nil {
		run.DirsCreated = applied.DirsCreated
		run.Transferred = applied.Transferred
	}
	if err != nil {
		var partial *materialize.PartialError
		if errors.As(err, &partial) {
			// Some files failed to land; the clusters that did land are
			// still committed.
			run.Errors = append(run.Errors, partial)
		} else {
			return run, err
		}
	}

	cat.Activate()
	if err := cat.Save(); err != nil {
		return run, err
	}

	idx := index.New()
	idx.Build(store)

	run.Catalog = cat
	run.Index = idx
	return run, nil
}
