// Package materialize mirrors a label-to-members mapping onto a real
// directory tree: one directory per cluster, one file per unique source
// image. It works diff-then-apply: Plan computes the missing pieces against
// the current tree without touching it, Apply executes a plan with staged
// transfers and per-item failure reporting.
package materialize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Reserved directory names under the output tree.
const (
	// UnclusteredDir collects faces the clustering marked as noise.
	UnclusteredDir = "unclustered"
	// NoFacesDir collects images where the detector found no face at all.
	NoFacesDir = "no_faces"
)

// Mode selects how source files reach the output tree.
type Mode string

const (
	// ModeCopy duplicates the original file.
	ModeCopy Mode = "copy"
	// ModeMove relocates the original file.
	ModeMove Mode = "move"
)

// ErrFilesystemConflict marks a target path that exists with an unexpected
// type (a file where a directory should be, or the reverse).
var ErrFilesystemConflict = errors.New("filesystem conflict")

// ActionKind distinguishes planned operations.
type ActionKind string

const (
	ActionMkdir    ActionKind = "mkdir"
	ActionTransfer ActionKind = "transfer"
)

// Action is one planned filesystem operation.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Dir    string     `json:"dir"`              // directory to create, or the transfer target dir
	Source string     `json:"source,omitempty"` // transfer only
	Dest   string     `json:"dest,omitempty"`   // transfer only
}

// Materializer realizes cluster membership under one output directory.
type Materializer struct {
	outputDir string
	mode      Mode

	// ShowProgress renders a terminal progress bar during Apply. Off by
	// default so library callers and tests stay quiet.
	ShowProgress bool
}

// New creates a materializer rooted at outputDir.
func New(outputDir string, mode Mode) *Materializer {
	if mode == "" {
		mode = ModeCopy
	}
	return &Materializer{outputDir: outputDir, mode: mode}
}

// OutputDir returns the root of the materialized tree.
func (m *Materializer) OutputDir() string {
	return m.outputDir
}

// Plan diffs the wanted mapping (label -> member source paths, duplicates
// allowed) against the current tree and returns the actions that would bring
// the tree up to date. A second Plan over an unchanged tree returns nothing:
// files already present under their final name are skipped, which is what
// makes Apply idempotent.
func (m *Materializer) Plan(mapping map[string][]string) ([]Action, error) {
	var actions []Action

	if _, err := os.Stat(m.outputDir); os.IsNotExist(err) {
		actions = append(actions, Action{Kind: ActionMkdir, Dir: m.outputDir})
	}

	labels := make([]string, 0, len(mapping))
	for label := range mapping {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		dir := filepath.Join(m.outputDir, label)
		info, err := os.Stat(dir)
		switch {
		case os.IsNotExist(err):
			actions = append(actions, Action{Kind: ActionMkdir, Dir: dir})
		case err != nil:
			return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
		case !info.IsDir():
			return nil, fmt.Errorf("%w: %s exists and is not a directory", ErrFilesystemConflict, dir)
		}

		// One copy per unique source path, in deterministic order.
		seen := make(map[string]bool)
		var sources []string
		for _, src := range mapping[label] {
			if !seen[src] {
				seen[src] = true
				sources = append(sources, src)
			}
		}
		sort.Strings(sources)

		for _, src := range sources {
			dest := filepath.Join(dir, filepath.Base(src))
			if _, err := os.Stat(dest); err == nil {
				continue // already materialized
			}
			actions = append(actions, Action{Kind: ActionTransfer, Dir: dir, Source: src, Dest: dest})
		}
	}

	return actions, nil
}
