package faces

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/google/renameio"
)

// ErrInvalidInput marks a malformed or dimension-mismatched observation.
var ErrInvalidInput = errors.New("invalid observation")

// Store holds the full set of observations for one run. All observations
// share the same embedding dimension; the first Add fixes it.
type Store struct {
	observations []Observation
	byID         map[int64]int // observation id -> index in observations
	dim          int
	nextID       int64
}

// NewStore creates an empty observation store.
func NewStore() *Store {
	return &Store{
		byID:   make(map[int64]int),
		nextID: 1,
	}
}

// Add validates an observation and appends it to the store. A zero ID is
// replaced by the next sequential id. Returns the assigned id.
func (s *Store) Add(obs Observation) (int64, error) {
	if len(obs.Embedding) == 0 {
		return 0, fmt.Errorf("%w: empty embedding for %s", ErrInvalidInput, obs.SourcePath)
	}
	if s.dim == 0 {
		s.dim = len(obs.Embedding)
	} else if len(obs.Embedding) != s.dim {
		return 0, fmt.Errorf("%w: embedding dimension %d, store dimension %d",
			ErrInvalidInput, len(obs.Embedding), s.dim)
	}

	if obs.ID == 0 {
		obs.ID = s.nextID
	}
	if _, exists := s.byID[obs.ID]; exists {
		return 0, fmt.Errorf("%w: duplicate observation id %d", ErrInvalidInput, obs.ID)
	}
	if obs.ID >= s.nextID {
		s.nextID = obs.ID + 1
	}

	s.byID[obs.ID] = len(s.observations)
	s.observations = append(s.observations, obs)
	return obs.ID, nil
}

// Len returns the number of stored observations.
func (s *Store) Len() int {
	return len(s.observations)
}

// Dim returns the embedding dimension, 0 if the store is empty.
func (s *Store) Dim() int {
	return s.dim
}

// Get returns the observation with the given id, or nil if unknown.
func (s *Store) Get(id int64) *Observation {
	idx, ok := s.byID[id]
	if !ok {
		return nil
	}
	return &s.observations[idx]
}

// Observations returns all observations in insertion order. The slice is
// shared with the store; callers must not grow or reorder it.
func (s *Store) Observations() []Observation {
	return s.observations
}

// SetCluster reassigns the cluster id of one observation.
func (s *Store) SetCluster(id int64, clusterID int) error {
	idx, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: unknown observation id %d", ErrInvalidInput, id)
	}
	s.observations[idx].ClusterID = clusterID
	return nil
}

// ApplyAssignment sets the cluster id of every observation from a raw
// clustering result, index-aligned with Observations().
func (s *Store) ApplyAssignment(assignment []int) error {
	if len(assignment) != len(s.observations) {
		return fmt.Errorf("%w: assignment length %d for %d observations",
			ErrInvalidInput, len(assignment), len(s.observations))
	}
	for i := range s.observations {
		s.observations[i].ClusterID = assignment[i]
	}
	return nil
}

// ByCluster groups observation ids by cluster id, noise included under the
// Noise key. Ids within a group are sorted ascending.
func (s *Store) ByCluster() map[int][]int64 {
	groups := make(map[int][]int64)
	for i := range s.observations {
		obs := &s.observations[i]
		groups[obs.ClusterID] = append(groups[obs.ClusterID], obs.ID)
	}
	for _, ids := range groups {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return groups
}

// storeDocument is the on-disk format for an observation set.
type storeDocument struct {
	Dim          int           `json:"dim"`
	Observations []Observation `json:"observations"`
}

// Save writes the observation set as an indented JSON document. The write is
// staged to a temp file and renamed, so a crash leaves either the old or the
// new document, never a truncated one. Embeddings round-trip exactly:
// encoding/json prints float32 values with enough digits to restore the same
// bits on load.
func (s *Store) Save(path string) error {
	doc := storeDocument{
		Dim:          s.dim,
		Observations: s.observations,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal observations: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadStore reads an observation set previously written by Save.
func LoadStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc storeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	store := NewStore()
	for _, obs := range doc.Observations {
		if _, err := store.Add(obs); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}
	if doc.Dim != 0 && store.dim != 0 && doc.Dim != store.dim {
		return nil, fmt.Errorf("%w: document dimension %d, observations have %d",
			ErrInvalidInput, doc.Dim, store.dim)
	}
	return store, nil
}
