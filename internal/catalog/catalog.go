// Package catalog keeps the cluster metadata and the materialized directory
// tree in lockstep. All mutations go through one Catalog, which serializes
// writers with a single lock scoped to the output tree and rolls back
// filesystem changes when a mutation cannot complete.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/renameio"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-sorter/internal/clustering"
	"github.com/kozaktomas/face-sorter/internal/faces"
	"github.com/kozaktomas/face-sorter/internal/materialize"
)

// MetadataFile is the cluster document name under the output tree.
const MetadataFile = "clusters.json"

// ObservationsFile is the observation document name under the output tree.
const ObservationsFile = "observations.json"

// Catalog owns the cluster records for one output tree.
type Catalog struct {
	mu        sync.RWMutex
	outputDir string
	store     *faces.Store
	records   map[string]*Record // by record id
	byLabel   map[string]string  // active label -> record id
	nextRawID int
	policy    ConflictPolicy
}

// New creates a catalog over an observation store and an output directory.
func New(outputDir string, store *faces.Store) *Catalog {
	return &Catalog{
		outputDir: outputDir,
		store:     store,
		records:   make(map[string]*Record),
		byLabel:   make(map[string]string),
		policy:    ReplaceExisting,
	}
}

// SetConflictPolicy overrides the merge conflict policy.
func (c *Catalog) SetConflictPolicy(policy ConflictPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = policy
}

// OutputDir returns the root of the materialized tree.
func (c *Catalog) OutputDir() string {
	return c.outputDir
}

// Store returns the underlying observation store.
func (c *Catalog) Store() *faces.Store {
	return c.store
}

// Attach creates provisional records for allocated groups. Records stay
// Provisional until Activate confirms their directories exist on disk.
func (c *Catalog) Attach(groups []clustering.Group) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, group := range groups {
		rec := &Record{
			ID:      uuid.NewString(),
			RawID:   group.RawID,
			Label:   group.Label,
			State:   StateProvisional,
			members: make(map[int64]struct{}, len(group.MemberIDs)),
		}
		for _, id := range group.MemberIDs {
			rec.members[id] = struct{}{}
		}
		c.recomputeSummary(rec)
		c.records[rec.ID] = rec
		c.byLabel[rec.Label] = rec.ID
		if group.RawID >= c.nextRawID {
			c.nextRawID = group.RawID + 1
		}
	}
}

// Activate marks all provisional records active, after materialization has
// created their directories.
func (c *Catalog) Activate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.records {
		if rec.State == StateProvisional {
			rec.State = StateActive
		}
	}
}

// Mapping projects current membership as label -> member source paths, the
// input shape the materializer consumes. Noise observations land under the
// reserved unclustered directory.
func (c *Catalog) Mapping() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	mapping := make(map[string][]string)
	assigned := make(map[int64]bool)
	for _, rec := range c.records {
		if rec.State == StateDeleted {
			continue
		}
		for id := range rec.members {
			if obs := c.store.Get(id); obs != nil {
				mapping[rec.Label] = append(mapping[rec.Label], obs.SourcePath)
				assigned[id] = true
			}
		}
	}
	for _, obs := range c.store.Observations() {
		if !assigned[obs.ID] {
			mapping[materialize.UnclusteredDir] = append(mapping[materialize.UnclusteredDir], obs.SourcePath)
		}
	}
	return mapping
}

// ClusterInfo is the read-side snapshot of one cluster.
type ClusterInfo struct {
	ID                 string   `json:"id"`
	Label              string   `json:"label"`
	State              string   `json:"state"`
	MemberCount        int      `json:"member_count"`
	ImageCount         int      `json:"image_count"`
	RepresentativePath string   `json:"representative_path,omitempty"`
	SamplePaths        []string `json:"sample_paths,omitempty"`
}

// Member is one observation as seen through the mutation surface.
type Member struct {
	ID         int64  `json:"id"`
	SourcePath string `json:"source_path"`
	FaceIndex  int    `json:"face_index"`
}

func (c *Catalog) infoLocked(rec *Record) ClusterInfo {
	return ClusterInfo{
		ID:                 rec.ID,
		Label:              rec.Label,
		State:              string(rec.State),
		MemberCount:        rec.MemberCount(),
		ImageCount:         rec.summary.ImageCount,
		RepresentativePath: rec.summary.RepresentativePath,
		SamplePaths:        rec.summary.SamplePaths,
	}
}

// List returns a snapshot of all non-deleted clusters, ordered by label.
// Reads run under the read lock, so a listing never observes a mutation
// halfway through.
func (c *Catalog) List() []ClusterInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]ClusterInfo, 0, len(c.records))
	for _, rec := range c.records {
		if rec.State == StateDeleted {
			continue
		}
		infos = append(infos, c.infoLocked(rec))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Label < infos[j].Label })
	return infos
}

// Get returns a snapshot of one cluster.
func (c *Catalog) Get(clusterID string) (ClusterInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, err := c.activeLocked(clusterID)
	if err != nil {
		return ClusterInfo{}, err
	}
	return c.infoLocked(rec), nil
}

// Members returns the member observations of one cluster, sorted by id.
func (c *Catalog) Members(clusterID string) ([]Member, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, err := c.activeLocked(clusterID)
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, rec.MemberCount())
	for _, id := range rec.MemberIDs() {
		if obs := c.store.Get(id); obs != nil {
			members = append(members, Member{ID: obs.ID, SourcePath: obs.SourcePath, FaceIndex: obs.FaceIndex})
		}
	}
	return members, nil
}

// Unclustered returns the observations currently outside every cluster.
func (c *Catalog) Unclustered() []Member {
	c.mu.RLock()
	defer c.mu.RUnlock()

	assigned := make(map[int64]bool)
	for _, rec := range c.records {
		if rec.State == StateDeleted {
			continue
		}
		for id := range rec.members {
			assigned[id] = true
		}
	}
	var members []Member
	for _, obs := range c.store.Observations() {
		if !assigned[obs.ID] {
			members = append(members, Member{ID: obs.ID, SourcePath: obs.SourcePath, FaceIndex: obs.FaceIndex})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members
}

// ByRawID resolves a raw cluster id to its cluster snapshot. Used to turn
// index suggestions into labeled clusters.
func (c *Catalog) ByRawID(rawID int) (ClusterInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, rec := range c.records {
		if rec.State != StateDeleted && rec.RawID == rawID {
			return c.infoLocked(rec), true
		}
	}
	return ClusterInfo{}, false
}

// activeLocked resolves a cluster id to a live record.
func (c *Catalog) activeLocked(clusterID string) (*Record, error) {
	rec, ok := c.records[clusterID]
	if !ok || rec.State == StateDeleted {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCluster, clusterID)
	}
	return rec, nil
}

// recomputeSummary refreshes a record's statistics and representative after
// a membership change.
func (c *Catalog) recomputeSummary(rec *Record) {
	group := clustering.Group{RawID: rec.RawID, Label: rec.Label, MemberIDs: rec.MemberIDs()}
	rec.summary = clustering.Summarize(group, c.store)
	rec.RepresentativeID = rec.summary.RepresentativeID
}

// dirLocked returns the directory backing a record.
func (c *Catalog) dirLocked(rec *Record) string {
	return filepath.Join(c.outputDir, rec.Label)
}

// recordDocument is the persisted form of one cluster record.
type recordDocument struct {
	ID                 string   `json:"id"`
	RawID              int      `json:"raw_id"`
	Label              string   `json:"label"`
	State              State    `json:"state"`
	MemberIDs          []int64  `json:"member_ids"`
	MemberCount        int      `json:"member_count"`
	ImageCount         int      `json:"image_count"`
	RepresentativeID   int64    `json:"representative_id"`
	RepresentativePath string   `json:"representative_path,omitempty"`
	SamplePaths        []string `json:"sample_paths,omitempty"`
}

type catalogDocument struct {
	ConflictPolicy ConflictPolicy   `json:"conflict_policy"`
	Clusters       []recordDocument `json:"clusters"`
}

// Save writes the cluster document and the observation document under the
// output tree. Both writes are staged and renamed so a crash cannot leave a
// truncated document behind.
func (c *Catalog) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saveLocked()
}

func (c *Catalog) saveLocked() error {
	doc := catalogDocument{ConflictPolicy: c.policy}
	for _, rec := range c.records {
		if rec.State == StateDeleted {
			continue
		}
		doc.Clusters = append(doc.Clusters, recordDocument{
			ID:                 rec.ID,
			RawID:              rec.RawID,
			Label:              rec.Label,
			State:              rec.State,
			MemberIDs:          rec.MemberIDs(),
			MemberCount:        rec.MemberCount(),
			ImageCount:         rec.summary.ImageCount,
			RepresentativeID:   rec.RepresentativeID,
			RepresentativePath: rec.summary.RepresentativePath,
			SamplePaths:        rec.summary.SamplePaths,
		})
	}
	sort.Slice(doc.Clusters, func(i, j int) bool { return doc.Clusters[i].Label < doc.Clusters[j].Label })

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cluster document: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(c.outputDir, MetadataFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write cluster document: %w", err)
	}

	if err := c.store.Save(filepath.Join(c.outputDir, ObservationsFile)); err != nil {
		return err
	}
	return nil
}

// Load reads a previously saved catalog from an output tree.
func Load(outputDir string) (*Catalog, error) {
	store, err := faces.LoadStore(filepath.Join(outputDir, ObservationsFile))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(outputDir, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster document: %w", err)
	}
	var doc catalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse cluster document: %w", err)
	}

	c := New(outputDir, store)
	if doc.ConflictPolicy != "" {
		c.policy = doc.ConflictPolicy
	}
	for _, rd := range doc.Clusters {
		state := rd.State
		if state == StateRenaming || state == StateMerging {
			// A crash mid-mutation must not leave a record permanently
			// transient; its directory still matches the persisted label.
			state = StateActive
		}
		rec := &Record{
			ID:               rd.ID,
			RawID:            rd.RawID,
			Label:            rd.Label,
			State:            state,
			RepresentativeID: rd.RepresentativeID,
			members:          make(map[int64]struct{}, len(rd.MemberIDs)),
		}
		for _, id := range rd.MemberIDs {
			rec.members[id] = struct{}{}
		}
		c.recomputeSummary(rec)
		c.records[rec.ID] = rec
		if rec.State != StateDeleted {
			c.byLabel[rec.Label] = rec.ID
		}
		if rd.RawID >= c.nextRawID {
			c.nextRawID = rd.RawID + 1
		}
	}
	return c, nil
}
