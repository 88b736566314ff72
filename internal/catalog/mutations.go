package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-sorter/internal/faces"
	"github.com/kozaktomas/face-sorter/internal/materialize"
)

// Mutations are all-or-nothing: filesystem changes happen first and are
// undone if the operation cannot complete, so metadata never references a
// directory state that does not exist. The catalog lock serializes writers;
// readers block only for the short in-memory part of each mutation.

// undoStack collects reversals for applied filesystem steps, run in reverse
// order when a mutation fails partway.
type undoStack []func()

func (u *undoStack) push(fn func()) { *u = append(*u, fn) }

func (u undoStack) run() {
	for i := len(u) - 1; i >= 0; i-- {
		u[i]()
	}
}

// Rename changes a cluster's label and renames its directory together.
// Fails with ErrNameConflict if the label is taken by a different cluster;
// if the directory rename fails, the metadata label stays untouched.
func (c *Catalog) Rename(clusterID, newLabel string) (ClusterInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.activeLocked(clusterID)
	if err != nil {
		return ClusterInfo{}, err
	}

	newLabel = NormalizeLabel(newLabel)
	if err := ValidateLabel(newLabel); err != nil {
		return ClusterInfo{}, err
	}
	if newLabel == rec.Label {
		return c.infoLocked(rec), nil
	}
	if otherID, taken := c.byLabel[newLabel]; taken && otherID != rec.ID {
		return ClusterInfo{}, fmt.Errorf("%w: %q", ErrNameConflict, newLabel)
	}

	oldLabel := rec.Label
	oldDir := c.dirLocked(rec)
	newDir := filepath.Join(c.outputDir, newLabel)
	if _, err := os.Stat(newDir); err == nil {
		return ClusterInfo{}, fmt.Errorf("%w: %s already exists", materialize.ErrFilesystemConflict, newDir)
	}

	rec.State = StateRenaming
	if err := os.Rename(oldDir, newDir); err != nil {
		rec.State = StateActive
		return ClusterInfo{}, fmt.Errorf("failed to rename directory: %w", err)
	}

	delete(c.byLabel, oldLabel)
	c.byLabel[newLabel] = rec.ID
	rec.Label = newLabel
	c.recomputeSummary(rec)
	rec.State = StateActive

	if err := c.saveLocked(); err != nil {
		// Roll the whole rename back rather than leave the document stale.
		rec.State = StateRenaming
		if undoErr := os.Rename(newDir, oldDir); undoErr == nil {
			delete(c.byLabel, newLabel)
			c.byLabel[oldLabel] = rec.ID
			rec.Label = oldLabel
			c.recomputeSummary(rec)
		}
		rec.State = StateActive
		return ClusterInfo{}, err
	}
	return c.infoLocked(rec), nil
}

// Merge moves every member of the source clusters into the target. Files
// move from the source directories into the target directory; a name
// collision resolves by the catalog's conflict policy (incoming replaces
// existing by default). Emptied source directories and records are removed,
// and the target summary is recomputed.
func (c *Catalog) Merge(sourceIDs []string, targetID string) (ClusterInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, err := c.activeLocked(targetID)
	if err != nil {
		return ClusterInfo{}, err
	}
	sources := make([]*Record, 0, len(sourceIDs))
	seen := make(map[string]bool)
	for _, id := range sourceIDs {
		if id == targetID {
			return ClusterInfo{}, fmt.Errorf("%w: cluster %s cannot be merged into itself", ErrUnknownCluster, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		src, err := c.activeLocked(id)
		if err != nil {
			return ClusterInfo{}, err
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return c.infoLocked(target), nil
	}

	target.State = StateMerging
	for _, src := range sources {
		src.State = StateMerging
	}
	restoreStates := func() {
		target.State = StateActive
		for _, src := range sources {
			src.State = StateActive
		}
	}

	targetDir := c.dirLocked(target)
	var undo undoStack
	var backups []string

	for _, src := range sources {
		srcDir := c.dirLocked(src)
		entries, err := os.ReadDir(srcDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			undo.run()
			restoreStates()
			return ClusterInfo{}, fmt.Errorf("failed to read %s: %w", srcDir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			from := filepath.Join(srcDir, entry.Name())
			dest := filepath.Join(targetDir, entry.Name())

			if _, err := os.Stat(dest); err == nil {
				if c.policy == KeepExisting {
					continue // incoming copy is discarded with the source dir
				}
				// Park the existing file so the merge stays reversible until
				// it fully commits.
				backup := dest + ".merged.bak"
				if err := os.Rename(dest, backup); err != nil {
					undo.run()
					restoreStates()
					return ClusterInfo{}, fmt.Errorf("failed to stage replacement of %s: %w", dest, err)
				}
				backups = append(backups, backup)
				undo.push(func() { os.Rename(backup, dest) })
			}

			if err := os.Rename(from, dest); err != nil {
				undo.run()
				restoreStates()
				return ClusterInfo{}, fmt.Errorf("failed to move %s: %w", from, err)
			}
			undo.push(func() { os.Rename(dest, from) })
		}
	}

	// Metadata follows the filesystem. Sources resolve to Deleted and the
	// target back to Active before the document is written, so a reload can
	// never resurrect a merged-away cluster or observe a transient state.
	moved := make(map[*Record][]int64, len(sources))
	for _, src := range sources {
		for id := range src.members {
			moved[src] = append(moved[src], id)
			target.addMember(id)
			c.store.SetCluster(id, target.RawID)
		}
		src.members = make(map[int64]struct{})
		delete(c.byLabel, src.Label)
		src.State = StateDeleted
	}
	c.recomputeSummary(target)
	target.State = StateActive

	if err := c.saveLocked(); err != nil {
		for src, ids := range moved {
			for _, id := range ids {
				target.removeMember(id)
				src.addMember(id)
				c.store.SetCluster(id, src.RawID)
			}
		}
		for _, src := range sources {
			c.byLabel[src.Label] = src.ID
		}
		c.recomputeSummary(target)
		undo.run()
		restoreStates()
		return ClusterInfo{}, err
	}

	// Commit: drop backups and the emptied source directories.
	for _, backup := range backups {
		os.Remove(backup)
	}
	for _, src := range sources {
		os.RemoveAll(c.dirLocked(src))
	}
	return c.infoLocked(target), nil
}

// Delete removes a cluster's directory with all its files and drops the
// metadata record. Irreversible; the confirmed flag must be set explicitly
// or the request is rejected with ErrNotConfirmed and nothing changes.
func (c *Catalog) Delete(clusterID string, confirmed bool) (ClusterInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.activeLocked(clusterID)
	if err != nil {
		return ClusterInfo{}, err
	}
	if !confirmed {
		return ClusterInfo{}, fmt.Errorf("%w: deleting %q requires confirmation", ErrNotConfirmed, rec.Label)
	}

	info := c.infoLocked(rec)
	if err := os.RemoveAll(c.dirLocked(rec)); err != nil {
		return ClusterInfo{}, fmt.Errorf("failed to remove directory: %w", err)
	}

	for id := range rec.members {
		c.store.SetCluster(id, faces.Noise)
	}
	rec.members = make(map[int64]struct{})
	delete(c.byLabel, rec.Label)
	rec.State = StateDeleted

	if err := c.saveLocked(); err != nil {
		return ClusterInfo{}, err
	}
	info.State = string(StateDeleted)
	return info, nil
}

// MoveMember relocates one observation (clustered or unclustered) into a
// different cluster, moving or copying the backing file as needed. A source
// cluster left with zero members is pruned.
func (c *Catalog) MoveMember(observationID int64, destClusterID string) (ClusterInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dest, err := c.activeLocked(destClusterID)
	if err != nil {
		return ClusterInfo{}, err
	}
	if err := c.relocateLocked(observationID, dest); err != nil {
		return ClusterInfo{}, err
	}
	return c.infoLocked(dest), nil
}

// RemoveMember detaches one observation from its cluster back into the
// unclustered bucket.
func (c *Catalog) RemoveMember(observationID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.relocateLocked(observationID, nil)
}

// relocateLocked moves an observation between buckets (a nil record means
// the reserved unclustered directory) and keeps the backing files aligned
// with the deduplicated-projection invariant on both sides.
func (c *Catalog) relocateLocked(observationID int64, dest *Record) error {
	obs := c.store.Get(observationID)
	if obs == nil {
		return fmt.Errorf("%w: %d", ErrUnknownObservation, observationID)
	}

	src := c.recordOfLocked(observationID)
	if src == dest {
		return nil
	}

	srcDir := filepath.Join(c.outputDir, materialize.UnclusteredDir)
	if src != nil {
		srcDir = c.dirLocked(src)
	}
	destDir := filepath.Join(c.outputDir, materialize.UnclusteredDir)
	if dest != nil {
		destDir = c.dirLocked(dest)
	}

	base := filepath.Base(obs.SourcePath)
	srcFile := filepath.Join(srcDir, base)
	destFile := filepath.Join(destDir, base)

	lastSharer := c.sharersLocked(src, obs) == 0

	var undo undoStack
	var staleBackup string
	if _, err := os.Stat(destFile); os.IsNotExist(err) {
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", destDir, err)
		}
		transferSrc := srcFile
		if _, err := os.Stat(srcFile); os.IsNotExist(err) {
			// Not materialized in the source bucket; fall back to the
			// original image.
			transferSrc = obs.SourcePath
		}
		if lastSharer && transferSrc == srcFile {
			if err := os.Rename(srcFile, destFile); err != nil {
				return fmt.Errorf("failed to move %s: %w", srcFile, err)
			}
			undo.push(func() { os.Rename(destFile, srcFile) })
		} else {
			if err := materialize.TransferFile(transferSrc, destFile, materialize.ModeCopy); err != nil {
				return fmt.Errorf("failed to copy %s: %w", transferSrc, err)
			}
			undo.push(func() { os.Remove(destFile) })
		}
	} else if lastSharer {
		// Destination already holds the image; the source copy is obsolete.
		// Park it until the metadata commits so a failed save can restore it.
		if _, err := os.Stat(srcFile); err == nil {
			backup := srcFile + ".moved.bak"
			if err := os.Rename(srcFile, backup); err != nil {
				return fmt.Errorf("failed to stage removal of %s: %w", srcFile, err)
			}
			staleBackup = backup
			undo.push(func() { os.Rename(backup, srcFile) })
		}
	}

	// Metadata follows.
	if src != nil {
		src.removeMember(observationID)
		c.recomputeSummary(src)
	}
	if dest != nil {
		dest.addMember(observationID)
		c.store.SetCluster(observationID, dest.RawID)
		c.recomputeSummary(dest)
	} else {
		c.store.SetCluster(observationID, faces.Noise)
	}

	// Auto-prune an emptied source cluster. Its directory is removed only
	// after the save commits.
	var pruned *Record
	if src != nil && src.MemberCount() == 0 {
		pruned = src
		delete(c.byLabel, src.Label)
		src.State = StateDeleted
	}

	if err := c.saveLocked(); err != nil {
		if pruned != nil {
			pruned.State = StateActive
			c.byLabel[pruned.Label] = pruned.ID
		}
		if src != nil {
			src.addMember(observationID)
			c.recomputeSummary(src)
		}
		if dest != nil {
			dest.removeMember(observationID)
			c.recomputeSummary(dest)
		}
		rawID := faces.Noise
		if src != nil {
			rawID = src.RawID
		}
		c.store.SetCluster(observationID, rawID)
		undo.run()
		return err
	}

	// Commit: drop the parked copy, then the emptied directory.
	if staleBackup != "" {
		os.Remove(staleBackup)
	}
	if pruned != nil {
		os.Remove(srcDir) // only removes it when empty
	}
	return nil
}

// Create adds a new empty cluster with its directory, for manual curation.
func (c *Catalog) Create(label string) (ClusterInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	label = NormalizeLabel(label)
	if err := ValidateLabel(label); err != nil {
		return ClusterInfo{}, err
	}
	if _, taken := c.byLabel[label]; taken {
		return ClusterInfo{}, fmt.Errorf("%w: %q", ErrNameConflict, label)
	}

	dir := filepath.Join(c.outputDir, label)
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return ClusterInfo{}, fmt.Errorf("%w: %s exists and is not a directory", materialize.ErrFilesystemConflict, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ClusterInfo{}, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	rec := &Record{
		ID:      uuid.NewString(),
		RawID:   c.nextRawID,
		Label:   label,
		State:   StateActive,
		members: make(map[int64]struct{}),
	}
	c.nextRawID++
	c.recomputeSummary(rec)
	c.records[rec.ID] = rec
	c.byLabel[label] = rec.ID

	if err := c.saveLocked(); err != nil {
		delete(c.records, rec.ID)
		delete(c.byLabel, label)
		os.Remove(dir)
		return ClusterInfo{}, err
	}
	return c.infoLocked(rec), nil
}

// recordOfLocked finds the live record containing an observation, nil when
// the observation is unclustered.
func (c *Catalog) recordOfLocked(observationID int64) *Record {
	for _, rec := range c.records {
		if rec.State == StateDeleted {
			continue
		}
		if rec.hasMember(observationID) {
			return rec
		}
	}
	return nil
}

// sharersLocked counts other observations in the same bucket as obs that
// reference the same source image. Zero means obs is the bucket's only
// reason to hold the file.
func (c *Catalog) sharersLocked(src *Record, obs *faces.Observation) int {
	count := 0
	if src != nil {
		for id := range src.members {
			other := c.store.Get(id)
			if other != nil && other.ID != obs.ID && other.SourcePath == obs.SourcePath {
				count++
			}
		}
		return count
	}
	assigned := make(map[int64]bool)
	for _, rec := range c.records {
		if rec.State == StateDeleted {
			continue
		}
		for id := range rec.members {
			assigned[id] = true
		}
	}
	for _, other := range c.store.Observations() {
		if !assigned[other.ID] && other.ID != obs.ID && other.SourcePath == obs.SourcePath {
			count++
		}
	}
	return count
}
