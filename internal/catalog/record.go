package catalog

import (
	"sort"

	"github.com/kozaktomas/face-sorter/internal/clustering"
)

// State tracks where a cluster record sits in its lifecycle. Transient
// states (Renaming, Merging) always resolve back to Active, or to Deleted
// for a merged-away source; a failure mid-transition rolls back to Active.
type State string

const (
	StateProvisional State = "provisional" // computed, not yet materialized
	StateActive      State = "active"      // has a directory on disk
	StateRenaming    State = "renaming"
	StateMerging     State = "merging"
	StateDeleted     State = "deleted"
)

// ConflictPolicy decides what happens when a merge would move a file onto an
// existing file with the same name in the target directory.
type ConflictPolicy string

const (
	// ReplaceExisting lets the incoming file replace the one already in the
	// target. This is the default contract for merges.
	ReplaceExisting ConflictPolicy = "replace"
	// KeepExisting discards the incoming file and keeps the target's copy.
	KeepExisting ConflictPolicy = "keep"
)

// Record is the metadata side of one cluster. The directory named by Label
// is its filesystem side; the two only ever change together.
type Record struct {
	ID               string
	RawID            int // raw cluster id in the observation store
	Label            string
	State            State
	RepresentativeID int64

	members map[int64]struct{}
	summary clustering.Summary
}

// MemberIDs returns the member observation ids, sorted ascending.
func (r *Record) MemberIDs() []int64 {
	ids := make([]int64, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MemberCount returns the number of member observations.
func (r *Record) MemberCount() int {
	return len(r.members)
}

func (r *Record) hasMember(id int64) bool {
	_, ok := r.members[id]
	return ok
}

func (r *Record) addMember(id int64) {
	r.members[id] = struct{}{}
}

func (r *Record) removeMember(id int64) {
	delete(r.members, id)
}

// Summary returns the record's current statistics.
func (r *Record) Summary() clustering.Summary {
	return r.summary
}
