package clustering

import (
	"fmt"
	"sort"
)

// DefaultLabelPrefix is the prefix for generated cluster labels.
const DefaultLabelPrefix = "Group"

// Group is one surviving cluster with its allocated user-facing label.
type Group struct {
	RawID     int
	Label     string
	MemberIDs []int64
}

// Allocate filters undersized raw clusters and assigns sequential labels to
// the survivors. The input is a raw-cluster-id to member-ids mapping as
// produced by faces.Store.ByCluster; the faces.Noise bucket is ignored.
//
// Order matters: clusters below minFaces are discarded BEFORE numbering, so
// labels are always gap-free (Group_01, Group_02, ...) no matter how many raw
// clusters were dropped. Survivors are ordered by size descending, ties by
// raw id ascending, which makes re-runs on identical input produce identical
// labels.
func Allocate(byCluster map[int][]int64, minFaces int, prefix string) []Group {
	if prefix == "" {
		prefix = DefaultLabelPrefix
	}

	var survivors []Group
	for rawID, members := range byCluster {
		if rawID < 0 {
			continue // noise bucket
		}
		if len(members) < minFaces {
			continue
		}
		survivors = append(survivors, Group{RawID: rawID, MemberIDs: members})
	}

	sort.Slice(survivors, func(i, j int) bool {
		if len(survivors[i].MemberIDs) != len(survivors[j].MemberIDs) {
			return len(survivors[i].MemberIDs) > len(survivors[j].MemberIDs)
		}
		return survivors[i].RawID < survivors[j].RawID
	})

	for i := range survivors {
		survivors[i].Label = fmt.Sprintf("%s_%02d", prefix, i+1)
	}
	return survivors
}
