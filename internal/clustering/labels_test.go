package clustering

import (
	"fmt"
	"testing"

	"github.com/kozaktomas/face-sorter/internal/faces"
)

func ids(n int, start int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = start + int64(i)
	}
	return out
}

func TestAllocate_FilterBeforeNumbering(t *testing.T) {
	// Raw ids with gaps and undersized clusters in between. Numbering must
	// happen after filtering, so labels stay gap-free.
	byCluster := map[int][]int64{
		0:           ids(2, 1),   // dropped, below threshold
		3:           ids(10, 10), // survives
		7:           ids(1, 30),  // dropped
		9:           ids(4, 40),  // survives
		faces.Noise: ids(5, 100),
	}

	groups := Allocate(byCluster, 3, "")
	if len(groups) != 2 {
		t.Fatalf("expected 2 surviving groups, got %d", len(groups))
	}
	if groups[0].Label != "Group_01" || groups[1].Label != "Group_02" {
		t.Errorf("expected gap-free labels Group_01, Group_02, got %q, %q",
			groups[0].Label, groups[1].Label)
	}
	if groups[0].RawID != 3 || len(groups[0].MemberIDs) != 10 {
		t.Errorf("expected Group_01 to be raw cluster 3 with 10 members, got raw %d size %d",
			groups[0].RawID, len(groups[0].MemberIDs))
	}
	if groups[1].RawID != 9 || len(groups[1].MemberIDs) != 4 {
		t.Errorf("expected Group_02 to be raw cluster 9 with 4 members, got raw %d size %d",
			groups[1].RawID, len(groups[1].MemberIDs))
	}
}

func TestAllocate_TwentySurvivors(t *testing.T) {
	byCluster := make(map[int][]int64)
	next := int64(1)
	// 20 clusters that pass the threshold, with scattered raw ids.
	for i := 0; i < 20; i++ {
		members := ids(3+i, next)
		next += int64(len(members))
		byCluster[i*5+2] = members
	}
	// A handful that do not.
	for i := 0; i < 7; i++ {
		byCluster[i*5+3] = ids(2, next)
		next += 2
	}

	groups := Allocate(byCluster, 3, "")
	if len(groups) != 20 {
		t.Fatalf("expected 20 surviving groups, got %d", len(groups))
	}
	for i, g := range groups {
		want := fmt.Sprintf("Group_%02d", i+1)
		if g.Label != want {
			t.Errorf("groups[%d].Label = %q, want %q", i, g.Label, want)
		}
	}
	// Size-descending order: 22, 21, ..., 3.
	for i := 1; i < len(groups); i++ {
		if len(groups[i].MemberIDs) > len(groups[i-1].MemberIDs) {
			t.Errorf("groups not ordered by size: %d before %d",
				len(groups[i-1].MemberIDs), len(groups[i].MemberIDs))
		}
	}
}

func TestAllocate_SizeTieBrokenByRawID(t *testing.T) {
	byCluster := map[int][]int64{
		4: ids(5, 1),
		1: ids(5, 10),
		8: ids(5, 20),
	}
	groups := Allocate(byCluster, 3, "")
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	wantOrder := []int{1, 4, 8}
	for i, g := range groups {
		if g.RawID != wantOrder[i] {
			t.Errorf("groups[%d].RawID = %d, want %d", i, g.RawID, wantOrder[i])
		}
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	byCluster := map[int][]int64{
		0: ids(6, 1), 1: ids(6, 10), 2: ids(4, 20), 3: ids(2, 30), 5: ids(9, 40),
	}
	first := Allocate(byCluster, 3, "")
	for run := 0; run < 10; run++ {
		again := Allocate(byCluster, 3, "")
		if len(again) != len(first) {
			t.Fatalf("run %d: got %d groups, first run had %d", run, len(again), len(first))
		}
		for i := range first {
			if again[i].RawID != first[i].RawID || again[i].Label != first[i].Label {
				t.Fatalf("run %d: groups[%d] = {%d %q}, first run had {%d %q}",
					run, i, again[i].RawID, again[i].Label, first[i].RawID, first[i].Label)
			}
		}
	}
}

func TestAllocate_NoSurvivors(t *testing.T) {
	byCluster := map[int][]int64{
		0:           ids(2, 1),
		faces.Noise: ids(4, 10),
	}
	groups := Allocate(byCluster, 3, "")
	if len(groups) != 0 {
		t.Errorf("expected no surviving groups, got %d", len(groups))
	}
}

func TestAllocate_CustomPrefix(t *testing.T) {
	groups := Allocate(map[int][]int64{0: ids(3, 1)}, 3, "Person")
	if len(groups) != 1 || groups[0].Label != "Person_01" {
		t.Errorf("expected Person_01, got %+v", groups)
	}
}
