package clustering

import (
	"github.com/kozaktomas/face-sorter/internal/faces"
)

// SampleSize is how many source paths a summary keeps for previews.
const SampleSize = 3

// Summary carries per-cluster statistics and the representative choice.
type Summary struct {
	RawID              int      `json:"raw_id"`
	Label              string   `json:"label"`
	MemberCount        int      `json:"member_count"`
	ImageCount         int      `json:"image_count"`
	RepresentativeID   int64    `json:"representative_id"`
	RepresentativePath string   `json:"representative_path"`
	SamplePaths        []string `json:"sample_paths"`
}

// Summarize computes statistics for one group: member count, distinct source
// image count, a small sample of source paths and the representative
// observation. The representative is the member nearest the cluster centroid,
// ties broken by lowest observation id; the centroid is accumulated in
// float64 so the choice does not depend on member order.
func Summarize(group Group, store *faces.Store) Summary {
	summary := Summary{
		RawID:       group.RawID,
		Label:       group.Label,
		MemberCount: len(group.MemberIDs),
	}
	if len(group.MemberIDs) == 0 {
		return summary
	}

	dim := store.Dim()
	centroid := make([]float64, dim)
	seen := make(map[string]bool)
	members := make([]*faces.Observation, 0, len(group.MemberIDs))

	for _, id := range group.MemberIDs {
		obs := store.Get(id)
		if obs == nil {
			continue
		}
		members = append(members, obs)
		for i, v := range obs.Embedding {
			centroid[i] += float64(v)
		}
		if !seen[obs.SourcePath] {
			seen[obs.SourcePath] = true
			if len(summary.SamplePaths) < SampleSize {
				summary.SamplePaths = append(summary.SamplePaths, obs.SourcePath)
			}
		}
	}
	summary.ImageCount = len(seen)
	if len(members) == 0 {
		return summary
	}

	mean := make([]float32, dim)
	for i := range centroid {
		mean[i] = float32(centroid[i] / float64(len(members)))
	}

	best := members[0]
	bestDist := faces.CosineDistance(best.Embedding, mean)
	for _, obs := range members[1:] {
		d := faces.CosineDistance(obs.Embedding, mean)
		if d < bestDist || (d == bestDist && obs.ID < best.ID) {
			best = obs
			bestDist = d
		}
	}
	summary.RepresentativeID = best.ID
	summary.RepresentativePath = best.SourcePath
	return summary
}

// SummarizeAll computes summaries for every group, in group order.
func SummarizeAll(groups []Group, store *faces.Store) []Summary {
	summaries := make([]Summary, len(groups))
	for i, group := range groups {
		summaries[i] = Summarize(group, store)
	}
	return summaries
}
