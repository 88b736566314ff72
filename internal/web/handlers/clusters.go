package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-sorter/internal/catalog"
	"github.com/kozaktomas/face-sorter/internal/index"
	"github.com/kozaktomas/face-sorter/internal/naming"
)

// maxLabelSamples bounds how many member crops are uploaded per label
// suggestion request.
const maxLabelSamples = 4

// ClustersHandler exposes the catalog's read and mutation surface over HTTP.
type ClustersHandler struct {
	catalog *catalog.Catalog
	index   *index.Index
	namer   naming.Provider
}

// NewClustersHandler creates a new clusters handler. index and namer are
// optional; the endpoints that need them answer 503 when absent.
func NewClustersHandler(cat *catalog.Catalog, idx *index.Index, namer naming.Provider) *ClustersHandler {
	return &ClustersHandler{
		catalog: cat,
		index:   idx,
		namer:   namer,
	}
}

// List handles GET /clusters.
func (h *ClustersHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"clusters": h.catalog.List(),
	})
}

// Get handles GET /clusters/{id}.
func (h *ClustersHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// Members handles GET /clusters/{id}/members.
func (h *ClustersHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.catalog.Members(chi.URLParam(r, "id"))
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"members": members,
	})
}

// Unclustered handles GET /unclustered.
func (h *ClustersHandler) Unclustered(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"members": h.catalog.Unclustered(),
	})
}

// Create handles POST /clusters.
func (h *ClustersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	info, err := h.catalog.Create(req.Label)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

// Rename handles PUT /clusters/{id}/label.
func (h *ClustersHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	info, err := h.catalog.Rename(chi.URLParam(r, "id"), req.Label)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// Merge handles POST /clusters/{id}/merge. The path id is the merge target;
// the body lists the source clusters folded into it.
func (h *ClustersHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceIDs []string `json:"source_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.SourceIDs) == 0 {
		respondError(w, http.StatusBadRequest, "source_ids must not be empty")
		return
	}

	info, err := h.catalog.Merge(req.SourceIDs, chi.URLParam(r, "id"))
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// Delete handles DELETE /clusters/{id}. The confirm query parameter must be
// set to true, otherwise the request is rejected.
func (h *ClustersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	confirmed := r.URL.Query().Get("confirm") == "true"

	info, err := h.catalog.Delete(chi.URLParam(r, "id"), confirmed)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// MoveMember handles POST /observations/{id}/move.
func (h *ClustersHandler) MoveMember(w http.ResponseWriter, r *http.Request) {
	observationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid observation id")
		return
	}

	var req struct {
		ClusterID string `json:"cluster_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	info, err := h.catalog.MoveMember(observationID, req.ClusterID)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// RemoveMember handles POST /observations/{id}/remove. The observation drops
// back to the unclustered pool.
func (h *ClustersHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	observationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid observation id")
		return
	}

	if err := h.catalog.RemoveMember(observationID); err != nil {
		respondCatalogError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// clusterSuggestion pairs an index suggestion with the cluster it points at.
type clusterSuggestion struct {
	Cluster  catalog.ClusterInfo `json:"cluster"`
	Votes    int                 `json:"votes"`
	Distance float64             `json:"distance"`
}

// Suggestions handles GET /observations/{id}/suggestions. It looks up the
// observation's embedding and asks the approximate index for nearby clusters.
func (h *ClustersHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		respondError(w, http.StatusServiceUnavailable, "similarity index not available")
		return
	}

	observationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid observation id")
		return
	}
	obs := h.catalog.Store().Get(observationID)
	if obs == nil {
		respondError(w, http.StatusNotFound, catalog.ErrUnknownObservation.Error())
		return
	}

	var suggestions []clusterSuggestion
	for _, s := range h.index.Suggest(obs.Embedding, 10) {
		info, ok := h.catalog.ByRawID(s.ClusterRawID)
		if !ok {
			continue
		}
		suggestions = append(suggestions, clusterSuggestion{
			Cluster:  info,
			Votes:    s.Votes,
			Distance: s.Distance,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"suggestions": suggestions,
	})
}

// SuggestLabel handles POST /clusters/{id}/suggest-label. It uploads a few
// member crops to the configured vision model and returns its label proposal.
func (h *ClustersHandler) SuggestLabel(w http.ResponseWriter, r *http.Request) {
	if h.namer == nil {
		respondError(w, http.StatusServiceUnavailable, "no label provider configured")
		return
	}

	clusterID := chi.URLParam(r, "id")
	info, err := h.catalog.Get(clusterID)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	members, err := h.catalog.Members(clusterID)
	if err != nil {
		respondCatalogError(w, err)
		return
	}

	var samples [][]byte
	seen := make(map[string]bool)
	for _, member := range members {
		if len(samples) >= maxLabelSamples {
			break
		}
		if seen[member.SourcePath] {
			continue
		}
		seen[member.SourcePath] = true

		// Prefer the materialized copy; fall back to the source file.
		data, err := os.ReadFile(filepath.Join(h.catalog.OutputDir(), info.Label, filepath.Base(member.SourcePath)))
		if err != nil {
			data, err = os.ReadFile(member.SourcePath)
			if err != nil {
				continue
			}
		}
		samples = append(samples, data)
	}
	if len(samples) == 0 {
		respondError(w, http.StatusNotFound, "no readable sample images for cluster")
		return
	}

	existing := make([]string, 0)
	for _, c := range h.catalog.List() {
		existing = append(existing, c.Label)
	}

	suggestion, err := h.namer.SuggestLabel(r.Context(), samples, existing)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"provider":   h.namer.Name(),
		"suggestion": suggestion,
	})
}
