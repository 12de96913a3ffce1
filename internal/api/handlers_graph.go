package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/repolens/repolens/internal/graph"
	"github.com/repolens/repolens/internal/storage"
)

// ---------------------------------------------------------------------------
// GET /api/graph
// ---------------------------------------------------------------------------

// handleGraph returns the currently loaded dependency graph.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g := s.index.Graph()
	if g == nil || len(g.Nodes) == 0 {
		writeError(w, http.StatusNotFound, "NO_GRAPH",
			"no analysis has been loaded yet")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// ---------------------------------------------------------------------------
// GET /api/graph/node/:id
// ---------------------------------------------------------------------------

func (s *Server) handleGraphNode(w http.ResponseWriter, r *http.Request) {
	// Extract node ID from path: /api/graph/node/{id}
	nodeID := extractPathParam(r.URL.Path, "/api/graph/node/")
	if nodeID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_NODE_ID",
			"node ID is required in the URL path")
		return
	}

	node, ok := s.index.GetNode(nodeID)
	if !ok {
		writeError(w, http.StatusNotFound, "NODE_NOT_FOUND",
			"node not found")
		return
	}

	in, out := s.index.Degree(nodeID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"node":       node,
			"in_degree":  in,
			"out_degree": out,
		},
	})
}

// ---------------------------------------------------------------------------
// GET /api/graph/stats
// ---------------------------------------------------------------------------

func (s *Server) handleGraphStats(w http.ResponseWriter, r *http.Request) {
	stats := s.index.Stats()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"total_nodes":    stats.TotalNodes,
			"total_edges":    stats.TotalEdges,
			"nodes_by_type":  stats.NodesByType,
			"directories":    stats.Directories,
			"max_degree":     stats.MaxDegree,
			"isolated_nodes": stats.Isolated,
		},
	})
}

// ---------------------------------------------------------------------------
// GET /api/graph/search?q=X&type=Y&limit=N
// ---------------------------------------------------------------------------

func (s *Server) handleGraphSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "MISSING_QUERY",
			"q query parameter is required")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v >= 1 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	nodeType := r.URL.Query().Get("type")

	nodes := s.index.Search(q, limit)

	// Apply optional type filter.
	if nodeType != "" {
		filtered := make([]*graph.FileNode, 0, len(nodes))
		for _, n := range nodes {
			if n.Type == nodeType {
				filtered = append(filtered, n)
			}
		}
		nodes = filtered
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"nodes": nodes,
			"total": len(nodes),
		},
	})
}

// ---------------------------------------------------------------------------
// GET /api/analyses
// ---------------------------------------------------------------------------

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v >= 1 {
			limit = v
		}
	}

	recs, err := s.store.ListAnalyses(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "LIST_ERROR",
			"failed to list analyses: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"analyses": recs,
			"total":    len(recs),
		},
	})
}

// ---------------------------------------------------------------------------
// GET /api/analyses/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID",
			"analysis ID is required in the URL path")
		return
	}

	rec, g, err := s.store.GetAnalysis(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "ANALYSIS_NOT_FOUND",
			"no analysis with that ID")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "GET_ERROR",
			"failed to load analysis: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"analysis": rec,
			"graph":    g,
		},
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// extractPathParam extracts the path suffix after a given prefix.
// For example, extractPathParam("/api/graph/node/src/app.ts", "/api/graph/node/")
// returns "src/app.ts".
func extractPathParam(path, prefix string) string {
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	return strings.TrimPrefix(path, prefix)
}
