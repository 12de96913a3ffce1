package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/repolens/repolens/internal/analyzer"
	"github.com/repolens/repolens/internal/gitrepo"
	"github.com/repolens/repolens/internal/graph"
	"github.com/repolens/repolens/internal/storage"
)

// ---------------------------------------------------------------------------
// POST /api/analyze
// ---------------------------------------------------------------------------

// analyzeRequest is the JSON body for POST /api/analyze.
type analyzeRequest struct {
	RepoURL string `json:"repo_url"`
}

// analyzeResponse wraps the dependency graph together with run metadata.
type analyzeResponse struct {
	AnalysisID string            `json:"analysis_id"`
	Source     string            `json:"source"`
	Cached     bool              `json:"cached"`
	DurationMs int64             `json:"duration_ms"`
	Graph      *graph.Graph      `json:"graph"`
	Stats      map[string]int    `json:"stats"`
}

// handleAnalyze clones a public repository, builds its dependency graph
// synchronously and returns it. Results are cached per repository reference.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.cloner == nil {
		writeError(w, http.StatusServiceUnavailable, "CLONING_DISABLED",
			"remote repository analysis is not configured")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body: "+err.Error())
		return
	}
	if req.RepoURL == "" {
		writeError(w, http.StatusBadRequest, "MISSING_REPO_URL", "repo_url is required")
		return
	}

	ref, err := gitrepo.ParseRepoURL(req.RepoURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REPO_URL", err.Error())
		return
	}

	// Cache hit: skip the clone entirely.
	if g, ok := s.graphCache.Get(ref.String()); ok {
		slog.Debug("analysis cache hit", "repo", ref.String())
		writeJSON(w, http.StatusOK, analyzeResponse{
			Source: ref.String(),
			Cached: true,
			Graph:  g,
			Stats:  graphStats(g),
		})
		return
	}

	start := time.Now()

	dir, cleanup, err := s.cloner.Clone(r.Context(), ref)
	if err != nil {
		slog.Error("clone failed", "repo", ref.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "CLONE_FAILED",
			"failed to clone repository: "+err.Error())
		return
	}
	defer cleanup()

	an, err := analyzer.New(dir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ANALYZER_INIT", err.Error())
		return
	}

	g, err := an.Analyze(r.Context(), nil)
	if errors.Is(err, analyzer.ErrNoFiles) {
		writeError(w, http.StatusUnprocessableEntity, "NO_ANALYZABLE_FILES",
			"repository contains no analyzable files")
		return
	}
	if err != nil {
		slog.Error("analysis failed", "repo", ref.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "ANALYSIS_FAILED", err.Error())
		return
	}

	dur := time.Since(start)
	rec := storage.AnalysisRecord{
		ID:         uuid.New().String(),
		Source:     ref.String(),
		NodeCount:  g.NodeCount(),
		EdgeCount:  g.EdgeCount(),
		DurationMs: dur.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveAnalysis(r.Context(), rec, g); err != nil {
		// The graph is still usable; log and keep going.
		slog.Error("failed to persist analysis", "repo", ref.String(), "error", err)
	} else if _, err := s.store.PruneAnalyses(r.Context(), analysisHistoryLimit); err != nil {
		slog.Warn("failed to prune old analyses", "error", err)
	}

	s.graphCache.Add(ref.String(), g)
	s.index.Load(g)

	slog.Info("repository analyzed",
		"repo", ref.String(),
		"nodes", rec.NodeCount,
		"edges", rec.EdgeCount,
		"duration", dur.Round(time.Millisecond).String(),
	)

	writeJSON(w, http.StatusOK, analyzeResponse{
		AnalysisID: rec.ID,
		Source:     ref.String(),
		DurationMs: dur.Milliseconds(),
		Graph:      g,
		Stats:      graphStats(g),
	})
}

// graphStats summarises a graph for API responses.
func graphStats(g *graph.Graph) map[string]int {
	return map[string]int{
		"nodes": g.NodeCount(),
		"edges": g.EdgeCount(),
	}
}
