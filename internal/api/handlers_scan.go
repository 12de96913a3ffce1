package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/repolens/repolens/internal/analyzer"
	"github.com/repolens/repolens/internal/storage"
)

// ---------------------------------------------------------------------------
// Scan job tracking
// ---------------------------------------------------------------------------

// scanJobStatus represents the current state of a background scan.
type scanJobStatus struct {
	mu             sync.RWMutex
	JobID          string    `json:"job_id"`
	Status         string    `json:"status"` // "scanning"|"completed"|"failed"
	FilesProcessed int       `json:"files_processed"`
	TotalFiles     int       `json:"total_files"`
	CurrentFile    string    `json:"current_file,omitempty"`
	AnalysisID     string    `json:"analysis_id,omitempty"`
	NodeCount      int       `json:"node_count,omitempty"`
	EdgeCount      int       `json:"edge_count,omitempty"`
	DurationMs     int64     `json:"duration_ms,omitempty"`
	Errors         []string  `json:"errors,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at,omitempty"`
}

// scanJobSnapshot is a mutex-free copy of scanJobStatus for serialisation.
type scanJobSnapshot struct {
	JobID          string    `json:"job_id"`
	Status         string    `json:"status"`
	FilesProcessed int       `json:"files_processed"`
	TotalFiles     int       `json:"total_files"`
	CurrentFile    string    `json:"current_file,omitempty"`
	AnalysisID     string    `json:"analysis_id,omitempty"`
	NodeCount      int       `json:"node_count,omitempty"`
	EdgeCount      int       `json:"edge_count,omitempty"`
	DurationMs     int64     `json:"duration_ms,omitempty"`
	Errors         []string  `json:"errors,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at,omitempty"`
}

func (j *scanJobStatus) snapshot() scanJobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return scanJobSnapshot{
		JobID:          j.JobID,
		Status:         j.Status,
		FilesProcessed: j.FilesProcessed,
		TotalFiles:     j.TotalFiles,
		CurrentFile:    j.CurrentFile,
		AnalysisID:     j.AnalysisID,
		NodeCount:      j.NodeCount,
		EdgeCount:      j.EdgeCount,
		DurationMs:     j.DurationMs,
		Errors:         j.Errors,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
	}
}

// registerScanJob stores a scan job in the server's scan-job map.
func (s *Server) registerScanJob(job *scanJobStatus) {
	s.scanJobs.Store(job.JobID, job)
}

// getScanJob retrieves a scan job by ID from the server's scan-job map.
func (s *Server) getScanJob(jobID string) (*scanJobStatus, bool) {
	v, ok := s.scanJobs.Load(jobID)
	if !ok {
		return nil, false
	}
	return v.(*scanJobStatus), true
}

// ---------------------------------------------------------------------------
// POST /api/scan
// ---------------------------------------------------------------------------

// analysisHistoryLimit caps how many persisted runs are retained; older
// runs are pruned after each successful save.
const analysisHistoryLimit = 50

// scanRequest is the JSON body for POST /api/scan.
type scanRequest struct {
	RootPath string `json:"root_path"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body: "+err.Error())
		return
	}

	if req.RootPath == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ROOT_PATH", "root_path is required")
		return
	}

	an, err := analyzer.New(req.RootPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PATH", err.Error())
		return
	}

	// Create the scan job.
	jobID := uuid.New().String()
	job := &scanJobStatus{
		JobID:     jobID,
		Status:    "scanning",
		StartedAt: time.Now().UTC(),
	}
	s.registerScanJob(job)

	// Launch scan in background goroutine.
	// Use WithoutCancel so the scan outlives the HTTP request.
	scanCtx := context.WithoutCancel(r.Context())
	go s.runScan(scanCtx, an, job)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"data": map[string]interface{}{
			"status": "scanning",
			"job_id": jobID,
		},
	})
}

// runScan executes the full discover→extract→assemble→save pipeline.
func (s *Server) runScan(ctx context.Context, an *analyzer.Analyzer, job *scanJobStatus) {
	start := time.Now()

	defer func() {
		if rv := recover(); rv != nil {
			s.failJob(job, start, fmt.Sprintf("panic: %v", rv))
		}
	}()

	// ---- 1. Analyze with progress callback --------------------------
	progress := func(processed, total int, file string) {
		job.mu.Lock()
		job.FilesProcessed = processed
		job.TotalFiles = total
		job.CurrentFile = file
		job.mu.Unlock()

		s.sse.Broadcast(SSEEvent{
			Event: "scan_progress",
			Data: map[string]interface{}{
				"job_id":          job.JobID,
				"files_processed": processed,
				"total":           total,
				"current_file":    file,
			},
		})
	}

	g, err := an.Analyze(ctx, progress)
	if err != nil {
		s.failJob(job, start, "analysis failed: "+err.Error())
		return
	}

	// ---- 2. Persist the run -----------------------------------------
	dur := time.Since(start)
	rec := storage.AnalysisRecord{
		ID:         uuid.New().String(),
		Source:     an.Root(),
		NodeCount:  g.NodeCount(),
		EdgeCount:  g.EdgeCount(),
		DurationMs: dur.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveAnalysis(ctx, rec, g); err != nil {
		s.failJob(job, start, "failed to save analysis: "+err.Error())
		return
	}
	if pruned, err := s.store.PruneAnalyses(ctx, analysisHistoryLimit); err != nil {
		slog.Warn("failed to prune old analyses", "error", err)
	} else if pruned > 0 {
		slog.Debug("pruned old analyses", "count", pruned)
	}

	// ---- 3. Reload the in-memory graph index ------------------------
	s.index.Load(g)

	// ---- 4. Finalise job --------------------------------------------
	job.mu.Lock()
	job.Status = "completed"
	job.AnalysisID = rec.ID
	job.NodeCount = rec.NodeCount
	job.EdgeCount = rec.EdgeCount
	job.DurationMs = dur.Milliseconds()
	job.CompletedAt = time.Now().UTC()
	job.TotalFiles = rec.NodeCount
	job.FilesProcessed = rec.NodeCount
	job.mu.Unlock()

	// ---- 5. Emit SSE completion event -------------------------------
	s.sse.Broadcast(SSEEvent{
		Event: "scan_complete",
		Data: map[string]interface{}{
			"job_id":      job.JobID,
			"analysis_id": rec.ID,
			"nodes":       rec.NodeCount,
			"edges":       rec.EdgeCount,
			"duration_ms": dur.Milliseconds(),
		},
	})

	slog.Info("scan completed",
		"job_id", job.JobID,
		"nodes", rec.NodeCount,
		"edges", rec.EdgeCount,
		"duration", dur.Round(time.Millisecond).String(),
	)

	// Prune old completed/failed scan jobs to prevent memory leaks.
	s.pruneOldScanJobs(10)
}

// failJob marks a scan job as failed and emits an SSE event.
func (s *Server) failJob(job *scanJobStatus, start time.Time, msg string) {
	job.mu.Lock()
	job.Status = "failed"
	job.Errors = append(job.Errors, msg)
	job.DurationMs = time.Since(start).Milliseconds()
	job.CompletedAt = time.Now().UTC()
	job.mu.Unlock()

	s.sse.Broadcast(SSEEvent{
		Event: "scan_failed",
		Data: map[string]interface{}{
			"job_id": job.JobID,
			"error":  msg,
		},
	})

	slog.Error("scan job failed", "job_id", job.JobID, "error", msg)

	// Prune old completed/failed scan jobs to prevent memory leaks.
	s.pruneOldScanJobs(10)
}

// pruneOldScanJobs removes completed/failed scan jobs from the map,
// keeping only the most recent keepLast entries.  Running jobs are never
// pruned.
func (s *Server) pruneOldScanJobs(keepLast int) {
	type entry struct {
		id        string
		startedAt time.Time
		status    string
	}

	var entries []entry
	s.scanJobs.Range(func(k, v interface{}) bool {
		job := v.(*scanJobStatus)
		snap := job.snapshot()
		entries = append(entries, entry{
			id:        k.(string),
			startedAt: snap.StartedAt,
			status:    snap.Status,
		})
		return true
	})

	// Only prune completed/failed jobs, keep all running.
	var prunable []entry
	for _, e := range entries {
		if e.status == "completed" || e.status == "failed" {
			prunable = append(prunable, e)
		}
	}

	if len(prunable) <= keepLast {
		return
	}

	// Sort by startedAt descending (newest first).
	sort.Slice(prunable, func(i, j int) bool {
		return prunable[i].startedAt.After(prunable[j].startedAt)
	})

	// Delete everything beyond keepLast.
	evicted := 0
	for _, e := range prunable[keepLast:] {
		s.scanJobs.Delete(e.id)
		evicted++
	}
	if evicted > 0 {
		slog.Debug("pruned old scan jobs", "count", evicted)
	}
}

// ---------------------------------------------------------------------------
// GET /api/scan/status
// ---------------------------------------------------------------------------

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_JOB_ID", "job_id query parameter is required")
		return
	}

	job, ok := s.getScanJob(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "JOB_NOT_FOUND", "no scan job with that ID")
		return
	}

	snap := job.snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": snap})
}
