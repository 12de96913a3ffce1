package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/repolens/repolens/internal/graph"
)

// ErrNotFound is returned when a requested analysis does not exist.
var ErrNotFound = errors.New("storage: analysis not found")

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

// AnalysisRecord is the metadata row for one persisted analysis run.
type AnalysisRecord struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"` // repository URL or local path
	NodeCount  int       `json:"node_count"`
	EdgeCount  int       `json:"edge_count"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// ---------------------------------------------------------------------------
// Storage
// ---------------------------------------------------------------------------

// Storage is a thread-safe wrapper around a SQLite database that persists
// analysis runs and their dependency graphs.
type Storage struct {
	db *sql.DB
	mu sync.RWMutex
}

// ============================= LIFECYCLE ==================================

// New opens (or creates) the SQLite database at dbPath, applies the
// recommended PRAGMAs, runs any pending migrations and returns a ready
// *Storage.
func New(dbPath string) (*Storage, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open db %q: %w", dbPath, err)
	}

	// Only one writer at a time for SQLite.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("storage: set pragma %q: %w", p, err)
		}
	}

	s := &Storage{db: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// ============================ MIGRATIONS ==================================

// migrate ensures the schema_migrations table exists, then applies every
// unapplied Migration from the package-level Migrations slice.
func (s *Storage) migrate() error {
	const createMigTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		description TEXT
	)`
	if _, err := s.db.Exec(createMigTable); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range Migrations {
		var exists int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration v%d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := s.db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration v%d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
	}
	return nil
}

// ========================= ANALYSIS OPERATIONS ============================

// SaveAnalysis persists one run and its full graph in a single transaction.
func (s *Storage) SaveAnalysis(ctx context.Context, rec AnalysisRecord, g *graph.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx (save analysis): %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO analyses (id, source, node_count, edge_count, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Source, len(g.Nodes), len(g.Edges), rec.DurationMs, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("storage: insert analysis %q: %w", rec.ID, err)
	}

	nodeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (analysis_id, seq, id, label, type, size, lines, directory, importance)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare file stmt: %w", err)
	}
	defer nodeStmt.Close()

	for i, n := range g.Nodes {
		if _, err := nodeStmt.ExecContext(ctx,
			rec.ID, i, n.ID, n.Label, n.Type, n.Size, n.Lines, n.Directory, n.Importance,
		); err != nil {
			return fmt.Errorf("storage: insert file %q: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO imports (analysis_id, seq, source, target, value)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare import stmt: %w", err)
	}
	defer edgeStmt.Close()

	for i, e := range g.Edges {
		if _, err := edgeStmt.ExecContext(ctx,
			rec.ID, i, e.Source, e.Target, e.Value,
		); err != nil {
			return fmt.Errorf("storage: insert import %s -> %s: %w", e.Source, e.Target, err)
		}
	}

	return tx.Commit()
}

// GetAnalysis loads one run's metadata and graph by ID.
func (s *Storage) GetAnalysis(ctx context.Context, id string) (*AnalysisRecord, *graph.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	g, err := s.loadGraph(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rec, g, nil
}

// GetLatestAnalysis loads the most recently created run, or ErrNotFound
// when the database is empty.
func (s *Storage) GetLatestAnalysis(ctx context.Context) (*AnalysisRecord, *graph.Graph, error) {
	s.mu.RLock()
	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM analyses ORDER BY created_at DESC, id DESC LIMIT 1").Scan(&id)
	s.mu.RUnlock()

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("storage: latest analysis: %w", err)
	}
	return s.GetAnalysis(ctx, id)
}

// ListAnalyses returns the most recent run records, newest first.
func (s *Storage) ListAnalyses(ctx context.Context, limit int) ([]AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, node_count, edge_count, duration_ms, created_at
		 FROM analyses ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list analyses: %w", err)
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.NodeCount, &rec.EdgeCount,
			&rec.DurationMs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan analysis row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneAnalyses deletes all but the most recent keepLast runs. Graph rows
// go with them via ON DELETE CASCADE.
func (s *Storage) PruneAnalyses(ctx context.Context, keepLast int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keepLast < 0 {
		keepLast = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM analyses WHERE id NOT IN (
			SELECT id FROM analyses ORDER BY created_at DESC, id DESC LIMIT ?
		)`, keepLast)
	if err != nil {
		return 0, fmt.Errorf("storage: prune analyses: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ============================== INTERNAL ==================================

func (s *Storage) getRecord(ctx context.Context, id string) (*AnalysisRecord, error) {
	rec := &AnalysisRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, node_count, edge_count, duration_ms, created_at
		 FROM analyses WHERE id = ?`, id).Scan(
		&rec.ID, &rec.Source, &rec.NodeCount, &rec.EdgeCount, &rec.DurationMs, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get analysis %q: %w", id, err)
	}
	return rec, nil
}

func (s *Storage) loadGraph(ctx context.Context, id string) (*graph.Graph, error) {
	nodeRows, err := s.db.QueryContext(ctx,
		`SELECT id, label, type, size, lines, directory, importance
		 FROM files WHERE analysis_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("storage: load files for %q: %w", id, err)
	}
	defer nodeRows.Close()

	g := &graph.Graph{}
	for nodeRows.Next() {
		n := &graph.FileNode{}
		if err := nodeRows.Scan(&n.ID, &n.Label, &n.Type, &n.Size, &n.Lines,
			&n.Directory, &n.Importance); err != nil {
			return nil, fmt.Errorf("storage: scan file row: %w", err)
		}
		g.Nodes = append(g.Nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, err
	}

	edgeRows, err := s.db.QueryContext(ctx,
		`SELECT source, target, value
		 FROM imports WHERE analysis_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("storage: load imports for %q: %w", id, err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		e := &graph.Edge{}
		if err := edgeRows.Scan(&e.Source, &e.Target, &e.Value); err != nil {
			return nil, fmt.Errorf("storage: scan import row: %w", err)
		}
		g.Edges = append(g.Edges, e)
	}
	return g, edgeRows.Err()
}
