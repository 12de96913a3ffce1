package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/repolens/repolens/internal/graph"
)

// ErrNoFiles is returned when discovery finds nothing matching the
// allow-list. Callers surface it as a distinct "nothing to analyze"
// condition, since an empty graph renders meaninglessly downstream.
var ErrNoFiles = errors.New("analyzer: no analyzable files found")

// ProgressFn is called after each batch finishes processing. It receives
// the number of files processed so far, the total file count, and the path
// of the last file in the completed batch.
type ProgressFn func(filesProcessed, totalFiles int, currentFile string)

// Batch sizing bounds: batch size scales with total file count but stays
// within a range that keeps peak concurrency sane.
const (
	minBatchSize = 5
	maxBatchSize = 50
)

// ---------------------------------------------------------------------------
// Analyzer
// ---------------------------------------------------------------------------

// Analyzer builds a file dependency graph for the repository rooted at a
// local directory. It is stateless across runs; each Analyze call operates
// on its own internal state.
type Analyzer struct {
	root string
}

// New creates an Analyzer for the repository at rootPath. The path must
// exist and be a directory.
func New(rootPath string) (*Analyzer, error) {
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("analyzer: resolve root path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("analyzer: stat root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("analyzer: root path %s is not a directory", absRoot)
	}
	return &Analyzer{root: absRoot}, nil
}

// Root returns the absolute repository root this analyzer reads from.
func (a *Analyzer) Root() string { return a.root }

// ---------------------------------------------------------------------------
// Analyze — main entry point
// ---------------------------------------------------------------------------

// fileResult bundles the per-file output of one batch worker: the line
// count, the outgoing edges, and the file's contribution to connection
// counts. Workers never touch shared maps; the collector merges results
// after each batch completes.
type fileResult struct {
	relPath string
	lines   int
	edges   []*graph.Edge
	counts  map[string]int
}

// Analyze runs discovery, index construction, batched extraction and
// resolution, and scoring, returning the finished graph.
//
// progress (optional) is called after every completed batch.
func (a *Analyzer) Analyze(ctx context.Context, progress ProgressFn) (*graph.Graph, error) {
	start := time.Now()

	// ---- 1. Discover candidate files ------------------------------------
	files, err := discoverFiles(ctx, a.root)
	if err != nil {
		return nil, fmt.Errorf("analyzer: discover files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	// ---- 2. Build the path index (precondition for resolution) ----------
	idx := newFileIndex(files)

	// ---- 3. Process files in bounded batches -----------------------------
	batchSize := clampBatchSize(len(files))
	results := make([]*fileResult, 0, len(files))

	for batchStart := 0; batchStart < len(files); batchStart += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batchEnd := batchStart + batchSize
		if batchEnd > len(files) {
			batchEnd = len(files)
		}
		batch := files[batchStart:batchEnd]

		batchResults := make([]*fileResult, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, relPath := range batch {
			i, relPath := i, relPath
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				batchResults[i] = a.processFile(relPath, idx)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		// Single-writer merge: only this loop ever touches the aggregate.
		results = append(results, batchResults...)

		if progress != nil {
			progress(batchEnd, len(files), batch[len(batch)-1])
		}
	}

	// ---- 4. Assemble nodes, edges, connection counts ---------------------
	nodes := make([]*graph.FileNode, 0, len(files))
	var edges []*graph.Edge
	connections := make(map[string]int, len(files))

	for _, res := range results {
		nodes = append(nodes, graph.NewFileNode(res.relPath, res.lines))
		edges = append(edges, res.edges...)
		for id, n := range res.counts {
			connections[id] += n
		}
	}

	// ---- 5. Finalize importance scores -----------------------------------
	scoreNodes(nodes, connections)

	slog.Info("analysis complete",
		"root", a.root,
		"files", len(files),
		"edges", len(edges),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &graph.Graph{Nodes: nodes, Edges: edges}, nil
}

// processFile reads one file, extracts its specifiers, and resolves each
// relative specifier to an edge. A read failure downgrades the file to
// empty content: it still becomes a node, with zero outgoing imports.
func (a *Analyzer) processFile(relPath string, idx *fileIndex) *fileResult {
	res := &fileResult{
		relPath: relPath,
		counts:  make(map[string]int),
	}

	content, err := os.ReadFile(filepath.Join(a.root, filepath.FromSlash(relPath)))
	if err != nil {
		slog.Warn("file read failed, treating as empty", "file", relPath, "error", err)
		return res
	}
	res.lines = countLines(content)

	for _, spec := range extractImports(string(content)) {
		if !isRelativeSpecifier(spec) {
			continue // package import, out of scope
		}
		target, ok := resolveSpecifier(idx, relPath, spec)
		if !ok {
			continue // resolution miss, no edge
		}
		if target == relPath {
			continue // self-edges are dropped
		}
		res.edges = append(res.edges, graph.NewEdge(relPath, target))
		res.counts[relPath]++
		res.counts[target]++
	}

	return res
}

// clampBatchSize scales the batch size with the file count, clamped to
// [minBatchSize, maxBatchSize].
func clampBatchSize(total int) int {
	size := total / 10
	if size < minBatchSize {
		size = minBatchSize
	}
	if size > maxBatchSize {
		size = maxBatchSize
	}
	return size
}

// countLines counts newline-separated lines the way editors do: a trailing
// newline does not start an extra line, and empty content has zero lines.
func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := strings.Count(string(content), "\n")
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}
