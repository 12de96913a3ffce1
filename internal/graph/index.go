package graph

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// IndexStats
// ---------------------------------------------------------------------------

// IndexStats summarises the contents of the in-memory graph index.
type IndexStats struct {
	TotalNodes  int            `json:"total_nodes"`
	TotalEdges  int            `json:"total_edges"`
	NodesByType map[string]int `json:"nodes_by_type"`
	Directories int            `json:"directories"`
	MaxDegree   int            `json:"max_degree"`
	Isolated    int            `json:"isolated"` // nodes with no edges in either direction
}

// ---------------------------------------------------------------------------
// Index
// ---------------------------------------------------------------------------

// Index is an in-memory view over the most recently loaded Graph, serving
// the read-side API (lookup, search, degree, stats). Load replaces the whole
// contents atomically; everything else is read-only.
//
// All public methods are goroutine-safe.
type Index struct {
	mu       sync.RWMutex
	graph    *Graph
	nodes    map[string]*FileNode // id → node
	inCount  map[string]int       // id → incoming edge count
	outCount map[string]int       // id → outgoing edge count
	byType   map[string][]string  // type bucket → []node ids
}

// NewIndex returns an empty, initialised Index ready for use.
func NewIndex() *Index {
	idx := &Index{}
	idx.reset(&Graph{})
	return idx
}

// reset rebuilds every secondary map from g. Caller must hold no lock.
func (x *Index) reset(g *Graph) {
	nodes := make(map[string]*FileNode, len(g.Nodes))
	inCount := make(map[string]int)
	outCount := make(map[string]int)
	byType := make(map[string][]string)

	for _, n := range g.Nodes {
		nodes[n.ID] = n
		byType[n.Type] = append(byType[n.Type], n.ID)
	}
	for _, e := range g.Edges {
		outCount[e.Source]++
		inCount[e.Target]++
	}

	x.mu.Lock()
	x.graph = g
	x.nodes = nodes
	x.inCount = inCount
	x.outCount = outCount
	x.byType = byType
	x.mu.Unlock()
}

// Load replaces the index contents with the given graph.
func (x *Index) Load(g *Graph) {
	if g == nil {
		g = &Graph{}
	}
	x.reset(g)
	slog.Info("graph index loaded", "nodes", len(g.Nodes), "edges", len(g.Edges))
}

// Graph returns the currently loaded graph (possibly empty, never nil).
func (x *Index) Graph() *Graph {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.graph
}

// NodeCount returns the number of indexed nodes.
func (x *Index) NodeCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.nodes)
}

// EdgeCount returns the number of edges in the loaded graph.
func (x *Index) EdgeCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.graph.Edges)
}

// GetNode returns the node with the given ID.
func (x *Index) GetNode(id string) (*FileNode, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n, ok := x.nodes[id]
	return n, ok
}

// Degree returns (incoming, outgoing) edge counts for a node ID.
func (x *Index) Degree(id string) (in, out int) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.inCount[id], x.outCount[id]
}

// GetByType returns the nodes in the given extension bucket.
func (x *Index) GetByType(bucket string) []*FileNode {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ids := x.byType[bucket]
	out := make([]*FileNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, x.nodes[id])
	}
	return out
}

// Search returns up to limit nodes whose ID contains the query
// (case-insensitive), ordered by importance descending so the most central
// matches surface first.
func (x *Index) Search(query string, limit int) []*FileNode {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || limit <= 0 {
		return nil
	}

	x.mu.RLock()
	var matches []*FileNode
	for _, n := range x.graph.Nodes {
		if strings.Contains(strings.ToLower(n.ID), query) {
			matches = append(matches, n)
		}
	}
	x.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Importance != matches[j].Importance {
			return matches[i].Importance > matches[j].Importance
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Stats computes summary statistics for the loaded graph.
func (x *Index) Stats() IndexStats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	stats := IndexStats{
		TotalNodes:  len(x.nodes),
		TotalEdges:  len(x.graph.Edges),
		NodesByType: make(map[string]int, len(x.byType)),
	}
	for bucket, ids := range x.byType {
		stats.NodesByType[bucket] = len(ids)
	}

	dirs := make(map[string]bool)
	for id, n := range x.nodes {
		dirs[n.Directory] = true
		deg := x.inCount[id] + x.outCount[id]
		if deg > stats.MaxDegree {
			stats.MaxDegree = deg
		}
		if deg == 0 {
			stats.Isolated++
		}
	}
	stats.Directories = len(dirs)
	return stats
}
