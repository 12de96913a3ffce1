package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGraph() *Graph {
	a := NewFileNode("src/app.ts", 100)
	a.Importance = 3.0
	b := NewFileNode("src/util.ts", 40)
	b.Importance = 4.5
	c := NewFileNode("style.css", 20)
	c.Importance = 1.0

	return &Graph{
		Nodes: []*FileNode{a, b, c},
		Edges: []*Edge{
			NewEdge("src/app.ts", "src/util.ts"),
			NewEdge("src/app.ts", "src/util.ts"), // duplicates are legal
		},
	}
}

func TestIndexLoadAndLookup(t *testing.T) {
	idx := NewIndex()
	assert.Equal(t, 0, idx.NodeCount())

	idx.Load(testGraph())

	assert.Equal(t, 3, idx.NodeCount())
	assert.Equal(t, 2, idx.EdgeCount())

	n, ok := idx.GetNode("src/util.ts")
	require.True(t, ok)
	assert.Equal(t, "util.ts", n.Label)

	_, ok = idx.GetNode("nope")
	assert.False(t, ok)
}

func TestIndexDegree(t *testing.T) {
	idx := NewIndex()
	idx.Load(testGraph())

	in, out := idx.Degree("src/util.ts")
	assert.Equal(t, 2, in)
	assert.Equal(t, 0, out)

	in, out = idx.Degree("src/app.ts")
	assert.Equal(t, 0, in)
	assert.Equal(t, 2, out)
}

func TestIndexGetByType(t *testing.T) {
	idx := NewIndex()
	idx.Load(testGraph())

	assert.Len(t, idx.GetByType("ts"), 2)
	assert.Len(t, idx.GetByType("css"), 1)
	assert.Empty(t, idx.GetByType("go"))
}

func TestIndexSearch(t *testing.T) {
	idx := NewIndex()
	idx.Load(testGraph())

	// Importance descending: util (4.5) before app (3.0).
	got := idx.Search("SRC", 10)
	require.Len(t, got, 2)
	assert.Equal(t, "src/util.ts", got[0].ID)
	assert.Equal(t, "src/app.ts", got[1].ID)

	assert.Len(t, idx.Search("src", 1), 1)
	assert.Empty(t, idx.Search("", 10))
	assert.Empty(t, idx.Search("zzz", 10))
}

func TestIndexStats(t *testing.T) {
	idx := NewIndex()
	idx.Load(testGraph())

	stats := idx.Stats()
	assert.Equal(t, 3, stats.TotalNodes)
	assert.Equal(t, 2, stats.TotalEdges)
	assert.Equal(t, map[string]int{"ts": 2, "css": 1}, stats.NodesByType)
	assert.Equal(t, 2, stats.Directories) // "src" and "root"
	assert.Equal(t, 2, stats.MaxDegree)
	assert.Equal(t, 1, stats.Isolated) // style.css has no edges
}

func TestIndexLoadReplacesContents(t *testing.T) {
	idx := NewIndex()
	idx.Load(testGraph())
	require.Equal(t, 3, idx.NodeCount())

	idx.Load(&Graph{Nodes: []*FileNode{NewFileNode("only.go", 5)}})
	assert.Equal(t, 1, idx.NodeCount())
	assert.Equal(t, 0, idx.EdgeCount())

	idx.Load(nil)
	assert.Equal(t, 0, idx.NodeCount())
}
