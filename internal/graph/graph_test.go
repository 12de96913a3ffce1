package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileNode(t *testing.T) {
	n := NewFileNode("src/components/App.tsx", 100)

	assert.Equal(t, "src/components/App.tsx", n.ID)
	assert.Equal(t, "App.tsx", n.Label)
	assert.Equal(t, "tsx", n.Type)
	assert.Equal(t, "src/components", n.Directory)
	assert.Equal(t, 100, n.Lines)
	assert.Equal(t, 10.0, n.Size)
	assert.Zero(t, n.Importance)
}

func TestNewFileNodeRootLevel(t *testing.T) {
	n := NewFileNode("package.json", 20)
	assert.Equal(t, RootDirectory, n.Directory)
}

func TestExtensionBucket(t *testing.T) {
	assert.Equal(t, "ts", ExtensionBucket("a/b.ts"))
	assert.Equal(t, "json", ExtensionBucket("x.JSON"))
	assert.Equal(t, "env", ExtensionBucket(".env"))
	assert.Equal(t, "other", ExtensionBucket("Makefile"))
	assert.Equal(t, "other", ExtensionBucket("trailing."))
}

func TestRenderSizeClamped(t *testing.T) {
	assert.Equal(t, 4.0, NewFileNode("tiny.ts", 0).Size)
	assert.Equal(t, 4.0, NewFileNode("small.ts", 12).Size)
	assert.Equal(t, 25.0, NewFileNode("mid.ts", 250).Size)
	assert.Equal(t, 40.0, NewFileNode("huge.ts", 100000).Size)
}

func TestNewEdge(t *testing.T) {
	e := NewEdge("a.ts", "b.ts")
	assert.Equal(t, "a.ts", e.Source)
	assert.Equal(t, "b.ts", e.Target)
	assert.Equal(t, 1, e.Value)
}

func TestGraphLookup(t *testing.T) {
	g := &Graph{Nodes: []*FileNode{
		NewFileNode("a.ts", 1),
		NewFileNode("b.ts", 2),
	}}

	require.NotNil(t, g.Lookup("b.ts"))
	assert.Nil(t, g.Lookup("missing.ts"))
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
}

func TestGraphWireShape(t *testing.T) {
	n := NewFileNode("src/a.ts", 50)
	n.Importance = 2.5
	g := &Graph{
		Nodes: []*FileNode{n},
		Edges: []*Edge{NewEdge("src/a.ts", "src/b.ts")},
	}

	raw, err := json.Marshal(g)
	require.NoError(t, err)

	var decoded map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	require.Len(t, decoded["nodes"], 1)
	node := decoded["nodes"][0]
	for _, key := range []string{"id", "label", "type", "size", "lines", "directory", "importance"} {
		assert.Contains(t, node, key)
	}
	assert.Equal(t, "src/a.ts", node["id"])

	require.Len(t, decoded["edges"], 1)
	edge := decoded["edges"][0]
	for _, key := range []string{"source", "target", "value"} {
		assert.Contains(t, edge, key)
	}
}
