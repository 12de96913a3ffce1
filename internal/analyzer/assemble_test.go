package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadRoot(t *testing.T) {
	_, err := New("/does/not/exist")
	assert.Error(t, err)

	root := t.TempDir()
	writeTree(t, root, map[string]string{"file.txt": "not a dir"})
	_, err = New(root + "/file.txt")
	assert.Error(t, err)
}

func TestAnalyzeEmptyRepository(t *testing.T) {
	an, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = an.Analyze(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestAnalyzeSmallRepository(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.ts":   "import './util'\nimport './missing'\nimport 'react'\n",
		"util.ts":   "export const x = 1\n",
		"style.css": "@import './theme.css';\nbody {}\n",
		"theme.css": ":root {}\n",
	})

	an, err := New(root)
	require.NoError(t, err)

	g, err := an.Analyze(context.Background(), nil)
	require.NoError(t, err)

	// Nodes in sorted discovery order.
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"main.ts", "style.css", "theme.css", "util.ts"}, ids)

	// main→util and style→theme; the unresolved and bare specifiers produce
	// no edges.
	require.Len(t, g.Edges, 2)
	edgeSet := make(map[string]string)
	for _, e := range g.Edges {
		edgeSet[e.Source] = e.Target
		assert.Equal(t, 1, e.Value)
	}
	assert.Equal(t, "util.ts", edgeSet["main.ts"])
	assert.Equal(t, "theme.css", edgeSet["style.css"])
}

func TestAnalyzeReferentialIntegrity(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.js": "require('./b')\nrequire('./c')\n",
		"b.js": "require('./c')\n",
		"c.js": "module.exports = {}\n",
	})

	an, err := New(root)
	require.NoError(t, err)
	g, err := an.Analyze(context.Background(), nil)
	require.NoError(t, err)

	known := make(map[string]bool)
	for _, n := range g.Nodes {
		known[n.ID] = true
	}
	for _, e := range g.Edges {
		assert.True(t, known[e.Source], "edge source %s has no node", e.Source)
		assert.True(t, known[e.Target], "edge target %s has no node", e.Target)
	}
}

func TestAnalyzeMutualImports(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.ts": "import './b'\n",
		"b.ts": "import './a'\n",
	})

	an, err := New(root)
	require.NoError(t, err)
	g, err := an.Analyze(context.Background(), nil)
	require.NoError(t, err)

	// A cycle is two independent directed edges, one per direction.
	assert.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 2)
	directions := make(map[string]bool, 2)
	for _, e := range g.Edges {
		directions[e.Source+"->"+e.Target] = true
	}
	assert.True(t, directions["a.ts->b.ts"])
	assert.True(t, directions["b.ts->a.ts"])
}

func TestAnalyzeUnreadableFileBecomesEmptyNode(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.ts":   "import './hidden'\n",
		"hidden.ts": "import './main'\n",
	})
	lockedPath := filepath.Join(root, "hidden.ts")
	require.NoError(t, os.Chmod(lockedPath, 0o000))
	t.Cleanup(func() { os.Chmod(lockedPath, 0o644) })

	an, err := New(root)
	require.NoError(t, err)
	g, err := an.Analyze(context.Background(), nil)
	require.NoError(t, err)

	// The unreadable file still gets a node, downgraded to empty content:
	// zero lines and no outgoing edges. The edge pointing at it survives.
	require.Len(t, g.Nodes, 2)
	hidden := g.Lookup("hidden.ts")
	require.NotNil(t, hidden)
	assert.Equal(t, 0, hidden.Lines)

	require.Len(t, g.Edges, 1)
	assert.Equal(t, "main.ts", g.Edges[0].Source)
	assert.Equal(t, "hidden.ts", g.Edges[0].Target)
}

func TestAnalyzeDropsSelfEdges(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"loop.ts": "import './loop'\n",
	})

	an, err := New(root)
	require.NoError(t, err)
	g, err := an.Analyze(context.Background(), nil)
	require.NoError(t, err)

	assert.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges)
	// A dropped self-edge contributes nothing to the connection count.
	assert.Equal(t, baseImportanceForExtension("ts"), g.Nodes[0].Importance)
}

func TestAnalyzeAllowsDuplicateEdges(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		// Two distinct specifiers resolving to the same target file.
		"main.ts": "import './util'\nimport './util.ts'\n",
		"util.ts": "export {}\n",
	})

	an, err := New(root)
	require.NoError(t, err)
	g, err := an.Analyze(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, g.Edges, 2)
	for _, e := range g.Edges {
		assert.Equal(t, "main.ts", e.Source)
		assert.Equal(t, "util.ts", e.Target)
	}
}

func TestAnalyzeImportanceGrowsWithConnections(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"hub.ts":  "export {}\n",
		"a.ts":    "import './hub'\n",
		"b.ts":    "import './hub'\n",
		"c.ts":    "import './hub'\n",
		"lone.ts": "export {}\n",
	})

	an, err := New(root)
	require.NoError(t, err)
	g, err := an.Analyze(context.Background(), nil)
	require.NoError(t, err)

	hub := g.Lookup("hub.ts")
	lone := g.Lookup("lone.ts")
	require.NotNil(t, hub)
	require.NotNil(t, lone)

	// Three incoming connections: 2.0 base + 3×0.5.
	assert.InDelta(t, 3.5, hub.Importance, 1e-9)
	assert.InDelta(t, 2.0, lone.Importance, 1e-9)
	assert.Greater(t, hub.Importance, lone.Importance)
}

func TestAnalyzeProgressCallback(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		files[name+".go"] = "package main\n"
	}
	writeTree(t, root, files)

	an, err := New(root)
	require.NoError(t, err)

	var calls []int
	progress := func(processed, total int, current string) {
		assert.Equal(t, 7, total)
		assert.NotEmpty(t, current)
		calls = append(calls, processed)
	}

	_, err = an.Analyze(context.Background(), progress)
	require.NoError(t, err)

	// 7 files, batch size clamps to 5: two batches.
	assert.Equal(t, []int{5, 7}, calls)
	for i := 1; i < len(calls); i++ {
		assert.Greater(t, calls[i], calls[i-1])
	}
}

func TestAnalyzeNodeFields(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/deep/code.py": "import os\nprint('hi')\n",
	})

	an, err := New(root)
	require.NoError(t, err)
	g, err := an.Analyze(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, g.Nodes, 1)
	n := g.Nodes[0]
	assert.Equal(t, "src/deep/code.py", n.ID)
	assert.Equal(t, "code.py", n.Label)
	assert.Equal(t, "py", n.Type)
	assert.Equal(t, "src/deep", n.Directory)
	assert.Equal(t, 2, n.Lines)
}

func TestAnalyzeRespectsContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.ts": "export {}\n"})

	an, err := New(root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = an.Analyze(ctx, nil)
	assert.Error(t, err)
}

func TestClampBatchSize(t *testing.T) {
	assert.Equal(t, 5, clampBatchSize(1))
	assert.Equal(t, 5, clampBatchSize(49))
	assert.Equal(t, 5, clampBatchSize(50))
	assert.Equal(t, 10, clampBatchSize(100))
	assert.Equal(t, 50, clampBatchSize(500))
	assert.Equal(t, 50, clampBatchSize(100000))
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(nil))
	assert.Equal(t, 1, countLines([]byte("one")))
	assert.Equal(t, 1, countLines([]byte("one\n")))
	assert.Equal(t, 2, countLines([]byte("one\ntwo")))
	assert.Equal(t, 2, countLines([]byte("one\ntwo\n")))
}
