package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex() *fileIndex {
	return newFileIndex([]string{
		"src/app.ts",
		"src/util.ts",
		"src/util.css",
		"src/components/index.ts",
		"src/App.vue",
		"lib/helpers/format.js",
		"a/shared.js",
		"b/shared.js",
		"README.md",
	})
}

func TestResolveExactMatch(t *testing.T) {
	idx := testIndex()

	got, ok := resolveSpecifier(idx, "src/app.ts", "./util.css")
	require.True(t, ok)
	assert.Equal(t, "src/util.css", got)
}

func TestResolveExtensionPriority(t *testing.T) {
	idx := testIndex()

	// Both util.ts and util.css exist; ts wins.
	got, ok := resolveSpecifier(idx, "src/app.ts", "./util")
	require.True(t, ok)
	assert.Equal(t, "src/util.ts", got)
}

func TestResolveDirectoryIndex(t *testing.T) {
	idx := testIndex()

	got, ok := resolveSpecifier(idx, "src/app.ts", "./components")
	require.True(t, ok)
	assert.Equal(t, "src/components/index.ts", got)
}

func TestResolveBasenameFallback(t *testing.T) {
	idx := testIndex()

	// "../lib/format" does not exist at that path; the basename scan finds
	// the nested helper.
	got, ok := resolveSpecifier(idx, "src/app.ts", "../lib/format")
	require.True(t, ok)
	assert.Equal(t, "lib/helpers/format.js", got)
}

func TestResolveBasenameCollisionIsDeterministic(t *testing.T) {
	idx := testIndex()

	// Two shared.js files exist; the lexicographically smallest path wins,
	// every run.
	for i := 0; i < 10; i++ {
		got, ok := resolveSpecifier(idx, "src/app.ts", "./shared")
		require.True(t, ok)
		assert.Equal(t, "a/shared.js", got)
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	idx := testIndex()

	got, ok := resolveSpecifier(idx, "src/main.ts", "./app.vue")
	require.True(t, ok)
	// The canonical path keeps its original casing.
	assert.Equal(t, "src/App.vue", got)
}

func TestResolveRootAbsolute(t *testing.T) {
	idx := testIndex()

	got, ok := resolveSpecifier(idx, "src/app.ts", "/README.md")
	require.True(t, ok)
	assert.Equal(t, "README.md", got)
}

func TestResolveBareSpecifierNeverResolves(t *testing.T) {
	idx := testIndex()

	for _, spec := range []string{"react", "fmt", "lodash/merge", "util"} {
		_, ok := resolveSpecifier(idx, "src/app.ts", spec)
		assert.False(t, ok, "bare specifier %q must not resolve", spec)
	}
}

func TestResolveMiss(t *testing.T) {
	idx := testIndex()

	_, ok := resolveSpecifier(idx, "src/app.ts", "./does-not-exist")
	assert.False(t, ok)
}

func TestIsRelativeSpecifier(t *testing.T) {
	assert.True(t, isRelativeSpecifier("./x"))
	assert.True(t, isRelativeSpecifier("../x"))
	assert.True(t, isRelativeSpecifier("/x"))
	assert.False(t, isRelativeSpecifier("react"))
	assert.False(t, isRelativeSpecifier("stdio.h"))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Src\\App.TS", "src/app.ts"},
		{"./a/b", "a/b"},
		{"a/./b/../c", "a/c"},
		{".", ""},
		{"/leading", "leading"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in), "input %q", tt.in)
	}
}

func TestFileIndexLookupStructures(t *testing.T) {
	idx := testIndex()

	p, ok := idx.lookup("src/app.vue")
	require.True(t, ok)
	assert.Equal(t, "src/App.vue", p)

	assert.True(t, idx.isDirectory("src"))
	assert.True(t, idx.isDirectory("src/components"))
	assert.False(t, idx.isDirectory("src/app.ts"))

	assert.Equal(t, []string{"a/shared.js", "b/shared.js"}, idx.withBasename("shared.js"))
	assert.ElementsMatch(t,
		[]string{"src/app.ts", "src/util.ts", "src/util.css", "src/App.vue"},
		idx.filesIn("src"))
}
