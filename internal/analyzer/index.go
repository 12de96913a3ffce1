package analyzer

import (
	"path"
	"sort"
	"strings"
)

// fileIndex holds the lookup structures PathResolver needs: built once from
// the discovered file set in a single linear pass, read-only afterwards,
// no filesystem access. Normalization is lower-casing plus forward slashes.
type fileIndex struct {
	byNormalized map[string]string   // normalized path → canonical path
	byDirectory  map[string][]string // normalized directory → canonical paths directly inside (sorted)
	byBasename   map[string][]string // normalized filename → canonical paths sharing it (sorted)
}

// newFileIndex builds the index from repository-relative canonical paths.
func newFileIndex(paths []string) *fileIndex {
	idx := &fileIndex{
		byNormalized: make(map[string]string, len(paths)),
		byDirectory:  make(map[string][]string),
		byBasename:   make(map[string][]string),
	}

	for _, p := range paths {
		norm := normalizePath(p)
		idx.byNormalized[norm] = p

		dir := path.Dir(norm)
		if dir == "." {
			dir = ""
		}
		idx.byDirectory[dir] = append(idx.byDirectory[dir], p)

		base := path.Base(norm)
		idx.byBasename[base] = append(idx.byBasename[base], p)
	}

	// Sorted candidate lists make every fallback lookup deterministic:
	// collisions resolve to the lexicographically smallest canonical path.
	for _, list := range idx.byDirectory {
		sort.Strings(list)
	}
	for _, list := range idx.byBasename {
		sort.Strings(list)
	}

	return idx
}

// lookup returns the canonical path for a normalized candidate, if indexed.
func (idx *fileIndex) lookup(normalized string) (string, bool) {
	p, ok := idx.byNormalized[normalized]
	return p, ok
}

// isDirectory reports whether the normalized path is a directory that
// directly contains at least one indexed file.
func (idx *fileIndex) isDirectory(normalized string) bool {
	_, ok := idx.byDirectory[normalized]
	return ok
}

// filesIn returns the sorted canonical paths directly inside the normalized
// directory.
func (idx *fileIndex) filesIn(normalized string) []string {
	return idx.byDirectory[normalized]
}

// withBasename returns the sorted canonical paths whose filename matches the
// normalized basename.
func (idx *fileIndex) withBasename(base string) []string {
	return idx.byBasename[base]
}

// normalizePath lower-cases a repository-relative path and collapses any
// "./" and "../" segments. Paths escaping the repository root normalize to
// something that will simply never match the index.
func normalizePath(p string) string {
	p = strings.ToLower(strings.ReplaceAll(p, "\\", "/"))
	cleaned := path.Clean(p)
	if cleaned == "." {
		return ""
	}
	return strings.TrimPrefix(cleaned, "/")
}
