package graph

import (
	"math"
	"path"
)

// ---------------------------------------------------------------------------
// Node types
// ---------------------------------------------------------------------------

// RootDirectory is the sentinel directory assigned to files that live at the
// repository root.
const RootDirectory = "root"

// FileNode is a vertex in the dependency graph. One node exists per analyzed
// file; its ID is the repository-relative POSIX path.
type FileNode struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Type       string  `json:"type"` // lower-cased extension without dot, "other" when none
	Size       float64 `json:"size"` // render size derived from line count
	Lines      int     `json:"lines"`
	Directory  string  `json:"directory"`
	Importance float64 `json:"importance"`
}

// NewFileNode creates a FileNode for the given repository-relative path.
// Importance stays zero until scoring runs.
func NewFileNode(relPath string, lines int) *FileNode {
	return &FileNode{
		ID:        relPath,
		Label:     path.Base(relPath),
		Type:      ExtensionBucket(relPath),
		Size:      renderSize(lines),
		Lines:     lines,
		Directory: parentDirectory(relPath),
	}
}

// ExtensionBucket returns the lower-cased extension of relPath without the
// leading dot, or "other" when the file has no extension.
func ExtensionBucket(relPath string) string {
	ext := path.Ext(relPath)
	if ext == "" || ext == "." {
		return "other"
	}
	return toLower(ext[1:])
}

// parentDirectory returns the parent path of relPath, or RootDirectory for
// files at the repository root.
func parentDirectory(relPath string) string {
	dir := path.Dir(relPath)
	if dir == "." || dir == "/" || dir == "" {
		return RootDirectory
	}
	return dir
}

// renderSize maps a line count onto a bounded visual size. Purely cosmetic;
// consumers use it as a node radius hint.
func renderSize(lines int) float64 {
	return math.Min(math.Max(float64(lines)/10.0, 4), 40)
}

// toLower is an ASCII-only lower-caser. File extensions never carry
// multi-byte runes worth folding.
func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ---------------------------------------------------------------------------
// Edge
// ---------------------------------------------------------------------------

// Edge is a directed import relation between two FileNodes. Duplicate
// (source, target) pairs are legal: each import statement that resolves
// produces its own edge.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Value  int    `json:"value"`
}

// NewEdge creates an Edge with the default weight of 1.
func NewEdge(source, target string) *Edge {
	return &Edge{Source: source, Target: target, Value: 1}
}

// ---------------------------------------------------------------------------
// Graph
// ---------------------------------------------------------------------------

// Graph is the sole artifact of an analysis run. Nodes appear in discovery
// order; edge order follows batch processing and is not stable across runs.
// The value is immutable once returned by the assembler.
type Graph struct {
	Nodes []*FileNode `json:"nodes"`
	Edges []*Edge     `json:"edges"`
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.Edges) }

// Lookup returns the node with the given ID, or nil.
func (g *Graph) Lookup(id string) *FileNode {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
