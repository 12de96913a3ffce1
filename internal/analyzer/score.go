package analyzer

import "github.com/repolens/repolens/internal/graph"

// connectionWeight is the per-connection contribution to a node's
// importance.
const connectionWeight = 0.5

// defaultBaseImportance is the base score for extensions missing from the
// table — the lowest tier.
const defaultBaseImportance = 0.5

// baseImportance assigns each extension bucket a base score: config and
// build files highest, then general-purpose source, then markup and docs,
// then styles.
var baseImportance = map[string]float64{
	// config / build
	"json": 3, "yml": 3, "yaml": 3, "toml": 3, "xml": 3,
	"lock": 3, "mod": 3, "sum": 3, "gradle": 3, "env": 3,
	// general-purpose source
	"ts": 2, "tsx": 2, "js": 2, "jsx": 2, "mjs": 2, "cjs": 2,
	"vue": 2, "svelte": 2,
	"py": 2, "rb": 2, "go": 2, "rs": 2, "java": 2, "kt": 2,
	"c": 2, "cc": 2, "cpp": 2, "h": 2, "hpp": 2,
	"cs": 2, "php": 2, "swift": 2, "scala": 2, "sh": 2,
	// markup / docs
	"html": 1.5, "htm": 1.5, "md": 1.5, "mdx": 1.5,
	// styles
	"css": 1, "scss": 1, "sass": 1, "less": 1,
}

// baseImportanceForExtension returns the base score for an extension bucket.
func baseImportanceForExtension(bucket string) float64 {
	if score, ok := baseImportance[bucket]; ok {
		return score
	}
	return defaultBaseImportance
}

// scoreNodes finalizes every node's importance from its extension bucket
// and total connection count. Pure single pass, no failure modes.
func scoreNodes(nodes []*graph.FileNode, connections map[string]int) {
	for _, n := range nodes {
		n.Importance = baseImportanceForExtension(n.Type) +
			float64(connections[n.ID])*connectionWeight
	}
}
