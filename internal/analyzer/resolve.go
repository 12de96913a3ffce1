package analyzer

import (
	"path"
	"strings"
)

// extensionPriority is the fixed order extensions are tried during
// resolution. Scripting and markup extensions come before everything else,
// so "./foo" prefers foo.ts over foo.css when both exist.
var extensionPriority = []string{
	"ts", "tsx", "js", "jsx", "mjs", "cjs", "vue", "svelte",
	"py", "rb", "go", "rs", "java", "kt",
	"c", "cc", "cpp", "h", "hpp", "cs", "php", "swift",
	"html", "htm", "md",
	"css", "scss", "sass", "less",
	"json", "yml", "yaml", "toml",
}

// isRelativeSpecifier reports whether a specifier is eligible for
// resolution. Bare specifiers ("react", "fmt") denote packages outside the
// repository and never resolve.
func isRelativeSpecifier(spec string) bool {
	return strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/")
}

// resolveSpecifier maps a raw specifier found in sourceFile to the canonical
// path of the target file, or ("", false) when no target inside the
// repository matches. A miss is not an error: the target is simply outside
// analyzable scope.
//
// Resolution order, first match wins:
//  1. exact match of the joined candidate, with each priority extension
//  2. index file inside a matched directory
//  3. case-insensitive basename scan over the whole index
func resolveSpecifier(idx *fileIndex, sourceFile, spec string) (string, bool) {
	if !isRelativeSpecifier(spec) {
		return "", false
	}

	var candidate string
	if strings.HasPrefix(spec, "/") {
		// Root-absolute specifier: relative to the repository root.
		candidate = strings.TrimPrefix(spec, "/")
	} else {
		sourceDir := path.Dir(sourceFile)
		if sourceDir == "." {
			sourceDir = ""
		}
		candidate = path.Join(sourceDir, spec)
	}
	candidate = normalizePath(candidate)
	if candidate == "" {
		return "", false
	}

	// Step 1: exact match, bare candidate first, then each extension.
	if p, ok := idx.lookup(candidate); ok {
		return p, true
	}
	for _, ext := range extensionPriority {
		if p, ok := idx.lookup(candidate + "." + ext); ok {
			return p, true
		}
	}

	// Step 2: the candidate names a directory — look for its index file.
	if idx.isDirectory(candidate) {
		for _, ext := range extensionPriority {
			if p, ok := idx.lookup(candidate + "/index." + ext); ok {
				return p, true
			}
		}
	}

	// Step 3: last resort, match on bare filename anywhere in the tree.
	// Candidate lists are pre-sorted, so collisions across directories
	// resolve to the lexicographically smallest canonical path.
	base := path.Base(candidate)
	if strings.Contains(base, ".") {
		if matches := idx.withBasename(base); len(matches) > 0 {
			return matches[0], true
		}
	}
	for _, ext := range extensionPriority {
		if matches := idx.withBasename(base + "." + ext); len(matches) > 0 {
			return matches[0], true
		}
	}

	return "", false
}
