package analyzer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// ---------------------------------------------------------------------------
// Filter tables
// ---------------------------------------------------------------------------

// skipDirs are directory names that are never descended into: VCS metadata,
// dependency caches, build output and editor state.
var skipDirs = map[string]bool{
	".git":             true,
	".hg":              true,
	".svn":             true,
	"node_modules":     true,
	"bower_components": true,
	"vendor":           true,
	"dist":             true,
	"build":            true,
	"out":              true,
	"target":           true,
	"coverage":         true,
	"__pycache__":      true,
	".idea":            true,
	".vscode":          true,
	".next":            true,
	".cache":           true,
}

// allowedExtensions is the fixed allow-list of analyzable file extensions
// (lower-cased, without dot), spanning source, markup and config formats.
var allowedExtensions = map[string]bool{
	// scripting / application source
	"js": true, "jsx": true, "ts": true, "tsx": true, "mjs": true, "cjs": true,
	"vue": true, "svelte": true,
	"py": true, "rb": true, "go": true, "rs": true, "java": true, "kt": true,
	"c": true, "cc": true, "cpp": true, "h": true, "hpp": true,
	"cs": true, "php": true, "swift": true, "scala": true, "sh": true,
	// styles
	"css": true, "scss": true, "sass": true, "less": true,
	// markup / docs
	"html": true, "htm": true, "md": true, "mdx": true,
	// config / data
	"json": true, "yml": true, "yaml": true, "toml": true, "xml": true,
	"env": true, "lock": true, "mod": true, "sum": true, "gradle": true,
}

// envFileName is the single dot-entry exempt from the hidden-file filter.
const envFileName = ".env"

// discoveryBatchSize bounds the number of subdirectories read concurrently,
// so very wide trees cannot exhaust file descriptors.
const discoveryBatchSize = 16

// ---------------------------------------------------------------------------
// Discovery
// ---------------------------------------------------------------------------

// discoverFiles walks the tree rooted at root and returns the
// repository-relative POSIX paths of every candidate file, sorted. Sorting
// makes node order stable run to run even though subtrees are read
// concurrently.
//
// A .gitignore at the repository root is honored on top of the fixed
// skip-set. Unreadable subdirectories are skipped, never fatal.
func discoverFiles(ctx context.Context, root string) ([]string, error) {
	matcher := loadGitignore(root)

	var (
		mu    sync.Mutex
		files []string
	)

	var walk func(ctx context.Context, dir string) error
	walk = func(ctx context.Context, dir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			// Permission denied, broken symlink: drop the subtree.
			slog.Debug("skipping unreadable directory", "dir", dir, "error", err)
			return nil
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		var subdirs []string
		for _, entry := range entries {
			name := entry.Name()
			full := filepath.Join(dir, name)
			rel, relErr := filepath.Rel(root, full)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			if entry.IsDir() {
				if skipDirs[name] || strings.HasPrefix(name, ".") {
					continue
				}
				if matcher != nil && matcher.MatchesPath(rel+"/") {
					continue
				}
				subdirs = append(subdirs, full)
				continue
			}

			if strings.HasPrefix(name, ".") && name != envFileName {
				continue
			}
			if !allowedExtensions[extensionOf(name)] {
				continue
			}
			if matcher != nil && matcher.MatchesPath(rel) {
				continue
			}

			mu.Lock()
			files = append(files, rel)
			mu.Unlock()
		}

		// Fan out across sibling directories in bounded batches.
		for start := 0; start < len(subdirs); start += discoveryBatchSize {
			end := start + discoveryBatchSize
			if end > len(subdirs) {
				end = len(subdirs)
			}
			g, gctx := errgroup.WithContext(ctx)
			for _, sub := range subdirs[start:end] {
				sub := sub
				g.Go(func() error { return walk(gctx, sub) })
			}
			if err := g.Wait(); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(ctx, root); err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// loadGitignore compiles the root .gitignore when present. Any parse failure
// is logged and ignored: the fixed skip-set still applies.
func loadGitignore(root string) *ignore.GitIgnore {
	p := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(p); err != nil {
		return nil
	}
	matcher, err := ignore.CompileIgnoreFile(p)
	if err != nil {
		slog.Warn("failed to parse .gitignore, continuing without it", "path", p, "error", err)
		return nil
	}
	return matcher
}

// extensionOf returns the lower-cased extension of name without the dot.
func extensionOf(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == "." {
		return ""
	}
	return strings.ToLower(ext[1:])
}
