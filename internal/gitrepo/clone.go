package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidURL is returned for repository references that are not
// well-formed https URLs on a supported host.
var ErrInvalidURL = errors.New("gitrepo: invalid repository url")

// ErrTooLarge is returned when a clone exceeds the configured size cap.
var ErrTooLarge = errors.New("gitrepo: repository exceeds size limit")

// allowedHosts are the forges clones are accepted from.
var allowedHosts = map[string]bool{
	"github.com":    true,
	"gitlab.com":    true,
	"bitbucket.org": true,
}

// ---------------------------------------------------------------------------
// RepoRef
// ---------------------------------------------------------------------------

// RepoRef identifies a remote repository after URL validation.
type RepoRef struct {
	Host  string
	Owner string
	Name  string
}

// CloneURL returns the canonical https clone URL for the repository.
func (r RepoRef) CloneURL() string {
	return fmt.Sprintf("https://%s/%s/%s.git", r.Host, r.Owner, r.Name)
}

// String returns "host/owner/name", the normalized form used as a cache key.
func (r RepoRef) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Host, r.Owner, r.Name)
}

// ParseRepoURL validates a raw repository URL of the form
// https://<host>/<owner>/<repo>[...] and returns its normalized reference.
// Trailing path segments (e.g. /tree/main) and a .git suffix are tolerated
// and stripped.
func ParseRepoURL(raw string) (RepoRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RepoRef{}, fmt.Errorf("%w: empty url", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return RepoRef{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "https" {
		return RepoRef{}, fmt.Errorf("%w: scheme must be https", ErrInvalidURL)
	}
	host := strings.ToLower(u.Hostname())
	if !allowedHosts[host] {
		return RepoRef{}, fmt.Errorf("%w: unsupported host %q", ErrInvalidURL, host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, fmt.Errorf("%w: path must be /<owner>/<repo>", ErrInvalidURL)
	}

	name := strings.TrimSuffix(parts[1], ".git")
	if name == "" {
		return RepoRef{}, fmt.Errorf("%w: empty repository name", ErrInvalidURL)
	}

	return RepoRef{Host: host, Owner: parts[0], Name: name}, nil
}

// ---------------------------------------------------------------------------
// Cloner
// ---------------------------------------------------------------------------

// Cloner materializes remote repositories into temporary local directories
// using the git CLI. The analysis core only ever reads the returned
// directory; the cleanup func owns its removal on every path.
type Cloner struct {
	baseDir  string
	maxBytes int64
	timeout  time.Duration
}

// NewCloner creates a Cloner that places clones under baseDir (the OS temp
// dir when empty) and rejects checkouts larger than maxMB megabytes
// (0 disables the cap).
func NewCloner(baseDir string, maxMB int) *Cloner {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Cloner{
		baseDir:  baseDir,
		maxBytes: int64(maxMB) * 1024 * 1024,
		timeout:  3 * time.Minute,
	}
}

// Clone shallow-clones ref into a fresh temporary directory and returns the
// directory plus a cleanup func. Cleanup must be called on both success and
// failure paths; on error Clone has already removed the directory itself
// and the returned cleanup is a no-op.
func (c *Cloner) Clone(ctx context.Context, ref RepoRef) (dir string, cleanup func(), err error) {
	dir = filepath.Join(c.baseDir, "repolens-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("gitrepo: create clone dir: %w", err)
	}

	remove := func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			slog.Warn("failed to remove clone dir", "dir", dir, "error", rmErr)
		}
	}

	cloneCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(cloneCtx, "git", "clone",
		"--depth", "1", "--single-branch", "--no-tags",
		ref.CloneURL(), dir,
	)
	// Never let git fall back to an interactive credential prompt.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	if out, runErr := cmd.CombinedOutput(); runErr != nil {
		remove()
		msg := strings.TrimSpace(string(out))
		return "", func() {}, fmt.Errorf("gitrepo: clone %s: %v: %s", ref, runErr, msg)
	}

	if c.maxBytes > 0 {
		size := dirSize(dir)
		if size > c.maxBytes {
			remove()
			return "", func() {}, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, size, c.maxBytes)
		}
	}

	slog.Info("repository cloned",
		"repo", ref.String(),
		"dir", dir,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return dir, remove, nil
}

// dirSize sums the sizes of regular files under root. Walk errors are
// ignored: the result is a best-effort bound check, not an audit.
func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, infoErr := d.Info(); infoErr == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
