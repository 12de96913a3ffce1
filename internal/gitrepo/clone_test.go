package gitrepo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want RepoRef
	}{
		{
			"github plain",
			"https://github.com/octocat/hello-world",
			RepoRef{Host: "github.com", Owner: "octocat", Name: "hello-world"},
		},
		{
			"git suffix stripped",
			"https://github.com/octocat/hello-world.git",
			RepoRef{Host: "github.com", Owner: "octocat", Name: "hello-world"},
		},
		{
			"trailing segments tolerated",
			"https://github.com/octocat/hello-world/tree/main/src",
			RepoRef{Host: "github.com", Owner: "octocat", Name: "hello-world"},
		},
		{
			"gitlab",
			"https://gitlab.com/group/project",
			RepoRef{Host: "gitlab.com", Owner: "group", Name: "project"},
		},
		{
			"bitbucket",
			"https://bitbucket.org/team/repo",
			RepoRef{Host: "bitbucket.org", Owner: "team", Name: "repo"},
		},
		{
			"host case folded",
			"https://GitHub.com/octocat/hello-world",
			RepoRef{Host: "github.com", Owner: "octocat", Name: "hello-world"},
		},
		{
			"surrounding whitespace",
			"  https://github.com/octocat/hello-world  ",
			RepoRef{Host: "github.com", Owner: "octocat", Name: "hello-world"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRepoURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRepoURLRejects(t *testing.T) {
	invalid := []string{
		"",
		"not a url",
		"http://github.com/octocat/hello-world", // http, not https
		"https://example.com/octocat/hello-world",
		"https://github.com/octocat",
		"https://github.com/",
		"git@github.com:octocat/hello-world.git",
		"ftp://github.com/octocat/hello-world",
	}
	for _, raw := range invalid {
		_, err := ParseRepoURL(raw)
		assert.ErrorIs(t, err, ErrInvalidURL, "url %q should be rejected", raw)
	}
}

func TestRepoRefStrings(t *testing.T) {
	ref := RepoRef{Host: "github.com", Owner: "octocat", Name: "hello-world"}
	assert.Equal(t, "https://github.com/octocat/hello-world.git", ref.CloneURL())
	assert.Equal(t, "github.com/octocat/hello-world", ref.String())
}

func TestDirSize(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), make([]byte, 50), 0o644))

	assert.Equal(t, int64(150), dirSize(root))
}
