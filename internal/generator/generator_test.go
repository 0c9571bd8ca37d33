package generator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stackpilot/internal/errors"
)

func TestValidateName(t *testing.T) {
	valid := []string{"my-site", "site1", "a", "demo-website-2024", strings.Repeat("a", 40)}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), "name %q", name)
	}

	invalid := []string{"", "My-Site", "my site", "-leading", "unsafe/../path", "a.b", strings.Repeat("a", 41)}
	for _, name := range invalid {
		err := ValidateName(name)
		require.Error(t, err, "name %q", name)
		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidArgument), "name %q", name)
	}
}

func TestGenerateWritesProjectTree(t *testing.T) {
	root := t.TempDir()
	g := New(root)

	dir, err := g.Generate("my-site")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "my-site"), dir)

	pulumiYaml, err := os.ReadFile(filepath.Join(dir, "Pulumi.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(pulumiYaml), "name: my-site")
	assert.Contains(t, string(pulumiYaml), "runtime:")

	mainGo, err := os.ReadFile(filepath.Join(dir, "main.go"))
	require.NoError(t, err)
	assert.Contains(t, string(mainGo), "package main")
	assert.Contains(t, string(mainGo), "originURL")
	assert.Contains(t, string(mainGo), "cdnURL")

	index, err := os.ReadFile(filepath.Join(dir, "www", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "<html")
}

func TestGenerateDuplicateName(t *testing.T) {
	root := t.TempDir()
	g := New(root)

	_, err := g.Generate("my-site")
	require.NoError(t, err)

	_, err = g.Generate("my-site")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAlreadyExists))
}

func TestGenerateInvalidNameWritesNothing(t *testing.T) {
	root := t.TempDir()
	g := New(root)

	_, err := g.Generate("Bad Name")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidArgument))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateLeavesNoStagingDirectoryBehind(t *testing.T) {
	root := t.TempDir()
	g := New(root)

	_, err := g.Generate("my-site")
	require.NoError(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "my-site", entries[0].Name())
}

func TestGenerateCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "workspace")
	g := New(root)

	dir, err := g.Generate("my-site")
	require.NoError(t, err)
	assert.DirExists(t, dir)
}
