package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncludeShimSymlinksToSrc(t *testing.T) {
	repoRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repoRoot, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "src", "foo.hpp"), []byte("// foo"), 0644))

	eng := newTestEngine(t)
	got, err := eng.Invoke(NewIncludeShimRule(repoRoot))
	require.NoError(t, err)

	shimDir := got.(string)
	target, err := os.Readlink(filepath.Join(shimDir, shimLinkName))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(repoRoot, "src"), target)

	data, err := os.ReadFile(filepath.Join(shimDir, shimLinkName, "foo.hpp"))
	require.NoError(t, err)
	assert.Equal(t, "// foo", string(data))
}

func TestIncludeShimMemoizedWithinBuild(t *testing.T) {
	repoRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repoRoot, "src"), 0755))

	eng := newTestEngine(t)
	first, err := eng.Invoke(NewIncludeShimRule(repoRoot))
	require.NoError(t, err)
	second, err := eng.Invoke(NewIncludeShimRule(repoRoot))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
