package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathWithinDir(t *testing.T) {
	assert.True(t, PathWithinDir("/build/gasnet/lib", "/build/gasnet"))
	assert.True(t, PathWithinDir("/build/gasnet", "/build/gasnet"))
	assert.False(t, PathWithinDir("/usr/lib", "/build/gasnet"))
	assert.False(t, PathWithinDir("/build/gasnet-other", "/build/gasnet"))
}

func TestLinkOrCopyRefusesClobber(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dest := filepath.Join(dir, "dest.txt")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0644))
	require.NoError(t, os.WriteFile(dest, []byte("existing"), 0644))

	err := LinkOrCopy(src, dest, false)
	require.Error(t, err)
	var clobber *ClobberRefusedError
	assert.ErrorAs(t, err, &clobber)
}

func TestLinkOrCopyCreatesDest(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dest := filepath.Join(dir, "nested", "dest.txt")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0644))

	require.NoError(t, LinkOrCopy(src, dest, false))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}
