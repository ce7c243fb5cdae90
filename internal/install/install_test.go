package install

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcxx-project/nobs/internal/libset"
)

func TestLibsetInstallsHeadersAndLibs(t *testing.T) {
	srcDir := t.TempDir()
	incDir := filepath.Join(srcDir, "include")
	require.NoError(t, os.MkdirAll(filepath.Join(incDir, "foo"), 0755))
	header := filepath.Join(incDir, "foo", "foo.hpp")
	require.NoError(t, os.WriteFile(header, []byte("// header"), 0644))

	libFile := filepath.Join(srcDir, "libfoo.a")
	require.NoError(t, os.WriteFile(libFile, []byte("archive"), 0644))

	installPath := t.TempDir()
	set := libset.Set{
		"foo": libset.Record{
			Primary:  true,
			IncDirs:  []string{incDir},
			IncFiles: []string{header},
			LibFiles: []string{libFile},
			PPFlags:  []string{"-DFOO=1"},
		},
	}

	err := Libset(installPath, "foo", set)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(installPath, "include", "foo", "foo.hpp"))
	assert.FileExists(t, filepath.Join(installPath, "lib", "libfoo.a"))
	assert.FileExists(t, filepath.Join(installPath, "bin", "foo-meta"))

	meta, err := os.ReadFile(filepath.Join(installPath, "bin", "foo-meta"))
	require.NoError(t, err)
	assert.Contains(t, string(meta), "-DFOO=1")
}

func TestLibsetRollsBackOnDuplicateLibName(t *testing.T) {
	srcDir := t.TempDir()
	libA := filepath.Join(srcDir, "a", "libfoo.a")
	libB := filepath.Join(srcDir, "b", "libfoo.a")
	require.NoError(t, os.MkdirAll(filepath.Dir(libA), 0755))
	require.NoError(t, os.MkdirAll(filepath.Dir(libB), 0755))
	require.NoError(t, os.WriteFile(libA, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(libB, []byte("b"), 0644))

	installPath := t.TempDir()
	set := libset.Set{
		"one": libset.Record{Primary: true, LibFiles: []string{libA}},
		"two": libset.Record{Primary: true, LibFiles: []string{libB}},
	}

	err := Libset(installPath, "foo", set)
	require.Error(t, err)

	entries, _ := os.ReadDir(installPath)
	for _, e := range entries {
		assert.NotEqual(t, "lib", e.Name(), "partial lib/ dir should have been rolled back or never committed")
	}
}

func TestLibsetRefusesToClobberExisting(t *testing.T) {
	srcDir := t.TempDir()
	libFile := filepath.Join(srcDir, "libfoo.a")
	require.NoError(t, os.WriteFile(libFile, []byte("archive"), 0644))

	installPath := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(installPath, "lib"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(installPath, "lib", "libfoo.a"), []byte("existing"), 0644))

	set := libset.Set{
		"foo": libset.Record{Primary: true, LibFiles: []string{libFile}},
	}

	err := Libset(installPath, "foo", set)
	require.Error(t, err)
}
