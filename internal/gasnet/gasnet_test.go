package gasnet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcxx-project/nobs/internal/engine"
)

func withEnv(t *testing.T, name, value string) {
	t.Helper()
	old, had := os.LookupEnv(name)
	require.NoError(t, os.Setenv(name, value))
	t.Cleanup(func() {
		if had {
			os.Setenv(name, old)
		} else {
			os.Unsetenv(name)
		}
	})
}

func TestClassifyUserTarball(t *testing.T) {
	dir := t.TempDir()
	tarball := filepath.Join(dir, "gasnet.tar.gz")
	require.NoError(t, os.WriteFile(tarball, []byte("fake"), 0644))
	withEnv(t, "GASNET", tarball)

	kind, value, err := ClassifyUser(engine.NewStandaloneContext())
	require.NoError(t, err)
	assert.Equal(t, KindTarball, kind)
	assert.Equal(t, tarball, value)
}

func TestClassifyUserBuild(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Makefile"), []byte(""), 0644))
	withEnv(t, "GASNET", dir)

	kind, _, err := ClassifyUser(engine.NewStandaloneContext())
	require.NoError(t, err)
	assert.Equal(t, KindBuild, kind)
}

func TestClassifyUserInstall(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "include"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0755))
	withEnv(t, "GASNET", dir)

	kind, _, err := ClassifyUser(engine.NewStandaloneContext())
	require.NoError(t, err)
	assert.Equal(t, KindInstall, kind)
}

func TestClassifyUserSource(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, "GASNET", dir)

	kind, _, err := ClassifyUser(engine.NewStandaloneContext())
	require.NoError(t, err)
	assert.Equal(t, KindSource, kind)
}

func TestClassifyUserTarballURL(t *testing.T) {
	withEnv(t, "GASNET", "http://example.com/gasnet.tar.gz")

	kind, value, err := ClassifyUser(engine.NewStandaloneContext())
	require.NoError(t, err)
	assert.Equal(t, KindTarballURL, kind)
	assert.Equal(t, "http://example.com/gasnet.tar.gz", value)
}

func TestClassifyUserNonExistentPath(t *testing.T) {
	withEnv(t, "GASNET", "/no/such/path/for/gasnet")

	_, _, err := ClassifyUser(engine.NewStandaloneContext())
	require.Error(t, err)
}

func TestConduitDefaultsByCross(t *testing.T) {
	os.Unsetenv("GASNET_CONDUIT")
	withEnv(t, "CROSS", "cray-aries-slurm")
	assert.Equal(t, "aries", Conduit(engine.NewStandaloneContext()))

	withEnv(t, "CROSS", "")
	assert.Equal(t, "smp", Conduit(engine.NewStandaloneContext()))
}

func TestConduitEnvOverride(t *testing.T) {
	withEnv(t, "GASNET_CONDUIT", "udp")
	assert.Equal(t, "udp", Conduit(engine.NewStandaloneContext()))
}
