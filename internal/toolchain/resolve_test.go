package toolchain

import (
	"os"
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

func clearEnv(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		old, had := os.LookupEnv(name)
		require.NoError(t, os.Unsetenv(name))
		if had {
			t.Cleanup(func() { os.Setenv(name, old) })
		}
	}
}

func TestResolveCxxDefaultsToGxx(t *testing.T) {
	clearEnv(t, "CXX", "NERSC_HOST")
	got, err := ResolveCxx(engine.NewStandaloneContext(), "")
	require.NoError(t, err)
	assert.Equal(t, "g++", got)
}

func TestResolveCxxNerscHostDefaultsToCC(t *testing.T) {
	clearEnv(t, "CXX")
	withEnv(t, "NERSC_HOST", "cori")
	got, err := ResolveCxx(engine.NewStandaloneContext(), "")
	require.NoError(t, err)
	assert.Equal(t, "CC", got)
}

func TestResolveCcNerscHostDefaultsTocc(t *testing.T) {
	clearEnv(t, "CC")
	withEnv(t, "NERSC_HOST", "edison")
	got, err := ResolveCc(engine.NewStandaloneContext(), "")
	require.NoError(t, err)
	assert.Equal(t, "cc", got)
}

func TestResolveCxxUserEnvOverridesNerscDefault(t *testing.T) {
	withEnv(t, "NERSC_HOST", "cori")
	withEnv(t, "CXX", "clang++")
	got, err := ResolveCxx(engine.NewStandaloneContext(), "")
	require.NoError(t, err)
	assert.Equal(t, "clang++", got)
}

func TestResolveCxxUnrecognizedNerscHostIgnored(t *testing.T) {
	clearEnv(t, "CXX")
	withEnv(t, "NERSC_HOST", "perlmutter")
	got, err := ResolveCxx(engine.NewStandaloneContext(), "")
	require.NoError(t, err)
	assert.Equal(t, "g++", got)
}
