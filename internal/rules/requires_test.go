package rules

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcxx-project/nobs/internal/engine"
	"github.com/upcxx-project/nobs/internal/store"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	return engine.New(st, nil, 4)
}

func withEnvVar(t *testing.T, name, value string) {
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

func TestRequiresGasnetDefaultsFalse(t *testing.T) {
	eng := newTestEngine(t)
	got, err := eng.Invoke(NewRequiresGasnetRule("src/a.cpp"))
	require.NoError(t, err)
	assert.False(t, got.(bool))
}

func TestRequiresGasnetOverrideListsSelf(t *testing.T) {
	withEnvVar(t, "REQUIRES_GASNET", "src/a.cpp, src/b.cpp")
	eng := newTestEngine(t)

	got, err := eng.Invoke(NewRequiresGasnetRule("src/a.cpp"))
	require.NoError(t, err)
	assert.True(t, got.(bool))

	got, err = eng.Invoke(NewRequiresGasnetRule("src/c.cpp"))
	require.NoError(t, err)
	assert.False(t, got.(bool))
}

func TestRequiresUpcxxBackendOverride(t *testing.T) {
	withEnvVar(t, "REQUIRES_UPCXX_BACKEND", "src/a.cpp")
	eng := newTestEngine(t)

	got, err := eng.Invoke(NewRequiresUpcxxBackendRule("src/a.cpp"))
	require.NoError(t, err)
	assert.True(t, got.(bool))
}
