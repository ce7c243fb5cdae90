package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibrariesDefaultsToEmptySet(t *testing.T) {
	eng := newTestEngine(t)
	got, err := eng.Invoke(NewLibrariesRule("", "src/plain.cpp"))
	require.NoError(t, err)
	assert.Empty(t, got)
}
