package libset_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcxx-project/nobs/internal/libset"
)

func TestMergeAssociative(t *testing.T) {
	a := libset.Set{"a": {Primary: true, PPFlags: []string{"-Ia"}}}
	b := libset.Set{"b": {Primary: false, PPFlags: []string{"-Ib"}}}
	c := libset.Set{"c": {Primary: false, PPFlags: []string{"-Ic"}}}

	ab, err := libset.Merge(a, b)
	require.NoError(t, err)
	abc1, err := libset.Merge(ab, c)
	require.NoError(t, err)

	bc, err := libset.Merge(b, c)
	require.NoError(t, err)
	abc2, err := libset.Merge(a, bc)
	require.NoError(t, err)

	if diff := cmp.Diff(abc1, abc2); diff != "" {
		t.Fatalf("merge is not associative:\n%s", diff)
	}
}

func TestMergeConflictingRecordsFail(t *testing.T) {
	a := libset.Set{"x": {PPFlags: []string{"-DA"}}}
	b := libset.Set{"x": {PPFlags: []string{"-DB"}}}

	_, err := libset.Merge(a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "differing configurations")
}

func TestMergeUnionsPrimary(t *testing.T) {
	a := libset.Set{"x": {Primary: true, PPFlags: []string{"-DX"}}}
	b := libset.Set{"x": {Primary: false, PPFlags: []string{"-DX"}}}

	merged, err := libset.Merge(a, b)
	require.NoError(t, err)
	assert.True(t, merged["x"].Primary)
}

func TestAsSecondaryIdempotent(t *testing.T) {
	s := libset.Set{"x": {Primary: true}, "y": {Primary: false}}
	once := libset.AsSecondary(s)
	twice := libset.AsSecondary(once)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("as_secondary is not idempotent:\n%s", diff)
	}
	assert.False(t, once["x"].Primary)
}

func TestPPFlagsDedupsIncDirs(t *testing.T) {
	s := libset.Set{
		"a": {PPFlags: []string{"-DA"}, IncDirs: []string{"/p/inc"}},
		"b": {PPFlags: []string{"-DB"}, IncDirs: []string{"/p/inc", "/q/inc"}},
	}
	flags := libset.PPFlags(s)
	count := 0
	for _, f := range flags {
		if f == "-I/p/inc" {
			count++
		}
	}
	assert.Equal(t, 1, count, "flags: %v", flags)
}

func TestLDUniqueOrError(t *testing.T) {
	s := libset.Set{"a": {LD: []string{"cc", "-shared"}}}
	ld, err := libset.LD(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"cc", "-shared"}, ld)

	conflict := libset.Set{
		"a": {LD: []string{"cc"}},
		"b": {LD: []string{"gcc"}},
	}
	_, err = libset.LD(conflict)
	require.Error(t, err)
}

func TestLibFlagsOrdersDependenciesAfterDependants(t *testing.T) {
	s := libset.Set{
		"A": {LibFiles: []string{"/lib/libA.a"}, DepLibs: []string{"B"}},
		"B": {LibFiles: []string{"/lib/libB.a"}},
	}
	flags, err := libset.LibFlags(s)
	require.NoError(t, err)

	indexA, indexB := -1, -1
	for i, f := range flags {
		if f == "-lA" {
			indexA = i
		}
		if f == "-lB" {
			indexB = i
		}
	}
	require.NotEqual(t, -1, indexA)
	require.NotEqual(t, -1, indexB)
	assert.Less(t, indexA, indexB, "flags: %v", flags)
}

func TestLibFlagsSynthesizesUnknownDeps(t *testing.T) {
	s := libset.Set{
		"A": {LibFiles: []string{"/lib/libA.a"}, DepLibs: []string{"m"}},
	}
	flags, err := libset.LibFlags(s)
	require.NoError(t, err)
	assert.Contains(t, flags, "-lm")
}

func TestLibFlagsDetectsCycle(t *testing.T) {
	s := libset.Set{
		"A": {DepLibs: []string{"B"}},
		"B": {DepLibs: []string{"A"}},
	}
	_, err := libset.LibFlags(s)
	require.Error(t, err)
}
