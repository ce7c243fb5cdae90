// Package libset implements the library-set algebra of spec §4.4: a
// keyed collection of library records describing how to compile
// against and link with a set of libraries, with merge, topological
// flag-rendering, and flattening operations. Ported in spirit from
// original_source/nobsrule.py's libset_* functions.
package libset

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/upcxx-project/nobs/internal/common"
)

// Record is one library's entry in a Set (spec §3 "Library-set").
type Record struct {
	Primary  bool
	LD       []string
	IncDirs  []string
	IncFiles []string
	PPFlags  []string
	CGFlags  []string
	LDFlags  []string
	LibFiles []string
	LibFlags []string
	DepLibs  []string
}

// equalIgnoringPrimary reports whether a and b agree on every field
// except Primary — the comparison libset_merge_inplace performs before
// accepting a duplicate entry for the same name.
func equalIgnoringPrimary(a, b Record) bool {
	a.Primary, b.Primary = false, false
	return stringsEqual(a.LD, b.LD) &&
		stringsEqual(a.IncDirs, b.IncDirs) &&
		stringsEqual(a.IncFiles, b.IncFiles) &&
		stringsEqual(a.PPFlags, b.PPFlags) &&
		stringsEqual(a.CGFlags, b.CGFlags) &&
		stringsEqual(a.LDFlags, b.LDFlags) &&
		stringsEqual(a.LibFiles, b.LibFiles) &&
		stringsEqual(a.LibFlags, b.LibFlags) &&
		stringsEqual(a.DepLibs, b.DepLibs)
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Set is a mapping libname -> Record (spec §3 "Library-set").
type Set map[string]Record

// sortedNames returns s's keys in a fixed, reproducible order. Go map
// iteration order is randomized between successive `range`s over the
// same unmodified map, unlike original_source/nobsrule.py's
// insertion-ordered dict these rendering functions are ported from
// (spec §4.4 "dedup preserves first occurrence", §9 "insertion order
// for merges"); every function below that renders a Set to a flag
// sequence must iterate names in one fixed order so repeated calls on
// an unchanged Set produce byte-identical output (spec §8 "Determinism
// of digests").
func sortedNames(s Set) []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge unions records from every libset by name. Two records sharing a
// name must be equal on every field except Primary, which ORs
// (spec §4.4 "merge(a, b)"; original nobsrule.py libset_merge_inplace).
// A field mismatch is a *common.DependencyConflictError.
func Merge(sets ...Set) (Set, error) {
	dst := Set{}
	for _, src := range sets {
		for name, v := range src {
			existing, ok := dst[name]
			if !ok {
				dst[name] = v
				continue
			}
			if !equalIgnoringPrimary(existing, v) {
				return nil, common.NewDependencyConflictError(
					"multiple %q libraries with differing configurations", name)
			}
			merged := v
			merged.Primary = v.Primary || existing.Primary
			dst[name] = merged
		}
	}
	return dst, nil
}

// AsSecondary returns a copy of s with every record's Primary forced to
// false (spec §4.4 "as_secondary(s)"). Idempotent: AsSecondary applied
// twice equals AsSecondary applied once (spec §8 property 5).
func AsSecondary(s Set) Set {
	out := make(Set, len(s))
	for k, v := range s {
		v.Primary = false
		out[k] = v
	}
	return out
}

// PPFlags concatenates every record's PPFlags, then appends a
// deduplicated -I<incdir> for every incdir across all records,
// preserving first occurrence (spec §4.4 "ppflags(s)").
func PPFlags(s Set) []string {
	names := sortedNames(s)
	var flags []string
	for _, name := range names {
		flags = append(flags, s[name].PPFlags...)
	}
	seen := map[string]bool{}
	for _, name := range names {
		for _, d := range s[name].IncDirs {
			flag := "-I" + d
			if !seen[flag] {
				seen[flag] = true
				flags = append(flags, flag)
			}
		}
	}
	return flags
}

// CGFlags concatenates every record's CGFlags (spec §4.4 "cgflags(s)").
func CGFlags(s Set) []string {
	var flags []string
	for _, name := range sortedNames(s) {
		flags = append(flags, s[name].CGFlags...)
	}
	return flags
}

// LDFlags concatenates every record's LDFlags (spec §4.4 "ldflags(s)").
func LDFlags(s Set) []string {
	var flags []string
	for _, name := range sortedNames(s) {
		flags = append(flags, s[name].LDFlags...)
	}
	return flags
}

// LD returns the unique non-empty LD vector across records, or nil if
// none supplied one. Two or more distinct non-empty LD vectors is a
// hard error (spec §4.4 "ld(s)").
func LD(s Set) ([]string, error) {
	var found []string
	var seen bool
	for _, name := range sortedNames(s) {
		rec := s[name]
		if len(rec.LD) == 0 {
			continue
		}
		if !seen {
			found = rec.LD
			seen = true
			continue
		}
		if !stringsEqual(found, rec.LD) {
			return nil, common.NewDependencyConflictError("multiple distinct linkers demanded: %v and %v", found, rec.LD)
		}
	}
	return found, nil
}

// LibFlags topologically sorts s's deplibs DAG and renders the final
// link line (spec §4.4 "libflags(s)" and the §4.4 "libflags algorithm").
//
// For each library, dependencies are visited before the library itself
// (so a dependant's -l flag ends up after the things it needs); after
// the full traversal both the -L and -l/libflags sequences are
// reversed (undoing the dependency-first visit order so consumers
// precede providers on the link line), flattened, and the -L sequence
// is deduplicated preserving first occurrence. A deplibs reference with
// no corresponding record synthesizes a minimal {libflags: ["-l"+name]}
// entry rather than failing — not every link-time name used in deplibs
// is expected to carry its own Set entry (e.g. libc, libm).
func LibFlags(s Set) ([]string, error) {
	var lpathGroups [][]string
	var flagGroups [][]string
	visited := map[string]bool{}
	visiting := map[string]bool{}

	var topsort func(names []string) error
	topsort = func(names []string) error {
		for _, name := range names {
			if visiting[name] {
				return common.NewDependencyConflictError("cyclic library dependency involving %q", name)
			}
			rec, ok := s[name]
			if !ok {
				rec = Record{LibFlags: []string{"-l" + name}}
			}

			visiting[name] = true
			if err := topsort(rec.DepLibs); err != nil {
				return err
			}
			visiting[name] = false

			if visited[name] {
				continue
			}
			visited[name] = true

			lpaths := make([]string, 0, len(rec.LibFiles))
			for _, f := range rec.LibFiles {
				lpaths = append(lpaths, "-L"+filepath.Dir(f))
			}
			lpathGroups = append(lpathGroups, lpaths)

			flags := make([]string, 0, len(rec.LibFiles)+len(rec.LibFlags))
			for _, f := range rec.LibFiles {
				flags = append(flags, "-l"+libNameFromArchive(f))
			}
			flags = append(flags, rec.LibFlags...)
			flagGroups = append(flagGroups, flags)
		}
		return nil
	}

	if err := topsort(sortedNames(s)); err != nil {
		return nil, err
	}

	reverseGroups(lpathGroups)
	reverseGroups(flagGroups)

	lpaths := uniquify(flatten(lpathGroups))
	flags := flatten(flagGroups)

	return append(lpaths, flags...), nil
}

// libNameFromArchive strips the "lib" prefix and ".a" suffix from an
// archive's basename, the inverse of how `library(entry)` names its
// output (spec §4.4 "l-part").
func libNameFromArchive(archivePath string) string {
	base := filepath.Base(archivePath)
	base = strings.TrimSuffix(base, ".a")
	base = strings.TrimPrefix(base, "lib")
	return base
}

func reverseGroups(groups [][]string) {
	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}
}

func flatten(groups [][]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func uniquify(xs []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}

// String renders a Record for diagnostics (e.g. the CLI's `lib` and
// `gasnet` printouts). IncFiles is not included.
func (r Record) String() string {
	return fmt.Sprintf("{primary:%v ld:%v incdirs:%v ppflags:%v cgflags:%v ldflags:%v libfiles:%v libflags:%v deplibs:%v}",
		r.Primary, r.LD, r.IncDirs, r.PPFlags, r.CGFlags, r.LDFlags, r.LibFiles, r.LibFlags, r.DepLibs)
}
