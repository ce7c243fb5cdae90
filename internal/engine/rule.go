package engine

import "strings"

// Rule is a named, argument-parameterized computation whose result can be
// cached (spec §3 "Rule identity"). Constructors in internal/rules build
// one of these per invocation; identity is (Name, Args), never a pointer
// identity, so two constructions with equal args dedupe and memoize
// together.
//
// A Memoized rule is split into the two phases of spec §4.2:
//   - Probe records every dependency needed to decide whether the cached
//     result is still valid, and returns the digest of what it recorded.
//   - Execute runs only on a miss; it may allocate artifact paths and
//     invoke external processes, and returns the path of the artifact it
//     produced. Decode turns that artifact path back into the value
//     callers actually want (an object file's own path, a deserialized
//     list of headers, a library-set).
//
// A non-memoized (transient) rule implements only Run: its result is
// recomputed every build but still deduplicated and cached within one
// build via the engine's singleflight-backed invoke.
type Rule struct {
	Name     string
	Args     []string
	Memoized bool

	Probe   func(ctx *Context) (digest string, err error)
	Execute func(ctx *Context) (artifact string, err error)
	Decode  func(artifact string) (any, error)

	Run func(ctx *Context) (any, error)
}

// Key is the rule's identity string, used for memoization, the
// scheduler's dedup map, and as the rule-id namespace in the memo store.
func (r *Rule) Key() string {
	var b strings.Builder
	b.WriteString(r.Name)
	b.WriteByte('(')
	for i, a := range r.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(a)
	}
	b.WriteByte(')')
	return b.String()
}
