// Package store implements the persistent, content-addressed memo store
// (spec §4.1): a rule-id/digest keyed map to an artifact path, plus the
// dependency record that decided the digest, two-phase-committed to
// disk so an interrupted build never leaves an entry pointing at a
// missing artifact (spec §9 Design Note).
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/upcxx-project/nobs/internal/common"
)

// FileDep, FactDep and SubRuleDep realize the three dependency kinds of
// spec §3 "Dependency record".
type FileDep struct {
	Path string
	Hash common.SHA256
}

type FactDep struct {
	Key  string
	Hash common.SHA256
}

type SubRuleDep struct {
	RuleKey string
	Hash    common.SHA256
}

// DependencyRecord is the append-only set of dependency items a single
// rule invocation accumulates (spec §3).
type DependencyRecord struct {
	Files    []FileDep
	Facts    []FactDep
	SubRules []SubRuleDep
}

func (r *DependencyRecord) AddFile(path string, h common.SHA256) {
	r.Files = append(r.Files, FileDep{Path: path, Hash: h})
}

func (r *DependencyRecord) AddFact(key string, h common.SHA256) {
	r.Facts = append(r.Facts, FactDep{Key: key, Hash: h})
}

func (r *DependencyRecord) AddSubRule(key string, h common.SHA256) {
	r.SubRules = append(r.SubRules, SubRuleDep{RuleKey: key, Hash: h})
}

// Digest folds every recorded dependency, in recorded order, into one
// content digest (spec §4.1 determinism, §8 property 1: "re-running the
// probe with identical file contents, facts, and sub-rule digests
// yields the same digest"). Because the digest is itself the lookup
// key, any single changed dependency produces a different digest and
// therefore a guaranteed miss — the store doesn't need to separately
// walk the old record in recorded order to find the first mismatch
// (spec §4.1's described optimization); see DESIGN.md for the tradeoff.
func (r *DependencyRecord) Digest() string {
	h := sha256.New()
	for _, f := range r.Files {
		_, _ = io.WriteString(h, "file:"+f.Path+":"+f.Hash.String()+"\n")
	}
	for _, f := range r.Facts {
		_, _ = io.WriteString(h, "fact:"+f.Key+":"+f.Hash.String()+"\n")
	}
	for _, s := range r.SubRules {
		_, _ = io.WriteString(h, "sub:"+s.RuleKey+":"+s.Hash.String()+"\n")
	}
	return hex.EncodeToString(h.Sum(nil))
}
