// Package crawler implements the primitive operations of spec §4.5:
// asking the compiler for a source's non-system header dependencies
// (the memoized `includes` rule, grounded on nocc's
// internal/client/includes-collector.go CollectDependentIncludesByCxxM),
// matching a header against the crawlable-directory whitelist, and
// enumerating the sibling-source candidates implied by a header's base
// name. The fan-out orchestration described in spec §4.5 steps 3-4
// (recursively compiling discovered siblings and merging their
// library-sets) lives in internal/rules.Crawl, which can reach both
// this package and the compile/library rule constructors without an
// import cycle.
package crawler

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// CrawlableDirs is the whitelist of glob patterns under which a header
// implies a sibling source file (spec §3 "Crawlable directory" —
// "typically the repository's src/ and test/ subtrees").
type CrawlableDirs struct {
	root     string
	patterns []string
}

// NewCrawlableDirs builds a whitelist rooted at root. Patterns are
// doublestar globs (src/**, test/**) matched against a header's path
// relative to root — the EngFlow-gazelle_cc pattern for matching source
// trees, used here in place of nocc's flatter "every non-system header
// is interesting" assumption, since a GASNet/UPC++ build must not treat
// installed GASNet or system headers as implying a sibling source.
func NewCrawlableDirs(root string, patterns ...string) *CrawlableDirs {
	if len(patterns) == 0 {
		patterns = []string{"src/**", "test/**"}
	}
	return &CrawlableDirs{root: root, patterns: patterns}
}

// Contains reports whether path lies within a crawlable directory.
func (d *CrawlableDirs) Contains(path string) bool {
	rel, err := filepath.Rel(d.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range d.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
