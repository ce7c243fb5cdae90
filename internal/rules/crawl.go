package rules

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/upcxx-project/nobs/internal/crawler"
	"github.com/upcxx-project/nobs/internal/engine"
	"github.com/upcxx-project/nobs/internal/libset"
)

// Crawl implements spec §4.5's `crawl(entry-source)`: transitively
// discover every sibling source reachable from mainSrc's header
// closure, compile each one, and merge their library-sets. Ported from
// nobsrule.py's Crawler base class, shared by executable(entry) and
// library(entry) (spec §9 "model it as a helper function parameterized
// by the entry source and the set of after-crawl actions" rather than
// a class hierarchy).
//
// This lives in internal/rules rather than internal/crawler so it can
// reach both the primitive header/sibling helpers (crawler package) and
// the compile/libraries rule constructors (this package) without an
// import cycle between crawler and rules.
func Crawl(ctx *engine.Context, cross, mainSrc string, crawlableDirs *crawler.CrawlableDirs, repoRoot string) ([]string, libset.Set, error) {
	var mu sync.Mutex
	var objs []string
	var sets []libset.Set
	visited := map[string]bool{}

	var visit func(src string) error
	visit = func(src string) error {
		mu.Lock()
		if visited[src] {
			mu.Unlock()
			return nil
		}
		visited[src] = true
		mu.Unlock()

		incsAny, err := ctx.Invoke(crawlIncludesRule(cross, src, repoRoot))
		if err != nil {
			return err
		}
		objAny, err := ctx.Invoke(NewCompileRule(cross, src, repoRoot))
		if err != nil {
			return err
		}
		libsAny, err := ctx.Invoke(NewLibrariesRule(cross, src))
		if err != nil {
			return err
		}

		mu.Lock()
		objs = append(objs, objAny.(string))
		sets = append(sets, libsAny.(libset.Set))
		mu.Unlock()

		for _, h := range incsAny.([]string) {
			abs, err := filepath.Abs(h)
			if err != nil {
				continue
			}
			if !crawlableDirs.Contains(abs) {
				continue
			}
			for _, candidate := range crawler.SiblingCandidates(abs) {
				ctx.ProbeFiles(candidate)
				if fileExists(candidate) {
					if err := visit(candidate); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}

	if err := visit(mainSrc); err != nil {
		return nil, nil, err
	}

	merged, err := libset.Merge(sets...)
	if err != nil {
		return nil, nil, err
	}
	return objs, merged, nil
}

// NewIncsRule exposes the same includes(src) resolution `compile` and
// `crawl` depend on internally, for the CLI's standalone `incs <src>`
// introspection command (spec §6).
func NewIncsRule(cross, src, repoRoot string) *engine.Rule {
	return crawlIncludesRule(cross, src, repoRoot)
}

// crawlIncludesRule resolves includes(src) the same way compile(src)
// will, so the crawl's fan-out sees the identical header list compile
// depends on (spec §4.5 step 1 reused for step 2's fan-out).
func crawlIncludesRule(cross, src, repoRoot string) *engine.Rule {
	return &engine.Rule{
		Name: "crawl_includes",
		Args: []string{cross, src},
		Run: func(ctx *engine.Context) (any, error) {
			cxxName, err := resolveSrcCompiler(ctx, cross, src)
			if err != nil {
				return nil, err
			}
			libsAny, err := ctx.Invoke(NewLibrariesRule(cross, src))
			if err != nil {
				return nil, err
			}
			ppArgs, err := compilePPArgs(ctx, src, repoRoot, libsAny.(libset.Set))
			if err != nil {
				return nil, err
			}
			return ctx.Invoke(crawler.NewIncludesRule(cxxName, src, ppArgs))
		},
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
