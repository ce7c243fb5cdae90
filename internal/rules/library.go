package rules

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/upcxx-project/nobs/internal/common"
	"github.com/upcxx-project/nobs/internal/crawler"
	"github.com/upcxx-project/nobs/internal/engine"
	"github.com/upcxx-project/nobs/internal/libset"
)

// NewLibraryRule builds the memoized `library(entry)` rule: crawl
// entry's closure, archive every object file into `lib<name>.a`, and
// return a library-set whose primary record is that archive plus the
// crawled set marked secondary (spec §4.6 "library(entry)"; ported from
// nobsrule.py's `library`).
func NewLibraryRule(cross, entry string, crawlableDirs *crawler.CrawlableDirs, repoRoot string) *engine.Rule {
	r := &engine.Rule{Name: "library", Args: []string{cross, entry}, Memoized: true}

	r.Probe = func(ctx *engine.Context) (string, error) {
		if _, _, err := Crawl(ctx, cross, entry, crawlableDirs, repoRoot); err != nil {
			return "", err
		}
		if _, err := ctx.Invoke(crawlIncludesRule(cross, entry, repoRoot)); err != nil {
			return "", err
		}
		if _, err := ctx.Invoke(NewIncludeShimRule(repoRoot)); err != nil {
			return "", err
		}
		return ctx.Digest(), nil
	}

	r.Execute = func(ctx *engine.Context) (string, error) {
		objs, crawled, err := Crawl(ctx, cross, entry, crawlableDirs, repoRoot)
		if err != nil {
			return "", err
		}

		entryIncsAny, err := ctx.Invoke(crawlIncludesRule(cross, entry, repoRoot))
		if err != nil {
			return "", err
		}
		incs := publicIncludeFiles(entryIncsAny.([]string), repoRoot, ctx.StoreRoot())

		shimAny, err := ctx.Invoke(NewIncludeShimRule(repoRoot))
		if err != nil {
			return "", err
		}
		incDir := shimAny.(string)

		libname := strings.TrimSuffix(filepath.Base(entry), filepath.Ext(entry))
		parDir := ctx.MkPath("library", "")
		if err := os.MkdirAll(parDir, 0755); err != nil {
			return "", err
		}
		libpath := filepath.Join(parDir, "lib"+libname+".a")

		arArgs := append([]string{"rcs", libpath}, objs...)
		if _, err := ctx.RunProcess("ar", arArgs, ""); err != nil {
			return "", err
		}

		deplibs := make([]string, 0, len(crawled))
		for name := range crawled {
			deplibs = append(deplibs, name)
		}

		result, err := libset.Merge(libset.AsSecondary(crawled), libset.Set{
			libname: {
				Primary:  true,
				IncDirs:  []string{incDir},
				IncFiles: incs,
				LibFiles: []string{libpath},
				DepLibs:  deplibs,
			},
		})
		if err != nil {
			return "", err
		}

		payload, err := marshalSet(result)
		if err != nil {
			return "", err
		}
		artifact := ctx.MkPath("libset", ".json")
		if err := os.WriteFile(artifact, payload, 0644); err != nil {
			return "", err
		}
		return artifact, nil
	}

	r.Decode = decodeSetArtifact

	return r
}

// publicIncludeFiles keeps only the headers under the repository root
// or the artifact store (nobsrule.py `library`'s filter against
// `top_dir` and `me.memodb.path_art`), deduplicated.
func publicIncludeFiles(headers []string, repoRoot, storeRoot string) []string {
	seen := map[string]bool{}
	var out []string
	for _, h := range headers {
		if !common.PathWithinDir(h, repoRoot) && !common.PathWithinDir(h, storeRoot) {
			continue
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}
