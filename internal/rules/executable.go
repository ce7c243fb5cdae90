package rules

import (
	"github.com/upcxx-project/nobs/internal/crawler"
	"github.com/upcxx-project/nobs/internal/engine"
	"github.com/upcxx-project/nobs/internal/libset"
	"github.com/upcxx-project/nobs/internal/toolchain"
)

// NewExecutableRule builds the memoized `executable(entry)` rule: crawl
// entry's closure, link every object file with the merged library-set's
// linker (falling back to the C++ front-end), producing a runnable
// binary (spec §4.6 "executable(entry)"; ported from nobsrule.py's
// `executable`).
func NewExecutableRule(cross, entry string, crawlableDirs *crawler.CrawlableDirs, repoRoot string) *engine.Rule {
	r := &engine.Rule{Name: "executable", Args: []string{cross, entry}, Memoized: true}

	r.Probe = func(ctx *engine.Context) (string, error) {
		if _, err := toolchain.ResolveCxx(ctx, cross); err != nil {
			return "", err
		}
		if _, _, err := Crawl(ctx, cross, entry, crawlableDirs, repoRoot); err != nil {
			return "", err
		}
		return ctx.Digest(), nil
	}

	r.Execute = func(ctx *engine.Context) (string, error) {
		cxx, err := toolchain.ResolveCxx(ctx, cross)
		if err != nil {
			return "", err
		}
		objs, merged, err := Crawl(ctx, cross, entry, crawlableDirs, repoRoot)
		if err != nil {
			return "", err
		}

		ld, err := libset.LD(merged)
		if err != nil {
			return "", err
		}
		if len(ld) == 0 {
			ld = []string{cxx}
		} else {
			ld = append([]string{cxx}, ld[1:]...)
		}

		ldflags := libset.LDFlags(merged)
		libflags, err := libset.LibFlags(merged)
		if err != nil {
			return "", err
		}

		exe := ctx.MkPath("exe", ".x")
		args := append([]string{}, ld[1:]...)
		args = append(args, ldflags...)
		args = append(args, "-o", exe)
		args = append(args, objs...)
		args = append(args, libflags...)

		if _, err := ctx.RunProcess(ld[0], args, ""); err != nil {
			return "", err
		}
		return exe, nil
	}

	r.Decode = func(artifact string) (any, error) {
		return artifact, nil
	}

	return r
}
