package rules

import (
	"path/filepath"

	"github.com/upcxx-project/nobs/internal/crawler"
	"github.com/upcxx-project/nobs/internal/engine"
	"github.com/upcxx-project/nobs/internal/libset"
	"github.com/upcxx-project/nobs/internal/toolchain"
)

// isCSource reports whether ext is the lone recognized C extension, the
// same cxx_exts/c_exts branch nobsrule.py's comp_lang uses to pick cc
// vs cxx.
func isCSource(ext string) bool {
	return ext == ".c"
}

// resolveSrcCompiler picks cc vs cxx by extension and resolves its
// command name (spec §4.7 layer 1), ported from nobsrule.py's
// comp_lang's cxx_exts/c_exts branch.
func resolveSrcCompiler(ctx *engine.Context, cross, src string) (string, error) {
	if isCSource(filepath.Ext(src)) {
		return toolchain.ResolveCc(ctx, cross)
	}
	return toolchain.ResolveCxx(ctx, cross)
}

// NewCompileRule builds the memoized `compile(src)` rule: depends on
// src, every header in includes(src), and the compiler identity fact;
// invokes the composed compiler command to produce a fresh object file
// (spec §4.6 "compile(src)"; ported from nobsrule.py's `compile`).
// repoRoot locates the shared include shim (spec §6).
func NewCompileRule(cross, src, repoRoot string) *engine.Rule {
	r := &engine.Rule{Name: "compile", Args: []string{cross, src}, Memoized: true}

	r.Probe = func(ctx *engine.Context) (string, error) {
		cxxName, err := resolveSrcCompiler(ctx, cross, src)
		if err != nil {
			return "", err
		}
		ctx.DependFact("compiler-version", compilerVersionOf(ctx, cxxName))
		// Records OPTLEV and DBGSYM as facts before the digest is taken.
		toolchain.EnvOptLevAndDebug(ctx)

		libsAny, err := ctx.Invoke(NewLibrariesRule(cross, src))
		if err != nil {
			return "", err
		}
		ppArgs, err := compilePPArgs(ctx, src, repoRoot, libsAny.(libset.Set))
		if err != nil {
			return "", err
		}
		incsAny, err := ctx.Invoke(crawler.NewIncludesRule(cxxName, src, ppArgs))
		if err != nil {
			return "", err
		}
		if err := ctx.DependFiles(src); err != nil {
			return "", err
		}
		if err := ctx.DependFiles(incsAny.([]string)...); err != nil {
			return "", err
		}
		return ctx.Digest(), nil
	}

	r.Execute = func(ctx *engine.Context) (string, error) {
		cxxName, err := resolveSrcCompiler(ctx, cross, src)
		if err != nil {
			return "", err
		}
		libsAny, err := ctx.Invoke(NewLibrariesRule(cross, src))
		if err != nil {
			return "", err
		}
		libs := libsAny.(libset.Set)

		shimAny, err := ctx.Invoke(NewIncludeShimRule(repoRoot))
		if err != nil {
			return "", err
		}
		shimDir := shimAny.(string)

		optlev, dbgsym := toolchain.EnvOptLevAndDebug(ctx)
		compilerFn, err := toolchain.Compiler(cxxName, src, shimDir, libs, optlev, dbgsym)
		if err != nil {
			return "", err
		}

		objfile := ctx.MkPath("obj", "-"+filepath.Base(src)+".o")
		if _, err := ctx.RunProcess(cxxName, compilerFn(objfile), ""); err != nil {
			return "", err
		}
		return objfile, nil
	}

	r.Decode = func(artifact string) (any, error) {
		return artifact, nil
	}

	return r
}

// compilePPArgs reconstructs the preprocessor flag vector `includes`
// needs to replay the exact -M invocation `compile` will eventually run
// (spec §4.5 step 1: "so -M sees an identical preprocessor
// configuration"). Unlike the final compile command, this carries no
// compiler name prefix: crawler.NewIncludesRule takes the compiler name
// as its own argument.
func compilePPArgs(ctx *engine.Context, src, repoRoot string, libs libset.Set) ([]string, error) {
	shimAny, err := ctx.Invoke(NewIncludeShimRule(repoRoot))
	if err != nil {
		return nil, err
	}
	return toolchain.CompLangPPFlags(filepath.Ext(src), shimAny.(string), libs)
}

func compilerVersionOf(ctx *engine.Context, cxxName string) string {
	res, _ := ctx.RunProcess(cxxName, []string{"--version"}, "")
	return res.Stdout
}
