// Package toolchain composes the compiler/linker/archiver command lines
// of spec §4.7: cxx/cc resolution, language-standard flags, preprocessor
// flags, code-gen flags, and the final per-source compile command.
// Grounded on nocc's internal/server/cxx-launcher.go (process launching)
// and internal/client/includes-collector.go's GetDefaultCxxIncludeDirsOnLocal
// (default include-dir probing via -Wp,-v).
package toolchain

import (
	"strings"

	"github.com/upcxx-project/nobs/internal/engine"
)

// ResolveCxx resolves the C++ compiler command in priority order:
// cross-config's value, user environment CXX, host-platform default
// (spec §4.7 layer 1 "cxx"). crossValue is empty when CROSS is unset.
func ResolveCxx(ctx *engine.Context, crossValue string) (string, error) {
	return resolveCompiler(ctx, "CXX", crossValue, "g++", "CC")
}

// ResolveCc mirrors ResolveCxx for the C compiler (spec §4.7 layer 1 "cc").
func ResolveCc(ctx *engine.Context, crossValue string) (string, error) {
	return resolveCompiler(ctx, "CC", crossValue, "gcc", "cc")
}

// isNerscCrayHost reports whether NERSC_HOST names one of the Cray login
// hosts (nobsrule.py's cxx/cc: `env('NERSC_HOST', None) in ('cori',
// 'edison')`) that default to the Cray compiler wrapper names instead of
// g++/gcc.
func isNerscCrayHost(ctx *engine.Context) bool {
	host := ctx.Env("NERSC_HOST", "")
	return host == "cori" || host == "edison"
}

func resolveCompiler(ctx *engine.Context, envVar, crossValue, platformDefault, nerscDefault string) (string, error) {
	userEnv := ctx.Env(envVar, "")

	resolved := platformDefault
	if isNerscCrayHost(ctx) {
		resolved = nerscDefault
	}
	switch {
	case crossValue != "":
		resolved = crossValue
		if userEnv != "" && userEnv != crossValue {
			if logger := ctx.Logger(); logger != nil {
				logger.Warn("cross-config", envVar, "=", crossValue, "disagrees with environment", envVar, "=", userEnv, "; using the cross-config value")
			}
		}
	case userEnv != "":
		resolved = userEnv
	}

	ctx.DependFact(envVar+":resolved", resolved)
	return resolved, nil
}

// DefaultIncludeDirs probes cxxName's built-in include search path via
// -Wp,-v (ported from nocc's GetDefaultCxxIncludeDirsOnLocal). Nothing
// in this module calls it; resolveCompiler's cross/env mismatch warning
// does not consult it.
func DefaultIncludeDirs(ctx *engine.Context, cxxName string) []string {
	res, _ := ctx.RunProcess(cxxName, []string{"-Wp,-v", "-x", "c++", "/dev/null", "-fsyntax-only"}, "")
	return parseWpVOutput(res.Stderr)
}

func parseWpVOutput(stderr string) []string {
	const (
		startMarker = "#include <...>"
		endMarker   = "End of search list"
	)
	var dirs []string
	inSection := false
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, startMarker):
			inSection = true
		case strings.HasPrefix(line, endMarker):
			return dirs
		case inSection && strings.HasPrefix(line, "/"):
			if !strings.HasSuffix(line, "(framework directory)") {
				dirs = append(dirs, line)
			}
		}
	}
	return dirs
}
