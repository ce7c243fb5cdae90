package gasnet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/upcxx-project/nobs/internal/common"
	"github.com/upcxx-project/nobs/internal/engine"
	"github.com/upcxx-project/nobs/internal/libset"
)

// NewGasnetRule builds the memoized `gasnet` rule: build (or locate, for
// an "install" kind GASNET) GASNet and extract its compiler/linker flags
// into a libset.Record keyed "gasnet" (nobsrule.py `gasnet`).
func NewGasnetRule(cross string) *engine.Rule {
	r := &engine.Rule{Name: "gasnet", Args: []string{cross}, Memoized: true}

	r.Probe = func(ctx *engine.Context) (string, error) {
		conduit := Conduit(ctx)
		syncmode := Syncmode(ctx)
		kind, value, err := ClassifyUser(ctx)
		if err != nil {
			return "", err
		}
		ctx.DependFact("conduit", conduit)
		ctx.DependFact("syncmode", syncmode)

		if kind == KindInstall {
			ctx.DependFact("install-dir", value)
		} else if _, err := ctx.Invoke(NewConfiguredRule(cross)); err != nil {
			return "", err
		}
		return ctx.Digest(), nil
	}

	r.Execute = func(ctx *engine.Context) (string, error) {
		conduit := Conduit(ctx)
		syncmode := Syncmode(ctx)
		kind, value, err := ClassifyUser(ctx)
		if err != nil {
			return "", err
		}

		var buildOrInstallDir string
		if kind == KindInstall {
			buildOrInstallDir = value
		} else {
			builtAny, err := ctx.Invoke(NewConfiguredRule(cross))
			if err != nil {
				return "", err
			}
			buildOrInstallDir = builtAny.(string)

			if ctx.Logger() != nil {
				ctx.Logger().Info(1, fmt.Sprintf("Building GASNet (conduit=%s, threading=%s)...", conduit, syncmode))
			}
			conduitDir := filepath.Join(buildOrInstallDir, conduit+"-conduit")
			if _, err := ctx.RunProcess("make", []string{syncmode}, conduitDir); err != nil {
				return "", err
			}
		}

		makefileParts := []string{buildOrInstallDir}
		if kind == KindInstall {
			makefileParts = append(makefileParts, "include")
		}
		makefileParts = append(makefileParts, conduit+"-conduit", fmt.Sprintf("%s-%s.mak", conduit, syncmode))
		makefile := filepath.Join(makefileParts...)

		gasnetLD, err := extractSplit(ctx, makefile, "GASNET_LD")
		if err != nil {
			return "", err
		}
		gasnetLDFlags, err := extractSplit(ctx, makefile, "GASNET_LDFLAGS")
		if err != nil {
			return "", err
		}
		gasnetCxxCppFlags, err := extractSplit(ctx, makefile, "GASNET_CXXCPPFLAGS")
		if err != nil {
			return "", err
		}
		gasnetCxxFlags, err := extractSplit(ctx, makefile, "GASNET_CXXFLAGS")
		if err != nil {
			return "", err
		}
		gasnetLibs, err := extractSplit(ctx, makefile, "GASNET_LIBS")
		if err != nil {
			return "", err
		}

		var incDirs, incFiles, libFiles []string
		if kind == KindInstall {
			incDirs, incFiles, libFiles = nil, nil, nil
		} else {
			var filteredPP []string
			for _, flag := range gasnetCxxCppFlags {
				if strings.HasPrefix(flag, "-I") {
					incDirs = append(incDirs, flag[2:])
				} else {
					filteredPP = append(filteredPP, flag)
				}
			}
			gasnetCxxCppFlags = filteredPP

			sourceMakefile := filepath.Join(buildOrInstallDir, "Makefile")
			sourceDir, err := ExtractMakefileVar(ctx, sourceMakefile, "TOP_SRCDIR")
			if err != nil {
				return "", err
			}
			headers, err := extractSplit(ctx, sourceMakefile, "include_HEADERS")
			if err != nil {
				return "", err
			}
			for _, h := range headers {
				incFiles = append(incFiles, filepath.Join(sourceDir, h))
			}

			var libDirs, libNames []string
			for _, flag := range gasnetLibs {
				switch {
				case strings.HasPrefix(flag, "-L"):
					libDirs = append(libDirs, flag[2:])
				case strings.HasPrefix(flag, "-l"):
					libNames = append(libNames, flag[2:])
				}
			}

			var ownedLibDirs []string
			for _, d := range libDirs {
				if common.PathWithinDir(d, buildOrInstallDir) {
					ownedLibDirs = append(ownedLibDirs, d)
				}
			}

			matched := map[string]bool{}
			for _, name := range libNames {
				libFileName := "lib" + name + ".a"
				for _, dir := range ownedLibDirs {
					candidate := filepath.Join(dir, libFileName)
					if _, err := os.Stat(candidate); err == nil {
						if matched[name] {
							return "", common.NewDependencyConflictError("GASNet library %q found under multiple -L paths", name)
						}
						libFiles = append(libFiles, candidate)
						matched[name] = true
					}
				}
			}

			var prunedLibs []string
			for _, flag := range gasnetLibs {
				switch {
				case strings.HasPrefix(flag, "-L") && contains(ownedLibDirs, flag[2:]):
					continue
				case strings.HasPrefix(flag, "-l") && matched[flag[2:]]:
					continue
				default:
					prunedLibs = append(prunedLibs, flag)
				}
			}
			gasnetLibs = prunedLibs
		}

		set := libset.Set{
			"gasnet": libset.Record{
				Primary:  true,
				LD:       gasnetLD,
				IncDirs:  incDirs,
				IncFiles: incFiles,
				PPFlags:  gasnetCxxCppFlags,
				CGFlags:  gasnetCxxFlags,
				LDFlags:  gasnetLDFlags,
				LibFiles: libFiles,
				LibFlags: gasnetLibs,
				DepLibs:  nil,
			},
		}

		payload, err := json.Marshal(set)
		if err != nil {
			return "", err
		}
		artifact := ctx.MkPath("libset", ".json")
		if err := os.WriteFile(artifact, payload, 0644); err != nil {
			return "", err
		}
		return artifact, nil
	}

	r.Decode = func(artifact string) (any, error) {
		data, err := os.ReadFile(artifact)
		if err != nil {
			return nil, err
		}
		var set libset.Set
		if err := json.Unmarshal(data, &set); err != nil {
			return nil, err
		}
		return set, nil
	}

	return r
}

func extractSplit(ctx *engine.Context, makefile, varName string) ([]string, error) {
	val, err := ExtractMakefileVar(ctx, makefile, varName)
	if err != nil {
		return nil, err
	}
	return strings.Fields(val), nil
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
