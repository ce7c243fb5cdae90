package toolchain

import (
	"path/filepath"

	"github.com/upcxx-project/nobs/internal/common"
	"github.com/upcxx-project/nobs/internal/engine"
	"github.com/upcxx-project/nobs/internal/libset"
)

// LangFlags appends the language-standard flag for a source extension
// (spec §4.7 layer 2 "lang"). An unrecognized extension is a
// *common.ConfigError (spec §7).
func LangFlags(srcExt string) ([]string, error) {
	switch srcExt {
	case ".c":
		return []string{"-std=c11"}, nil
	case ".cpp", ".cxx", ".c++", ".C", ".C++":
		return []string{"-std=c++11"}, nil
	default:
		return nil, common.NewConfigError("unrecognized source extension %q", srcExt)
	}
}

// CompLangPPFlags appends -D_GNU_SOURCE=1, the include-tree shim path,
// and the file's library-set ppflags on top of the language flags
// (spec §4.7 layer 3 "comp_lang_pp"). An empty includeShimDir adds no
// -I flag for the shim.
func CompLangPPFlags(srcExt, includeShimDir string, libs libset.Set) ([]string, error) {
	flags, err := LangFlags(srcExt)
	if err != nil {
		return nil, err
	}
	flags = append(flags, "-D_GNU_SOURCE=1")
	if includeShimDir != "" {
		flags = append(flags, "-I"+includeShimDir)
	}
	flags = append(flags, libset.PPFlags(libs)...)
	return flags, nil
}

// CompLangPPCGFlags appends -O<optlev>, -g (if DBGSYM=1), -Wall, and the
// library-set's cgflags (spec §4.7 layer 4 "comp_lang_pp_cg"). optlev
// and dbgsym must already have been read via ctx.Env by the caller so
// they're recorded as dependencies once per rule invocation, not once
// per layer (spec §4.7: "must be recorded as dependencies").
func CompLangPPCGFlags(srcExt, includeShimDir string, libs libset.Set, optlev, dbgsym string) ([]string, error) {
	flags, err := CompLangPPFlags(srcExt, includeShimDir, libs)
	if err != nil {
		return nil, err
	}
	flags = append(flags, "-O"+optlev)
	if dbgsym == "1" {
		flags = append(flags, "-g")
	}
	flags = append(flags, "-Wall")
	flags = append(flags, libset.CGFlags(libs)...)
	return flags, nil
}

// ObjFileCommand is the function spec §4.7 layer 5 "compiler(src)"
// produces: given an object-file path, the full "-c src -o objfile"
// command vector.
type ObjFileCommand func(objfile string) []string

// Compiler composes layers 2-5 for src, returning the command builder
// whose argument vector compile(src) passes, after cxxName, to the
// subprocess launcher (spec §4.6 "compile(src)"). The vector does not
// include cxxName itself.
func Compiler(cxxName, src, includeShimDir string, libs libset.Set, optlev, dbgsym string) (ObjFileCommand, error) {
	flags, err := CompLangPPCGFlags(filepath.Ext(src), includeShimDir, libs, optlev, dbgsym)
	if err != nil {
		return nil, err
	}
	return func(objfile string) []string {
		cmd := make([]string, 0, len(flags)+4)
		cmd = append(cmd, flags...)
		cmd = append(cmd, "-c", src, "-o", objfile)
		_ = cxxName // the compiler binary itself is cmd[0] from the caller's RunProcess
		return cmd
	}, nil
}

// EnvOptLevAndDebug reads the OPTLEV/DBGSYM facts the way every other
// environment-derived toolchain input is read, so callers don't forget
// to record them (spec §4.7: "The optimization level and debug flag are
// environment-derived facts and must be recorded as dependencies").
func EnvOptLevAndDebug(ctx *engine.Context) (optlev, dbgsym string) {
	return ctx.Env("OPTLEV", "2"), ctx.Env("DBGSYM", "0")
}
