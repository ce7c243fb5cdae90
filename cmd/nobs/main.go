// Command nobs is the CLI dispatcher for the memoized build engine: it
// resolves a rule name to an internal/rules constructor, builds the
// root engine.Context, invokes, and prints the artifact (spec §6).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/upcxx-project/nobs/internal/common"
	"github.com/upcxx-project/nobs/internal/crawler"
	"github.com/upcxx-project/nobs/internal/engine"
	"github.com/upcxx-project/nobs/internal/gasnet"
	"github.com/upcxx-project/nobs/internal/libset"
	"github.com/upcxx-project/nobs/internal/rules"
	"github.com/upcxx-project/nobs/internal/store"
	"github.com/upcxx-project/nobs/internal/toolchain"
)

func failed(message string, err error) {
	_, _ = fmt.Fprintln(os.Stderr, fmt.Sprint("nobs: ", message, ": ", err))
	os.Exit(1)
}

func usageAndExit() {
	fmt.Fprintln(os.Stderr, "usage: nobs [flags] <rule> [args...]")
	fmt.Fprintln(os.Stderr, "  cxx | cc")
	fmt.Fprintln(os.Stderr, "  incs <src>")
	fmt.Fprintln(os.Stderr, "  obj <src>")
	fmt.Fprintln(os.Stderr, "  exe <src>")
	fmt.Fprintln(os.Stderr, "  lib <src>")
	fmt.Fprintln(os.Stderr, "  install <src> <path>")
	fmt.Fprintln(os.Stderr, "  run <src> [args...]")
	fmt.Fprintln(os.Stderr, "  gasnet | gasnet_conduit | requires_gasnet <src> | requires_upcxx_backend <src>")
	os.Exit(1)
}

func main() {
	showVersion := common.CmdEnvBool("Show version and exit", false,
		"version", "")
	crossFlag := common.CmdEnvString("Cross-compile config tag (e.g. cray-aries-slurm, bgq), empty for native.", "",
		"cross", "CROSS")
	repoRootFlag := common.CmdEnvString("Repository root crawled for sources, default the current directory.", "",
		"repo-root", "NOBS_REPO_ROOT")
	cacheDirFlag := common.CmdEnvString("Memo store directory, default <repo-root>/.nobs-cache.", "",
		"cache-dir", "NOBS_CACHE_DIR")
	jobsFlag := common.CmdEnvInt("Max concurrent subprocess launches, default 4.", 4,
		"jobs", "NOBS_JOBS")
	logFileName := common.CmdEnvString("A filename to log engine activity, by default use stderr.", "",
		"log-filename", "NOBS_LOG_FILENAME")
	logVerbosity := common.CmdEnvInt("Logger verbosity level for INFO (-1 off, default 0).", 0,
		"log-verbosity", "NOBS_LOG_VERBOSITY")

	common.ParseCmdFlagsCombiningWithEnv()

	if *showVersion {
		fmt.Println(common.GetVersion())
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		usageAndExit()
	}
	ruleName, rest := args[0], args[1:]

	repoRoot := *repoRootFlag
	if repoRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			failed("can't resolve current directory", err)
		}
		repoRoot = cwd
	}
	repoRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		failed("can't resolve repo root "+repoRoot, err)
	}

	cacheDir := *cacheDirFlag
	if cacheDir == "" {
		cacheDir = filepath.Join(repoRoot, ".nobs-cache")
	}

	logger, err := common.MakeLogger(*logFileName, int(*logVerbosity), *logFileName != "")
	if err != nil {
		failed("can't init logger", err)
	}

	st, err := store.Open(cacheDir)
	if err != nil {
		failed("can't open memo store at "+cacheDir, err)
	}
	eng := engine.New(st, logger, *jobsFlag)
	cross := *crossFlag
	crawlableDirs := crawler.NewCrawlableDirs(repoRoot)

	exitCode, err := dispatch(eng, cross, repoRoot, crawlableDirs, ruleName, rest)
	if err != nil {
		printRuleError(err)
		os.Exit(exitCode)
	}
	os.Exit(exitCode)
}

// dispatch resolves ruleName to an internal/rules (or internal/gasnet)
// constructor, invokes it through eng, and prints the result the way
// the rule's CLI form is documented (spec §6). The returned exit code
// is 0 when err is nil, except for `run`, which returns the executed
// program's own exit code.
func dispatch(eng *engine.Engine, cross, repoRoot string, crawlableDirs *crawler.CrawlableDirs, ruleName string, rest []string) (int, error) {
	switch ruleName {
	case "cxx":
		return resolveAndPrintCompiler(eng, cross, false)
	case "cc":
		return resolveAndPrintCompiler(eng, cross, true)

	case "incs":
		src, err := requireOneArg(ruleName, rest)
		if err != nil {
			return 1, err
		}
		got, err := eng.Invoke(rules.NewIncsRule(cross, src, repoRoot))
		if err != nil {
			return 1, err
		}
		for _, h := range got.([]string) {
			fmt.Println(h)
		}
		return 0, nil

	case "obj":
		src, err := requireOneArg(ruleName, rest)
		if err != nil {
			return 1, err
		}
		got, err := eng.Invoke(rules.NewCompileRule(cross, src, repoRoot))
		if err != nil {
			return 1, err
		}
		fmt.Println(got.(string))
		return 0, nil

	case "exe":
		src, err := requireOneArg(ruleName, rest)
		if err != nil {
			return 1, err
		}
		got, err := eng.Invoke(rules.NewExecutableRule(cross, src, crawlableDirs, repoRoot))
		if err != nil {
			return 1, err
		}
		fmt.Println(got.(string))
		return 0, nil

	case "lib":
		src, err := requireOneArg(ruleName, rest)
		if err != nil {
			return 1, err
		}
		got, err := eng.Invoke(rules.NewLibraryRule(cross, src, crawlableDirs, repoRoot))
		if err != nil {
			return 1, err
		}
		printLibset(got.(libset.Set))
		return 0, nil

	case "install":
		if len(rest) != 2 {
			return 1, common.NewConfigError("install expects <src> <path>, got %d args", len(rest))
		}
		src, installPath := rest[0], rest[1]
		if err := rules.Install(eng, cross, src, installPath, crawlableDirs, repoRoot); err != nil {
			return 1, err
		}
		return 0, nil

	case "run":
		if len(rest) == 0 {
			return 1, common.NewConfigError("run expects <src> [args...]")
		}
		src, runArgs := rest[0], rest[1:]
		got, err := eng.Invoke(rules.NewExecutableRule(cross, src, crawlableDirs, repoRoot))
		if err != nil {
			return 1, err
		}
		return runExecutable(got.(string), runArgs)

	case "gasnet":
		got, err := eng.Invoke(gasnet.NewGasnetRule(cross))
		if err != nil {
			return 1, err
		}
		printLibset(got.(libset.Set))
		return 0, nil

	case "gasnet_conduit":
		conduit, err := eng.Invoke(conduitRule(cross))
		if err != nil {
			return 1, err
		}
		fmt.Println(conduit.(string))
		return 0, nil

	case "requires_gasnet":
		src, err := requireOneArg(ruleName, rest)
		if err != nil {
			return 1, err
		}
		got, err := eng.Invoke(rules.NewRequiresGasnetRule(src))
		if err != nil {
			return 1, err
		}
		fmt.Println(got.(bool))
		return 0, nil

	case "requires_upcxx_backend":
		src, err := requireOneArg(ruleName, rest)
		if err != nil {
			return 1, err
		}
		got, err := eng.Invoke(rules.NewRequiresUpcxxBackendRule(src))
		if err != nil {
			return 1, err
		}
		fmt.Println(got.(bool))
		return 0, nil

	default:
		return 1, common.NewConfigError("unknown rule %q", ruleName)
	}
}

func requireOneArg(ruleName string, rest []string) (string, error) {
	if len(rest) != 1 {
		return "", common.NewConfigError("%s expects exactly one <src> argument, got %d", ruleName, len(rest))
	}
	return rest[0], nil
}

func resolveAndPrintCompiler(eng *engine.Engine, cross string, isC bool) (int, error) {
	got, err := eng.Invoke(compilerRule(cross, isC))
	if err != nil {
		return 1, err
	}
	fmt.Println(got.(string))
	return 0, nil
}

// compilerRule wraps toolchain.ResolveCxx/ResolveCc as a transient rule
// so the standalone `cxx`/`cc` CLI forms go through the same env-reads-
// as-facts discipline every other rule body observes (spec §9 Design
// Note "Global environment reads must be wrapped").
func compilerRule(cross string, isC bool) *engine.Rule {
	name := "cxx"
	if isC {
		name = "cc"
	}
	return &engine.Rule{
		Name: name,
		Args: []string{cross},
		Run: func(ctx *engine.Context) (any, error) {
			if isC {
				return toolchain.ResolveCc(ctx, cross)
			}
			return toolchain.ResolveCxx(ctx, cross)
		},
	}
}

func conduitRule(cross string) *engine.Rule {
	return &engine.Rule{
		Name: "gasnet_conduit",
		Args: []string{cross},
		Run: func(ctx *engine.Context) (any, error) {
			return gasnet.Conduit(ctx), nil
		},
	}
}

func printLibset(libs libset.Set) {
	for name, rec := range libs {
		fmt.Printf("%s: %s\n", name, rec.String())
	}
}

// runExecutable execs exe with runArgs, inheriting stdio, and returns
// its exit code verbatim (spec §6 "run <src> [args…]: build exe <src>
// and exec it").
func runExecutable(exe string, runArgs []string) (int, error) {
	cmd := exec.Command(exe, runArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 1, err
	}
	return 0, nil
}

// printRuleError renders the error taxonomy (spec §7) in the teacher's
// terse single-line style, without a stack trace.
func printRuleError(err error) {
	switch e := err.(type) {
	case *common.ConfigError:
		fmt.Fprintln(os.Stderr, "nobs: configuration error:", e.Error())
	case *common.DependencyConflictError:
		fmt.Fprintln(os.Stderr, "nobs: dependency conflict:", e.Error())
	case *common.SubprocessError:
		fmt.Fprintln(os.Stderr, "nobs: subprocess failed:", e.Error())
	case *common.ClobberRefusedError:
		fmt.Fprintln(os.Stderr, "nobs:", e.Error())
	default:
		fmt.Fprintln(os.Stderr, "nobs:", err.Error())
	}
}
