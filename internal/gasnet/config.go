package gasnet

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/upcxx-project/nobs/internal/common"
	"github.com/upcxx-project/nobs/internal/engine"
)

// CrossConfig is the (argv, env) pair a site's cross-configure script
// hands to GASNet's real configure (nobsrule.py `gasnet_config`).
type CrossConfig struct {
	Argv []string
	Env  map[string]string
}

var crossEnvVarsToTouch = map[string][]string{
	"cray-aries-slurm": {"SRUN"},
	"bgq":              {"USE_GCC", "USE_CLANG"},
}

var crossConfigKeepEnvVars = map[string]bool{
	"CC": true, "CXX": true, "HOST_CC": true, "HOST_CXX": true,
	"MPI_CC": true, "MPI_CFLAGS": true, "MPI_LIBS": true, "MPIRUN_CMD": true,
}

// NewConfigRule builds the memoized `gasnet_config` rule: for a
// non-empty CROSS value, replay the site's `cross-configure-<cross>`
// script through a shim `configure` that reports back the argv/env it
// was invoked with. Any CROSS value with a matching script under
// other/contrib is accepted; the extra environment variables recorded in
// Probe are listed only for cray-aries-slurm and bgq. An empty CROSS
// yields an empty config.
func NewConfigRule(cross string) *engine.Rule {
	r := &engine.Rule{Name: "gasnet_config", Args: []string{cross}, Memoized: true}

	r.Probe = func(ctx *engine.Context) (string, error) {
		ctx.DependFact("cross", cross)
		kind, _, err := ClassifyUser(ctx)
		if err != nil {
			return "", err
		}
		if cross != "" && kind == KindInstall {
			return "", common.NewConfigError(
				"it is invalid to use both cross-compile (CROSS) and an externally installed gasnet (GASNET)")
		}
		for _, name := range crossEnvVarsToTouch[cross] {
			ctx.Env(name, "")
		}
		return ctx.Digest(), nil
	}

	r.Execute = func(ctx *engine.Context) (string, error) {
		if cross == "" {
			return writeConfigArtifact(ctx, CrossConfig{})
		}

		kind, value, err := ClassifyUser(ctx)
		if err != nil {
			return "", err
		}
		srcAny, err := ctx.Invoke(NewSourceRule(kind, value))
		if err != nil {
			return "", err
		}
		gasnetSrc := srcAny.(string)

		crosslong := "cross-configure-" + cross
		crosspath := filepath.Join(gasnetSrc, "other", "contrib", crosslong)
		if _, err := os.Stat(crosspath); err != nil {
			return "", common.NewConfigError("invalid GASNet cross-compile script name (%s)", cross)
		}

		tmpDir := ctx.MkTemp()
		if err := os.MkdirAll(tmpDir, 0755); err != nil {
			return "", err
		}
		entries, err := os.ReadDir(gasnetSrc)
		if err != nil {
			return "", err
		}
		for _, e := range entries {
			if e.Name() == "configure" {
				continue
			}
			if err := os.Symlink(filepath.Join(gasnetSrc, e.Name()), filepath.Join(tmpDir, e.Name())); err != nil {
				return "", err
			}
		}
		if err := os.Symlink(crosspath, filepath.Join(tmpDir, crosslong)); err != nil {
			return "", err
		}

		argvFile := filepath.Join(tmpDir, ".nobs-shim-argv")
		envFile := filepath.Join(tmpDir, ".nobs-shim-env")
		shim := "#!/bin/sh\n" +
			"printf '%s\\0' \"$@\" > " + shQuote(argvFile) + "\n" +
			"env -0 > " + shQuote(envFile) + "\n"
		if err := os.WriteFile(filepath.Join(tmpDir, "configure"), []byte(shim), 0755); err != nil {
			return "", err
		}

		if _, err := ctx.RunProcess(filepath.Join(tmpDir, crosslong), nil, tmpDir); err != nil {
			return "", common.NewConfigError("GASNet cross-compile script (%s) failed: %v", cross, err)
		}

		argv, err := readNulList(argvFile)
		if err != nil {
			return "", err
		}
		if len(argv) > 0 {
			argv = argv[1:] // drop "configure" itself, per nobsrule.py
		}
		rawEnv, err := readNulEnv(envFile)
		if err != nil {
			return "", err
		}

		currentMap := map[string]string{}
		for _, kv := range os.Environ() {
			if i := strings.IndexByte(kv, '='); i >= 0 {
				currentMap[kv[:i]] = kv[i+1:]
			}
		}

		delta := map[string]string{}
		for k, v := range rawEnv {
			switch {
			case crossConfigKeepEnvVars[k]:
				delta[k] = v
			case strings.HasPrefix(k, "CROSS_"):
				continue
			case currentMap[k] == v:
				continue
			default:
				delta[k] = v
			}
		}

		return writeConfigArtifact(ctx, CrossConfig{Argv: argv, Env: delta})
	}

	r.Decode = decodeConfigArtifact
	return r
}

func writeConfigArtifact(ctx *engine.Context, cfg CrossConfig) (string, error) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	artifact := ctx.MkPath("config", ".json")
	if err := os.WriteFile(artifact, payload, 0644); err != nil {
		return "", err
	}
	return artifact, nil
}

func decodeConfigArtifact(artifact string) (any, error) {
	data, err := os.ReadFile(artifact)
	if err != nil {
		return nil, err
	}
	var cfg CrossConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readNulList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSuffix(string(data), "\x00")
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\x00"), nil
}

func readNulEnv(path string) (map[string]string, error) {
	parts, err := readNulList(path)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, kv := range parts {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out, nil
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
