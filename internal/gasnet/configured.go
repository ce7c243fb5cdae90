package gasnet

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/upcxx-project/nobs/internal/common"
	"github.com/upcxx-project/nobs/internal/engine"
	"github.com/upcxx-project/nobs/internal/toolchain"
)

// gasnetConfigureDisabledConduits disables non-EX conduits so configure
// doesn't misfire on hardware that happens to be detected but isn't
// wanted (nobsrule.py `gasnet_configured`, misc_conf_opts).
var gasnetConfigureDisabledConduits = []string{
	"--disable-psm", "--disable-mxm", "--disable-portals4", "--disable-ofi",
}

// NewConfiguredRule builds the memoized `gasnet_configured` rule: a
// "build" kind GASNET directory is already configured and used as-is;
// everything else gets GASNet's `configure` script invoked fresh into a
// new build directory, seeded from the current environment plus the
// cross-config delta.
func NewConfiguredRule(cross string) *engine.Rule {
	r := &engine.Rule{Name: "gasnet_configured", Args: []string{cross}, Memoized: true}

	r.Probe = func(ctx *engine.Context) (string, error) {
		kind, value, err := ClassifyUser(ctx)
		if err != nil {
			return "", err
		}
		if kind == KindBuild {
			return ctx.Digest(), nil
		}

		cfgAny, err := ctx.Invoke(NewConfigRule(cross))
		if err != nil {
			return "", err
		}
		cfg := cfgAny.(CrossConfig)

		ccName, err := toolchain.ResolveCc(ctx, cfg.Env["CC"])
		if err != nil {
			return "", err
		}
		cxxName, err := toolchain.ResolveCxx(ctx, cfg.Env["CXX"])
		if err != nil {
			return "", err
		}
		ctx.DependFact("CC-version", compilerVersion(ctx, ccName))
		ctx.DependFact("CXX-version", compilerVersion(ctx, cxxName))

		if _, err := ctx.Invoke(NewSourceRule(kind, value)); err != nil {
			return "", err
		}
		optlev, dbgsym := toolchain.EnvOptLevAndDebug(ctx)
		ctx.DependFact("optlev", optlev)
		ctx.DependFact("dbgsym", dbgsym)
		return ctx.Digest(), nil
	}

	r.Execute = func(ctx *engine.Context) (string, error) {
		kind, value, err := ClassifyUser(ctx)
		if err != nil {
			return "", err
		}
		if kind == KindBuild {
			return writeBuildDirArtifact(ctx, value)
		}

		cfgAny, err := ctx.Invoke(NewConfigRule(cross))
		if err != nil {
			return "", err
		}
		cfg := cfgAny.(CrossConfig)

		ccName, err := toolchain.ResolveCc(ctx, cfg.Env["CC"])
		if err != nil {
			return "", err
		}
		cxxName, err := toolchain.ResolveCxx(ctx, cfg.Env["CXX"])
		if err != nil {
			return "", err
		}

		srcAny, err := ctx.Invoke(NewSourceRule(kind, value))
		if err != nil {
			return "", err
		}
		sourceDir := srcAny.(string)

		optlev, dbgsym := toolchain.EnvOptLevAndDebug(ctx)

		buildDir := ctx.MkPath("build", "")
		if err := os.MkdirAll(buildDir, 0755); err != nil {
			return "", err
		}

		envMap := map[string]string{}
		for _, kv := range os.Environ() {
			if i := strings.IndexByte(kv, '='); i >= 0 {
				envMap[kv[:i]] = kv[i+1:]
			}
		}
		for k, v := range cfg.Env {
			envMap[k] = v
		}
		if _, ok := envMap["CC"]; !ok {
			envMap["CC"] = ccName + " -O" + optlev
		}
		if _, ok := envMap["CXX"]; !ok {
			envMap["CXX"] = cxxName + " -O" + optlev
		}
		env := make([]string, 0, len(envMap))
		for k, v := range envMap {
			env = append(env, k+"="+v)
		}

		configArgs := append([]string{}, cfg.Argv...)
		if dbgsym == "1" {
			configArgs = append(configArgs, "--enable-debug")
		}
		configArgs = append(configArgs, gasnetConfigureDisabledConduits...)

		if ctx.Logger() != nil {
			ctx.Logger().Info(1, "Configuring GASNet...")
		}
		if _, err := ctx.RunProcessEnv(filepath.Join(sourceDir, "configure"), configArgs, buildDir, env); err != nil {
			return "", common.NewConfigError("gasnet configure failed: %v", err)
		}

		return writeBuildDirArtifact(ctx, buildDir)
	}

	r.Decode = decodeBuildDirArtifact
	return r
}

func compilerVersion(ctx *engine.Context, cmd string) string {
	res, err := ctx.RunProcess(cmd, []string{"--version"}, "")
	if err != nil {
		return ""
	}
	return res.Stdout
}

func writeBuildDirArtifact(ctx *engine.Context, dir string) (string, error) {
	payload, err := json.Marshal(dir)
	if err != nil {
		return "", err
	}
	artifact := ctx.MkPath("build_dir", ".json")
	if err := os.WriteFile(artifact, payload, 0644); err != nil {
		return "", err
	}
	return artifact, nil
}

func decodeBuildDirArtifact(artifact string) (any, error) {
	data, err := os.ReadFile(artifact)
	if err != nil {
		return nil, err
	}
	var dir string
	if err := json.Unmarshal(data, &dir); err != nil {
		return nil, err
	}
	return dir, nil
}
