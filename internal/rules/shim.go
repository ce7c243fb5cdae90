package rules

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/upcxx-project/nobs/internal/engine"
)

// shimLinkName is the single entry every compile sees via -I<shim>, so
// project headers resolve as `#include <upcxx/foo.hpp>` (spec §6
// "Include shim").
const shimLinkName = "upcxx"

// NewIncludeShimRule builds the memoized `include_paths_tree` rule: a
// directory containing one symlink, shimLinkName -> repoRoot/src,
// shared by every compile in the build (ported from nobsrule.py's
// include_paths_tree, which every comp_lang_pp invocation - not just
// library's final archiving step - depends on).
func NewIncludeShimRule(repoRoot string) *engine.Rule {
	r := &engine.Rule{Name: "include_paths_tree", Args: []string{repoRoot}, Memoized: true}

	srcDir := filepath.Join(repoRoot, "src")

	r.Probe = func(ctx *engine.Context) (string, error) {
		ctx.DependFact("srcdir", srcDir)
		return ctx.Digest(), nil
	}

	r.Execute = func(ctx *engine.Context) (string, error) {
		dir := ctx.MkPath("shim", "")
		if err := os.RemoveAll(dir); err != nil {
			return "", err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
		if err := os.Symlink(srcDir, filepath.Join(dir, shimLinkName)); err != nil {
			return "", err
		}
		payload, err := json.Marshal(dir)
		if err != nil {
			return "", err
		}
		artifact := ctx.MkPath("shim-path", ".json")
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
		var dir string
		if err := json.Unmarshal(data, &dir); err != nil {
			return nil, err
		}
		return dir, nil
	}

	return r
}
