package gasnet

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/upcxx-project/nobs/internal/engine"
)

// NewSourceRule builds the memoized `gasnet_source` rule: download and
// extract a GASNet tarball, or read TOP_SRCDIR out of an existing
// build's Makefile (nobsrule.py `gasnet_source`). kind/value come from
// ClassifyUser.
//
// Archive extraction has no third-party counterpart anywhere in the
// retrieved example pack (see DESIGN.md); archive/tar + compress/gzip
// are the standard library's own answer to "unpack a .tar.gz", so this
// is the one place in the domain stack that falls back to it.
func NewSourceRule(kind UserKind, value string) *engine.Rule {
	r := &engine.Rule{Name: "gasnet_source", Args: []string{string(kind), value}, Memoized: true}

	r.Probe = func(ctx *engine.Context) (string, error) {
		ctx.DependFact("kind", kind)
		ctx.DependFact("value", value)
		if kind == KindTarball {
			if err := ctx.DependFiles(value); err != nil {
				return "", err
			}
		}
		if kind == KindBuild {
			ctx.DependFiles(filepath.Join(value, "Makefile"))
		}
		return ctx.Digest(), nil
	}

	r.Execute = func(ctx *engine.Context) (string, error) {
		var sourceDir string
		switch kind {
		case KindSource:
			sourceDir = value
		case KindBuild:
			makefile := filepath.Join(value, "Makefile")
			dir, err := ExtractMakefileVar(ctx, makefile, "TOP_SRCDIR")
			if err != nil {
				return "", err
			}
			sourceDir = dir
		case KindTarball, KindTarballURL:
			tgz := value
			if kind == KindTarballURL {
				downloaded := ctx.MkTemp()
				if err := downloadFile(value, downloaded); err != nil {
					return "", err
				}
				tgz = downloaded
			}
			untarDir := ctx.MkPath("untar", "")
			if err := os.MkdirAll(untarDir, 0755); err != nil {
				return "", err
			}
			topLevel, err := extractTarGz(tgz, untarDir)
			if err != nil {
				return "", err
			}
			sourceDir = filepath.Join(untarDir, topLevel)
		default:
			return "", fmt.Errorf("gasnet_source: unexpected kind %q", kind)
		}

		payload, err := json.Marshal(sourceDir)
		if err != nil {
			return "", err
		}
		artifact := ctx.MkPath("source_dir", ".json")
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
		var sourceDir string
		if err := json.Unmarshal(data, &sourceDir); err != nil {
			return nil, err
		}
		return sourceDir, nil
	}

	return r
}

func downloadFile(url, dest string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: HTTP %d", url, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

// extractTarGz extracts a .tar.gz into dir and returns the name of the
// archive's top-level entry, the way nobsrule.py's gasnet_source picks
// `f.members[0].name` as the extracted source directory.
func extractTarGz(archivePath, dir string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	topLevel := ""
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		name := filepath.Clean(hdr.Name)
		if topLevel == "" {
			topLevel = strings.SplitN(name, string(filepath.Separator), 2)[0]
		}
		target := filepath.Join(dir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return "", err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return "", err
			}
			out.Close()
		}
	}
	return topLevel, nil
}
