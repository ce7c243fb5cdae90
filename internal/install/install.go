// Package install implements the library-set installer of spec §4.8:
// copy headers and archives into a standard install_path/{include,lib,bin}
// layout and emit a "<name>-meta" query script, rolling back everything
// written if any step fails partway through. Ported from
// original_source/nobsrule.py's install_libset.
package install

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/upcxx-project/nobs/internal/common"
	"github.com/upcxx-project/nobs/internal/libset"
)

// Libset installs libs (the result of a `library(entry)` build) under
// installPath, using name as the primary library's metadata-script name.
// On any failure every path written so far is removed before the error
// is returned (nobsrule.py's undo log).
func Libset(installPath, name string, libs libset.Set) (err error) {
	var undo []string
	defer func() {
		if err != nil {
			for i := len(undo) - 1; i >= 0; i-- {
				os.RemoveAll(undo[i])
			}
		}
	}()

	var libFilesAll []string
	installed := make(libset.Set, len(libs))

	for xname, rec := range libs {
		var incFiles1 []string
		libFilesAll = append(libFilesAll, rec.LibFiles...)

		for _, f := range rec.IncFiles {
			dest, cerr := copyIncludeFile(installPath, rec.IncDirs, f, &undo)
			if cerr != nil {
				err = cerr
				return err
			}
			if dest != "" {
				incFiles1 = append(incFiles1, dest)
			}
		}

		rec1 := rec
		rec1.IncDirs = []string{filepath.Join(installPath, "include")}
		rec1.IncFiles = incFiles1
		if rec.LibFiles != nil {
			installedLibFiles := make([]string, len(rec.LibFiles))
			for i, f := range rec.LibFiles {
				installedLibFiles[i] = filepath.Join(installPath, "lib", filepath.Base(f))
			}
			rec1.LibFiles = installedLibFiles
		}
		installed[xname] = rec1
	}

	seenBase := map[string]bool{}
	for _, f := range libFilesAll {
		b := filepath.Base(f)
		if seenBase[b] {
			err = common.NewDependencyConflictError("duplicate library name in install set: %s", b)
			return err
		}
		seenBase[b] = true
	}

	for _, f := range libFilesAll {
		dest := filepath.Join(installPath, "lib", filepath.Base(f))
		if err = common.LinkOrCopy(f, dest, false); err != nil {
			return err
		}
		undo = append(undo, dest)
	}

	ldflags := libset.LDFlags(installed)
	libflags, lerr := libset.LibFlags(installed)
	if lerr != nil {
		err = lerr
		return err
	}

	meta := filepath.Join(installPath, "bin", name+"-meta")
	if err = common.MkdirForFile(meta); err != nil {
		return err
	}
	undo = append(undo, meta)

	script := fmt.Sprintf(
		"#!/bin/sh\nPPFLAGS=\"%s\"\nLDFLAGS=\"%s\"\nLIBFLAGS=\"%s\"\n[ \"$1\" != \"\" ] && eval echo '$'\"$1\"\n",
		strings.Join(libset.PPFlags(installed), " "),
		strings.Join(ldflags, " "),
		strings.Join(libflags, " "),
	)
	if err = os.WriteFile(meta, []byte(script), 0777); err != nil {
		return err
	}

	return nil
}

// copyIncludeFile copies f into installPath/include at its path relative
// to the first (innermost, scanned in reverse) incdir that doesn't
// require climbing above it, mirroring nobsrule.py's choice of "the most
// specific incdir that contains this file".
func copyIncludeFile(installPath string, incDirs []string, f string, undo *[]string) (string, error) {
	for i := len(incDirs) - 1; i >= 0; i-- {
		d := incDirs[i]
		rel, relErr := filepath.Rel(d, f)
		if relErr != nil || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
			continue
		}
		src := filepath.Join(d, rel)
		dest := filepath.Join(installPath, "include", rel)
		if err := common.MkdirForFile(dest); err != nil {
			return "", err
		}
		if err := common.LinkOrCopy(src, dest, false); err != nil {
			return "", err
		}
		*undo = append(*undo, dest)
		return dest, nil
	}
	return "", nil
}
