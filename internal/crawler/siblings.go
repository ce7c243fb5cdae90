package crawler

import (
	"path/filepath"
	"strings"
)

// sourceExtensions are the recognized C/C++ entry-source extensions
// (spec §3 "Source file set").
var sourceExtensions = []string{".c", ".cpp", ".cxx", ".c++", ".C", ".C++"}

// IsSourceExt reports whether ext is one of the known C/C++ source
// extensions.
func IsSourceExt(ext string) bool {
	for _, e := range sourceExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// SiblingCandidates returns the sibling source paths to probe for a
// header at headerPath (spec §4.5 step 2: "form its base ... then probe
// for sibling source files by appending each known C/C++ extension").
func SiblingCandidates(headerPath string) []string {
	ext := filepath.Ext(headerPath)
	base := strings.TrimSuffix(headerPath, ext)
	out := make([]string, len(sourceExtensions))
	for i, e := range sourceExtensions {
		out[i] = base + e
	}
	return out
}
