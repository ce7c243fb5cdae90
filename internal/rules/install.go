package rules

import (
	"fmt"

	"github.com/upcxx-project/nobs/internal/crawler"
	"github.com/upcxx-project/nobs/internal/engine"
	"github.com/upcxx-project/nobs/internal/install"
	"github.com/upcxx-project/nobs/internal/libset"
)

// Install implements the top-level `install(entry, path)` operation of
// spec §4.6: build library(entry) through eng, then write it into
// installPath's bin/include/lib layout (ported from nobsrule.py's
// `install`).
func Install(eng *engine.Engine, cross, entry, installPath string, crawlableDirs *crawler.CrawlableDirs, repoRoot string) error {
	libAny, err := eng.Invoke(NewLibraryRule(cross, entry, crawlableDirs, repoRoot))
	if err != nil {
		return err
	}
	libs := libAny.(libset.Set)

	name, err := primaryName(libs)
	if err != nil {
		return err
	}
	return install.Libset(installPath, name, libs)
}

// primaryName picks the library-set's sole primary entry, the name
// install(entry, path) uses for the generated "<name>-meta" script
// (nobsrule.py's `install` asserts exactly one primary library).
func primaryName(libs libset.Set) (string, error) {
	var name string
	found := 0
	for k, v := range libs {
		if v.Primary {
			name = k
			found++
		}
	}
	if found != 1 {
		return "", fmt.Errorf("install: expected exactly one primary library, found %d", found)
	}
	return name, nil
}
