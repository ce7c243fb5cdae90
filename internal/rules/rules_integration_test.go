package rules

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcxx-project/nobs/internal/crawler"
	"github.com/upcxx-project/nobs/internal/engine"
	"github.com/upcxx-project/nobs/internal/libset"
)

// writeTwoFileProject lays out a minimal crawlable closure: src/a.cpp
// includes src/b.hpp, and src/b.cpp provides the sibling definition
// (spec §8 scenario "Entry src/a.cpp includes src/b.hpp; src/b.cpp
// exists").
func writeTwoFileProject(t *testing.T) (repoRoot, entry string) {
	t.Helper()
	repoRoot = t.TempDir()
	srcDir := filepath.Join(repoRoot, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "b.hpp"), []byte("int foo();\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "b.cpp"), []byte("#include \"b.hpp\"\nint foo() { return 0; }\n"), 0644))
	entry = filepath.Join(srcDir, "a.cpp")
	require.NoError(t, os.WriteFile(entry, []byte("#include \"b.hpp\"\nint main() { return foo(); }\n"), 0644))
	return repoRoot, entry
}

type crawlResult struct {
	Objs []string
	Libs libset.Set
}

func newCrawlRule(cross, entry string, crawlableDirs *crawler.CrawlableDirs, repoRoot string) *engine.Rule {
	return &engine.Rule{
		Name: "test_crawl",
		Args: []string{cross, entry},
		Run: func(ctx *engine.Context) (any, error) {
			objs, libs, err := Crawl(ctx, cross, entry, crawlableDirs, repoRoot)
			if err != nil {
				return nil, err
			}
			return crawlResult{Objs: objs, Libs: libs}, nil
		},
	}
}

func TestCrawlCompilesEntryAndDiscoveredSibling(t *testing.T) {
	repoRoot, entry := writeTwoFileProject(t)
	crawlableDirs := crawler.NewCrawlableDirs(repoRoot)

	eng := newTestEngine(t)
	got, err := eng.Invoke(newCrawlRule("", entry, crawlableDirs, repoRoot))
	require.NoError(t, err)

	result := got.(crawlResult)
	assert.Len(t, result.Objs, 2, "objs: %v", result.Objs)
	for _, obj := range result.Objs {
		assert.FileExists(t, obj)
	}
}

func TestCrawlSkipsMissingSibling(t *testing.T) {
	repoRoot := t.TempDir()
	srcDir := filepath.Join(repoRoot, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "b.hpp"), []byte("int foo();\n"), 0644))
	entry := filepath.Join(srcDir, "a.cpp")
	require.NoError(t, os.WriteFile(entry, []byte("#include \"b.hpp\"\nint foo();\nint main() { return foo(); }\n"), 0644))

	crawlableDirs := crawler.NewCrawlableDirs(repoRoot)
	eng := newTestEngine(t)
	got, err := eng.Invoke(newCrawlRule("", entry, crawlableDirs, repoRoot))
	require.NoError(t, err)

	result := got.(crawlResult)
	assert.Len(t, result.Objs, 1, "only the entry should compile when b.cpp doesn't exist")
}

func TestExecutableProducesRunnableBinary(t *testing.T) {
	repoRoot, entry := writeTwoFileProject(t)
	crawlableDirs := crawler.NewCrawlableDirs(repoRoot)

	eng := newTestEngine(t)
	got, err := eng.Invoke(NewExecutableRule("", entry, crawlableDirs, repoRoot))
	require.NoError(t, err)

	exe := got.(string)
	assert.FileExists(t, exe)

	cmd := exec.Command(exe)
	require.NoError(t, cmd.Run())
}

func TestLibraryArchivesClosureAndExposesPublicHeaders(t *testing.T) {
	repoRoot, entry := writeTwoFileProject(t)
	crawlableDirs := crawler.NewCrawlableDirs(repoRoot)

	eng := newTestEngine(t)
	got, err := eng.Invoke(NewLibraryRule("", entry, crawlableDirs, repoRoot))
	require.NoError(t, err)

	libs := got.(libset.Set)
	name, err := primaryName(libs)
	require.NoError(t, err)
	assert.Equal(t, "a", name)

	rec := libs[name]
	require.Len(t, rec.LibFiles, 1)
	assert.FileExists(t, rec.LibFiles[0])
	assert.Contains(t, rec.LibFiles[0], "liba.a")

	for _, h := range rec.IncFiles {
		assert.Contains(t, h, repoRoot)
	}
}

func TestInstallWritesLayoutFromEntry(t *testing.T) {
	repoRoot, entry := writeTwoFileProject(t)
	crawlableDirs := crawler.NewCrawlableDirs(repoRoot)
	installPath := t.TempDir()

	eng := newTestEngine(t)
	require.NoError(t, Install(eng, "", entry, installPath, crawlableDirs, repoRoot))

	assert.FileExists(t, filepath.Join(installPath, "lib", "liba.a"))
	assert.FileExists(t, filepath.Join(installPath, "bin", "a-meta"))
}
