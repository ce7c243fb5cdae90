package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrawlableDirsContains(t *testing.T) {
	d := NewCrawlableDirs("/repo")
	assert.True(t, d.Contains("/repo/src/foo.hpp"))
	assert.True(t, d.Contains("/repo/test/bar.hpp"))
	assert.False(t, d.Contains("/usr/include/stdio.h"))
	assert.False(t, d.Contains("/repo/third_party/x.hpp"))
}

func TestSiblingCandidates(t *testing.T) {
	cands := SiblingCandidates("/repo/src/foo.hpp")
	assert.Contains(t, cands, "/repo/src/foo.cpp")
	assert.Contains(t, cands, "/repo/src/foo.c")
	assert.Len(t, cands, len(sourceExtensions))
}

func TestExtractHeadersFromMOutput(t *testing.T) {
	out := "main.o: main.cpp \\\n /repo/src/foo.hpp \\\n /usr/include/stdio.h\n"
	headers := extractHeadersFromMOutput(out)
	assert.Contains(t, headers, "/repo/src/foo.hpp")
	assert.Contains(t, headers, "/usr/include/stdio.h")
	assert.NotContains(t, headers, "main.cpp")
}
