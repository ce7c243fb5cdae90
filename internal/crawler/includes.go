package crawler

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/upcxx-project/nobs/internal/engine"
)

// NewIncludesRule builds the memoized `includes(src)` rule of spec §4.5
// step 1 / §4.6 ("compile(src): depends on ... every header in
// includes(src)"). cxxName and ppArgs are the resolved compiler and the
// preprocessor flags (library-set ppflags + language flags) the real
// compile will use, so -M sees an identical preprocessor configuration.
//
// Grounded on nocc's CollectDependentIncludesByCxxM/
// extractIncludesFromCxxMStdout (internal/client/includes-collector.go):
// invoke the compiler's dependency-generation mode and parse its
// Makefile-style output.
func NewIncludesRule(cxxName, src string, ppArgs []string) *engine.Rule {
	r := &engine.Rule{Name: "includes", Args: []string{src}, Memoized: true}

	r.Probe = func(ctx *engine.Context) (string, error) {
		if err := ctx.DependFiles(src); err != nil {
			return "", err
		}
		ctx.DependFact("cxx", cxxName)
		ctx.DependFact("ppArgs", ppArgs)
		return ctx.Digest(), nil
	}

	r.Execute = func(ctx *engine.Context) (string, error) {
		cmd := make([]string, 0, len(ppArgs)+4)
		cmd = append(cmd, ppArgs...)
		cmd = append(cmd, "-o", "/dev/stdout", "-MM", src)

		res, err := ctx.RunProcess(cxxName, cmd, "")
		if err != nil {
			return "", err
		}

		headers := extractHeadersFromMOutput(res.Stdout)
		payload, err := json.Marshal(headers)
		if err != nil {
			return "", err
		}
		artifact := ctx.MkPath("headers", ".json")
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
		var headers []string
		if err := json.Unmarshal(data, &headers); err != nil {
			return nil, err
		}
		return headers, nil
	}

	return r
}

// extractHeadersFromMOutput parses a compiler's `-M`/`-MM` dependency-list
// output (ported from nocc's extractIncludesFromCxxMStdout): line
// continuations ("\") and the rule's own targets (the source file and
// its .o) are skipped, every remaining token is the absolute path of a
// header the source transitively includes.
func extractHeadersFromMOutput(stdout string) []string {
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Split(bufio.ScanWords)

	var headers []string
	for scanner.Scan() {
		tok := scanner.Text()
		if tok == "\\" || IsSourceExt(filepath.Ext(tok)) || strings.HasSuffix(tok, ".o") || strings.HasSuffix(tok, ".o:") {
			continue
		}
		abs, err := filepath.Abs(tok)
		if err != nil {
			continue
		}
		headers = append(headers, abs)
	}
	return headers
}
