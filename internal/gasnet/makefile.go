package gasnet

import (
	"fmt"
	"strings"

	"github.com/upcxx-project/nobs/internal/engine"
)

// ExtractMakefileVar implements the makefile-extraction protocol of
// spec §6: given a makefile fragment and a variable name, spawn `make`
// fed a stdin script that includes the fragment and echoes the
// variable via a recipe, capturing stdout. `-s` suppresses directory
// chatter so the captured value is exactly the variable's expansion
// (nobsrule.py `makefile_extract`).
func ExtractMakefileVar(ctx *engine.Context, makefile, varName string) (string, error) {
	script := fmt.Sprintf("include %s\ngimme:\n\t@echo $(%s)\n", makefile, varName)

	res, err := ctx.RunProcessStdin("make", []string{"-s", "-f", "-", "gimme"}, "", script)
	if err != nil {
		return "", fmt.Errorf("makefile %s: variable %s: %w", makefile, varName, err)
	}
	return strings.TrimSpace(res.Stdout), nil
}
