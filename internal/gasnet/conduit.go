package gasnet

import (
	"strings"

	"github.com/upcxx-project/nobs/internal/engine"
)

// Conduit resolves which GASNet conduit to build/use (nobsrule.py
// `gasnet_conduit`): GASNET_CONDUIT overrides, otherwise "aries" under
// a Cray Aries cross-compile and "smp" everywhere else.
func Conduit(ctx *engine.Context) string {
	cross := ctx.Env("CROSS", "")
	defaultConduit := "smp"
	if strings.HasPrefix(cross, "cray-aries-") {
		defaultConduit = "aries"
	}
	return ctx.Env("GASNET_CONDUIT", defaultConduit)
}

// Syncmode resolves the GASNet threading sync-mode (nobsrule.py
// `gasnet_syncmode`). Always "seq" for now — nobsrule.py notes this
// should eventually be derived from the chosen UPC++ backend.
func Syncmode(ctx *engine.Context) string {
	return "seq"
}
