package rules

import (
	"github.com/upcxx-project/nobs/internal/engine"
	"github.com/upcxx-project/nobs/internal/gasnet"
	"github.com/upcxx-project/nobs/internal/libset"
)

// NewLibrariesRule builds the transient `libraries(src)` rule: the
// library-set src needs to compile and eventually link, gated by the
// requires_gasnet/requires_upcxx_backend hooks (spec §4.5 step 4,
// ported from nobsrule.py's `libraries`).
func NewLibrariesRule(cross, src string) *engine.Rule {
	return &engine.Rule{
		Name: "libraries",
		Args: []string{cross, src},
		Run: func(ctx *engine.Context) (any, error) {
			needsGasnet, err := ctx.Invoke(NewRequiresGasnetRule(src))
			if err != nil {
				return nil, err
			}
			needsBackend, err := ctx.Invoke(NewRequiresUpcxxBackendRule(src))
			if err != nil {
				return nil, err
			}

			sets := []libset.Set{}
			if needsGasnet.(bool) {
				gasnetAny, err := ctx.Invoke(gasnet.NewGasnetRule(cross))
				if err != nil {
					return nil, err
				}
				sets = append(sets, gasnetAny.(libset.Set))
			}
			if needsBackend.(bool) {
				backendAny, err := ctx.Invoke(gasnet.NewUpcxxBackendRule(cross))
				if err != nil {
					return nil, err
				}
				sets = append(sets, backendAny.(libset.Set))
			}

			return libset.Merge(sets...)
		},
	}
}
