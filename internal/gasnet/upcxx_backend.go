package gasnet

import (
	"fmt"

	"github.com/upcxx-project/nobs/internal/engine"
	"github.com/upcxx-project/nobs/internal/libset"
)

// NewUpcxxBackendRule builds the transient `upcxx_backend` pseudo-library
// rule: injects "-DUPCXX_BACKEND=<value>" and ropes in gasnet as a
// secondary dependency (nobsrule.py `upcxx_backend`). Not memoized —
// it's a thin merge over an already-memoized gasnet() result.
func NewUpcxxBackendRule(cross string) *engine.Rule {
	return &engine.Rule{
		Name: "upcxx_backend",
		Args: []string{cross},
		Run: func(ctx *engine.Context) (any, error) {
			backend := ctx.Env("UPCXX_BACKEND", "gasnet1_seq")

			gasnetAny, err := ctx.Invoke(NewGasnetRule(cross))
			if err != nil {
				return nil, err
			}
			gasnetSet := gasnetAny.(libset.Set)

			upcxxBackend := libset.Set{
				"upcxx-backend": libset.Record{
					Primary: true,
					PPFlags: []string{fmt.Sprintf("-DUPCXX_BACKEND=%s", backend)},
					DepLibs: []string{"gasnet"},
				},
			}

			return libset.Merge(upcxxBackend, libset.AsSecondary(gasnetSet))
		},
	}
}
