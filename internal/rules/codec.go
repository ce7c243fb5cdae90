package rules

import (
	"encoding/json"
	"os"

	"github.com/upcxx-project/nobs/internal/libset"
)

// marshalSet/decodeSetArtifact serialize a libset.Set to/from a memo
// store artifact for library(), the same way gasnet's rule
// constructors serialize their own Set results.
func marshalSet(s libset.Set) ([]byte, error) {
	return json.Marshal(s)
}

func decodeSetArtifact(artifact string) (any, error) {
	data, err := os.ReadFile(artifact)
	if err != nil {
		return nil, err
	}
	var s libset.Set
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}
