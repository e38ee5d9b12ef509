package display

import (
	"encoding/json"

	"github.com/teranos/lineage/errors"
)

// MarshalJSON renders v as indented JSON, or compact JSON when compact is set.
func MarshalJSON(v any, compact bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if compact {
		data, err = json.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal JSON")
	}
	return data, nil
}
