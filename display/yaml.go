package display

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/teranos/lineage/errors"
)

// MarshalYAML renders v as block-style YAML with the same keys and field
// order as its JSON form.
func MarshalYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal value")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to convert JSON to YAML")
	}
	blockStyle(&doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, errors.Wrap(err, "failed to marshal YAML")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to marshal YAML")
	}
	return buf.Bytes(), nil
}

// blockStyle drops the flow and quoting styles the JSON parse left behind.
// The encoder re-quotes any string that would otherwise change type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
