package submission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ParseJSON decodes a flat JSON object. Numbers and booleans are kept in
// their textual form; null members are dropped. Nested values are rejected.
func ParseJSON(data []byte) (Values, error) {
	var rawMap map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rawMap); err != nil {
		return nil, fmt.Errorf("submission: decode json: %w", err)
	}
	return flatten(rawMap)
}

// ParseYAML decodes a flat YAML mapping with the same rules as ParseJSON.
// Scalars keep their source text, so 0123 stays "0123" and 1e3 stays "1e3".
func ParseYAML(data []byte) (Values, error) {
	var rawMap map[string]yaml.Node
	if err := yaml.Unmarshal(data, &rawMap); err != nil {
		return nil, fmt.Errorf("submission: decode yaml: %w", err)
	}
	out := make(Values, len(rawMap))
	for k, n := range rawMap {
		node := &n
		if node.Kind == yaml.AliasNode && node.Alias != nil {
			node = node.Alias
		}
		if node.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("submission: %q must be a scalar (line %d)", k, node.Line)
		}
		if node.ShortTag() == "!!null" {
			continue
		}
		out[k] = node.Value
	}
	return out, nil
}

func flatten(in map[string]any) (Values, error) {
	out := make(Values, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case nil:
		case string:
			out[k] = t
		case bool:
			out[k] = strconv.FormatBool(t)
		case json.Number:
			out[k] = t.String()
		default:
			return nil, fmt.Errorf("submission: %q must be a scalar, got %T", k, v)
		}
	}
	return out, nil
}
