// Package payload shapes outgoing JSON bodies.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Prune removes nil, "" and false values from every map in the tree, then
// drops maps left empty. Slice elements are pruned in place but never
// removed, and numbers (including zero) are kept.
func Prune(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			val = Prune(val)
			if isEmpty(val) {
				delete(t, k)
				continue
			}
			t[k] = val
		}
		return t
	case []any:
		for i := range t {
			t[i] = Prune(t[i])
		}
		return t
	default:
		return v
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// Encode marshals v, prunes the resulting tree and marshals it again.
func Encode(v any) ([]byte, error) {
	tree, err := Tree(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Prune(tree))
}

// Tree converts v into its generic JSON form. Numbers stay json.Number so
// coordinates keep their precision.
func Tree(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return tree, nil
}
