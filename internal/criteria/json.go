package criteria

import (
	"bytes"
	"encoding/json"
)

type jsonField struct {
	Source string `json:"source,omitempty"`
	Name   string `json:"name"`
}

type jsonNode struct {
	Field *jsonField `json:"field,omitempty"`
	Op    string     `json:"op"`
	Value any        `json:"value,omitempty"`
	Left  *Node      `json:"left,omitempty"`
	Right *Node      `json:"right,omitempty"`
}

// MarshalJSON renders the tree for diagnostics. Leaves become
// {"field":{...},"op":"=","value":...}; composites {"left":..,"op":"AND","right":..}.
// Values use their canonical text form so times and UUIDs stay readable.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.IsComposite() {
		return marshal(jsonNode{
			Op:    n.logical.String(),
			Left:  n.left,
			Right: n.right,
		})
	}
	out := jsonNode{
		Field: &jsonField{Source: n.field.Source, Name: n.field.Name},
		Op:    n.op.String(),
	}
	if v := n.Value(); !IsNull(v) {
		if items, ok := listItems(v); ok {
			texts := make([]string, len(items))
			for i, item := range items {
				texts[i] = FormatValue(item)
			}
			out.Value = texts
		} else {
			out.Value = FormatValue(v)
		}
	}
	return marshal(out)
}

// marshal encodes v without HTML escaping so operators like ">=" stay
// readable; json.Marshal callers still escape the result.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
