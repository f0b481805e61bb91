package bo

import "fmt"

// Spec is the serialized form of an object used by YAML/JSON fixtures.
//
// Persisted defaults to Current when omitted; keys present only in
// Persisted override the defaults.
type Spec struct {
	Name      string          `yaml:"name" json:"name"`
	Current   map[string]any  `yaml:"current" json:"current"`
	Persisted map[string]any  `yaml:"persisted,omitempty" json:"persisted,omitempty"`
	Children  map[string]Spec `yaml:"children,omitempty" json:"children,omitempty"`
}

// FromSpec builds an object (and its children) from a Spec.
func FromSpec(spec Spec) (*Object, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("object spec: name is required")
	}
	obj := New(spec.Name, spec.Current)
	for k, v := range spec.Persisted {
		obj.SetPersisted(k, v)
	}
	for source, childSpec := range spec.Children {
		if childSpec.Name == "" {
			childSpec.Name = spec.Name + "." + source
		}
		child, err := FromSpec(childSpec)
		if err != nil {
			return nil, fmt.Errorf("child %q: %w", source, err)
		}
		obj.AddChild(source, child)
	}
	return obj, nil
}
