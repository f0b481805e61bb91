package criteria

// KeyProperty is one (property name, value) pair of a key.
type KeyProperty struct {
	Name  string
	Value any
}

// KeySource yields the ordered properties of a primary key.
type KeySource interface {
	KeyProperties() []KeyProperty
}

// RelationshipSource yields the ordered related-side properties of a
// relationship, each carrying the owner's value.
type RelationshipSource interface {
	RelationshipProperties() []KeyProperty
}

// FromPrimaryKey builds the criteria identifying one object by its key:
// an Equals leaf per key property joined with AND. A single-property key
// yields a bare leaf; an empty key yields nil.
func FromPrimaryKey(key KeySource) *Node {
	if key == nil {
		return nil
	}
	return conjunction(key.KeyProperties())
}

// FromRelationship builds the criteria selecting the related objects of a
// relationship, the same way FromPrimaryKey does for keys.
func FromRelationship(rel RelationshipSource) *Node {
	if rel == nil {
		return nil
	}
	return conjunction(rel.RelationshipProperties())
}

func conjunction(props []KeyProperty) *Node {
	var result *Node
	for _, p := range props {
		result = Merge(result, Leaf(p.Name, Equals, p.Value))
	}
	return result
}
