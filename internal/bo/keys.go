package bo

import "github.com/roach88/criteria/internal/criteria"

// PrimaryKey is an ordered set of key properties read from an object.
type PrimaryKey struct {
	Object     *Object
	Properties []string
}

var _ criteria.KeySource = PrimaryKey{}

// NewPrimaryKey creates a key over the named properties of obj, in order.
func NewPrimaryKey(obj *Object, properties ...string) PrimaryKey {
	return PrimaryKey{Object: obj, Properties: properties}
}

// KeyProperties implements criteria.KeySource using current values.
// Properties the object does not define yield a nil value.
func (k PrimaryKey) KeyProperties() []criteria.KeyProperty {
	props := make([]criteria.KeyProperty, 0, len(k.Properties))
	for _, name := range k.Properties {
		v, _ := k.Object.Get(name)
		props = append(props, criteria.KeyProperty{Name: name, Value: v})
	}
	return props
}

// Criteria returns the criteria selecting the key's object.
func (k PrimaryKey) Criteria() *criteria.Node {
	return criteria.FromPrimaryKey(k)
}

// RelationshipKey links an owner property to the related object's property.
type RelationshipKey struct {
	OwnerProperty   string
	RelatedProperty string
}

// Relationship describes how an owner object reaches its related objects:
// each related property must equal the owner's corresponding value.
type Relationship struct {
	Name  string
	Owner *Object
	Keys  []RelationshipKey
}

var _ criteria.RelationshipSource = Relationship{}

// RelationshipProperties implements criteria.RelationshipSource.
func (r Relationship) RelationshipProperties() []criteria.KeyProperty {
	props := make([]criteria.KeyProperty, 0, len(r.Keys))
	for _, k := range r.Keys {
		v, _ := r.Owner.Get(k.OwnerProperty)
		props = append(props, criteria.KeyProperty{Name: k.RelatedProperty, Value: v})
	}
	return props
}

// Criteria returns the criteria selecting the related objects.
func (r Relationship) Criteria() *criteria.Node {
	return criteria.FromRelationship(r)
}
