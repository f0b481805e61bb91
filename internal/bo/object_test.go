package bo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestObject_SetAndDirty(t *testing.T) {
	o := New("Person", map[string]any{"Surname": "Smith"})
	assert.False(t, o.IsDirty())

	o.Set("Surname", "Jones")
	assert.True(t, o.IsDirty())

	v, err := o.PersistedPropertyValue("", "Surname")
	require.NoError(t, err)
	assert.Equal(t, "Smith", v)

	o.MarkPersisted()
	assert.False(t, o.IsDirty())
	v, err = o.PersistedPropertyValue("", "Surname")
	require.NoError(t, err)
	assert.Equal(t, "Jones", v)
}

func TestObject_NewPropertyHasNoPersistedValue(t *testing.T) {
	o := New("Person", nil)
	o.Set("Nickname", "Smithy")

	v, err := o.PersistedPropertyValue("", "Nickname")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.True(t, o.IsDirty())
}

func TestObject_UnknownProperty(t *testing.T) {
	o := New("Person", map[string]any{"Surname": "Smith"})

	_, err := o.PropertyValue("", "Age")
	require.Error(t, err)
	var unknown *UnknownPropertyError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Age", unknown.Property)
	assert.Equal(t, `object "Person": unknown property Age`, err.Error())

	_, err = o.PropertyValue("Address", "City")
	require.Error(t, err)
	assert.Equal(t, `object "Person": unknown property Address.City`, err.Error())
}

func TestObject_Children(t *testing.T) {
	o := New("Person", nil)
	o.AddChild("Address", New("Address", map[string]any{"City": "Leeds"}))

	v, err := o.PropertyValue("Address", "City")
	require.NoError(t, err)
	assert.Equal(t, "Leeds", v)

	child, ok := o.Child("Address")
	require.True(t, ok)
	assert.Equal(t, "Address", child.Name())
}

func TestObject_PropertiesSorted(t *testing.T) {
	o := New("Row", map[string]any{"b": 1, "a": 2, "c": 3})
	assert.Equal(t, []string{"a", "b", "c"}, o.Properties())
}

func TestPrimaryKey_Criteria(t *testing.T) {
	o := New("OrderLine", map[string]any{"Order": 12, "Line": 3})

	n := NewPrimaryKey(o, "Order", "Line").Criteria()
	assert.Equal(t, "(Order = '12') AND (Line = '3')", n.String())

	missing := NewPrimaryKey(o, "Region").Criteria()
	assert.Equal(t, "Region = NULL", missing.String())

	assert.Nil(t, NewPrimaryKey(o).Criteria())
}

func TestRelationship_Criteria(t *testing.T) {
	order := New("Order", map[string]any{"Id": 12, "Region": "EU"})
	rel := Relationship{
		Name:  "Lines",
		Owner: order,
		Keys: []RelationshipKey{
			{OwnerProperty: "Id", RelatedProperty: "OrderId"},
			{OwnerProperty: "Region", RelatedProperty: "OrderRegion"},
		},
	}

	assert.Equal(t, "(OrderId = '12') AND (OrderRegion = 'EU')", rel.Criteria().String())

	line := New("OrderLine", map[string]any{"OrderId": 12, "OrderRegion": "EU"})
	ok, err := rel.Criteria().IsMatch(line, false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFromSpec_YAML(t *testing.T) {
	doc := `
name: Person
current:
  Surname: Jones
  Age: 42
persisted:
  Surname: Smith
children:
  Address:
    current:
      City: Leeds
`
	var spec Spec
	require.NoError(t, yaml.Unmarshal([]byte(doc), &spec))

	o, err := FromSpec(spec)
	require.NoError(t, err)

	cur, err := o.PropertyValue("", "Surname")
	require.NoError(t, err)
	assert.Equal(t, "Jones", cur)

	old, err := o.PersistedPropertyValue("", "Surname")
	require.NoError(t, err)
	assert.Equal(t, "Smith", old)

	age, err := o.PersistedPropertyValue("", "Age")
	require.NoError(t, err)
	assert.Equal(t, 42, age)

	child, ok := o.Child("Address")
	require.True(t, ok)
	assert.Equal(t, "Person.Address", child.Name())
}

func TestFromSpec_RequiresName(t *testing.T) {
	_, err := FromSpec(Spec{})
	assert.Error(t, err)
}
