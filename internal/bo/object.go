// Package bo provides the business-object side of criteria evaluation:
// objects with current and persisted property values, one level of child
// objects, primary keys and relationships.
package bo

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/roach88/criteria/internal/criteria"
)

// UnknownPropertyError is returned when a property or child source is not
// defined on an object.
type UnknownPropertyError struct {
	Object   string
	Source   string
	Property string
}

func (e *UnknownPropertyError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("object %q: unknown property %s.%s", e.Object, e.Source, e.Property)
	}
	return fmt.Sprintf("object %q: unknown property %s", e.Object, e.Property)
}

// Object is a business object: a named bag of properties with a persisted
// snapshot and named child objects.
//
// Thread-safety: all methods are safe for concurrent use.
type Object struct {
	name string

	mu        sync.RWMutex
	current   map[string]any
	persisted map[string]any
	children  map[string]*Object
}

// Ensure Object satisfies the evaluator boundary.
var _ criteria.Subject = (*Object)(nil)

// New creates an object whose current and persisted values are both props.
func New(name string, props map[string]any) *Object {
	o := &Object{
		name:      name,
		current:   make(map[string]any, len(props)),
		persisted: make(map[string]any, len(props)),
		children:  make(map[string]*Object),
	}
	maps.Copy(o.current, props)
	maps.Copy(o.persisted, props)
	return o
}

// Name returns the object's name.
func (o *Object) Name() string {
	return o.name
}

// Set updates the current value of a property, defining it if needed.
// The persisted snapshot is untouched until MarkPersisted.
func (o *Object) Set(name string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current[name] = value
}

// SetPersisted overrides the persisted value of a property.
func (o *Object) SetPersisted(name string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.persisted[name] = value
}

// Get returns the current value of a property.
func (o *Object) Get(name string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.current[name]
	return v, ok
}

// MarkPersisted copies the current values into the persisted snapshot.
func (o *Object) MarkPersisted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.persisted = maps.Clone(o.current)
}

// IsDirty reports whether any current value differs from its persisted value.
func (o *Object) IsDirty() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for name, v := range o.current {
		p, ok := o.persisted[name]
		if !ok || !reflect.DeepEqual(v, p) {
			return true
		}
	}
	return false
}

// Properties returns the sorted names of the current properties.
func (o *Object) Properties() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var names []string
	for k := range o.current {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// AddChild attaches a child object under a source key.
func (o *Object) AddChild(source string, child *Object) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.children[source] = child
}

// Child returns the child object registered under source.
func (o *Object) Child(source string) (*Object, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c, ok := o.children[source]
	return c, ok
}

// PropertyValue implements criteria.Subject.
func (o *Object) PropertyValue(source, name string) (any, error) {
	return o.lookup(source, name, false)
}

// PersistedPropertyValue implements criteria.Subject.
func (o *Object) PersistedPropertyValue(source, name string) (any, error) {
	return o.lookup(source, name, true)
}

func (o *Object) lookup(source, name string, persisted bool) (any, error) {
	target := o
	if source != "" {
		child, ok := o.Child(source)
		if !ok {
			return nil, &UnknownPropertyError{Object: o.name, Source: source, Property: name}
		}
		target = child
	}

	target.mu.RLock()
	defer target.mu.RUnlock()
	values := target.current
	if persisted {
		values = target.persisted
	}
	v, ok := values[name]
	if !ok {
		// Defined since the last save: nothing persisted yet.
		if _, defined := target.current[name]; persisted && defined {
			return nil, nil
		}
		return nil, &UnknownPropertyError{Object: o.name, Source: source, Property: name}
	}
	return v, nil
}
