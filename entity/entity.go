package entity

import (
	"maps"
	"slices"
)

// Entity is a node of a document tree.
//
// The zero value is an unnamed, empty node. A tree owns all of its
// descendants; subtrees are never shared between trees.
type Entity struct {
	name       string
	text       string
	attributes map[string]string
	children   []*Entity
}

// New creates a detached entity.
func New(name, text string) *Entity {
	return &Entity{name: name, text: text}
}

// Name returns the tag name.
func (e *Entity) Name() string {
	return e.name
}

// Text returns the character data directly inside the entity, in document
// order. Text inside descendants is not included.
func (e *Entity) Text() string {
	return e.text
}

// AddChild appends a new child and returns it.
func (e *Entity) AddChild(name, text string) *Entity {
	child := New(name, text)
	e.children = append(e.children, child)
	return child
}

// SetAttribute sets an attribute. A repeated name replaces the earlier value.
func (e *Entity) SetAttribute(name, value string) {
	if e.attributes == nil {
		e.attributes = make(map[string]string)
	}
	e.attributes[name] = value
}

// Attribute returns the value of the named attribute.
func (e *Entity) Attribute(name string) (string, bool) {
	v, ok := e.attributes[name]
	return v, ok
}

// Attributes returns a copy of the attribute map, or nil if the entity has
// never carried an attribute.
func (e *Entity) Attributes() map[string]string {
	if e.attributes == nil {
		return nil
	}
	return maps.Clone(e.attributes)
}

// AttributeNames returns the attribute names in sorted order.
func (e *Entity) AttributeNames() []string {
	return slices.Sorted(maps.Keys(e.attributes))
}

// Children returns the children in document order. The returned slice must
// not be modified.
func (e *Entity) Children() []*Entity {
	return e.children
}

// Child returns the first child with the given name, or nil. The comparison
// is case-sensitive.
func (e *Entity) Child(name string) *Entity {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// ChildText returns the text of the first child with the given name.
func (e *Entity) ChildText(name string) (string, bool) {
	c := e.Child(name)
	if c == nil {
		return "", false
	}
	return c.text, true
}

func (e *Entity) appendText(s string) {
	e.text += s
}

// Equal reports whether two trees carry the same names, text and attribute
// sets, with children compared pairwise by position. Two nil entities are
// equal.
func Equal(a, b *Entity) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.name != b.name || a.text != b.text {
		return false
	}
	// A nil map and an empty map are both the empty set.
	if len(a.attributes) != len(b.attributes) {
		return false
	}
	for k, v := range a.attributes {
		if w, ok := b.attributes[k]; !ok || w != v {
			return false
		}
	}
	if len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if !Equal(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}
