// Package construct defines the entities stored in the graph: categories,
// objects, morphisms, functors and the mapping rows that make up a functor.
//
// This package contains type definitions only. Every other internal package
// imports construct; construct imports nothing internal except props.
package construct

import (
	"time"
)

// Type discriminates the construct variants.
type Type string

const (
	TypeCategory        Type = "category"
	TypeObject          Type = "object"
	TypeMorphism        Type = "morphism"
	TypeFunctor         Type = "functor"
	TypeObjectMapping   Type = "object_mapping"
	TypeMorphismMapping Type = "morphism_mapping"
)

// Types lists every construct type in a stable order.
var Types = []Type{
	TypeCategory,
	TypeObject,
	TypeMorphism,
	TypeFunctor,
	TypeObjectMapping,
	TypeMorphismMapping,
}

// Valid reports whether t is a known construct type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType converts a string to a Type, rejecting unknown names.
func ParseType(s string) (Type, bool) {
	t := Type(s)
	return t, t.Valid()
}

// Signature identifies and versions a construct.
//
// Two signatures denote the same construct iff ID and StoreID match. Version
// starts at 1 and grows by exactly one on every successful update.
type Signature struct {
	ID      string `json:"id"`
	StoreID string `json:"store_id"`
	Version int64  `json:"version"`
}

// Same reports whether s and other denote the same construct.
func (s Signature) Same(other Signature) bool {
	return s.ID == other.ID && s.StoreID == other.StoreID
}

// Metadata carries descriptive fields. CreatedAt never changes after creation.
type Metadata struct {
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Construct is any stored entity.
type Construct struct {
	Signature Signature `json:"signature"`
	Metadata  Metadata  `json:"metadata"`
	Type      Type      `json:"type"`
	Data      Data      `json:"data"`
}

// ID is shorthand for c.Signature.ID.
func (c *Construct) ID() string {
	return c.Signature.ID
}

// Name is shorthand for c.Metadata.Name.
func (c *Construct) Name() string {
	return c.Metadata.Name
}

// Clone returns a deep copy so callers can mutate data without touching the
// stored value.
func (c *Construct) Clone() *Construct {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Data != nil {
		cp.Data = c.Data.Clone()
	}
	return &cp
}

// Category returns the payload when c is a category, nil otherwise.
func (c *Construct) Category() *CategoryData {
	if c == nil {
		return nil
	}
	d, _ := c.Data.(*CategoryData)
	return d
}

// Object returns the payload when c is an object, nil otherwise.
func (c *Construct) Object() *ObjectData {
	if c == nil {
		return nil
	}
	d, _ := c.Data.(*ObjectData)
	return d
}

// Morphism returns the payload when c is a morphism, nil otherwise.
func (c *Construct) Morphism() *MorphismData {
	if c == nil {
		return nil
	}
	d, _ := c.Data.(*MorphismData)
	return d
}

// Functor returns the payload when c is a functor, nil otherwise.
func (c *Construct) Functor() *FunctorData {
	if c == nil {
		return nil
	}
	d, _ := c.Data.(*FunctorData)
	return d
}

// ObjectMapping returns the payload when c is an object mapping, nil otherwise.
func (c *Construct) ObjectMapping() *ObjectMappingData {
	if c == nil {
		return nil
	}
	d, _ := c.Data.(*ObjectMappingData)
	return d
}

// MorphismMapping returns the payload when c is a morphism mapping, nil otherwise.
func (c *Construct) MorphismMapping() *MorphismMappingData {
	if c == nil {
		return nil
	}
	d, _ := c.Data.(*MorphismMappingData)
	return d
}

// IDs extracts the ids of cs in order.
func IDs(cs []*Construct) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID()
	}
	return out
}
