package construct

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/catgraph/internal/props"
)

// Data is the variant payload of a construct. The set of implementations is
// closed: only the six payload types in this file satisfy it.
type Data interface {
	// Kind returns the construct type this payload belongs to.
	Kind() Type
	// Clone returns a deep copy.
	Clone() Data
}

// CategoryData is the payload of a category. The id slices are back-references
// maintained by the engine whenever a construct pointing at this category is
// created.
type CategoryData struct {
	Properties      props.Object `json:"properties,omitempty"`
	ObjectIDs       []string     `json:"object_ids"`
	MorphismIDs     []string     `json:"morphism_ids"`
	FunctorsFromIDs []string     `json:"functors_from_ids"`
	FunctorsToIDs   []string     `json:"functors_to_ids"`
}

func (*CategoryData) Kind() Type { return TypeCategory }

func (d *CategoryData) Clone() Data {
	return &CategoryData{
		Properties:      d.Properties.Clone(),
		ObjectIDs:       cloneIDs(d.ObjectIDs),
		MorphismIDs:     cloneIDs(d.MorphismIDs),
		FunctorsFromIDs: cloneIDs(d.FunctorsFromIDs),
		FunctorsToIDs:   cloneIDs(d.FunctorsToIDs),
	}
}

// ObjectData is the payload of an object. CategoryID is empty for
// uncategorized objects. IdentityMorphismID is set once during creation.
type ObjectData struct {
	CategoryID         string       `json:"category_id,omitempty"`
	Properties         props.Object `json:"properties,omitempty"`
	MorphismsFromIDs   []string     `json:"morphisms_from_ids"`
	MorphismsToIDs     []string     `json:"morphisms_to_ids"`
	IdentityMorphismID string       `json:"identity_morphism_id,omitempty"`
}

func (*ObjectData) Kind() Type { return TypeObject }

func (d *ObjectData) Clone() Data {
	return &ObjectData{
		CategoryID:         d.CategoryID,
		Properties:         d.Properties.Clone(),
		MorphismsFromIDs:   cloneIDs(d.MorphismsFromIDs),
		MorphismsToIDs:     cloneIDs(d.MorphismsToIDs),
		IdentityMorphismID: d.IdentityMorphismID,
	}
}

// MorphismData is the payload of a morphism between two objects.
type MorphismData struct {
	SourceID   string       `json:"source_id"`
	TargetID   string       `json:"target_id"`
	CategoryID string       `json:"category_id,omitempty"`
	Properties props.Object `json:"properties,omitempty"`
	IsIdentity bool         `json:"is_identity"`
}

func (*MorphismData) Kind() Type { return TypeMorphism }

func (d *MorphismData) Clone() Data {
	cp := *d
	cp.Properties = d.Properties.Clone()
	return &cp
}

// FunctorData is the payload of a functor. The mapping id slices are
// back-references to its ObjectMapping and MorphismMapping rows.
type FunctorData struct {
	SourceCategoryID   string       `json:"source_category_id"`
	TargetCategoryID   string       `json:"target_category_id"`
	Properties         props.Object `json:"properties,omitempty"`
	ObjectMappingIDs   []string     `json:"object_mapping_ids"`
	MorphismMappingIDs []string     `json:"morphism_mapping_ids"`
}

func (*FunctorData) Kind() Type { return TypeFunctor }

func (d *FunctorData) Clone() Data {
	return &FunctorData{
		SourceCategoryID:   d.SourceCategoryID,
		TargetCategoryID:   d.TargetCategoryID,
		Properties:         d.Properties.Clone(),
		ObjectMappingIDs:   cloneIDs(d.ObjectMappingIDs),
		MorphismMappingIDs: cloneIDs(d.MorphismMappingIDs),
	}
}

// ObjectMappingData is one source-object to target-object row of a functor.
type ObjectMappingData struct {
	FunctorID      string `json:"functor_id"`
	SourceObjectID string `json:"source_object_id"`
	TargetObjectID string `json:"target_object_id"`
}

func (*ObjectMappingData) Kind() Type { return TypeObjectMapping }

func (d *ObjectMappingData) Clone() Data {
	cp := *d
	return &cp
}

// MorphismMappingData is one source-morphism to target-morphism row of a functor.
type MorphismMappingData struct {
	FunctorID        string `json:"functor_id"`
	SourceMorphismID string `json:"source_morphism_id"`
	TargetMorphismID string `json:"target_morphism_id"`
}

func (*MorphismMappingData) Kind() Type { return TypeMorphismMapping }

func (d *MorphismMappingData) Clone() Data {
	cp := *d
	return &cp
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return slices.Clone(ids)
}

// NewData returns an empty payload for t with all back-reference slices
// initialized.
func NewData(t Type) (Data, error) {
	switch t {
	case TypeCategory:
		return &CategoryData{ObjectIDs: []string{}, MorphismIDs: []string{}, FunctorsFromIDs: []string{}, FunctorsToIDs: []string{}}, nil
	case TypeObject:
		return &ObjectData{MorphismsFromIDs: []string{}, MorphismsToIDs: []string{}}, nil
	case TypeMorphism:
		return &MorphismData{}, nil
	case TypeFunctor:
		return &FunctorData{ObjectMappingIDs: []string{}, MorphismMappingIDs: []string{}}, nil
	case TypeObjectMapping:
		return &ObjectMappingData{}, nil
	case TypeMorphismMapping:
		return &MorphismMappingData{}, nil
	default:
		return nil, fmt.Errorf("unknown construct type %q", t)
	}
}

// EncodeData serializes a payload to the JSON blob stored by serialized
// backends.
func EncodeData(d Data) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("encode data: nil payload")
	}
	// Clone first so nil slices are written as [] rather than null.
	data, err := json.Marshal(d.Clone())
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", d.Kind(), err)
	}
	return data, nil
}

// DecodeData parses a stored JSON blob into the payload type for t.
func DecodeData(t Type, blob []byte) (Data, error) {
	d, err := NewData(t)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(blob, d); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", t, err)
	}
	return d.Clone(), nil
}

// MarshalJSON writes the construct with its payload inline.
func (c Construct) MarshalJSON() ([]byte, error) {
	type wire struct {
		Signature Signature `json:"signature"`
		Metadata  Metadata  `json:"metadata"`
		Type      Type      `json:"type"`
		Data      Data      `json:"data"`
	}
	var data Data
	if c.Data != nil {
		data = c.Data.Clone()
	}
	return json.Marshal(wire{Signature: c.Signature, Metadata: c.Metadata, Type: c.Type, Data: data})
}

// UnmarshalJSON decodes the payload according to the type discriminator.
func (c *Construct) UnmarshalJSON(b []byte) error {
	var wire struct {
		Signature Signature       `json:"signature"`
		Metadata  Metadata        `json:"metadata"`
		Type      Type            `json:"type"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	if !wire.Type.Valid() {
		return fmt.Errorf("unknown construct type %q", wire.Type)
	}
	data, err := DecodeData(wire.Type, wire.Data)
	if err != nil {
		return err
	}
	c.Signature = wire.Signature
	c.Metadata = wire.Metadata
	c.Type = wire.Type
	c.Data = data
	return nil
}
