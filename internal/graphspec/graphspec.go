// Package graphspec compiles declarative CUE graph definitions and applies
// them through the engine.
//
// A definition names categories with their objects and morphisms, and
// functors between them:
//
//	category: Sets: {
//		store: "main"
//		object: A: {}
//		object: B: {description: "the other one"}
//		morphism: f: {from: "A", to: "B"}
//	}
//	functor: Id: {
//		from: "Sets"
//		to:   "Sets"
//		morphisms: {f: "f"}
//	}
//
// Every reference is by name. Compile resolves names within the
// definition, so a Plan that compiles can be applied without lookup
// failures.
package graphspec

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/catgraph/internal/props"
)

// Plan is a compiled graph definition in declaration order.
type Plan struct {
	Categories []CategoryDef `json:"categories"`
	Functors   []FunctorDef  `json:"functors"`
}

// CategoryDef declares a category and its members.
type CategoryDef struct {
	Name        string        `json:"name"`
	Store       string        `json:"store,omitempty"`
	Description string        `json:"description,omitempty"`
	Properties  props.Object  `json:"properties,omitempty"`
	Objects     []ObjectDef   `json:"objects"`
	Morphisms   []MorphismDef `json:"morphisms"`
}

// ObjectDef declares an object. Store overrides the category's store.
type ObjectDef struct {
	Name        string       `json:"name"`
	Store       string       `json:"store,omitempty"`
	Description string       `json:"description,omitempty"`
	Properties  props.Object `json:"properties,omitempty"`
}

// MorphismDef declares a morphism between two objects of its category.
type MorphismDef struct {
	Name        string       `json:"name"`
	Store       string       `json:"store,omitempty"`
	Description string       `json:"description,omitempty"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Properties  props.Object `json:"properties,omitempty"`
}

// FunctorDef declares a functor and its mapping declarations.
type FunctorDef struct {
	Name        string       `json:"name"`
	Store       string       `json:"store,omitempty"`
	Description string       `json:"description,omitempty"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Properties  props.Object `json:"properties,omitempty"`
	Objects     []Pair       `json:"objects"`
	Morphisms   []Pair       `json:"morphisms"`
}

// Pair is a source name mapped to a target name.
type Pair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Category returns the named category definition.
func (p *Plan) Category(name string) (*CategoryDef, bool) {
	for i := range p.Categories {
		if p.Categories[i].Name == name {
			return &p.Categories[i], true
		}
	}
	return nil, false
}

func (c *CategoryDef) hasObject(name string) bool {
	for _, o := range c.Objects {
		if o.Name == name {
			return true
		}
	}
	return false
}

func (c *CategoryDef) hasMorphism(name string) bool {
	for _, m := range c.Morphisms {
		if m.Name == name {
			return true
		}
	}
	return false
}

// CompileError reports an invalid definition with the CUE position of the
// offending value.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(field string, err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Field: field, Message: err.Error()}
	}
	first := errs[0]
	ce := &CompileError{Field: field, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}

// Compile turns the root value of a definition into a Plan.
func Compile(v cue.Value) (*Plan, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError("cue", err)
	}
	plan := &Plan{Categories: []CategoryDef{}, Functors: []FunctorDef{}}

	err := eachField(v, "category", func(name string, cv cue.Value) error {
		cat, err := compileCategory(name, cv)
		if err != nil {
			return err
		}
		plan.Categories = append(plan.Categories, *cat)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachField(v, "functor", func(name string, fv cue.Value) error {
		fn, err := compileFunctor(plan, name, fv)
		if err != nil {
			return err
		}
		plan.Functors = append(plan.Functors, *fn)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(plan.Categories) == 0 {
		return nil, &CompileError{Field: "category", Message: "at least one category is required", Pos: v.Pos()}
	}
	return plan, nil
}

// eachField visits the regular fields of v.path in declaration order. A
// missing path visits nothing.
func eachField(v cue.Value, path string, fn func(string, cue.Value) error) error {
	sub := v.LookupPath(cue.ParsePath(path))
	if !sub.Exists() {
		return nil
	}
	iter, err := sub.Fields()
	if err != nil {
		return formatCUEError(path, err)
	}
	for iter.Next() {
		if err := fn(iter.Label(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func compileCategory(name string, v cue.Value) (*CategoryDef, error) {
	field := "category." + name
	cat := &CategoryDef{Name: name, Objects: []ObjectDef{}, Morphisms: []MorphismDef{}}
	var err error
	if cat.Store, err = optionalString(v, field, "store"); err != nil {
		return nil, err
	}
	if cat.Description, err = optionalString(v, field, "description"); err != nil {
		return nil, err
	}
	if cat.Properties, err = properties(v, field); err != nil {
		return nil, err
	}

	err = eachField(v, "object", func(oname string, ov cue.Value) error {
		ofield := field + ".object." + oname
		o := ObjectDef{Name: oname}
		var err error
		if o.Store, err = optionalString(ov, ofield, "store"); err != nil {
			return err
		}
		if o.Description, err = optionalString(ov, ofield, "description"); err != nil {
			return err
		}
		if o.Properties, err = properties(ov, ofield); err != nil {
			return err
		}
		cat.Objects = append(cat.Objects, o)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachField(v, "morphism", func(mname string, mv cue.Value) error {
		mfield := field + ".morphism." + mname
		m := MorphismDef{Name: mname}
		var err error
		if m.From, err = requiredString(mv, mfield, "from"); err != nil {
			return err
		}
		if m.To, err = requiredString(mv, mfield, "to"); err != nil {
			return err
		}
		for _, end := range []string{m.From, m.To} {
			if !cat.hasObject(end) {
				return &CompileError{
					Field:   mfield,
					Message: fmt.Sprintf("unknown object %q in category %s", end, name),
					Pos:     mv.Pos(),
				}
			}
		}
		if m.Store, err = optionalString(mv, mfield, "store"); err != nil {
			return err
		}
		if m.Description, err = optionalString(mv, mfield, "description"); err != nil {
			return err
		}
		if m.Properties, err = properties(mv, mfield); err != nil {
			return err
		}
		cat.Morphisms = append(cat.Morphisms, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cat, nil
}

func compileFunctor(plan *Plan, name string, v cue.Value) (*FunctorDef, error) {
	field := "functor." + name
	fn := &FunctorDef{Name: name, Objects: []Pair{}, Morphisms: []Pair{}}
	var err error
	if fn.From, err = requiredString(v, field, "from"); err != nil {
		return nil, err
	}
	if fn.To, err = requiredString(v, field, "to"); err != nil {
		return nil, err
	}
	src, ok := plan.Category(fn.From)
	if !ok {
		return nil, &CompileError{Field: field + ".from", Message: fmt.Sprintf("unknown category %q", fn.From), Pos: v.Pos()}
	}
	tgt, ok := plan.Category(fn.To)
	if !ok {
		return nil, &CompileError{Field: field + ".to", Message: fmt.Sprintf("unknown category %q", fn.To), Pos: v.Pos()}
	}
	if fn.Store, err = optionalString(v, field, "store"); err != nil {
		return nil, err
	}
	if fn.Description, err = optionalString(v, field, "description"); err != nil {
		return nil, err
	}
	if fn.Properties, err = properties(v, field); err != nil {
		return nil, err
	}

	fn.Objects, err = pairs(v, field, "objects", src.hasObject, tgt.hasObject, "object")
	if err != nil {
		return nil, err
	}
	fn.Morphisms, err = pairs(v, field, "morphisms", src.hasMorphism, tgt.hasMorphism, "morphism")
	if err != nil {
		return nil, err
	}
	return fn, nil
}

// pairs reads a name -> name struct, checking both sides.
func pairs(v cue.Value, field, path string, inSource, inTarget func(string) bool, kind string) ([]Pair, error) {
	out := []Pair{}
	err := eachField(v, path, func(source string, tv cue.Value) error {
		target, err := tv.String()
		if err != nil {
			return formatCUEError(field+"."+path+"."+source, err)
		}
		if !inSource(source) {
			return &CompileError{
				Field:   field + "." + path,
				Message: fmt.Sprintf("unknown source %s %q", kind, source),
				Pos:     tv.Pos(),
			}
		}
		if !inTarget(target) {
			return &CompileError{
				Field:   field + "." + path,
				Message: fmt.Sprintf("unknown target %s %q", kind, target),
				Pos:     tv.Pos(),
			}
		}
		out = append(out, Pair{Source: source, Target: target})
		return nil
	})
	return out, err
}

func optionalString(v cue.Value, field, name string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(field+"."+name, err)
	}
	return s, nil
}

func requiredString(v cue.Value, field, name string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return "", &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(field+"."+name, err)
	}
	if s == "" {
		return "", &CompileError{Field: field + "." + name, Message: name + " must not be empty", Pos: sv.Pos()}
	}
	return s, nil
}

// properties converts the optional properties struct of v.
func properties(v cue.Value, field string) (props.Object, error) {
	pv := v.LookupPath(cue.ParsePath("properties"))
	if !pv.Exists() {
		return nil, nil
	}
	val, err := toValue(pv, field+".properties")
	if err != nil {
		return nil, err
	}
	obj, ok := val.(props.Object)
	if !ok {
		return nil, &CompileError{Field: field + ".properties", Message: "properties must be a struct", Pos: pv.Pos()}
	}
	return obj, nil
}

// toValue converts a concrete CUE value into a property value. Floats and
// nulls are rejected like everywhere else in props.
func toValue(v cue.Value, field string) (props.Value, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(field, err)
		}
		return props.String(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(field, err)
		}
		return props.Int(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(field, err)
		}
		return props.Bool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(field, err)
		}
		arr := props.Array{}
		for i := 0; iter.Next(); i++ {
			elem, err := toValue(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(field, err)
		}
		obj := props.Object{}
		for iter.Next() {
			elem, err := toValue(iter.Value(), field+"."+iter.Label())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	case cue.FloatKind:
		return nil, &CompileError{Field: field, Message: "floats are not allowed in properties", Pos: v.Pos()}
	case cue.NullKind:
		return nil, &CompileError{Field: field, Message: "null is not allowed in properties", Pos: v.Pos()}
	default:
		return nil, &CompileError{Field: field, Message: "value must be concrete", Pos: v.Pos()}
	}
}
