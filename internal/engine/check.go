package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/catgraph/internal/construct"
)

// Drift is one back-reference array that disagrees with the foreign keys
// pointing at its owner.
type Drift struct {
	OwnerID   string         `json:"owner_id"`
	OwnerType construct.Type `json:"owner_type"`
	Field     string         `json:"field"`
	// Missing ids point at the owner but are not listed.
	Missing []string `json:"missing,omitempty"`
	// Dangling ids are listed but nothing matching points at the owner.
	Dangling []string `json:"dangling,omitempty"`
	Detail   string   `json:"detail,omitempty"`
}

// String renders the drift on one line.
func (d Drift) String() string {
	s := fmt.Sprintf("%s %s.%s", d.OwnerType, d.OwnerID, d.Field)
	if len(d.Missing) > 0 {
		s += fmt.Sprintf(" missing=%v", d.Missing)
	}
	if len(d.Dangling) > 0 {
		s += fmt.Sprintf(" dangling=%v", d.Dangling)
	}
	if d.Detail != "" {
		s += " " + d.Detail
	}
	return s
}

// Report is the outcome of CheckBackReferences.
type Report struct {
	Checked int     `json:"checked"`
	Drifts  []Drift `json:"drifts"`
}

// Consistent reports whether no drift was found.
func (r *Report) Consistent() bool { return len(r.Drifts) == 0 }

// CheckBackReferences recomputes every back-reference array from the
// foreign keys across the federation and reports each disagreement. It also
// verifies that every recorded identity morphism exists and is a loop on its
// object. Array order is ignored.
func (c *Client) CheckBackReferences(ctx context.Context) (*Report, error) {
	all := make(map[construct.Type][]*construct.Construct, len(construct.Types))
	for _, t := range construct.Types {
		cs, err := c.query.List(ctx, t)
		if err != nil {
			return nil, err
		}
		all[t] = cs
	}

	// expected[ownerID][field] = ids that point at owner through field
	expected := make(map[string]map[string][]string)
	add := func(owner string, field refField, id string) {
		if owner == "" {
			return
		}
		if expected[owner] == nil {
			expected[owner] = make(map[string][]string)
		}
		expected[owner][field.name] = append(expected[owner][field.name], id)
	}
	for _, o := range all[construct.TypeObject] {
		add(o.Object().CategoryID, categoryObjects, o.ID())
	}
	for _, m := range all[construct.TypeMorphism] {
		d := m.Morphism()
		add(d.CategoryID, categoryMorphisms, m.ID())
		add(d.SourceID, objectMorphismsFrom, m.ID())
		add(d.TargetID, objectMorphismsTo, m.ID())
	}
	for _, f := range all[construct.TypeFunctor] {
		d := f.Functor()
		add(d.SourceCategoryID, categoryFunctorsFrom, f.ID())
		add(d.TargetCategoryID, categoryFunctorsTo, f.ID())
	}
	for _, r := range all[construct.TypeObjectMapping] {
		add(r.ObjectMapping().FunctorID, functorObjectMappings, r.ID())
	}
	for _, r := range all[construct.TypeMorphismMapping] {
		add(r.MorphismMapping().FunctorID, functorMorphismMappings, r.ID())
	}

	report := &Report{Drifts: []Drift{}}
	check := func(owner *construct.Construct, fields ...refField) {
		report.Checked++
		for _, f := range fields {
			actual := *f.pick(owner.Data)
			want := expected[owner.ID()][f.name]
			missing := subtract(want, actual)
			dangling := subtract(actual, want)
			if len(missing) == 0 && len(dangling) == 0 {
				continue
			}
			report.Drifts = append(report.Drifts, Drift{
				OwnerID:   owner.ID(),
				OwnerType: owner.Type,
				Field:     f.name,
				Missing:   missing,
				Dangling:  dangling,
			})
		}
	}

	morphisms := make(map[string]*construct.Construct, len(all[construct.TypeMorphism]))
	for _, m := range all[construct.TypeMorphism] {
		morphisms[m.ID()] = m
	}

	for _, cat := range all[construct.TypeCategory] {
		check(cat, categoryObjects, categoryMorphisms, categoryFunctorsFrom, categoryFunctorsTo)
	}
	for _, o := range all[construct.TypeObject] {
		check(o, objectMorphismsFrom, objectMorphismsTo)
		if detail := checkIdentity(o, morphisms); detail != "" {
			report.Drifts = append(report.Drifts, Drift{
				OwnerID:   o.ID(),
				OwnerType: o.Type,
				Field:     "identity_morphism_id",
				Detail:    detail,
			})
		}
	}
	for _, f := range all[construct.TypeFunctor] {
		check(f, functorObjectMappings, functorMorphismMappings)
	}

	c.logger.Info("back-reference check complete",
		"checked", report.Checked,
		"drifts", len(report.Drifts),
	)
	return report, nil
}

func checkIdentity(obj *construct.Construct, morphisms map[string]*construct.Construct) string {
	id := obj.Object().IdentityMorphismID
	if id == "" {
		return ""
	}
	m, ok := morphisms[id]
	if !ok {
		return fmt.Sprintf("identity morphism %s does not exist", id)
	}
	d := m.Morphism()
	if !d.IsIdentity || d.SourceID != obj.ID() || d.TargetID != obj.ID() {
		return fmt.Sprintf("morphism %s is not an identity loop on this object", id)
	}
	return ""
}

// subtract returns the ids of a not present in b, in a's order.
func subtract(a, b []string) []string {
	var out []string
	for _, id := range a {
		if !slices.Contains(b, id) && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
