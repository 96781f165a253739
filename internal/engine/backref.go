package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/store"
)

// refField selects one back-reference array inside an owner's payload.
type refField struct {
	name string
	pick func(construct.Data) *[]string
}

var (
	categoryObjects = refField{"object_ids", func(d construct.Data) *[]string {
		return &d.(*construct.CategoryData).ObjectIDs
	}}
	categoryMorphisms = refField{"morphism_ids", func(d construct.Data) *[]string {
		return &d.(*construct.CategoryData).MorphismIDs
	}}
	categoryFunctorsFrom = refField{"functors_from_ids", func(d construct.Data) *[]string {
		return &d.(*construct.CategoryData).FunctorsFromIDs
	}}
	categoryFunctorsTo = refField{"functors_to_ids", func(d construct.Data) *[]string {
		return &d.(*construct.CategoryData).FunctorsToIDs
	}}
	objectMorphismsFrom = refField{"morphisms_from_ids", func(d construct.Data) *[]string {
		return &d.(*construct.ObjectData).MorphismsFromIDs
	}}
	objectMorphismsTo = refField{"morphisms_to_ids", func(d construct.Data) *[]string {
		return &d.(*construct.ObjectData).MorphismsToIDs
	}}
	functorObjectMappings = refField{"object_mapping_ids", func(d construct.Data) *[]string {
		return &d.(*construct.FunctorData).ObjectMappingIDs
	}}
	functorMorphismMappings = refField{"morphism_mapping_ids", func(d construct.Data) *[]string {
		return &d.(*construct.FunctorData).MorphismMappingIDs
	}}
)

// appendBackRef adds id to the owner's array unless it is already there.
func (c *Client) appendBackRef(ctx context.Context, ownerID string, ownerType construct.Type, field refField, id string) error {
	return c.mutate(ctx, ownerID, ownerType, func(d construct.Data) bool {
		ids := field.pick(d)
		if slices.Contains(*ids, id) {
			return false
		}
		*ids = append(*ids, id)
		return true
	})
}

// removeBackRef drops every occurrence of id from the owner's array.
func (c *Client) removeBackRef(ctx context.Context, ownerID string, ownerType construct.Type, field refField, id string) error {
	return c.mutate(ctx, ownerID, ownerType, func(d construct.Data) bool {
		ids := field.pick(d)
		before := len(*ids)
		*ids = slices.DeleteFunc(*ids, func(s string) bool { return s == id })
		return len(*ids) != before
	})
}

// mutate runs a compare-and-swap loop on the owner's payload.
//
// edit receives a private copy of the payload and reports whether it changed
// anything. An unchanged payload ends the loop without writing. An owner
// that is absent everywhere, or is not of ownerType, is skipped.
func (c *Client) mutate(ctx context.Context, ownerID string, ownerType construct.Type, edit func(construct.Data) bool) error {
	if ownerID == "" {
		return nil
	}
	owner, s, err := c.query.Locate(ctx, ownerID)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		if owner == nil {
			c.logger.Warn("back-reference owner not found, skipping",
				"owner", ownerID,
				"type", ownerType,
			)
			return nil
		}
		if owner.Type != ownerType {
			c.logger.Warn("back-reference owner has unexpected type, skipping",
				"owner", ownerID,
				"want", ownerType,
				"got", owner.Type,
			)
			return nil
		}

		data := owner.Data.Clone()
		if !edit(data) {
			return nil
		}
		_, err := s.Update(ctx, ownerID, data, store.UpdateOptions{IfVersion: owner.Signature.Version})
		if err == nil || errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return fmt.Errorf("update back-references of %s: %w", ownerID, err)
		}
		if attempt >= c.maxAppendAttempts {
			return fmt.Errorf("update back-references of %s after %d attempts: %w", ownerID, attempt, err)
		}

		c.logger.Debug("back-reference update lost race, retrying",
			"owner", ownerID,
			"attempt", attempt,
		)
		owner, err = s.Read(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("re-read %s: %w", ownerID, err)
		}
	}
}
