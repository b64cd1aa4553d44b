package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/storage"
)

// CategoryService owns every category tree invariant: tenant closure, kind
// closure, acyclicity and the deletion guards. All mutation paths go through
// it, and each mutation runs its validation reads and its write inside one
// transaction so concurrent reparents cannot jointly introduce a cycle.
type CategoryService struct {
	storage *storage.SQLiteRepository
}

func NewCategoryService(storage *storage.SQLiteRepository) *CategoryService {
	return &CategoryService{storage: storage}
}

// Create validates and persists a new category for the entity. The kind is
// fixed here for the category's whole lifetime.
func (s *CategoryService) Create(ctx context.Context, entityID string, c core.Category) (*core.Category, error) {
	c.ID = uuid.New().String()
	c.EntityID = entityID
	c.IsActive = true
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := c.Validate(); err != nil {
		return nil, err
	}

	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		if c.ParentID != nil {
			if _, err := validateParent(ctx, q, entityID, c.Kind, *c.ParentID); err != nil {
				return err
			}
		}
		return q.CreateCategory(ctx, &c)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Category created",
		"id", c.ID,
		"entity_id", entityID,
		"name", c.Name,
		"kind", c.Kind)

	return &c, nil
}

// Get returns the category only if it belongs to the entity. Ids from other
// entities come back as not found so existence never leaks across tenants.
func (s *CategoryService) Get(ctx context.Context, entityID, categoryID string) (*core.Category, error) {
	return getScoped(ctx, s.storage.Queries, entityID, categoryID)
}

// List returns the entity's categories ordered by name, skipping inactive
// ones unless includeInactive is set.
func (s *CategoryService) List(ctx context.Context, entityID string, includeInactive bool) ([]core.Category, error) {
	return s.storage.ListCategories(ctx, entityID, includeInactive)
}

// GetTree returns the entity's categories as a nested forest. An entity with
// no categories gets an empty slice, not an error. Siblings come out in name
// order because the flat listing is name ordered.
func (s *CategoryService) GetTree(ctx context.Context, entityID string, includeInactive bool) ([]*core.CategoryNode, error) {
	flat, err := s.storage.ListCategories(ctx, entityID, includeInactive)
	if err != nil {
		return nil, err
	}
	return core.BuildTree(flat), nil
}

// Update applies a partial update. Kind and entity are immutable; a parent
// change re-runs the full parent validation plus the upward cycle walk.
func (s *CategoryService) Update(ctx context.Context, entityID, categoryID string, patch core.CategoryPatch) (*core.Category, error) {
	// An empty patch changes nothing, so skip the write and leave
	// updated_at alone.
	if patch.Empty() {
		return getScoped(ctx, s.storage.Queries, entityID, categoryID)
	}

	var updated *core.Category

	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		c, err := getScoped(ctx, q, entityID, categoryID)
		if err != nil {
			return err
		}

		switch {
		case patch.ClearParent:
			c.ParentID = nil
		case patch.ParentID != nil:
			newParent := *patch.ParentID
			if newParent == categoryID {
				return fmt.Errorf("%w: category cannot be its own parent", core.ErrCycleDetected)
			}
			parent, err := validateParent(ctx, q, entityID, c.Kind, newParent)
			if err != nil {
				return err
			}
			if err := ensureNoCycle(ctx, q, entityID, categoryID, parent); err != nil {
				return err
			}
			c.ParentID = &newParent
		}

		if patch.Name != nil {
			c.Name = *patch.Name
		}
		if patch.Description != nil {
			c.Description = *patch.Description
		}
		if patch.Color != nil {
			c.Color = *patch.Color
		}
		if patch.Icon != nil {
			c.Icon = *patch.Icon
		}
		if patch.IsActive != nil {
			c.IsActive = *patch.IsActive
		}

		if err := c.Validate(); err != nil {
			return err
		}

		c.UpdatedAt = time.Now()
		if err := q.UpdateCategory(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Category updated",
		"id", categoryID,
		"entity_id", entityID)

	return updated, nil
}

// Delete hard-deletes the category if the guards pass: no children and no
// transaction, budget or recurring template referencing it. Deactivation via
// Update carries none of these guards and is the recommended removal path.
func (s *CategoryService) Delete(ctx context.Context, entityID, categoryID string) error {
	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		if _, err := getScoped(ctx, q, entityID, categoryID); err != nil {
			return err
		}

		hasChildren, err := q.CategoryHasChildren(ctx, categoryID)
		if err != nil {
			return err
		}
		if hasChildren {
			return fmt.Errorf("%w: category %s", core.ErrHasChildren, categoryID)
		}

		inUse, err := q.CategoryInUse(ctx, categoryID)
		if err != nil {
			return err
		}
		if inUse {
			return fmt.Errorf("%w: category %s", core.ErrInUse, categoryID)
		}

		return q.DeleteCategory(ctx, categoryID)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Category deleted",
		"id", categoryID,
		"entity_id", entityID)

	return nil
}

func getScoped(ctx context.Context, q *storage.Queries, entityID, categoryID string) (*core.Category, error) {
	c, err := q.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if c.EntityID != entityID {
		return nil, fmt.Errorf("%w: category %s", core.ErrNotFound, categoryID)
	}
	return c, nil
}

// validateParent loads and checks a prospective parent: it must exist, live
// in the same entity and carry the same kind as the child.
func validateParent(ctx context.Context, q *storage.Queries, entityID string, kind core.Kind, parentID string) (*core.Category, error) {
	parent, err := q.GetCategoryByID(ctx, parentID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("%w: parent category %s", core.ErrNotFound, parentID)
	}
	if err != nil {
		return nil, err
	}
	if parent.EntityID != entityID {
		return nil, fmt.Errorf("%w: parent category belongs to another entity", core.ErrTenantMismatch)
	}
	if parent.Kind != kind {
		return nil, fmt.Errorf("%w: parent is %s, child is %s", core.ErrKindMismatch, parent.Kind, kind)
	}
	return parent, nil
}

// ensureNoCycle walks parent links upward from the candidate parent. Finding
// categoryID on the walk means the proposed move would make the category its
// own ancestor. The walk is bounded by the entity's category count so it
// terminates even on corrupted data, and exceeding the bound is itself
// treated as a cycle.
func ensureNoCycle(ctx context.Context, q *storage.Queries, entityID, categoryID string, parent *core.Category) error {
	bound, err := q.CountCategories(ctx, entityID)
	if err != nil {
		return err
	}

	cur := parent
	for steps := int64(0); steps <= bound; steps++ {
		if cur.ID == categoryID {
			return fmt.Errorf("%w: %s is an ancestor of the proposed parent", core.ErrCycleDetected, categoryID)
		}
		if cur.ParentID == nil {
			return nil
		}
		cur, err = q.GetCategoryByID(ctx, *cur.ParentID)
		if errors.Is(err, core.ErrNotFound) {
			// Dangling parent pointer: the chain ends here.
			return nil
		}
		if err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: parent chain exceeds category count", core.ErrCycleDetected)
}
