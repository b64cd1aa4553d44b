package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	// Kind classifies a category, transaction or template as income or
	// expense. It is fixed at creation time and never changes.
	Kind string

	// Category is a node in a tenant's income or expense tree. ParentID is
	// an id reference, never a live pointer, so the store stays the single
	// source of truth during tree-shaped operations.
	Category struct {
		ID          string
		EntityID    string
		Name        string
		Kind        Kind
		ParentID    *string
		Description string
		Color       string
		Icon        string
		IsActive    bool
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// CategoryNode is a category plus its resolved children, produced by
	// BuildTree. One concrete shape, recursively nested; Children is never
	// nil.
	CategoryNode struct {
		Category
		Children []*CategoryNode
	}
)

// ParseKind validates a kind coming in over the wire.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Income, Expense:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: kind must be %q or %q", ErrValidation, Income, Expense)
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: empty category name", ErrValidation)
	}
	if len(c.Name) > 255 {
		return fmt.Errorf("%w: category name too long (max 255 characters)", ErrValidation)
	}
	if !c.Kind.Valid() {
		return fmt.Errorf("%w: kind must be %q or %q", ErrValidation, Income, Expense)
	}
	if len(c.Color) > 50 {
		return fmt.Errorf("%w: color too long (max 50 characters)", ErrValidation)
	}
	if len(c.Icon) > 100 {
		return fmt.Errorf("%w: icon too long (max 100 characters)", ErrValidation)
	}
	return nil
}

// CategoryPatch carries the mutable fields of an update. Nil pointers mean
// "leave unchanged". ClearParent moves the category to the root; it wins
// over ParentID. Kind is deliberately absent: it is immutable.
type CategoryPatch struct {
	Name        *string
	Description *string
	Color       *string
	Icon        *string
	IsActive    *bool
	ParentID    *string
	ClearParent bool
}

// Empty reports whether the patch would change nothing.
func (p CategoryPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Color == nil &&
		p.Icon == nil && p.IsActive == nil && p.ParentID == nil && !p.ClearParent
}
