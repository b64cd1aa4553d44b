package core

import "errors"

// Domain error taxonomy. The service layer returns these (usually wrapped
// with context) and the HTTP boundary maps them to distinct response codes
// so the UI can render an actionable message instead of a generic failure.
var (
	// ErrValidation covers malformed input: empty name, bad kind, missing
	// required fields.
	ErrValidation = errors.New("validation error")

	// ErrNotFound means the id does not resolve within the caller's tenant.
	// Cross-tenant lookups deliberately report not-found so existence never
	// leaks across entity boundaries.
	ErrNotFound = errors.New("not found")

	// ErrTenantMismatch means a parent reference points into another entity.
	ErrTenantMismatch = errors.New("parent category belongs to a different entity")

	// ErrKindMismatch means a parent/child income-vs-expense conflict.
	ErrKindMismatch = errors.New("parent category kind does not match")

	// ErrCycleDetected means a reparent would make a category its own
	// ancestor (self-parenting included).
	ErrCycleDetected = errors.New("change would create a cycle")

	// ErrHasChildren blocks hard deletion while subcategories exist.
	ErrHasChildren = errors.New("category has subcategories")

	// ErrInUse blocks hard deletion while financial records reference the
	// category.
	ErrInUse = errors.New("category is referenced by financial records")
)
