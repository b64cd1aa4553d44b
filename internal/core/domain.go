package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

type (
	// Frequency is how often a recurring template produces a transaction.
	Frequency string

	// User is a registered account. Users gain access to tenants through
	// entity memberships, never directly.
	User struct {
		ID           string
		Email        string
		DisplayName  string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Entity is a tenant: an isolated financial tracking context (a family,
	// a startup). All categories, transactions and budgets are scoped to
	// exactly one entity and never cross the boundary.
	Entity struct {
		ID          string
		Name        string
		Type        string
		Description string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Membership links a user to an entity with a role.
	Membership struct {
		UserID    string
		EntityID  string
		Role      string
		CreatedAt time.Time
	}

	// Transaction is a single income or expense record classified by a
	// category of the same kind.
	Transaction struct {
		ID          string
		EntityID    string
		CategoryID  string
		UserID      *string
		Amount      Money
		Kind        Kind
		Description string
		Date        time.Time
		Notes       string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Budget is a spending limit attached to a category for a period.
	Budget struct {
		ID         string
		EntityID   string
		CategoryID string
		Amount     Money
		Period     string
		StartDate  time.Time
		EndDate    *time.Time
		IsActive   bool
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	// RecurringTemplate generates transactions on a schedule. LastRun is
	// stamped by the worker after each instantiation.
	RecurringTemplate struct {
		ID          string
		EntityID    string
		CategoryID  string
		Name        string
		Amount      Money
		Kind        Kind
		Description string
		Frequency   Frequency
		StartDate   time.Time
		EndDate     *time.Time
		LastRun     *time.Time
		IsActive    bool
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

var budgetPeriods = map[string]bool{
	"monthly":   true,
	"quarterly": true,
	"yearly":    true,
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (e Entity) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: empty entity name", ErrValidation)
	}
	if len(e.Name) > 255 {
		return fmt.Errorf("%w: entity name too long (max 255 characters)", ErrValidation)
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.CategoryID == "" {
		return fmt.Errorf("%w: missing category", ErrValidation)
	}
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: kind must be %q or %q", ErrValidation, Income, Expense)
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrValidation)
	}
	if len(t.Description) > 500 {
		return fmt.Errorf("%w: description too long (max 500 characters)", ErrValidation)
	}
	return nil
}

func (b Budget) Validate() error {
	if b.CategoryID == "" {
		return fmt.Errorf("%w: missing category", ErrValidation)
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if !budgetPeriods[b.Period] {
		return fmt.Errorf("%w: invalid budget period %q", ErrValidation, b.Period)
	}
	if b.StartDate.IsZero() {
		return fmt.Errorf("%w: missing start date", ErrValidation)
	}
	if b.EndDate != nil && b.EndDate.Before(b.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrValidation)
	}
	return nil
}

func (rt RecurringTemplate) Validate() error {
	if strings.TrimSpace(rt.Name) == "" {
		return fmt.Errorf("%w: empty template name", ErrValidation)
	}
	if rt.CategoryID == "" {
		return fmt.Errorf("%w: missing category", ErrValidation)
	}
	if !rt.Kind.Valid() {
		return fmt.Errorf("%w: kind must be %q or %q", ErrValidation, Income, Expense)
	}
	if err := rt.Amount.Validate(); err != nil {
		return err
	}
	if !rt.Frequency.Valid() {
		return fmt.Errorf("%w: invalid frequency %q", ErrValidation, rt.Frequency)
	}
	if rt.StartDate.IsZero() {
		return fmt.Errorf("%w: missing start date", ErrValidation)
	}
	if rt.EndDate != nil && rt.EndDate.Before(rt.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrValidation)
	}
	return nil
}
