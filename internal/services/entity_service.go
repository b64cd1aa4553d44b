package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/storage"
)

// ErrForbidden marks operations the caller's membership role does not allow.
var ErrForbidden = errors.New("forbidden")

// EntityService manages tenants and their memberships. Every other service
// trusts the entity id it is handed; RequireMember is the single place that
// turns a user/entity pair into that trust.
type EntityService struct {
	storage *storage.SQLiteRepository
}

func NewEntityService(storage *storage.SQLiteRepository) *EntityService {
	return &EntityService{storage: storage}
}

// Create creates an entity and makes the creating user its owner, in one
// transaction.
func (s *EntityService) Create(ctx context.Context, userID string, e core.Entity) (*core.Entity, error) {
	e.ID = uuid.New().String()
	if e.Type == "" {
		e.Type = "personal"
	}
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now

	if err := e.Validate(); err != nil {
		return nil, err
	}

	err := s.storage.InTx(ctx, func(q *storage.Queries) error {
		if err := q.CreateEntity(ctx, &e); err != nil {
			return err
		}
		return q.AddMembership(ctx, &core.Membership{
			UserID:    userID,
			EntityID:  e.ID,
			Role:      core.RoleOwner,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListForUser returns the entities the user belongs to.
func (s *EntityService) ListForUser(ctx context.Context, userID string) ([]core.Entity, error) {
	return s.storage.ListEntitiesForUser(ctx, userID)
}

// RequireMember confirms the user belongs to the entity and returns it.
// Non-members get not found, never forbidden, so entity ids stay opaque.
func (s *EntityService) RequireMember(ctx context.Context, userID, entityID string) (*core.Entity, error) {
	if _, err := s.storage.GetMembership(ctx, userID, entityID); err != nil {
		return nil, fmt.Errorf("%w: entity %s", core.ErrNotFound, entityID)
	}
	return s.storage.GetEntityByID(ctx, entityID)
}

// RequireOwner confirms the user owns the entity.
func (s *EntityService) RequireOwner(ctx context.Context, userID, entityID string) (*core.Entity, error) {
	m, err := s.storage.GetMembership(ctx, userID, entityID)
	if err != nil {
		return nil, fmt.Errorf("%w: entity %s", core.ErrNotFound, entityID)
	}
	if m.Role != core.RoleOwner {
		return nil, fmt.Errorf("%w: owner role required", ErrForbidden)
	}
	return s.storage.GetEntityByID(ctx, entityID)
}

// AddMember adds a user to the entity. Only owners may invite.
func (s *EntityService) AddMember(ctx context.Context, ownerID, entityID, userID, role string) error {
	if role != core.RoleOwner && role != core.RoleMember {
		return fmt.Errorf("%w: invalid role %q", core.ErrValidation, role)
	}
	if _, err := s.RequireOwner(ctx, ownerID, entityID); err != nil {
		return err
	}
	if _, err := s.storage.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.storage.AddMembership(ctx, &core.Membership{
		UserID:    userID,
		EntityID:  entityID,
		Role:      role,
		CreatedAt: time.Now(),
	})
}
