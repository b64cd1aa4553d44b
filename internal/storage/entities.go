package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tally/internal/core"
)

func (q *Queries) CreateEntity(ctx context.Context, e *core.Entity) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO entities (id, name, type, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Type, e.Description, fmtTime(e.CreatedAt), fmtTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

func (q *Queries) GetEntityByID(ctx context.Context, id string) (*core.Entity, error) {
	var (
		e                    core.Entity
		createdAt, updatedAt string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, name, type, description, created_at, updated_at
		FROM entities WHERE id = ?`, id).
		Scan(&e.ID, &e.Name, &e.Type, &e.Description, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: entity %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

// ListEntitiesForUser returns every entity the user is a member of, ordered
// by name.
func (q *Queries) ListEntitiesForUser(ctx context.Context, userID string) ([]core.Entity, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT e.id, e.name, e.type, e.description, e.created_at, e.updated_at
		FROM entities e
		JOIN user_entities ue ON ue.entity_id = e.id
		WHERE ue.user_id = ?
		ORDER BY e.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		var (
			e                    core.Entity
			createdAt, updatedAt string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.Description, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		e.UpdatedAt = parseTime(updatedAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return out, nil
}

func (q *Queries) AddMembership(ctx context.Context, m *core.Membership) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO user_entities (user_id, entity_id, role, created_at)
		VALUES (?, ?, ?, ?)`,
		m.UserID, m.EntityID, m.Role, fmtTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (q *Queries) GetMembership(ctx context.Context, userID, entityID string) (*core.Membership, error) {
	var (
		m         core.Membership
		createdAt string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT user_id, entity_id, role, created_at
		FROM user_entities WHERE user_id = ? AND entity_id = ?`, userID, entityID).
		Scan(&m.UserID, &m.EntityID, &m.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: membership", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

func (q *Queries) ListMemberships(ctx context.Context, entityID string) ([]core.Membership, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT user_id, entity_id, role, created_at
		FROM user_entities WHERE entity_id = ?
		ORDER BY created_at`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []core.Membership
	for rows.Next() {
		var (
			m         core.Membership
			createdAt string
		)
		if err := rows.Scan(&m.UserID, &m.EntityID, &m.Role, &createdAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.CreatedAt = parseTime(createdAt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return out, nil
}
