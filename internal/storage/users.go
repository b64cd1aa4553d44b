package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tally/internal/core"
)

func (q *Queries) CreateUser(ctx context.Context, u *core.User) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, fmtTime(u.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: email %s", core.ErrValidation, u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (q *Queries) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	return q.getUser(ctx, `WHERE id = ?`, id)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return q.getUser(ctx, `WHERE email = ?`, email)
}

func (q *Queries) getUser(ctx context.Context, where string, arg any) (*core.User, error) {
	var (
		u         core.User
		createdAt string
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, created_at FROM users `+where, arg).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}
