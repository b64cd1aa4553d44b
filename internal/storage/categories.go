package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tally/internal/core"
)

const categoryColumns = `id, entity_id, name, kind, parent_id, description, color, icon, is_active, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (*core.Category, error) {
	var (
		c                    core.Category
		kind                 string
		parentID             sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&c.ID, &c.EntityID, &c.Name, &kind, &parentID,
		&c.Description, &c.Color, &c.Icon, &c.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.Kind = core.Kind(kind)
	c.ParentID = strPtr(parentID)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func (q *Queries) CreateCategory(ctx context.Context, c *core.Category) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.EntityID, c.Name, string(c.Kind), nullStr(c.ParentID),
		c.Description, c.Color, c.Icon, c.IsActive,
		fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// GetCategoryByID looks a category up without tenant scoping. Callers that
// serve external requests must compare EntityID themselves so cross-tenant
// ids stay indistinguishable from missing ones.
func (q *Queries) GetCategoryByID(ctx context.Context, id string) (*core.Category, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: category %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListCategories returns the entity's categories ordered by name. Inactive
// categories are filtered out unless includeInactive is set.
func (q *Queries) ListCategories(ctx context.Context, entityID string, includeInactive bool) ([]core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE entity_id = ?`
	if !includeInactive {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY name`

	rows, err := q.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// ListCategoryChildren returns the direct children of a category within the
// entity, ordered by name. Grandchildren are not included.
func (q *Queries) ListCategoryChildren(ctx context.Context, entityID, parentID string) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE entity_id = ? AND parent_id = ?
		ORDER BY name`, entityID, parentID)
	if err != nil {
		return nil, fmt.Errorf("list category children: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category children: %w", err)
	}
	return out, nil
}

func (q *Queries) UpdateCategory(ctx context.Context, c *core.Category) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, parent_id = ?, description = ?, color = ?, icon = ?,
		    is_active = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, nullStr(c.ParentID), c.Description, c.Color, c.Icon,
		c.IsActive, fmtTime(c.UpdatedAt), c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: category %s", core.ErrNotFound, c.ID)
	}
	return nil
}

func (q *Queries) DeleteCategory(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: category %s", core.ErrNotFound, id)
	}
	return nil
}

func (q *Queries) CategoryHasChildren(ctx context.Context, id string) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE parent_id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count children: %w", err)
	}
	return n > 0, nil
}

// CategoryInUse reports whether any financial record still references the
// category: transactions, budgets or recurring templates.
func (q *Queries) CategoryInUse(ctx context.Context, id string) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM transactions WHERE category_id = ?)
		     + (SELECT COUNT(*) FROM budgets WHERE category_id = ?)
		     + (SELECT COUNT(*) FROM recurring_templates WHERE category_id = ?)`,
		id, id, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count category references: %w", err)
	}
	return n > 0, nil
}

// CountCategories returns how many categories the entity has. Ancestry walks
// use it as a hard upper bound on chain length.
func (q *Queries) CountCategories(ctx context.Context, entityID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE entity_id = ?`, entityID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}
