package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tally/internal/core"
)

const budgetColumns = `id, entity_id, category_id, amount_cents, period, start_date, end_date, is_active, created_at, updated_at`

func scanBudget(row interface{ Scan(...any) error }) (*core.Budget, error) {
	var (
		b                    core.Budget
		startDate            string
		endDate              sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&b.ID, &b.EntityID, &b.CategoryID, &b.Amount.Cents,
		&b.Period, &startDate, &endDate, &b.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	b.StartDate = parseDate(startDate)
	b.EndDate = datePtr(endDate)
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return &b, nil
}

func (q *Queries) CreateBudget(ctx context.Context, b *core.Budget) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.EntityID, b.CategoryID, b.Amount.Cents, b.Period,
		fmtDate(b.StartDate), nullDate(b.EndDate), b.IsActive,
		fmtTime(b.CreatedAt), fmtTime(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (q *Queries) GetBudgetByID(ctx context.Context, id string) (*core.Budget, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: budget %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (q *Queries) ListBudgets(ctx context.Context, entityID string, activeOnly bool) ([]core.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE entity_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY start_date DESC`

	rows, err := q.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

func (q *Queries) UpdateBudget(ctx context.Context, b *core.Budget) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE budgets
		SET category_id = ?, amount_cents = ?, period = ?, start_date = ?,
		    end_date = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		b.CategoryID, b.Amount.Cents, b.Period, fmtDate(b.StartDate),
		nullDate(b.EndDate), b.IsActive, fmtTime(b.UpdatedAt), b.ID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: budget %s", core.ErrNotFound, b.ID)
	}
	return nil
}

func (q *Queries) DeleteBudget(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: budget %s", core.ErrNotFound, id)
	}
	return nil
}
