package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tally/internal/core"
)

const recurringColumns = `id, entity_id, category_id, name, amount_cents, kind, description, frequency, start_date, end_date, last_run, is_active, created_at, updated_at`

func scanRecurring(row interface{ Scan(...any) error }) (*core.RecurringTemplate, error) {
	var (
		rt                   core.RecurringTemplate
		kind, frequency      string
		startDate            string
		endDate, lastRun     sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&rt.ID, &rt.EntityID, &rt.CategoryID, &rt.Name,
		&rt.Amount.Cents, &kind, &rt.Description, &frequency,
		&startDate, &endDate, &lastRun, &rt.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rt.Kind = core.Kind(kind)
	rt.Frequency = core.Frequency(frequency)
	rt.StartDate = parseDate(startDate)
	rt.EndDate = datePtr(endDate)
	rt.LastRun = timePtr(lastRun)
	rt.CreatedAt = parseTime(createdAt)
	rt.UpdatedAt = parseTime(updatedAt)
	return &rt, nil
}

func (q *Queries) CreateRecurringTemplate(ctx context.Context, rt *core.RecurringTemplate) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO recurring_templates (`+recurringColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.ID, rt.EntityID, rt.CategoryID, rt.Name, rt.Amount.Cents,
		string(rt.Kind), rt.Description, string(rt.Frequency),
		fmtDate(rt.StartDate), nullDate(rt.EndDate), nullTime(rt.LastRun),
		rt.IsActive, fmtTime(rt.CreatedAt), fmtTime(rt.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert recurring template: %w", err)
	}
	return nil
}

func (q *Queries) GetRecurringTemplateByID(ctx context.Context, id string) (*core.RecurringTemplate, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_templates WHERE id = ?`, id)
	rt, err := scanRecurring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: recurring template %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get recurring template: %w", err)
	}
	return rt, nil
}

func (q *Queries) ListRecurringTemplates(ctx context.Context, entityID string) ([]core.RecurringTemplate, error) {
	return q.listRecurring(ctx, `WHERE entity_id = ? ORDER BY name`, entityID)
}

// ListActiveRecurringTemplates returns active templates across every entity.
// The worker scans these on each tick.
func (q *Queries) ListActiveRecurringTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	return q.listRecurring(ctx, `WHERE is_active = 1 ORDER BY entity_id, name`)
}

func (q *Queries) listRecurring(ctx context.Context, tail string, args ...any) ([]core.RecurringTemplate, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_templates `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTemplate
	for rows.Next() {
		rt, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring template: %w", err)
		}
		out = append(out, *rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recurring templates: %w", err)
	}
	return out, nil
}

func (q *Queries) UpdateRecurringTemplate(ctx context.Context, rt *core.RecurringTemplate) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE recurring_templates
		SET category_id = ?, name = ?, amount_cents = ?, kind = ?,
		    description = ?, frequency = ?, start_date = ?, end_date = ?,
		    is_active = ?, updated_at = ?
		WHERE id = ?`,
		rt.CategoryID, rt.Name, rt.Amount.Cents, string(rt.Kind),
		rt.Description, string(rt.Frequency), fmtDate(rt.StartDate),
		nullDate(rt.EndDate), rt.IsActive, fmtTime(rt.UpdatedAt), rt.ID)
	if err != nil {
		return fmt.Errorf("update recurring template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: recurring template %s", core.ErrNotFound, rt.ID)
	}
	return nil
}

// MarkRecurringTemplateRun stamps last_run after the worker instantiates a
// transaction from the template.
func (q *Queries) MarkRecurringTemplateRun(ctx context.Context, id string, when time.Time) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE recurring_templates SET last_run = ?, updated_at = ? WHERE id = ?`,
		fmtTime(when), fmtTime(when), id)
	if err != nil {
		return fmt.Errorf("mark recurring template run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: recurring template %s", core.ErrNotFound, id)
	}
	return nil
}

func (q *Queries) DeleteRecurringTemplate(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM recurring_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recurring template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: recurring template %s", core.ErrNotFound, id)
	}
	return nil
}
