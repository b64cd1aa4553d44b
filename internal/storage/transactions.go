package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tally/internal/core"
)

// TransactionFilter narrows a transaction listing. Zero values mean
// "no filter" for every field.
type TransactionFilter struct {
	CategoryID string
	Kind       core.Kind
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

const transactionColumns = `id, entity_id, category_id, user_id, amount_cents, kind, description, date, notes, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*core.Transaction, error) {
	var (
		t                    core.Transaction
		userID               sql.NullString
		kind, date           string
		createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.EntityID, &t.CategoryID, &userID, &t.Amount.Cents,
		&kind, &t.Description, &date, &t.Notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.UserID = strPtr(userID)
	t.Kind = core.Kind(kind)
	t.Date = parseDate(date)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func (q *Queries) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.EntityID, t.CategoryID, nullStr(t.UserID), t.Amount.Cents,
		string(t.Kind), t.Description, fmtDate(t.Date), t.Notes,
		fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (q *Queries) GetTransactionByID(ctx context.Context, id string) (*core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns the entity's transactions, newest first.
func (q *Queries) ListTransactions(ctx context.Context, entityID string, f TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE entity_id = ?`
	args := []any{entityID}

	if f.CategoryID != "" {
		query += ` AND category_id = ?`
		args = append(args, f.CategoryID)
	}
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(f.Kind))
	}
	if !f.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, fmtDate(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, fmtDate(f.To))
	}
	query += ` ORDER BY date DESC, created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (q *Queries) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE transactions
		SET category_id = ?, amount_cents = ?, kind = ?, description = ?,
		    date = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		t.CategoryID, t.Amount.Cents, string(t.Kind), t.Description,
		fmtDate(t.Date), t.Notes, fmtTime(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: transaction %s", core.ErrNotFound, t.ID)
	}
	return nil
}

func (q *Queries) DeleteTransaction(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: transaction %s", core.ErrNotFound, id)
	}
	return nil
}

// SumByCategory sums transaction amounts per category in the date range,
// split by kind.
func (q *Queries) SumByCategory(ctx context.Context, entityID string, from, to time.Time) ([]core.CategoryAmount, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT t.category_id, c.name, t.kind, SUM(t.amount_cents)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.entity_id = ? AND t.date >= ? AND t.date <= ?
		GROUP BY t.category_id, t.kind
		ORDER BY c.name`,
		entityID, fmtDate(from), fmtDate(to))
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var (
			ca   core.CategoryAmount
			kind string
		)
		if err := rows.Scan(&ca.CategoryID, &ca.CategoryName, &kind, &ca.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		ca.Kind = core.Kind(kind)
		out = append(out, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category sums: %w", err)
	}
	return out, nil
}

// SpentForCategory sums expense amounts in the category over the date range.
// Budget progress calls this per budget.
func (q *Queries) SpentForCategory(ctx context.Context, entityID, categoryID string, from, to time.Time) (core.Money, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM transactions
		WHERE entity_id = ? AND category_id = ? AND kind = 'expense'
		  AND date >= ? AND date <= ?`,
		entityID, categoryID, fmtDate(from), fmtDate(to)).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum category spend: %w", err)
	}
	return core.Money{Cents: cents}, nil
}
