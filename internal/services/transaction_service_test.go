package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/storage"
)

func TestTransactionService_Create(t *testing.T) {
	repo := newTestStorage(t)
	categories := NewCategoryService(repo)
	svc := NewTransactionService(repo, nil)
	ctx := context.Background()
	entity := newTestEntity(t, repo, "Casa")

	food := mustCreate(t, categories, entity, "Food", core.Expense, nil)
	salary := mustCreate(t, categories, entity, "Salary", core.Income, nil)

	t.Run("valid expense", func(t *testing.T) {
		tx, err := svc.Create(ctx, entity, "user-1", core.Transaction{
			CategoryID:  food.ID,
			Amount:      core.Money{Cents: 1250},
			Kind:        core.Expense,
			Description: "lunch",
			Date:        time.Now(),
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if tx.ID == "" || tx.EntityID != entity {
			t.Errorf("created = %+v", tx)
		}
		if tx.UserID == nil || *tx.UserID != "user-1" {
			t.Errorf("UserID = %v, want user-1", tx.UserID)
		}
	})

	t.Run("kind must match category", func(t *testing.T) {
		_, err := svc.Create(ctx, entity, "", core.Transaction{
			CategoryID: salary.ID,
			Amount:     core.Money{Cents: 100},
			Kind:       core.Expense,
			Date:       time.Now(),
		})
		if !errors.Is(err, core.ErrKindMismatch) {
			t.Errorf("Create(expense in income category) = %v, want ErrKindMismatch", err)
		}
	})

	t.Run("inactive category rejected", func(t *testing.T) {
		dormant := mustCreate(t, categories, entity, "Dormant", core.Expense, nil)
		off := false
		if _, err := categories.Update(ctx, entity, dormant.ID, core.CategoryPatch{IsActive: &off}); err != nil {
			t.Fatalf("deactivate: %v", err)
		}

		_, err := svc.Create(ctx, entity, "", core.Transaction{
			CategoryID: dormant.ID,
			Amount:     core.Money{Cents: 100},
			Kind:       core.Expense,
			Date:       time.Now(),
		})
		if !errors.Is(err, core.ErrValidation) {
			t.Errorf("Create(inactive category) = %v, want ErrValidation", err)
		}
	})

	t.Run("foreign category looks missing", func(t *testing.T) {
		other := newTestEntity(t, repo, "Startup")
		theirs := mustCreate(t, categories, other, "Ops", core.Expense, nil)

		_, err := svc.Create(ctx, entity, "", core.Transaction{
			CategoryID: theirs.ID,
			Amount:     core.Money{Cents: 100},
			Kind:       core.Expense,
			Date:       time.Now(),
		})
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Create(foreign category) = %v, want ErrNotFound", err)
		}
	})

	t.Run("non positive amount rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, entity, "", core.Transaction{
			CategoryID: food.ID,
			Amount:     core.Money{Cents: 0},
			Kind:       core.Expense,
			Date:       time.Now(),
		})
		if !errors.Is(err, core.ErrValidation) {
			t.Errorf("Create(zero amount) = %v, want ErrValidation", err)
		}
	})
}

func TestTransactionService_MonthSummary(t *testing.T) {
	repo := newTestStorage(t)
	categories := NewCategoryService(repo)
	svc := NewTransactionService(repo, nil)
	ctx := context.Background()
	entity := newTestEntity(t, repo, "Casa")

	food := mustCreate(t, categories, entity, "Food", core.Expense, nil)
	salary := mustCreate(t, categories, entity, "Salary", core.Income, nil)

	add := func(categoryID string, kind core.Kind, cents int64, date time.Time) {
		t.Helper()
		if _, err := svc.Create(ctx, entity, "", core.Transaction{
			CategoryID: categoryID,
			Amount:     core.Money{Cents: cents},
			Kind:       kind,
			Date:       date,
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	add(food.ID, core.Expense, 3000, time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC))
	add(food.ID, core.Expense, 2000, time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC))
	add(salary.ID, core.Income, 250000, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	// Outside the month, must not count.
	add(food.ID, core.Expense, 9999, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	got, err := svc.MonthSummary(ctx, entity, 2026, 4)
	if err != nil {
		t.Fatalf("MonthSummary: %v", err)
	}
	if got.ExpenseTotal.Cents != 5000 {
		t.Errorf("ExpenseTotal = %d, want 5000", got.ExpenseTotal.Cents)
	}
	if got.IncomeTotal.Cents != 250000 {
		t.Errorf("IncomeTotal = %d, want 250000", got.IncomeTotal.Cents)
	}
	if got.Net().Cents != 245000 {
		t.Errorf("Net = %d, want 245000", got.Net().Cents)
	}
	if len(got.ByCategory) != 2 {
		t.Errorf("ByCategory = %+v", got.ByCategory)
	}
}

func TestTransactionService_UpdateAndDelete(t *testing.T) {
	repo := newTestStorage(t)
	categories := NewCategoryService(repo)
	svc := NewTransactionService(repo, nil)
	ctx := context.Background()
	entity := newTestEntity(t, repo, "Casa")
	other := newTestEntity(t, repo, "Other")

	food := mustCreate(t, categories, entity, "Food", core.Expense, nil)

	tx, err := svc.Create(ctx, entity, "", core.Transaction{
		CategoryID: food.ID,
		Amount:     core.Money{Cents: 700},
		Kind:       core.Expense,
		Date:       time.Now(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	t.Run("cross tenant update looks missing", func(t *testing.T) {
		_, err := svc.Update(ctx, other, tx.ID, *tx)
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Update from other tenant = %v, want ErrNotFound", err)
		}
	})

	t.Run("amount update persists", func(t *testing.T) {
		changed := *tx
		changed.Amount = core.Money{Cents: 1700}
		got, err := svc.Update(ctx, entity, tx.ID, changed)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if got.Amount.Cents != 1700 {
			t.Errorf("Amount = %d, want 1700", got.Amount.Cents)
		}
	})

	t.Run("delete removes the row", func(t *testing.T) {
		if err := svc.Delete(ctx, entity, tx.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := svc.Get(ctx, entity, tx.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Get after delete = %v, want ErrNotFound", err)
		}
	})
}

func TestTransactionService_ListFilter(t *testing.T) {
	repo := newTestStorage(t)
	categories := NewCategoryService(repo)
	svc := NewTransactionService(repo, nil)
	ctx := context.Background()
	entity := newTestEntity(t, repo, "Casa")

	food := mustCreate(t, categories, entity, "Food", core.Expense, nil)
	rent := mustCreate(t, categories, entity, "Rent", core.Expense, nil)

	for i, cat := range []string{food.ID, food.ID, rent.ID} {
		if _, err := svc.Create(ctx, entity, "", core.Transaction{
			CategoryID: cat,
			Amount:     core.Money{Cents: int64(100 * (i + 1))},
			Kind:       core.Expense,
			Date:       time.Date(2026, 4, i+1, 0, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := svc.List(ctx, entity, storage.TransactionFilter{CategoryID: food.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
	// Newest first.
	if len(got) == 2 && !got[0].Date.After(got[1].Date) {
		t.Errorf("order = %v then %v, want newest first", got[0].Date, got[1].Date)
	}
}
