package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/storage"
)

func newTestStorage(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestEntity(t *testing.T, repo *storage.SQLiteRepository, name string) string {
	t.Helper()
	now := time.Now()
	e := &core.Entity{
		ID:        uuid.New().String(),
		Name:      name,
		Type:      "personal",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateEntity(context.Background(), e); err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	return e.ID
}

func mustCreate(t *testing.T, s *CategoryService, entityID, name string, kind core.Kind, parentID *string) *core.Category {
	t.Helper()
	c, err := s.Create(context.Background(), entityID, core.Category{
		Name:     name,
		Kind:     kind,
		ParentID: parentID,
	})
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return c
}

func TestCategoryService_Create(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCategoryService(repo)
	ctx := context.Background()
	entity := newTestEntity(t, repo, "Casa")

	t.Run("kind mismatch with parent is rejected", func(t *testing.T) {
		food := mustCreate(t, svc, entity, "Food", core.Expense, nil)
		groceries := mustCreate(t, svc, entity, "Groceries", core.Expense, &food.ID)
		if groceries.ParentID == nil || *groceries.ParentID != food.ID {
			t.Fatalf("child ParentID = %v, want %s", groceries.ParentID, food.ID)
		}

		_, err := svc.Create(ctx, entity, core.Category{
			Name:     "Salary",
			Kind:     core.Income,
			ParentID: &food.ID,
		})
		if !errors.Is(err, core.ErrKindMismatch) {
			t.Errorf("Create(income under expense) = %v, want ErrKindMismatch", err)
		}
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, entity, core.Category{Name: "   ", Kind: core.Expense})
		if !errors.Is(err, core.ErrValidation) {
			t.Errorf("Create(blank name) = %v, want ErrValidation", err)
		}
	})

	t.Run("missing parent is rejected", func(t *testing.T) {
		ghost := uuid.New().String()
		_, err := svc.Create(ctx, entity, core.Category{
			Name:     "Orphan",
			Kind:     core.Expense,
			ParentID: &ghost,
		})
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Create(missing parent) = %v, want ErrNotFound", err)
		}
	})

	t.Run("cross entity parent is rejected", func(t *testing.T) {
		other := newTestEntity(t, repo, "Startup")
		theirs := mustCreate(t, svc, other, "Ops", core.Expense, nil)

		_, err := svc.Create(ctx, entity, core.Category{
			Name:     "Sneaky",
			Kind:     core.Expense,
			ParentID: &theirs.ID,
		})
		if !errors.Is(err, core.ErrTenantMismatch) {
			t.Errorf("Create(foreign parent) = %v, want ErrTenantMismatch", err)
		}
	})
}

func TestCategoryService_CycleDetection(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCategoryService(repo)
	ctx := context.Background()
	entity := newTestEntity(t, repo, "Casa")

	a := mustCreate(t, svc, entity, "A", core.Expense, nil)
	b := mustCreate(t, svc, entity, "B", core.Expense, &a.ID)
	c := mustCreate(t, svc, entity, "C", core.Expense, &b.ID)

	t.Run("self parent", func(t *testing.T) {
		_, err := svc.Update(ctx, entity, a.ID, core.CategoryPatch{ParentID: &a.ID})
		if !errors.Is(err, core.ErrCycleDetected) {
			t.Errorf("Update(self parent) = %v, want ErrCycleDetected", err)
		}
	})

	t.Run("direct child as parent", func(t *testing.T) {
		_, err := svc.Update(ctx, entity, a.ID, core.CategoryPatch{ParentID: &b.ID})
		if !errors.Is(err, core.ErrCycleDetected) {
			t.Errorf("Update(A under B) = %v, want ErrCycleDetected", err)
		}
	})

	t.Run("deep descendant as parent", func(t *testing.T) {
		_, err := svc.Update(ctx, entity, a.ID, core.CategoryPatch{ParentID: &c.ID})
		if !errors.Is(err, core.ErrCycleDetected) {
			t.Errorf("Update(A under C) = %v, want ErrCycleDetected", err)
		}
	})

	t.Run("legal reparent still works", func(t *testing.T) {
		moved, err := svc.Update(ctx, entity, c.ID, core.CategoryPatch{ParentID: &a.ID})
		if err != nil {
			t.Fatalf("Update(C under A): %v", err)
		}
		if moved.ParentID == nil || *moved.ParentID != a.ID {
			t.Errorf("ParentID = %v, want %s", moved.ParentID, a.ID)
		}
	})

	t.Run("reparent to root", func(t *testing.T) {
		moved, err := svc.Update(ctx, entity, c.ID, core.CategoryPatch{ClearParent: true})
		if err != nil {
			t.Fatalf("Update(clear parent): %v", err)
		}
		if moved.ParentID != nil {
			t.Errorf("ParentID = %v, want nil", moved.ParentID)
		}
	})
}

func TestCategoryService_TenantIsolation(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCategoryService(repo)
	ctx := context.Background()
	t1 := newTestEntity(t, repo, "T1")
	t2 := newTestEntity(t, repo, "T2")

	x := mustCreate(t, svc, t1, "X", core.Expense, nil)

	t.Run("cross tenant get looks missing", func(t *testing.T) {
		if _, err := svc.Get(ctx, t2, x.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Get from other tenant = %v, want ErrNotFound", err)
		}
	})

	t.Run("cross tenant update looks missing", func(t *testing.T) {
		name := "Hijacked"
		_, err := svc.Update(ctx, t2, x.ID, core.CategoryPatch{Name: &name})
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Update from other tenant = %v, want ErrNotFound", err)
		}
	})

	t.Run("cross tenant delete looks missing", func(t *testing.T) {
		if err := svc.Delete(ctx, t2, x.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Delete from other tenant = %v, want ErrNotFound", err)
		}
	})

	t.Run("owner still sees it untouched", func(t *testing.T) {
		got, err := svc.Get(ctx, t1, x.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Name != "X" {
			t.Errorf("Name = %q, want X", got.Name)
		}
	})
}

func TestCategoryService_DeleteGuards(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCategoryService(repo)
	ctx := context.Background()
	entity := newTestEntity(t, repo, "Casa")

	t.Run("children block deletion until removed", func(t *testing.T) {
		p := mustCreate(t, svc, entity, "P", core.Expense, nil)
		c := mustCreate(t, svc, entity, "C", core.Expense, &p.ID)

		if err := svc.Delete(ctx, entity, p.ID); !errors.Is(err, core.ErrHasChildren) {
			t.Fatalf("Delete(parent) = %v, want ErrHasChildren", err)
		}
		if err := svc.Delete(ctx, entity, c.ID); err != nil {
			t.Fatalf("Delete(child): %v", err)
		}
		if err := svc.Delete(ctx, entity, p.ID); err != nil {
			t.Fatalf("Delete(parent) after child removed: %v", err)
		}
		if _, err := svc.Get(ctx, entity, p.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Get after delete = %v, want ErrNotFound", err)
		}
	})

	t.Run("financial records block deletion but not deactivation", func(t *testing.T) {
		y := mustCreate(t, svc, entity, "Y", core.Expense, nil)

		now := time.Now()
		tx := &core.Transaction{
			ID:         uuid.New().String(),
			EntityID:   entity,
			CategoryID: y.ID,
			Amount:     core.Money{Cents: 999},
			Kind:       core.Expense,
			Date:       now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}

		if err := svc.Delete(ctx, entity, y.ID); !errors.Is(err, core.ErrInUse) {
			t.Fatalf("Delete(referenced) = %v, want ErrInUse", err)
		}

		inactive := false
		got, err := svc.Update(ctx, entity, y.ID, core.CategoryPatch{IsActive: &inactive})
		if err != nil {
			t.Fatalf("deactivate: %v", err)
		}
		if got.IsActive {
			t.Error("IsActive = true after deactivation")
		}

		visible, err := svc.List(ctx, entity, true)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		found := false
		for _, c := range visible {
			if c.ID == y.ID && !c.IsActive {
				found = true
			}
		}
		if !found {
			t.Error("deactivated category missing from includeInactive listing")
		}

		hidden, err := svc.List(ctx, entity, false)
		if err != nil {
			t.Fatalf("List(active): %v", err)
		}
		for _, c := range hidden {
			if c.ID == y.ID {
				t.Error("deactivated category still in active listing")
			}
		}
	})
}

func TestCategoryService_GetTree(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCategoryService(repo)
	ctx := context.Background()
	entity := newTestEntity(t, repo, "Casa")

	t.Run("empty tenant gets empty forest", func(t *testing.T) {
		tree, err := svc.GetTree(ctx, entity, false)
		if err != nil {
			t.Fatalf("GetTree: %v", err)
		}
		if len(tree) != 0 {
			t.Errorf("tree = %v, want empty", tree)
		}
	})

	t.Run("nesting and name order", func(t *testing.T) {
		food := mustCreate(t, svc, entity, "Food", core.Expense, nil)
		mustCreate(t, svc, entity, "Restaurants", core.Expense, &food.ID)
		mustCreate(t, svc, entity, "Groceries", core.Expense, &food.ID)
		mustCreate(t, svc, entity, "Salary", core.Income, nil)

		tree, err := svc.GetTree(ctx, entity, false)
		if err != nil {
			t.Fatalf("GetTree: %v", err)
		}
		if len(tree) != 2 {
			t.Fatalf("root count = %d, want 2", len(tree))
		}
		if tree[0].Name != "Food" || tree[1].Name != "Salary" {
			t.Errorf("roots = %s, %s", tree[0].Name, tree[1].Name)
		}
		kids := tree[0].Children
		if len(kids) != 2 || kids[0].Name != "Groceries" || kids[1].Name != "Restaurants" {
			t.Errorf("children of Food = %v", kids)
		}
		if kids[0].Children == nil {
			t.Error("leaf Children is nil, want empty slice")
		}

		if got := core.CountNodes(tree); got != 4 {
			t.Errorf("CountNodes = %d, want 4", got)
		}
	})
}

func TestCategoryService_KindImmutableOnUpdate(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCategoryService(repo)
	ctx := context.Background()
	entity := newTestEntity(t, repo, "Casa")

	c := mustCreate(t, svc, entity, "Rent", core.Expense, nil)

	name := "Housing"
	got, err := svc.Update(ctx, entity, c.ID, core.CategoryPatch{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Kind != core.Expense {
		t.Errorf("Kind = %q after update, want expense", got.Kind)
	}
	if got.Name != "Housing" {
		t.Errorf("Name = %q, want Housing", got.Name)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestCategoryService_EmptyPatchIsNoOp(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCategoryService(repo)
	ctx := context.Background()
	entity := newTestEntity(t, repo, "Casa")

	c := mustCreate(t, svc, entity, "Rent", core.Expense, nil)

	got, err := svc.Update(ctx, entity, c.ID, core.CategoryPatch{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.UpdatedAt.Equal(c.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want untouched %v", got.UpdatedAt, c.UpdatedAt)
	}
	if got.Name != "Rent" {
		t.Errorf("Name = %q, want Rent", got.Name)
	}

	// The tenant check still applies even when nothing would change.
	other := newTestEntity(t, repo, "Altro")
	if _, err := svc.Update(ctx, other, c.ID, core.CategoryPatch{}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-tenant empty patch: err = %v, want ErrNotFound", err)
	}
}

func TestCategoryService_AncestryStaysBounded(t *testing.T) {
	repo := newTestStorage(t)
	svc := NewCategoryService(repo)
	ctx := context.Background()
	entity := newTestEntity(t, repo, "Deep")

	// Build a chain of 20 categories, then verify a legal reparent at the
	// bottom and an illegal one from the top.
	var chain []*core.Category
	var parent *string
	for i := 0; i < 20; i++ {
		c := mustCreate(t, svc, entity, fmt.Sprintf("N%02d", i), core.Expense, parent)
		chain = append(chain, c)
		parent = &c.ID
	}

	top, bottom := chain[0], chain[len(chain)-1]

	if _, err := svc.Update(ctx, entity, top.ID, core.CategoryPatch{ParentID: &bottom.ID}); !errors.Is(err, core.ErrCycleDetected) {
		t.Errorf("Update(top under bottom) = %v, want ErrCycleDetected", err)
	}

	if _, err := svc.Update(ctx, entity, bottom.ID, core.CategoryPatch{ClearParent: true}); err != nil {
		t.Errorf("Update(bottom to root): %v", err)
	}
}
