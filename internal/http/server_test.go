package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tally/internal/auth"
	"tally/internal/services"
	"tally/internal/storage"
)

const testJWTSecret = "test-secret-key-with-enough-length!!"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	tokens := auth.NewJWTManager(testJWTSecret, time.Hour)
	transactions := services.NewTransactionService(repo, nil)

	srv := NewServer(":0", tokens, Services{
		Auth:         services.NewAuthService(repo, tokens),
		Entities:     services.NewEntityService(repo),
		Categories:   services.NewCategoryService(repo),
		Transactions: transactions,
		Budgets:      services.NewBudgetService(repo),
		Recurring:    services.NewRecurringService(repo, transactions),
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

// doJSON fires a request and decodes the response body into out (when out
// is non-nil), returning the status code.
func doJSON(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func registerUser(t *testing.T, baseURL, email string) (token, userID string) {
	t.Helper()
	var resp authResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/auth/register", "", map[string]string{
		"email":        email,
		"display_name": "Test User",
		"password":     "correct-horse",
	}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("register: status = %d, want 201", status)
	}
	return resp.Token, resp.User.ID
}

func createEntity(t *testing.T, baseURL, token, name string) string {
	t.Helper()
	var resp entityResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/entities", token, map[string]string{
		"name": name,
	}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("create entity: status = %d, want 201", status)
	}
	return resp.ID
}

func createCategoryVia(t *testing.T, baseURL, token, entityID string, body map[string]any) categoryResponse {
	t.Helper()
	var resp categoryResponse
	status := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/entities/%s/categories", baseURL, entityID), token, body, &resp)
	if status != http.StatusCreated {
		t.Fatalf("create category %v: status = %d, want 201", body["name"], status)
	}
	return resp
}

func TestAuthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	token, _ := registerUser(t, ts.URL, "ada@example.com")

	t.Run("me returns the registered user", func(t *testing.T) {
		var me userResponse
		status := doJSON(t, http.MethodGet, ts.URL+"/api/auth/me", token, nil, &me)
		if status != http.StatusOK {
			t.Fatalf("status = %d, want 200", status)
		}
		if me.Email != "ada@example.com" {
			t.Errorf("email = %q", me.Email)
		}
	})

	t.Run("me without a token is unauthorized", func(t *testing.T) {
		status := doJSON(t, http.MethodGet, ts.URL+"/api/auth/me", "", nil, nil)
		if status != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", status)
		}
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		var errResp errorResponse
		status := doJSON(t, http.MethodPost, ts.URL+"/api/auth/register", "", map[string]string{
			"email":        "ada@example.com",
			"display_name": "Imposter",
			"password":     "another-pass",
		}, &errResp)
		if status != http.StatusConflict {
			t.Fatalf("status = %d, want 409", status)
		}
		if errResp.Error != "email_exists" {
			t.Errorf("error code = %q", errResp.Error)
		}
	})

	t.Run("login with wrong password is unauthorized", func(t *testing.T) {
		status := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
			"email":    "ada@example.com",
			"password": "wrong",
		}, nil)
		if status != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", status)
		}
	})

	t.Run("login issues a working token", func(t *testing.T) {
		var resp authResponse
		status := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
			"email":    "ada@example.com",
			"password": "correct-horse",
		}, &resp)
		if status != http.StatusOK {
			t.Fatalf("status = %d, want 200", status)
		}
		if doJSON(t, http.MethodGet, ts.URL+"/api/auth/me", resp.Token, nil, nil) != http.StatusOK {
			t.Error("fresh login token rejected")
		}
	})
}

func TestCategoryEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token, _ := registerUser(t, ts.URL, "owner@example.com")
	entityID := createEntity(t, ts.URL, token, "Household")
	base := fmt.Sprintf("%s/api/entities/%s/categories", ts.URL, entityID)

	food := createCategoryVia(t, ts.URL, token, entityID, map[string]any{"name": "Food", "kind": "expense"})
	groceries := createCategoryVia(t, ts.URL, token, entityID, map[string]any{
		"name": "Groceries", "kind": "expense", "parent_id": food.ID,
	})

	t.Run("invalid kind is rejected", func(t *testing.T) {
		var errResp errorResponse
		status := doJSON(t, http.MethodPost, base, token, map[string]any{"name": "Weird", "kind": "sideways"}, &errResp)
		if status != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", status)
		}
		if errResp.Error != "validation_error" {
			t.Errorf("error code = %q", errResp.Error)
		}
	})

	t.Run("parent of the other kind is rejected", func(t *testing.T) {
		var errResp errorResponse
		status := doJSON(t, http.MethodPost, base, token, map[string]any{
			"name": "Salary", "kind": "income", "parent_id": food.ID,
		}, &errResp)
		if status != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", status)
		}
		if errResp.Error != "kind_mismatch" {
			t.Errorf("error code = %q", errResp.Error)
		}
	})

	t.Run("tree nests children under parents", func(t *testing.T) {
		var tree []categoryNodeResponse
		status := doJSON(t, http.MethodGet, base+"/tree", token, nil, &tree)
		if status != http.StatusOK {
			t.Fatalf("status = %d, want 200", status)
		}
		if len(tree) != 1 || tree[0].Name != "Food" {
			t.Fatalf("roots = %+v, want single Food root", tree)
		}
		if len(tree[0].Children) != 1 || tree[0].Children[0].Name != "Groceries" {
			t.Errorf("children = %+v", tree[0].Children)
		}
	})

	t.Run("reparenting under a descendant conflicts", func(t *testing.T) {
		var errResp errorResponse
		status := doJSON(t, http.MethodPut, base+"/"+food.ID, token, map[string]any{
			"parent_id": groceries.ID,
		}, &errResp)
		if status != http.StatusConflict {
			t.Fatalf("status = %d, want 409", status)
		}
		if errResp.Error != "cycle_detected" {
			t.Errorf("error code = %q", errResp.Error)
		}
	})

	t.Run("null parent moves a category to the root", func(t *testing.T) {
		var updated categoryResponse
		status := doJSON(t, http.MethodPut, base+"/"+groceries.ID, token, json.RawMessage(`{"parent_id": null}`), &updated)
		if status != http.StatusOK {
			t.Fatalf("status = %d, want 200", status)
		}
		if updated.ParentID != nil {
			t.Errorf("ParentID = %v, want nil", *updated.ParentID)
		}

		// Move it back for the guard tests below.
		status = doJSON(t, http.MethodPut, base+"/"+groceries.ID, token, map[string]any{"parent_id": food.ID}, nil)
		if status != http.StatusOK {
			t.Fatalf("restore parent: status = %d", status)
		}
	})

	t.Run("deleting a parent with children conflicts", func(t *testing.T) {
		var errResp errorResponse
		status := doJSON(t, http.MethodDelete, base+"/"+food.ID, token, nil, &errResp)
		if status != http.StatusConflict {
			t.Fatalf("status = %d, want 409", status)
		}
		if errResp.Error != "has_children" {
			t.Errorf("error code = %q", errResp.Error)
		}
	})

	t.Run("deleting a referenced category conflicts", func(t *testing.T) {
		status := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/entities/%s/transactions", ts.URL, entityID), token, map[string]any{
			"category_id": groceries.ID,
			"amount":      "42.50",
			"kind":        "expense",
			"date":        "2026-08-15",
		}, nil)
		if status != http.StatusCreated {
			t.Fatalf("create transaction: status = %d", status)
		}

		var errResp errorResponse
		status = doJSON(t, http.MethodDelete, base+"/"+groceries.ID, token, nil, &errResp)
		if status != http.StatusConflict {
			t.Fatalf("status = %d, want 409", status)
		}
		if errResp.Error != "in_use" {
			t.Errorf("error code = %q", errResp.Error)
		}
	})

	t.Run("deactivation always succeeds", func(t *testing.T) {
		var updated categoryResponse
		status := doJSON(t, http.MethodPut, base+"/"+groceries.ID, token, map[string]any{"is_active": false}, &updated)
		if status != http.StatusOK {
			t.Fatalf("status = %d, want 200", status)
		}
		if updated.IsActive {
			t.Error("category still active")
		}

		var active []categoryResponse
		doJSON(t, http.MethodGet, base, token, nil, &active)
		for _, c := range active {
			if c.ID == groceries.ID {
				t.Error("inactive category in default listing")
			}
		}

		var all []categoryResponse
		doJSON(t, http.MethodGet, base+"?include_inactive=true", token, nil, &all)
		found := false
		for _, c := range all {
			if c.ID == groceries.ID {
				found = true
			}
		}
		if !found {
			t.Error("inactive category missing from include_inactive listing")
		}
	})

	t.Run("unused leaf deletes cleanly", func(t *testing.T) {
		leaf := createCategoryVia(t, ts.URL, token, entityID, map[string]any{"name": "Transient", "kind": "expense"})
		status := doJSON(t, http.MethodDelete, base+"/"+leaf.ID, token, nil, nil)
		if status != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", status)
		}
		status = doJSON(t, http.MethodGet, base+"/"+leaf.ID, token, nil, nil)
		if status != http.StatusNotFound {
			t.Errorf("get after delete: status = %d, want 404", status)
		}
	})
}

func TestTenantBoundary(t *testing.T) {
	ts := newTestServer(t)

	ownerToken, _ := registerUser(t, ts.URL, "owner@example.com")
	entityID := createEntity(t, ts.URL, ownerToken, "Acme")
	cat := createCategoryVia(t, ts.URL, ownerToken, entityID, map[string]any{"name": "Ops", "kind": "expense"})

	strangerToken, _ := registerUser(t, ts.URL, "stranger@example.com")

	t.Run("non-member cannot see the entity", func(t *testing.T) {
		url := fmt.Sprintf("%s/api/entities/%s/categories/%s", ts.URL, entityID, cat.ID)
		if status := doJSON(t, http.MethodGet, url, strangerToken, nil, nil); status != http.StatusNotFound {
			t.Errorf("get: status = %d, want 404", status)
		}
		if status := doJSON(t, http.MethodDelete, url, strangerToken, nil, nil); status != http.StatusNotFound {
			t.Errorf("delete: status = %d, want 404", status)
		}
	})

	t.Run("cross-entity parent is a tenant mismatch", func(t *testing.T) {
		// Same user, two entities: membership passes, the parent check
		// still refuses to link trees across the boundary.
		otherEntity := createEntity(t, ts.URL, ownerToken, "Personal")
		var errResp errorResponse
		status := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/entities/%s/categories", ts.URL, otherEntity), ownerToken, map[string]any{
			"name": "Orphan", "kind": "expense", "parent_id": cat.ID,
		}, &errResp)
		if status != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", status)
		}
		if errResp.Error != "tenant_mismatch" {
			t.Errorf("error code = %q", errResp.Error)
		}
	})

	t.Run("only owners can add members", func(t *testing.T) {
		memberToken, memberID := registerUser(t, ts.URL, "member@example.com")
		status := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/entities/%s/members", ts.URL, entityID), ownerToken, map[string]string{
			"user_id": memberID,
		}, nil)
		if status != http.StatusNoContent {
			t.Fatalf("owner add member: status = %d, want 204", status)
		}

		_, thirdID := registerUser(t, ts.URL, "third@example.com")
		var errResp errorResponse
		status = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/entities/%s/members", ts.URL, entityID), memberToken, map[string]string{
			"user_id": thirdID,
		}, &errResp)
		if status != http.StatusForbidden {
			t.Fatalf("member add member: status = %d, want 403", status)
		}
		if errResp.Error != "forbidden" {
			t.Errorf("error code = %q", errResp.Error)
		}
	})
}

func TestCategoryTreeWidget(t *testing.T) {
	ts := newTestServer(t)
	token, _ := registerUser(t, ts.URL, "owner@example.com")
	entityID := createEntity(t, ts.URL, token, "Household")

	food := createCategoryVia(t, ts.URL, token, entityID, map[string]any{"name": "Food", "kind": "expense"})
	createCategoryVia(t, ts.URL, token, entityID, map[string]any{
		"name": "Groceries", "kind": "expense", "parent_id": food.ID,
	})

	fetch := func(t *testing.T, path string) string {
		t.Helper()
		req, _ := http.NewRequest(http.MethodGet, ts.URL+path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status = %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(resp.Body)
		return string(body)
	}

	t.Run("page nests children with edit and delete controls", func(t *testing.T) {
		body := fetch(t, "/ui/entities/"+entityID+"/categories")
		for _, want := range []string{"<details", "Groceries", "renameCategory", "deleteCategory", food.ID} {
			if !strings.Contains(body, want) {
				t.Errorf("page missing %q", want)
			}
		}
	})

	t.Run("partial renders just the tree", func(t *testing.T) {
		body := fetch(t, "/ui/entities/"+entityID+"/categories/tree")
		if !strings.Contains(body, "category-tree") || !strings.Contains(body, "Food") {
			t.Errorf("partial missing tree markup: %s", body)
		}
		if strings.Contains(body, "<html") {
			t.Error("partial carries the full page shell")
		}
	})
}

func TestTransactionAndDashboardEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token, _ := registerUser(t, ts.URL, "owner@example.com")
	entityID := createEntity(t, ts.URL, token, "Household")

	food := createCategoryVia(t, ts.URL, token, entityID, map[string]any{"name": "Food", "kind": "expense"})
	salary := createCategoryVia(t, ts.URL, token, entityID, map[string]any{"name": "Salary", "kind": "income"})

	txBase := fmt.Sprintf("%s/api/entities/%s/transactions", ts.URL, entityID)

	var created transactionResponse
	status := doJSON(t, http.MethodPost, txBase, token, map[string]any{
		"category_id": food.ID,
		"amount":      "12.34",
		"kind":        "expense",
		"description": "lunch",
		"date":        "2026-08-10",
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201", status)
	}
	if created.AmountCents != 1234 {
		t.Errorf("AmountCents = %d, want 1234", created.AmountCents)
	}

	status = doJSON(t, http.MethodPost, txBase, token, map[string]any{
		"category_id": salary.ID,
		"amount":      "2500.00",
		"kind":        "income",
		"date":        "2026-08-01",
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("create income: status = %d", status)
	}

	t.Run("kind filter narrows the listing", func(t *testing.T) {
		var list []transactionResponse
		status := doJSON(t, http.MethodGet, txBase+"?kind=expense", token, nil, &list)
		if status != http.StatusOK {
			t.Fatalf("status = %d, want 200", status)
		}
		if len(list) != 1 || list[0].ID != created.ID {
			t.Errorf("list = %+v, want just the lunch expense", list)
		}
	})

	t.Run("category of the wrong kind is rejected", func(t *testing.T) {
		var errResp errorResponse
		status := doJSON(t, http.MethodPost, txBase, token, map[string]any{
			"category_id": salary.ID,
			"amount":      "10.00",
			"kind":        "expense",
			"date":        "2026-08-11",
		}, &errResp)
		if status != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", status)
		}
		if errResp.Error != "kind_mismatch" {
			t.Errorf("error code = %q", errResp.Error)
		}
	})

	t.Run("dashboard sums the month", func(t *testing.T) {
		var dash dashboardResponse
		url := fmt.Sprintf("%s/api/entities/%s/dashboard?year=2026&month=8", ts.URL, entityID)
		status := doJSON(t, http.MethodGet, url, token, nil, &dash)
		if status != http.StatusOK {
			t.Fatalf("status = %d, want 200", status)
		}
		if dash.IncomeTotal != "2500.00" || dash.ExpenseTotal != "12.34" {
			t.Errorf("totals = %s in / %s out", dash.IncomeTotal, dash.ExpenseTotal)
		}
		if dash.Net != "2487.66" {
			t.Errorf("net = %s, want 2487.66", dash.Net)
		}
	})

	t.Run("csv export carries the rows", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/entities/%s/export/transactions.csv", ts.URL, entityID), nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), "lunch") {
			t.Errorf("csv missing row: %s", body)
		}
	})
}
