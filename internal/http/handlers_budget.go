package http

import (
	"fmt"
	"net/http"
	"time"

	"tally/internal/core"
)

type budgetRequest struct {
	CategoryID string `json:"category_id"`
	Amount     string `json:"amount"`
	Period     string `json:"period"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

type budgetResponse struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entity_id"`
	CategoryID string    `json:"category_id"`
	Amount     string    `json:"amount"`
	Period     string    `json:"period"`
	StartDate  string    `json:"start_date"`
	EndDate    *string   `json:"end_date"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type budgetProgressResponse struct {
	Budget    budgetResponse `json:"budget"`
	Spent     string         `json:"spent"`
	Remaining string         `json:"remaining"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	var endDate *string
	if b.EndDate != nil {
		s := b.EndDate.Format(dateLayout)
		endDate = &s
	}
	return budgetResponse{
		ID:         b.ID,
		EntityID:   b.EntityID,
		CategoryID: b.CategoryID,
		Amount:     b.Amount.String(),
		Period:     b.Period,
		StartDate:  b.StartDate.Format(dateLayout),
		EndDate:    endDate,
		IsActive:   b.IsActive,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func (req budgetRequest) toDomain() (core.Budget, error) {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.Budget{}, err
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return core.Budget{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", core.ErrValidation)
	}
	b := core.Budget{
		CategoryID: req.CategoryID,
		Amount:     core.Money{Cents: cents},
		Period:     req.Period,
		StartDate:  start,
	}
	if req.EndDate != "" {
		end, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			return core.Budget{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", core.ErrValidation)
		}
		b.EndDate = &end
	}
	return b, nil
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	b, err := req.toDomain()
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := s.budgets.Create(r.Context(), r.PathValue("entityID"), b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetResponse(*created))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active_only") == "true"

	list, err := s.budgets.List(r.Context(), r.PathValue("entityID"), activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]budgetResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBudgetResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBudgetProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.budgets.ListProgress(r.Context(), r.PathValue("entityID"), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]budgetProgressResponse, 0, len(progress))
	for _, p := range progress {
		out = append(out, budgetProgressResponse{
			Budget:    toBudgetResponse(p.Budget),
			Spent:     p.Spent.String(),
			Remaining: p.Remaining().String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.budgets.Get(r.Context(), r.PathValue("entityID"), r.PathValue("budgetID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(*b))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	b, err := req.toDomain()
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.budgets.Update(r.Context(), r.PathValue("entityID"), r.PathValue("budgetID"), b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(*updated))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.budgets.Delete(r.Context(), r.PathValue("entityID"), r.PathValue("budgetID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
