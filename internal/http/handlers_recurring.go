package http

import (
	"fmt"
	"net/http"
	"time"

	"tally/internal/core"
)

type recurringRequest struct {
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	IsActive    *bool  `json:"is_active"`
}

type recurringResponse struct {
	ID          string     `json:"id"`
	EntityID    string     `json:"entity_id"`
	CategoryID  string     `json:"category_id"`
	Name        string     `json:"name"`
	Amount      string     `json:"amount"`
	Kind        string     `json:"kind"`
	Description string     `json:"description,omitempty"`
	Frequency   string     `json:"frequency"`
	StartDate   string     `json:"start_date"`
	EndDate     *string    `json:"end_date"`
	LastRun     *time.Time `json:"last_run"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toRecurringResponse(rt core.RecurringTemplate) recurringResponse {
	var endDate *string
	if rt.EndDate != nil {
		s := rt.EndDate.Format(dateLayout)
		endDate = &s
	}
	return recurringResponse{
		ID:          rt.ID,
		EntityID:    rt.EntityID,
		CategoryID:  rt.CategoryID,
		Name:        rt.Name,
		Amount:      rt.Amount.String(),
		Kind:        string(rt.Kind),
		Description: rt.Description,
		Frequency:   string(rt.Frequency),
		StartDate:   rt.StartDate.Format(dateLayout),
		EndDate:     endDate,
		LastRun:     rt.LastRun,
		IsActive:    rt.IsActive,
		CreatedAt:   rt.CreatedAt,
		UpdatedAt:   rt.UpdatedAt,
	}
}

func (req recurringRequest) toDomain() (core.RecurringTemplate, error) {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", core.ErrValidation)
	}
	rt := core.RecurringTemplate{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Amount:      core.Money{Cents: cents},
		Kind:        kind,
		Description: req.Description,
		Frequency:   core.Frequency(req.Frequency),
		StartDate:   start,
		IsActive:    true,
	}
	if req.EndDate != "" {
		end, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			return core.RecurringTemplate{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", core.ErrValidation)
		}
		rt.EndDate = &end
	}
	if req.IsActive != nil {
		rt.IsActive = *req.IsActive
	}
	return rt, nil
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rt, err := req.toDomain()
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := s.recurring.Create(r.Context(), r.PathValue("entityID"), rt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecurringResponse(*created))
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	list, err := s.recurring.List(r.Context(), r.PathValue("entityID"))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]recurringResponse, 0, len(list))
	for _, rt := range list {
		out = append(out, toRecurringResponse(rt))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRecurring(w http.ResponseWriter, r *http.Request) {
	rt, err := s.recurring.Get(r.Context(), r.PathValue("entityID"), r.PathValue("templateID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecurringResponse(*rt))
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rt, err := req.toDomain()
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.recurring.Update(r.Context(), r.PathValue("entityID"), r.PathValue("templateID"), rt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecurringResponse(*updated))
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.recurring.Delete(r.Context(), r.PathValue("entityID"), r.PathValue("templateID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
