package http

import (
	"net/http"
	"time"

	"tally/internal/core"
)

type entityResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toEntityResponse(e core.Entity) entityResponse {
	return entityResponse{
		ID:          e.ID,
		Name:        e.Name,
		Type:        e.Type,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	entity, err := s.entities.Create(r.Context(), userID(r.Context()), core.Entity{
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEntityResponse(*entity))
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.entities.ListForUser(r.Context(), userID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]entityResponse, 0, len(entities))
	for _, e := range entities {
		out = append(out, toEntityResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Role == "" {
		req.Role = core.RoleMember
	}

	err := s.entities.AddMember(r.Context(), userID(r.Context()), r.PathValue("entityID"), req.UserID, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
