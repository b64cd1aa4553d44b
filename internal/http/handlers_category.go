package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"tally/internal/core"
)

type categoryResponse struct {
	ID          string    `json:"id"`
	EntityID    string    `json:"entity_id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	ParentID    *string   `json:"parent_id"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type categoryNodeResponse struct {
	categoryResponse
	Children []categoryNodeResponse `json:"children"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID,
		EntityID:    c.EntityID,
		Name:        c.Name,
		Kind:        string(c.Kind),
		ParentID:    c.ParentID,
		Description: c.Description,
		Color:       c.Color,
		Icon:        c.Icon,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func toCategoryNodeResponses(nodes []*core.CategoryNode) []categoryNodeResponse {
	out := make([]categoryNodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, categoryNodeResponse{
			categoryResponse: toCategoryResponse(n.Category),
			Children:         toCategoryNodeResponses(n.Children),
		})
	}
	return out
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string  `json:"name"`
		Kind        string  `json:"kind"`
		ParentID    *string `json:"parent_id"`
		Description string  `json:"description"`
		Color       string  `json:"color"`
		Icon        string  `json:"icon"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := s.categories.Create(r.Context(), r.PathValue("entityID"), core.Category{
		Name:        req.Name,
		Kind:        kind,
		ParentID:    req.ParentID,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCategoryResponse(*created))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	flat, err := s.categories.List(r.Context(), r.PathValue("entityID"), includeInactive)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]categoryResponse, 0, len(flat))
	for _, c := range flat {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCategoryTree(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	tree, err := s.categories.GetTree(r.Context(), r.PathValue("entityID"), includeInactive)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCategoryNodeResponses(tree))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := s.categories.Get(r.Context(), r.PathValue("entityID"), r.PathValue("categoryID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(*c))
}

// handleUpdateCategory distinguishes three parent_id cases in the body:
// absent (leave unchanged), null (move to root) and a string (reparent).
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string         `json:"name"`
		Description *string         `json:"description"`
		Color       *string         `json:"color"`
		Icon        *string         `json:"icon"`
		IsActive    *bool           `json:"is_active"`
		ParentID    json.RawMessage `json:"parent_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	patch := core.CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
		IsActive:    req.IsActive,
	}

	if len(req.ParentID) > 0 {
		if bytes.Equal(bytes.TrimSpace(req.ParentID), []byte("null")) {
			patch.ClearParent = true
		} else {
			var parentID string
			if err := json.Unmarshal(req.ParentID, &parentID); err != nil {
				writeError(w, core.ErrValidation)
				return
			}
			patch.ParentID = &parentID
		}
	}

	updated, err := s.categories.Update(r.Context(), r.PathValue("entityID"), r.PathValue("categoryID"), patch)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCategoryResponse(*updated))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	err := s.categories.Delete(r.Context(), r.PathValue("entityID"), r.PathValue("categoryID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
