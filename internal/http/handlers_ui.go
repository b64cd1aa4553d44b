package http

import (
	"log/slog"
	"net/http"

	"tally/internal/core"
)

type categoryTreePage struct {
	EntityID string
	Roots    []*core.CategoryNode
}

func (s *Server) loadTreePage(r *http.Request) (categoryTreePage, error) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	tree, err := s.categories.GetTree(r.Context(), r.PathValue("entityID"), includeInactive)
	if err != nil {
		return categoryTreePage{}, err
	}
	return categoryTreePage{
		EntityID: r.PathValue("entityID"),
		Roots:    tree,
	}, nil
}

// handleCategoryTreeWidget renders the full category management page.
func (s *Server) handleCategoryTreeWidget(w http.ResponseWriter, r *http.Request) {
	page, err := s.loadTreePage(r)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "categories.html", page); err != nil {
		slog.ErrorContext(r.Context(), "Template rendering failed", "template", "categories.html", "error", err)
	}
}

// handleCategoryTreePartial renders just the nested tree, for HTMX swaps.
// The template recurses over Children, so the handler only hands it the
// roots.
func (s *Server) handleCategoryTreePartial(w http.ResponseWriter, r *http.Request) {
	page, err := s.loadTreePage(r)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "category-tree", page); err != nil {
		slog.ErrorContext(r.Context(), "Template rendering failed", "template", "category-tree", "error", err)
	}
}
