package http

import (
	"encoding/csv"
	"log/slog"
	"net/http"
)

// handleExportTransactions streams the entity's transactions as CSV,
// honoring the same query filters as the JSON listing.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := transactionFilterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := s.transactions.List(r.Context(), r.PathValue("entityID"), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "date", "kind", "category_id", "amount", "description", "notes"})
	for _, t := range list {
		_ = cw.Write([]string{
			t.ID,
			t.Date.Format(dateLayout),
			string(t.Kind),
			t.CategoryID,
			t.Amount.String(),
			t.Description,
			t.Notes,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed mid-stream", "error", err)
	}
}
