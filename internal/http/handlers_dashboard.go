package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tally/internal/core"
)

type categoryAmountResponse struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Kind         string `json:"kind"`
	Amount       string `json:"amount"`
}

type dashboardResponse struct {
	EntityID     string                   `json:"entity_id"`
	Year         int                      `json:"year"`
	Month        int                      `json:"month"`
	IncomeTotal  string                   `json:"income_total"`
	ExpenseTotal string                   `json:"expense_total"`
	Net          string                   `json:"net"`
	ByCategory   []categoryAmountResponse `json:"by_category"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	year, month := now.Year(), int(now.Month())

	q := r.URL.Query()
	if y := q.Get("year"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, fmt.Errorf("%w: year must be an integer", core.ErrValidation))
			return
		}
		year = n
	}
	if m := q.Get("month"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 || n > 12 {
			writeError(w, fmt.Errorf("%w: month must be between 1 and 12", core.ErrValidation))
			return
		}
		month = n
	}

	summary, err := s.transactions.MonthSummary(r.Context(), r.PathValue("entityID"), year, month)
	if err != nil {
		writeError(w, err)
		return
	}

	byCategory := make([]categoryAmountResponse, 0, len(summary.ByCategory))
	for _, ca := range summary.ByCategory {
		byCategory = append(byCategory, categoryAmountResponse{
			CategoryID:   ca.CategoryID,
			CategoryName: ca.CategoryName,
			Kind:         string(ca.Kind),
			Amount:       ca.Amount.String(),
		})
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		EntityID:     summary.EntityID,
		Year:         summary.Year,
		Month:        summary.Month,
		IncomeTotal:  summary.IncomeTotal.String(),
		ExpenseTotal: summary.ExpenseTotal.String(),
		Net:          summary.Net().String(),
		ByCategory:   byCategory,
	})
}
