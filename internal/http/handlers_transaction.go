package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tally/internal/core"
	"tally/internal/storage"
)

const dateLayout = "2006-01-02"

type transactionRequest struct {
	CategoryID  string `json:"category_id"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Notes       string `json:"notes"`
}

type transactionResponse struct {
	ID          string    `json:"id"`
	EntityID    string    `json:"entity_id"`
	CategoryID  string    `json:"category_id"`
	UserID      *string   `json:"user_id"`
	Amount      string    `json:"amount"`
	AmountCents int64     `json:"amount_cents"`
	Kind        string    `json:"kind"`
	Description string    `json:"description,omitempty"`
	Date        string    `json:"date"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		EntityID:    t.EntityID,
		CategoryID:  t.CategoryID,
		UserID:      t.UserID,
		Amount:      t.Amount.String(),
		AmountCents: t.Amount.Cents,
		Kind:        string(t.Kind),
		Description: t.Description,
		Date:        t.Date.Format(dateLayout),
		Notes:       t.Notes,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (req transactionRequest) toDomain() (core.Transaction, error) {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: date must be YYYY-MM-DD", core.ErrValidation)
	}
	return core.Transaction{
		CategoryID:  req.CategoryID,
		Amount:      core.Money{Cents: cents},
		Kind:        kind,
		Description: req.Description,
		Date:        date,
		Notes:       req.Notes,
	}, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t, err := req.toDomain()
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := s.transactions.Create(r.Context(), r.PathValue("entityID"), userID(r.Context()), t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(*created))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
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

	out := make([]transactionResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.transactions.Get(r.Context(), r.PathValue("entityID"), r.PathValue("transactionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(*t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t, err := req.toDomain()
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.transactions.Update(r.Context(), r.PathValue("entityID"), r.PathValue("transactionID"), t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(*updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.transactions.Delete(r.Context(), r.PathValue("entityID"), r.PathValue("transactionID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func transactionFilterFromQuery(r *http.Request) (storage.TransactionFilter, error) {
	q := r.URL.Query()
	var f storage.TransactionFilter

	f.CategoryID = q.Get("category_id")
	if kind := q.Get("kind"); kind != "" {
		k, err := core.ParseKind(kind)
		if err != nil {
			return f, err
		}
		f.Kind = k
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return f, fmt.Errorf("%w: from must be YYYY-MM-DD", core.ErrValidation)
		}
		f.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return f, fmt.Errorf("%w: to must be YYYY-MM-DD", core.ErrValidation)
		}
		f.To = t
	}
	// year+month are shorthand for a from/to pair covering one month.
	if year := q.Get("year"); year != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			return f, fmt.Errorf("%w: year must be an integer", core.ErrValidation)
		}
		m := 1
		months := 12
		if month := q.Get("month"); month != "" {
			m, err = strconv.Atoi(month)
			if err != nil || m < 1 || m > 12 {
				return f, fmt.Errorf("%w: month must be between 1 and 12", core.ErrValidation)
			}
			months = 1
		}
		f.From = time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		f.To = f.From.AddDate(0, months, -1)
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%w: limit must be a non-negative integer", core.ErrValidation)
		}
		f.Limit = n
	}
	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%w: offset must be a non-negative integer", core.ErrValidation)
		}
		f.Offset = n
	}
	return f, nil
}
