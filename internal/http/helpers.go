package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"tally/internal/auth"
	"tally/internal/core"
	"tally/internal/services"
)

// errorResponse is the uniform error envelope. The error field carries a
// stable machine-readable code so clients can render a specific message.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors to HTTP status codes and stable error codes.
// Guard failures (cycle, children, in-use) come back as 409 so the UI can
// tell the user exactly which rule blocked the operation.
func writeError(w http.ResponseWriter, err error) {
	var (
		status = http.StatusInternalServerError
		code   = "internal_error"
	)
	switch {
	case errors.Is(err, core.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, core.ErrTenantMismatch):
		status, code = http.StatusUnprocessableEntity, "tenant_mismatch"
	case errors.Is(err, core.ErrKindMismatch):
		status, code = http.StatusUnprocessableEntity, "kind_mismatch"
	case errors.Is(err, core.ErrCycleDetected):
		status, code = http.StatusConflict, "cycle_detected"
	case errors.Is(err, core.ErrHasChildren):
		status, code = http.StatusConflict, "has_children"
	case errors.Is(err, core.ErrInUse):
		status, code = http.StatusConflict, "in_use"
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrEmailExists):
		status, code = http.StatusConflict, "email_exists"
	case errors.Is(err, auth.ErrWeakPassword):
		status, code = http.StatusBadRequest, "weak_password"
	case errors.Is(err, services.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Never leak driver or broker internals to clients.
		msg = "internal error"
	}

	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", core.ErrValidation, err)
	}
	return nil
}
