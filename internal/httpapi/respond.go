package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bureau.org/internal/audit"
	"bureau.org/internal/domain"
)

const retryAfterSeconds = 5

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		payload := map[string]any{
			"error":  "validation failed",
			"fields": ve.Errors,
		}
		if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusBadRequest, payload)
	case errors.Is(err, domain.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, "permission denied")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrBackendUnavailable):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeError(w, r, http.StatusServiceUnavailable, "backend unavailable, retry later")
	default:
		a.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("body", "request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.NewValidationError("body", "request body too large")
		}
		return domain.NewValidationError("body", err.Error())
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return domain.NewValidationError("body", "unexpected data after JSON body")
	}
	return nil
}

func queryInt(r *http.Request, name string, def, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(name, "must be a non-negative integer")
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

func queryStatus(r *http.Request) (domain.Status, error) {
	raw := r.URL.Query().Get("status")
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	st, ok := domain.ParseStatus(raw)
	if !ok {
		return "", domain.NewValidationError("status", "must be one of pending, confirmed, rejected, reopened")
	}
	return st, nil
}
