package rest

import (
	"dwilive/errors"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

const maxBodySize = 1 << 20

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// RespondError writes {"error": msg} with the status mapped from err.
// Unexpected errors are logged and their cause is not exposed.
func RespondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := errors.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = errors.AckMessage(err)
	}
	RespondJSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON body into v. Malformed bodies are validation errors.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", errors.ErrValidation, err)
	}
	return nil
}
