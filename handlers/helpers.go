package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"popcorn/internal/validation"
)

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeValidationError reports field errors alongside the message when err carries them.
func writeValidationError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}
	writeJSONError(w, err.Error(), http.StatusBadRequest)
}

// decodeBody decodes the JSON body into dst and validates it.
func decodeBody(r *http.Request, v *validation.Validator, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidBody
	}
	if v == nil {
		return nil
	}
	return v.Validate(dst)
}

var errInvalidBody = errors.New("invalid request body")
