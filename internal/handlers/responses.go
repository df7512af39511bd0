package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"estateBack/internal/models"
	"estateBack/internal/services"
)

const (
	codeValidation  = "validation"
	codeNotFound    = "not_found"
	codeStorage     = "storage"
	codePersistence = "persistence"
	codeInternal    = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorResponse maps the error taxonomy onto a status and a client body.
// Server side failures never leak their cause to the client.
func errorResponse(err error) (int, errorBody) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{Error: ve.Error(), Code: codeValidation, Field: ve.Field}
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found", Code: codeNotFound}
	case errors.Is(err, models.ErrStorage):
		return http.StatusInternalServerError, errorBody{Error: "failed to store photos", Code: codeStorage}
	case errors.Is(err, models.ErrPersistence):
		return http.StatusInternalServerError, errorBody{Error: "database operation failed", Code: codePersistence}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal server error", Code: codeInternal}
}

func writeError(w http.ResponseWriter, log services.Logger, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Errorf("request failed: %v", err)
	}
	writeJSON(w, status, body)
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Code: codeNotFound})
}
