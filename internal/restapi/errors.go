package restapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"fleetconsole.org/livemap/internal/logging"
	"fleetconsole.org/livemap/internal/models"
)

func (api *RestAPI) errorResponse(w http.ResponseWriter, r *http.Request, status int, text string) {
	if err := writeJSON(w, status, models.NewResponse(status, nil, text)); err != nil {
		api.Logger.Error("failed to encode error response", "error", err, "path", r.URL.Path)
	}
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(logging.FromContext(r.Context()), "request failed", err,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))
	api.errorResponse(w, r, http.StatusInternalServerError, "internal server error")
}

func (api *RestAPI) sendNotFound(w http.ResponseWriter, r *http.Request) {
	api.errorResponse(w, r, http.StatusNotFound, "resource not found")
}

func (api *RestAPI) conflictResponse(w http.ResponseWriter, r *http.Request, text string) {
	api.errorResponse(w, r, http.StatusConflict, text)
}

// validationErrorResponse sends a 400 Bad Request response with field-specific validation errors
func (api *RestAPI) validationErrorResponse(w http.ResponseWriter, r *http.Request, fieldErrors map[string][]string) {
	response := struct {
		Code        int                 `json:"code"`
		CurrentTime int64               `json:"currentTime"`
		Text        string              `json:"text"`
		FieldErrors map[string][]string `json:"fieldErrors"`
	}{
		Code:        http.StatusBadRequest,
		CurrentTime: models.ResponseCurrentTime(),
		Text:        "validation failed",
		FieldErrors: fieldErrors,
	}

	setJSONResponseType(&w)
	w.WriteHeader(http.StatusBadRequest)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		api.Logger.Error("failed to encode validation error response", "error", err)
	}
}
