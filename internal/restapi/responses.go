package restapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"fleetconsole.org/livemap/internal/models"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, response models.ResponseModel) error {
	setJSONResponseType(&w)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(response)
}

func (api *RestAPI) sendResponse(w http.ResponseWriter, r *http.Request, response models.ResponseModel) {
	status := response.Code
	if status == 0 {
		status = http.StatusOK
	}
	if err := writeJSON(w, status, response); err != nil {
		api.Logger.Error("failed to encode response", "error", err, "path", r.URL.Path)
	}
}

func (api *RestAPI) sendCreated(w http.ResponseWriter, r *http.Request, entry interface{}) {
	response := models.NewEntryResponse(entry)
	response.Code = http.StatusCreated
	response.Text = "Created"
	api.sendResponse(w, r, response)
}

func (api *RestAPI) sendNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func setJSONResponseType(w *http.ResponseWriter) {
	(*w).Header().Set("Content-Type", "application/json")
}

// readJSON decodes a single JSON value from the request body into dst.
func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case errors.As(err, &syntaxErr):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxErr.Offset)
		case errors.As(err, &typeErr):
			return fmt.Errorf("body contains an invalid value for field %q", typeErr.Field)
		case errors.As(err, &maxErr):
			return fmt.Errorf("body must not be larger than %d bytes", maxErr.Limit)
		default:
			return err
		}
	}
	if dec.More() {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}
