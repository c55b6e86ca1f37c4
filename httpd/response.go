package httpd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/holaplex/imgopt/object"
)

// ErrorResponse is the JSON error shape visible to callers.
type ErrorResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("error encoding response: %v", err)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Status: http.StatusBadRequest, Error: msg})
}

// invalidValue rejects a request parameter with the canonical message.
func invalidValue(w http.ResponseWriter, param, value string) {
	badRequest(w, fmt.Sprintf("Received value %s for param %s is not allowed", value, param))
}

// writePipelineError maps pipeline errors onto the HTTP error
// taxonomy.
func writePipelineError(w http.ResponseWriter, err error) {
	var invalid *object.InvalidContentError
	switch {
	case errors.Is(err, object.ErrMaxRetries):
		badRequest(w, "Max retries reached")
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Status: http.StatusInternalServerError,
			Error:  invalid.Error(),
		})
	case errors.Is(err, object.ErrUnreachable):
		w.WriteHeader(http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Status: http.StatusInternalServerError,
			Error:  err.Error(),
		})
	}
}
