package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"dockmate/internal/apperr"
)

type ApiResponse struct {
	Status  string `json:"status"` // success | fail
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

const maxJsonBody = 1 << 20

// DecodeRequestBody decodes a single JSON document of at most 1 MiB and
// rejects unknown fields and trailing data.
func DecodeRequestBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJsonBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after json document")
	}
	return nil
}

func WriteJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func RespondSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	WriteJson(w, statusCode, ApiResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func RespondFail(w http.ResponseWriter, statusCode int, message string, data any) {
	WriteJson(w, statusCode, ApiResponse{
		Status:  "fail",
		Message: message,
		Data:    data,
	})
}

// RespondError answers with the status matching the error kind.
func RespondError(w http.ResponseWriter, err error, data any) {
	RespondFail(w, apperr.HTTPStatus(apperr.KindOf(err)), err.Error(), data)
}
