package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	errs "github.com/matzehuels/reqlint/pkg/errors"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    errs.Code `json:"code"`
	Message string    `json:"message"`
}

// statusFor maps an error code to an HTTP status.
func statusFor(code errs.Code) int {
	c := string(code)
	switch {
	case strings.HasPrefix(c, "INVALID_"):
		return http.StatusBadRequest
	case strings.HasSuffix(c, "NOT_FOUND"):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := errs.GetCode(err)
	switch {
	case code != "":
	case errors.Is(err, context.DeadlineExceeded):
		code = errs.ErrCodeTimeout
	default:
		code = errs.ErrCodeInternal
	}
	writeJSON(w, statusFor(code), ErrorResponse{Code: code, Message: errs.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
