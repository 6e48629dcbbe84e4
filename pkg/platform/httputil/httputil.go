// Package httputil centralizes JSON response writing so every handler emits
// the same envelope shape.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "agritrust/pkg/domain-errors"
)

// ErrorResponse is the JSON envelope for failed requests. Code carries the
// stable numeric contract value; Error is its slug.
type ErrorResponse struct {
	Code        int    `json:"code"`
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// ToHTTPStatus maps a domain code to an HTTP status.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotAuthorized, dErrors.CodeLogNotAuthorized:
		return http.StatusForbidden
	case dErrors.CodeAlreadyRegistered, dErrors.CodeAlreadyVerified, dErrors.CodeAlreadyModerated:
		return http.StatusConflict
	case dErrors.CodeInvalidInput, dErrors.CodeLogInvalidInput, dErrors.CodeInvalidStatus:
		return http.StatusBadRequest
	case dErrors.CodeNotRegistered, dErrors.CodeLogNotFound:
		return http.StatusNotFound
	case dErrors.CodeNotVerified, dErrors.CodeLogNotVerified:
		return http.StatusForbidden
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodePaymentFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// WriteError translates err into the JSON error envelope. Internal errors
// omit the description so infrastructure detail never leaks to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{
		Code:  int(code),
		Error: code.Slug(),
	}
	if code != dErrors.CodeInternal {
		resp.Description = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes a success payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}
