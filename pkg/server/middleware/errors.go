package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Type categorizes the error, e.g. "invalid_request_error".
	Type string `json:"type"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Param is the name of the offending field, if any.
	Param string `json:"param,omitempty"`
}

// Error type constants.
const (
	ErrorTypeInvalidRequest   = "invalid_request_error"
	ErrorTypeAuthentication   = "authentication_error"
	ErrorTypePermissionDenied = "permission_denied"
	ErrorTypeNotFound         = "not_found"
	ErrorTypeMethodNotAllowed = "method_not_allowed"
	ErrorTypeServerError      = "server_error"
	ErrorTypeGatewayTimeout   = "gateway_timeout"
)

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, errType, message, param string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{
		Type:    errType,
		Message: message,
		Param:   param,
	}})
}
