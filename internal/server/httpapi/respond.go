package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/estately/internal/common"
	"github.com/dmitrijs2005/estately/internal/logging"
	"github.com/go-chi/chi/v5/middleware"
)

// Client-facing messages. Refresh failures share one message so callers
// cannot tell which check failed.
const (
	msgInvalidCredentials = "Invalid credentials"
	msgUserExists         = "User already exists"
	msgInvalidRefresh     = "Invalid or expired refresh token"
	msgTokenExpired       = "Token expired"
	msgUnauthorized       = "Unauthorized"
	msgForbidden          = "Forbidden"
	msgTooManyRequests    = "Too many requests"
	msgLoggedOut          = "Logged out"
	msgValidation         = "Validation failed"
	msgBadRequest         = "Malformed request body"
	msgUserNotFound       = "User not found"
	msgInternal           = "Internal server error"
)

// statusClientClosedRequest is nginx's code for a request the client
// abandoned before the response was written.
const statusClientClosedRequest = 499

type messageResponse struct {
	Message string `json:"message"`
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

type validationResponse struct {
	Message string       `json:"message"`
	Errors  []fieldError `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeServiceError maps a service error onto the HTTP taxonomy. Anything
// unexpected is logged with the request id and reported as an opaque 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		writeMessage(w, http.StatusBadRequest, msgValidation)
	case errors.Is(err, common.ErrorAlreadyExists):
		writeMessage(w, http.StatusBadRequest, msgUserExists)
	case errors.Is(err, common.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, msgInvalidCredentials)
	case common.IsRefreshFailure(err):
		writeMessage(w, http.StatusUnauthorized, msgInvalidRefresh)
	case errors.Is(err, common.ErrorNotFound):
		writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
	case errors.Is(err, context.Canceled):
		// the client is gone; the status is only for logs and metrics
		w.WriteHeader(statusClientClosedRequest)
	default:
		logging.FromContext(r.Context(), log).Error(r.Context(), "request failed",
			"error", err, "request_id", middleware.GetReqID(r.Context()))
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}

// eventResult labels an error for the auth events counter.
func eventResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, common.ErrValidation):
		return "invalid_input"
	case errors.Is(err, common.ErrorAlreadyExists):
		return "duplicate"
	case errors.Is(err, common.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, common.ErrRefreshExpired):
		return "expired"
	case common.IsRefreshFailure(err):
		return "invalid_token"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	default:
		return "error"
	}
}
