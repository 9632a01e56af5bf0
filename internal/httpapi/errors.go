package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	goCred "github.com/MrEthical07/goCred"
)

// apiError is the body of every non-2xx response.
type apiError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Status    int               `json:"status"`
	Path      string            `json:"path"`
	Timestamp string            `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// statusFor maps an engine error kind to an HTTP status and a public message.
// Messages never include the wrapped cause.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, goCred.ErrDuplicateUser):
		return http.StatusConflict, "user already exists"
	case errors.Is(err, goCred.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid username or password"
	case errors.Is(err, goCred.ErrTokenMalformed),
		errors.Is(err, goCred.ErrTokenSignatureInvalid),
		errors.Is(err, goCred.ErrTokenExpired),
		errors.Is(err, goCred.ErrTokenInvalid):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, goCred.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, goCred.ErrResetTokenExpired):
		return http.StatusGone, "reset token expired"
	case errors.Is(err, goCred.ErrResetTokenInvalid):
		return http.StatusBadRequest, "reset token invalid"
	case errors.Is(err, goCred.ErrPasswordPolicy):
		return http.StatusBadRequest, "password does not meet policy"
	case errors.Is(err, goCred.ErrPasswordReuse):
		return http.StatusBadRequest, "new password must be different from current password"
	case errors.Is(err, goCred.ErrRoleInvalid):
		return http.StatusBadRequest, "invalid role"
	case errors.Is(err, goCred.ErrRegistrationInvalid):
		return http.StatusBadRequest, "invalid registration request"
	case errors.Is(err, goCred.ErrLoginRateLimited),
		errors.Is(err, goCred.ErrRecoveryRateLimited):
		return http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, goCred.ErrNotificationDeliveryFailed):
		return http.StatusBadGateway, "could not deliver recovery link"
	case errors.Is(err, goCred.ErrStoreUnavailable),
		errors.Is(err, goCred.ErrEngineNotReady):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "goCred: request failed",
			"path", r.URL.Path, "kind", goCred.ErrorKind(err), "err", err)
	}
	s.writeAPIError(w, r, status, goCred.ErrorKind(err), msg, nil)
}

// writeValidation reports field errors from ozzo-validation as a 400.
func (s *Server) writeValidation(w http.ResponseWriter, r *http.Request, err error) {
	details := map[string]string{}
	var fields validation.Errors
	if errors.As(err, &fields) {
		for k, v := range fields {
			details[k] = v.Error()
		}
	}
	s.writeAPIError(w, r, http.StatusBadRequest, "ValidationError", "request validation failed", details)
}

func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, status int, code, msg string, details map[string]string) {
	if len(details) == 0 {
		details = nil
	}
	writeJSON(w, status, apiError{
		Code:      code,
		Message:   msg,
		Status:    status,
		Path:      r.URL.Path,
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Details:   details,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
