package http

import (
	"errors"
	"net/http"
	"strings"

	"budgetcal/internal/auth"
	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/store"
)

// errorStatus maps service errors to a status code and a message safe to
// show the user.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrEmptyName):
		return http.StatusUnprocessableEntity, "Name is required"
	case errors.Is(err, core.ErrNameTooLong):
		return http.StatusUnprocessableEntity, "Name is too long"
	case errors.Is(err, core.ErrInvalidValue):
		return http.StatusUnprocessableEntity, "Invalid value"
	case errors.Is(err, core.ErrInvalidColor):
		return http.StatusUnprocessableEntity, "Invalid color, use a hex value like #ff9900"
	case errors.Is(err, core.ErrInvalidDay), errors.Is(err, calendar.ErrDayOutsideMonth):
		return http.StatusUnprocessableEntity, "Invalid day"
	case errors.Is(err, calendar.ErrForbidden):
		return http.StatusForbidden, "You can only change your own events"
	case errors.Is(err, calendar.ErrEventNotLoaded), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Event not found"
	case errors.Is(err, calendar.ErrNotLoaded):
		return http.StatusConflict, "Calendar not loaded, reload the page"
	case errors.Is(err, auth.ErrTOTPRequired):
		return http.StatusUnauthorized, "Enter the code from your authenticator app"
	case errors.Is(err, auth.ErrInvalidTOTP):
		return http.StatusUnauthorized, "Invalid verification code"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Login failed"
	case errors.Is(err, auth.ErrInvalidSession), errors.Is(err, auth.ErrSessionRevoked):
		return http.StatusUnauthorized, "Session expired, sign in again"
	default:
		return http.StatusInternalServerError, "Something went wrong, please retry"
	}
}

// writeError logs err and sends the matching error partial. Server errors
// are logged at error level, client errors at debug.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := errorStatus(err)
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, nil)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.FieldOperation, op, log.FieldStatusCode, status, log.FieldError, err)
	}
	ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
