package controllers

import (
	"errors"
	"net/http"

	"matchroom_server/auth"
	"matchroom_server/helpers"
	"matchroom_server/services"

	"github.com/rs/zerolog/log"
)

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Welcome to the matchroom API."})
}

// currentUser resolves the authenticated caller or writes a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.CurrentUserID(r.Context())
	if !ok {
		helpers.WriteError(w, http.StatusUnauthorized, "unauthenticated")
		return "", false
	}
	return userID, true
}

// writeServiceError maps service errors onto HTTP responses.
func writeServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrRoomNotFound):
		helpers.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrRoomExpired):
		helpers.WriteError(w, http.StatusGone, err.Error())
	case errors.Is(err, services.ErrInvalidCandidate),
		errors.Is(err, services.ErrInvalidKind),
		errors.Is(err, services.ErrTooManyTags):
		helpers.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNoCandidates):
		helpers.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrCodeExhausted):
		helpers.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Str("action", action).Msg("❌ request failed")
		helpers.WriteError(w, http.StatusInternalServerError, "failed to "+action)
	}
}
