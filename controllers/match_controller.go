package controllers

import (
	"net/http"

	"matchroom_server/helpers"
	"matchroom_server/services"

	"github.com/gorilla/mux"
)

// MatchController handles HTTP requests for match lookups
type MatchController struct {
	MatchService *services.MatchQueryService
}

// NewMatchController creates a new MatchController instance
func NewMatchController(matchService *services.MatchQueryService) *MatchController {
	return &MatchController{MatchService: matchService}
}

// GetMyMatches handles GET /api/matches
func (mc *MatchController) GetMyMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	matches, err := mc.MatchService.FindUserMatches(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "fetch matches")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// CheckUserMatches handles GET /api/matches/check, the lightweight polling variant.
func (mc *MatchController) CheckUserMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	matches, err := mc.MatchService.CheckUserMatches(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "check matches")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// CheckRoomMatch handles GET /api/rooms/{roomId}/match
func (mc *MatchController) CheckRoomMatch(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	match, err := mc.MatchService.FindRoomMatch(r.Context(), mux.Vars(r)["roomId"])
	if err != nil {
		writeServiceError(w, err, "check room match")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"match": match})
}
