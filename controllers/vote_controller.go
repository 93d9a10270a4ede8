package controllers

import (
	"encoding/json"
	"net/http"

	"matchroom_server/helpers"
	"matchroom_server/services"

	"github.com/gorilla/mux"
)

// VoteController handles vote submissions
type VoteController struct {
	VoteService *services.VoteService
}

func NewVoteController(voteService *services.VoteService) *VoteController {
	return &VoteController{VoteService: voteService}
}

// Vote handles POST /api/rooms/{roomId}/votes
func (vc *VoteController) Vote(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var payload struct {
		CandidateID string `json:"candidateId"`
		Vote        *bool  `json:"vote"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		helpers.WriteError(w, http.StatusBadRequest, "vote must be a boolean")
		return
	}
	if payload.CandidateID == "" || payload.Vote == nil {
		helpers.WriteError(w, http.StatusBadRequest, "candidateId and vote are required")
		return
	}

	match, err := vc.VoteService.RecordVote(r.Context(), userID, mux.Vars(r)["roomId"], payload.CandidateID, *payload.Vote)
	if err != nil {
		writeServiceError(w, err, "record vote")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"match":   match,
	})
}
