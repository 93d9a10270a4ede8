package routes

import (
	"matchroom_server/controllers"
	"matchroom_server/services"

	"github.com/gorilla/mux"
)

func RegisterVoteRoutes(api *mux.Router, voteService *services.VoteService) {
	controller := controllers.NewVoteController(voteService)
	api.HandleFunc("/rooms/{roomId}/votes", controller.Vote).Methods("POST")
}
