package routes

import (
	"matchroom_server/controllers"
	"matchroom_server/services"

	"github.com/gorilla/mux"
)

// RegisterMatchRoutes sets up routes for match lookups
func RegisterMatchRoutes(api *mux.Router, matchService *services.MatchQueryService) {
	controller := controllers.NewMatchController(matchService)

	api.HandleFunc("/rooms/{roomId}/match", controller.CheckRoomMatch).Methods("GET")
	api.HandleFunc("/matches", controller.GetMyMatches).Methods("GET")
	api.HandleFunc("/matches/check", controller.CheckUserMatches).Methods("GET")
}
