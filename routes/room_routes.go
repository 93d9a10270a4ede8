package routes

import (
	"matchroom_server/controllers"
	"matchroom_server/services"

	"github.com/gorilla/mux"
)

// RegisterRoomRoutes sets up room lifecycle routes under /api/rooms
func RegisterRoomRoutes(api *mux.Router, roomService *services.RoomService) {
	controller := controllers.NewRoomController(roomService)

	api.HandleFunc("/rooms", controller.CreateRoom).Methods("POST")
	api.HandleFunc("/rooms/join", controller.JoinRoom).Methods("POST")
	// registered before /{roomId} so "mine" is not taken as an id
	api.HandleFunc("/rooms/mine", controller.GetMyRooms).Methods("GET")
	api.HandleFunc("/rooms/{roomId}", controller.GetRoom).Methods("GET")
}
