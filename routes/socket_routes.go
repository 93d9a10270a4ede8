package routes

import (
	"matchroom_server/socket"

	"github.com/gorilla/mux"
)

// RegisterSocketRoutes mounts the socket.io endpoint and the websocket match feed.
// Both read the token from the request themselves.
func RegisterSocketRoutes(r *mux.Router, io *socket.Server, hub *socket.Hub, jwtSecret string) {
	r.PathPrefix("/socket.io/").Handler(io.IO)
	r.HandleFunc("/ws/matches", socket.ServeWS(hub, jwtSecret)).Methods("GET")
}
