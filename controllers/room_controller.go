package controllers

import (
	"encoding/json"
	"net/http"

	"matchroom_server/helpers"
	"matchroom_server/models"
	"matchroom_server/services"

	"github.com/gorilla/mux"
)

// RoomController handles HTTP requests for room lifecycle actions
type RoomController struct {
	RoomService *services.RoomService
}

func NewRoomController(roomService *services.RoomService) *RoomController {
	return &RoomController{RoomService: roomService}
}

// CreateRoom handles POST /api/rooms
func (rc *RoomController) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var payload struct {
		Kind string   `json:"kind"`
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		helpers.WriteError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	room, err := rc.RoomService.CreateRoom(r.Context(), userID, payload.Kind, payload.Tags)
	if err != nil {
		writeServiceError(w, err, "create room")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusCreated, map[string]interface{}{"room": room})
}

// JoinRoom handles POST /api/rooms/join
func (rc *RoomController) JoinRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Code == "" {
		helpers.WriteError(w, http.StatusBadRequest, "code is required")
		return
	}

	room, err := rc.RoomService.JoinRoom(r.Context(), userID, payload.Code)
	if err != nil {
		writeServiceError(w, err, "join room")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"room": room})
}

// GetRoom handles GET /api/rooms/{roomId}; an unknown or expired room yields null.
func (rc *RoomController) GetRoom(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	room, err := rc.RoomService.GetRoom(r.Context(), mux.Vars(r)["roomId"])
	if err != nil {
		writeServiceError(w, err, "get room")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"room": room})
}

// GetMyRooms handles GET /api/rooms/mine
func (rc *RoomController) GetMyRooms(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	rooms, err := rc.RoomService.GetMyRooms(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "list rooms")
		return
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"rooms": rooms})
}
