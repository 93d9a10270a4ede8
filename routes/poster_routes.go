package routes

import (
	"matchroom_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterPosterRoutes sets up the presigned poster URL route
func RegisterPosterRoutes(api *mux.Router, posters controllers.PosterURLGenerator) {
	controller := controllers.NewPosterController(posters)
	api.HandleFunc("/posters/url", controller.GetPresignedReadURL).Methods("POST")
}
