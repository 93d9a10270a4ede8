package routes

import (
	"matchroom_server/controllers"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes sets up the unauthenticated routes for the application
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/welcome", controllers.WelcomeHandler).Methods("GET")
	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
}
