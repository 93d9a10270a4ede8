package routes

import (
	"matchroom_server/auth"
	"matchroom_server/controllers"
	"matchroom_server/metrics"
	"matchroom_server/mw"
	"matchroom_server/services"
	"matchroom_server/socket"

	"github.com/gorilla/mux"
)

// Dependencies are the collaborators the HTTP surface is built from.
// Posters, Socket, Hub and RateLimiter are optional.
type Dependencies struct {
	JWTSecret   string
	Rooms       *services.RoomService
	Votes       *services.VoteService
	Matches     *services.MatchQueryService
	Posters     controllers.PosterURLGenerator
	Socket      *socket.Server
	Hub         *socket.Hub
	RateLimiter *mw.RL
}

// SetupRouter assembles every route behind the metrics middleware; /api routes
// additionally require a bearer token.
func SetupRouter(d Dependencies) *mux.Router {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	RegisterRoutes(r)

	if d.Hub != nil && d.Socket != nil {
		RegisterSocketRoutes(r, d.Socket, d.Hub, d.JWTSecret)
	}

	api := r.PathPrefix("/api").Subrouter()
	if d.RateLimiter != nil {
		api.Use(d.RateLimiter.Middleware)
	}
	api.Use(auth.Middleware(d.JWTSecret))

	RegisterRoomRoutes(api, d.Rooms)
	RegisterVoteRoutes(api, d.Votes)
	RegisterMatchRoutes(api, d.Matches)
	if d.Posters != nil {
		RegisterPosterRoutes(api, d.Posters)
	}
	return r
}
