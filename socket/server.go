package socket

import (
	"context"
	"errors"

	"matchroom_server/auth"
	"matchroom_server/models"

	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"
)

const namespace = "/"

// MatchEventName is the socket.io event carrying a models.MatchEvent.
const MatchEventName = "match"

type joinRequest struct {
	RoomID string `json:"roomId"`
}

type subscribeUserRequest struct {
	Token string `json:"token"`
}

// Server pushes match events to browser clients over socket.io rooms named by topic.
type Server struct {
	IO        *socketio.Server
	JWTSecret string
}

// NewSocketServer initializes the Socket.IO server and its handlers
func NewSocketServer(jwtSecret string) *Server {
	io := socketio.NewServer(nil)
	s := &Server{IO: io, JWTSecret: jwtSecret}

	// Handle connection events
	io.OnConnect(namespace, func(c socketio.Conn) error {
		log.Debug().Str("socketId", c.ID()).Msg("✅ socket connected")
		return nil
	})

	// Room subscriptions are open to anyone holding the room id
	io.OnEvent(namespace, "join", func(c socketio.Conn, req joinRequest) string {
		if req.RoomID == "" {
			log.Warn().Str("socketId", c.ID()).Msg("❌ invalid roomId in join request")
			return "error: roomId is required"
		}
		c.Join(models.RoomTopic(req.RoomID))
		log.Debug().Str("socketId", c.ID()).Str("roomId", req.RoomID).Msg("👥 socket joined room")
		return "ok"
	})

	// User subscriptions require the user's own token
	io.OnEvent(namespace, "subscribeUser", func(c socketio.Conn, req subscribeUserRequest) string {
		userID, err := s.authenticate(req.Token)
		if err != nil {
			log.Warn().Err(err).Str("socketId", c.ID()).Msg("❌ rejected user subscription")
			return "error: " + err.Error()
		}
		c.Join(models.UserTopic(userID))
		return "ok"
	})

	io.OnError(namespace, func(c socketio.Conn, err error) {
		log.Warn().Err(err).Msg("socket error")
	})

	// Handle disconnection
	io.OnDisconnect(namespace, func(c socketio.Conn, reason string) {
		log.Debug().Str("socketId", c.ID()).Str("reason", reason).Msg("❌ socket disconnected")
	})

	return s
}

func (s *Server) authenticate(token string) (string, error) {
	if token == "" {
		return "", auth.ErrMissingToken
	}
	claims, err := auth.ParseAccessToken(token, s.JWTSecret)
	if err != nil {
		return "", auth.ErrInvalidToken
	}
	return claims.UserID, nil
}

func (s *Server) Name() string { return "socketio" }

// PublishMatch emits the event to every socket in the topic's room.
func (s *Server) PublishMatch(ctx context.Context, topic string, event models.MatchEvent) error {
	if _, _, ok := models.ParseTopic(topic); !ok {
		return errors.New("invalid topic " + topic)
	}
	s.IO.BroadcastToRoom(namespace, topic, MatchEventName, event)
	return nil
}

// Serve runs the engine loop until Close is called.
func (s *Server) Serve() {
	if err := s.IO.Serve(); err != nil {
		log.Error().Err(err).Msg("socket.io server stopped")
	}
}

func (s *Server) Close() error {
	return s.IO.Close()
}
