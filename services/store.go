package services

import (
	"context"
	"time"

	"matchroom_server/models"
)

// Store is the persistence contract the matching services run against.
// Implementations must provide single-record conditional writes for
// CreateRoom, ReserveCode and CreateMatch; nothing else is transactional.
type Store interface {
	// Rooms
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	GetRooms(ctx context.Context, roomIDs []string) ([]models.Room, error)
	QueryRoomsByCode(ctx context.Context, code string) ([]models.Room, error)
	ScanRoomsByCode(ctx context.Context, code string) ([]models.Room, error)
	ReserveCode(ctx context.Context, reservation *models.RoomCode, now time.Time) error
	// ReleaseCode drops the reservation for code if roomID still holds it.
	ReleaseCode(ctx context.Context, code, roomID string) error

	// Participation
	PutParticipation(ctx context.Context, p *models.Participation) error
	QueryParticipations(ctx context.Context, roomID string) ([]models.Participation, error)
	QueryPositiveVotes(ctx context.Context, roomID, candidateID string) ([]models.Participation, error)
	QueryParticipationsByUser(ctx context.Context, userID string) ([]models.Participation, error)
	ScanParticipationsByUser(ctx context.Context, userID string) ([]models.Participation, error)

	// Matches
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
	CreateMatch(ctx context.Context, match *models.Match) error
	PutUserMatches(ctx context.Context, rows []models.UserMatch) error
	QueryMatchesByRoom(ctx context.Context, roomID string, limit int32) ([]models.Match, error)
	ScanMatchesByRoom(ctx context.Context, roomID string) ([]models.Match, error)
	QueryUserMatches(ctx context.Context, userID string, limit int32) ([]models.Match, error)
	ScanMatchesByUser(ctx context.Context, userID string) ([]models.Match, error)

	// IndexReady reports whether the named secondary index can serve queries.
	IndexReady(ctx context.Context, index string) (bool, error)
}
