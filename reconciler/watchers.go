package reconciler

import (
	"context"
	"time"

	"matchroom_server/models"
)

// Poll intervals for the two watch modes
const (
	RoomPollInterval    = 3 * time.Second
	AccountPollInterval = 8 * time.Second
)

// MatchChecker is the polling half of the API.
type MatchChecker interface {
	CheckRoomMatch(ctx context.Context, roomID string) (*models.Match, error)
	CheckUserMatches(ctx context.Context) ([]models.Match, error)
}

// NewRoomWatcher reports the match of a single room.
func NewRoomWatcher(api MatchChecker, sub Subscriber, roomID string) *Reconciler {
	return New(Options{
		Topic:      models.RoomTopic(roomID),
		Subscriber: sub,
		Interval:   RoomPollInterval,
		Poll: func(ctx context.Context) ([]models.MatchEvent, error) {
			m, err := api.CheckRoomMatch(ctx, roomID)
			if err != nil || m == nil {
				return nil, err
			}
			return []models.MatchEvent{m.Event()}, nil
		},
	})
}

// NewAccountWatcher reports every new match involving userID.
func NewAccountWatcher(api MatchChecker, sub Subscriber, userID string) *Reconciler {
	return New(Options{
		Topic:      models.UserTopic(userID),
		Subscriber: sub,
		Interval:   AccountPollInterval,
		Poll: func(ctx context.Context) ([]models.MatchEvent, error) {
			matches, err := api.CheckUserMatches(ctx)
			if err != nil {
				return nil, err
			}
			events := make([]models.MatchEvent, 0, len(matches))
			for i := range matches {
				events = append(events, matches[i].Event())
			}
			return events, nil
		},
	})
}
