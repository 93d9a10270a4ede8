package services

import (
	"context"
	"sync"
	"time"

	"matchroom_server/metrics"
	"matchroom_server/models"

	"github.com/rs/zerolog/log"
)

// MatchPublisher delivers a match event to everyone subscribed to topic.
type MatchPublisher interface {
	Name() string
	PublishMatch(ctx context.Context, topic string, event models.MatchEvent) error
}

// MatchNotifier is what the vote service calls after creating a match.
type MatchNotifier interface {
	NotifyMatch(ctx context.Context, match *models.Match)
}

const publishTimeout = 5 * time.Second

// NotificationFanout broadcasts new matches on the room topic and on each
// matched user's topic. Delivery is best effort; clients poll as a backstop.
type NotificationFanout struct {
	Publishers []MatchPublisher

	wg sync.WaitGroup
}

func NewNotificationFanout(publishers ...MatchPublisher) *NotificationFanout {
	return &NotificationFanout{Publishers: publishers}
}

// Topics lists every topic a match is announced on.
func Topics(match *models.Match) []string {
	topics := make([]string, 0, len(match.MatchedUsers)+1)
	topics = append(topics, models.RoomTopic(match.RoomID))
	for _, u := range match.MatchedUsers {
		topics = append(topics, models.UserTopic(u))
	}
	return topics
}

// NotifyMatch publishes in the background, detached from the caller's cancellation.
func (f *NotificationFanout) NotifyMatch(ctx context.Context, match *models.Match) {
	event := match.Event()
	topics := Topics(match)
	detached := context.WithoutCancel(ctx)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(detached, publishTimeout)
		defer cancel()
		f.Broadcast(ctx, topics, event)
	}()
}

// Broadcast publishes event on every topic through every publisher, logging failures.
func (f *NotificationFanout) Broadcast(ctx context.Context, topics []string, event models.MatchEvent) {
	for _, p := range f.Publishers {
		for _, topic := range topics {
			if err := p.PublishMatch(ctx, topic, event); err != nil {
				metrics.FanoutErrors.WithLabelValues(p.Name()).Inc()
				log.Warn().Err(err).Str("publisher", p.Name()).Str("topic", topic).
					Str("matchId", event.MatchID).Msg("⚠️ match notification not delivered")
			}
		}
	}
	log.Info().Str("matchId", event.MatchID).Int("topics", len(topics)).Msg("📣 match broadcast")
}

// Wait blocks until in-flight notifications finish.
func (f *NotificationFanout) Wait() {
	f.wg.Wait()
}
