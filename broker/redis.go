package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"matchroom_server/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ChannelPrefix namespaces match topics on the Redis pub/sub bus.
const ChannelPrefix = "matchroom:"

// LocalPublisher is a publisher on this instance that relayed events are handed to.
type LocalPublisher interface {
	Name() string
	PublishMatch(ctx context.Context, topic string, event models.MatchEvent) error
}

func Channel(topic string) string { return ChannelPrefix + topic }

// NewClient connects to the Redis server at url (redis://host:port/db).
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return client, nil
}

// Backplane carries match events between server instances.
type Backplane struct {
	Client *redis.Client
}

func NewBackplane(client *redis.Client) *Backplane {
	return &Backplane{Client: client}
}

func (b *Backplane) Name() string { return "redis" }

func (b *Backplane) PublishMatch(ctx context.Context, topic string, event models.MatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.Client.Publish(ctx, Channel(topic), payload).Err()
}

// Relay forwards every event on the bus to the local publishers until ctx is done.
func (b *Backplane) Relay(ctx context.Context, locals ...LocalPublisher) error {
	sub := b.Client.PSubscribe(ctx, ChannelPrefix+"*")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to match bus: %w", err)
	}
	log.Info().Msg("📡 relaying match events from redis")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("match bus subscription closed")
			}
			topic := strings.TrimPrefix(msg.Channel, ChannelPrefix)
			var event models.MatchEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("dropping malformed match event")
				continue
			}
			for _, p := range locals {
				if err := p.PublishMatch(ctx, topic, event); err != nil {
					log.Warn().Err(err).Str("publisher", p.Name()).Str("topic", topic).Msg("⚠️ relay delivery failed")
				}
			}
		}
	}
}

// Subscriber streams one topic straight from the bus for clients inside the network.
type Subscriber struct {
	Client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{Client: client}
}

// Subscribe calls handle for each event on topic. It returns nil once ctx is
// cancelled and an error if the subscription cannot be kept.
func (s *Subscriber) Subscribe(ctx context.Context, topic string, handle func(models.MatchEvent)) error {
	sub := s.Client.Subscribe(ctx, Channel(topic))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription closed")
			}
			var event models.MatchEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			handle(event)
		}
	}
}
