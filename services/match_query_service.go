package services

import (
	"context"
	"fmt"
	"sort"

	"matchroom_server/models"
)

// Result caps for user match listings
const (
	UserMatchesLimit  = 50
	CheckMatchesLimit = 10
)

// MatchQueryService answers match lookups from the index when it is ready
// and from a table scan otherwise. Both paths return the same results.
type MatchQueryService struct {
	Store Store
	Probe *IndexProbe
}

func NewMatchQueryService(store Store, probe *IndexProbe) *MatchQueryService {
	return &MatchQueryService{Store: store, Probe: probe}
}

// FindRoomMatch returns the room's first match, or nil if it has none.
func (s *MatchQueryService) FindRoomMatch(ctx context.Context, roomID string) (*models.Match, error) {
	matches, err := withIndexFallback(ctx, s.Probe, models.MatchRoomIndex,
		func(ctx context.Context) ([]models.Match, error) { return s.Store.QueryMatchesByRoom(ctx, roomID, 1) },
		func(ctx context.Context) ([]models.Match, error) { return s.Store.ScanMatchesByRoom(ctx, roomID) },
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find room match: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sortOldestFirst(matches)
	return &matches[0], nil
}

// FindUserMatches returns up to 50 matches involving userID, newest first.
func (s *MatchQueryService) FindUserMatches(ctx context.Context, userID string) ([]models.Match, error) {
	return s.userMatches(ctx, userID, UserMatchesLimit)
}

// CheckUserMatches is the lightweight variant used for liveness polling.
func (s *MatchQueryService) CheckUserMatches(ctx context.Context, userID string) ([]models.Match, error) {
	return s.userMatches(ctx, userID, CheckMatchesLimit)
}

func (s *MatchQueryService) userMatches(ctx context.Context, userID string, limit int) ([]models.Match, error) {
	matches, err := withIndexFallback(ctx, s.Probe, models.UserMatchesTable,
		func(ctx context.Context) ([]models.Match, error) {
			return s.Store.QueryUserMatches(ctx, userID, int32(limit))
		},
		func(ctx context.Context) ([]models.Match, error) {
			return s.Store.ScanMatchesByUser(ctx, userID)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find user matches: %w", err)
	}

	sortNewestFirst(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	if matches == nil {
		matches = []models.Match{}
	}
	return matches, nil
}

// Ordering matches the UserMatches sort key: timestamp, then match id.
func sortNewestFirst(matches []models.Match) {
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].Timestamp.Equal(matches[j].Timestamp) {
			return matches[i].Timestamp.After(matches[j].Timestamp)
		}
		return matches[i].ID > matches[j].ID
	})
}

func sortOldestFirst(matches []models.Match) {
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].Timestamp.Equal(matches[j].Timestamp) {
			return matches[i].Timestamp.Before(matches[j].Timestamp)
		}
		return matches[i].ID < matches[j].ID
	})
}
