package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"matchroom_server/metrics"
	"matchroom_server/models"

	"github.com/rs/zerolog/log"
)

// VoteService records votes and creates a match the first time every
// participant of a room has voted yes on the same candidate.
type VoteService struct {
	Store    Store
	Rooms    *RoomService
	Notifier MatchNotifier
	Now      func() time.Time
}

func NewVoteService(store Store, rooms *RoomService, notifier MatchNotifier) *VoteService {
	return &VoteService{Store: store, Rooms: rooms, Notifier: notifier, Now: time.Now}
}

// RecordVote upserts the user's vote and returns the match it completed, if any.
// Repeating a vote only rewrites its timestamp.
func (s *VoteService) RecordVote(ctx context.Context, userID, roomID, candidateID string, vote bool) (*models.Match, error) {
	room, err := s.Rooms.LoadActiveRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	candidate, ok := room.Candidate(candidateID)
	if !ok {
		return nil, ErrInvalidCandidate
	}

	record := models.NewVote(roomID, userID, candidateID, vote, s.Now().UTC())
	if err := s.Store.PutParticipation(ctx, &record); err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}
	metrics.VotesTotal.WithLabelValues(strconv.FormatBool(vote)).Inc()

	if !vote {
		return nil, nil
	}

	participants, matched, err := s.evaluateMatch(ctx, roomID, candidateID)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, nil
	}

	matchID := models.MatchID(roomID, candidateID)
	existing, err := s.Store.GetMatch(ctx, matchID)
	if err == nil {
		s.indexForUsers(ctx, existing)
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to check for existing match: %w", err)
	}

	match := &models.Match{
		ID:           matchID,
		RoomID:       roomID,
		CandidateID:  candidateID,
		Title:        candidate.Title,
		PosterPath:   candidate.PosterPath,
		MatchedUsers: participants,
		Timestamp:    s.Now().UTC(),
	}
	return s.createMatch(ctx, match)
}

// evaluateMatch returns the room's participant set and whether every one of
// them has voted yes on candidateID. A lone participant never matches.
func (s *VoteService) evaluateMatch(ctx context.Context, roomID, candidateID string) ([]string, bool, error) {
	positives, err := s.Store.QueryPositiveVotes(ctx, roomID, candidateID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load positive votes: %w", err)
	}
	records, err := s.Store.QueryParticipations(ctx, roomID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load participants: %w", err)
	}

	yes := make(map[string]struct{}, len(positives))
	for _, p := range positives {
		yes[p.UserID] = struct{}{}
	}
	all := make(map[string]struct{}, len(records))
	for _, p := range records {
		all[p.UserID] = struct{}{}
	}

	participants := make([]string, 0, len(all))
	for u := range all {
		participants = append(participants, u)
	}
	sort.Strings(participants)

	if len(all) <= 1 || len(yes) != len(all) {
		return participants, false, nil
	}
	for u := range all {
		if _, ok := yes[u]; !ok {
			return participants, false, nil
		}
	}
	return participants, true, nil
}

// createMatch attempts the conditional create. Losing the race is not an
// error: the winner's match is read back and returned.
func (s *VoteService) createMatch(ctx context.Context, match *models.Match) (*models.Match, error) {
	err := s.Store.CreateMatch(ctx, match)
	if errors.Is(err, ErrMatchExists) {
		metrics.MatchCreateConflicts.Inc()
		winner, err := s.Store.GetMatch(ctx, match.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read concurrently created match: %w", err)
		}
		log.Debug().Str("matchId", match.ID).Msg("match created by a concurrent vote")
		s.indexForUsers(ctx, winner)
		return winner, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	metrics.MatchesCreated.Inc()
	log.Info().Str("matchId", match.ID).Str("roomId", match.RoomID).
		Strs("matchedUsers", match.MatchedUsers).Msg("✅ match created")

	s.indexForUsers(ctx, match)
	if s.Notifier != nil {
		s.Notifier.NotifyMatch(ctx, match)
	}
	return match, nil
}

// indexForUsers writes the match's UserMatches rows. Rows are keyed by sortKey,
// so rewriting them is idempotent and repairs an earlier failed write.
func (s *VoteService) indexForUsers(ctx context.Context, match *models.Match) {
	if err := s.Store.PutUserMatches(ctx, models.UserMatchesFor(match)); err != nil {
		log.Error().Err(err).Str("matchId", match.ID).Msg("❌ failed to index match for users")
	}
}
