package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"matchroom_server/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultRoomTTL is how long a room accepts joins and votes.
const DefaultRoomTTL = 24 * time.Hour

// RoomService creates and joins rooms and tracks who takes part in them.
type RoomService struct {
	Store      Store
	Allocator  *RoomCodeAllocator
	Candidates CandidateSource
	Matches    *MatchQueryService
	Probe      *IndexProbe
	TTL        time.Duration
	Now        func() time.Time
}

func NewRoomService(store Store, allocator *RoomCodeAllocator, candidates CandidateSource, matches *MatchQueryService, probe *IndexProbe, ttl time.Duration) *RoomService {
	if ttl <= 0 {
		ttl = DefaultRoomTTL
	}
	return &RoomService{
		Store:      store,
		Allocator:  allocator,
		Candidates: candidates,
		Matches:    matches,
		Probe:      probe,
		TTL:        ttl,
		Now:        time.Now,
	}
}

// NormalizeKind lowercases kind and checks it is supported.
func NormalizeKind(kind string) (string, error) {
	k := strings.ToLower(strings.TrimSpace(kind))
	switch k {
	case models.KindMovie, models.KindTV:
		return k, nil
	default:
		return "", ErrInvalidKind
	}
}

// NormalizeTags trims and de-duplicates tags and enforces the tag limit.
func NormalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	if len(out) > models.MaxRoomTags {
		return nil, ErrTooManyTags
	}
	return out, nil
}

// NormalizeCode upper-cases a user-typed join code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateRoom builds a room from the catalog, allocates its join code and
// records the host as the first participant.
func (s *RoomService) CreateRoom(ctx context.Context, hostID, kind string, tags []string) (*models.Room, error) {
	kind, err := NormalizeKind(kind)
	if err != nil {
		return nil, err
	}
	tags, err = NormalizeTags(tags)
	if err != nil {
		return nil, err
	}

	candidates, err := s.Candidates.FetchCandidates(ctx, kind, tags)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	now := s.Now().UTC()
	room := &models.Room{
		ID:         uuid.New().String(),
		HostID:     hostID,
		Kind:       kind,
		Tags:       tags,
		Candidates: candidates,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.TTL),
	}

	room.Code, err = s.Allocator.Allocate(ctx, room.ID, room.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := s.Store.CreateRoom(ctx, room); err != nil {
		if relErr := s.Store.ReleaseCode(ctx, room.Code, room.ID); relErr != nil {
			log.Warn().Err(relErr).Str("code", room.Code).Msg("⚠️ failed to release room code")
		}
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	marker := models.NewParticipationMarker(room.ID, hostID, now)
	if err := s.Store.PutParticipation(ctx, &marker); err != nil {
		return nil, fmt.Errorf("failed to record host participation: %w", err)
	}

	log.Info().Str("roomId", room.ID).Str("code", room.Code).Str("hostId", hostID).
		Int("candidates", len(candidates)).Msg("🆕 room created")
	return room, nil
}

// JoinRoom resolves code to the newest room holding it and records userID as a participant.
func (s *RoomService) JoinRoom(ctx context.Context, userID, code string) (*models.Room, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrRoomNotFound
	}

	rooms, err := withIndexFallback(ctx, s.Probe, models.RoomCodeIndex,
		func(ctx context.Context) ([]models.Room, error) { return s.Store.QueryRoomsByCode(ctx, code) },
		func(ctx context.Context) ([]models.Room, error) { return s.Store.ScanRoomsByCode(ctx, code) },
	)
	if err != nil {
		return nil, fmt.Errorf("failed to look up room code: %w", err)
	}
	if len(rooms) == 0 {
		return nil, ErrRoomNotFound
	}

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.After(rooms[j].CreatedAt) })
	room := rooms[0]
	now := s.Now().UTC()
	if room.Expired(now) {
		return nil, ErrRoomExpired
	}

	marker := models.NewParticipationMarker(room.ID, userID, now)
	if err := s.Store.PutParticipation(ctx, &marker); err != nil {
		return nil, fmt.Errorf("failed to record participation: %w", err)
	}
	log.Info().Str("roomId", room.ID).Str("userId", userID).Msg("👥 user joined room")
	return &room, nil
}

// LoadActiveRoom returns the room or ErrRoomNotFound if it is absent or expired.
func (s *RoomService) LoadActiveRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := s.Store.GetRoom(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	if room.Expired(s.Now()) {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// GetRoom returns the room, or nil when it does not exist or has expired.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := s.LoadActiveRoom(ctx, roomID)
	if errors.Is(err, ErrRoomNotFound) {
		return nil, nil
	}
	return room, err
}

// GetMyRooms lists the user's live rooms that have no match yet, newest first.
func (s *RoomService) GetMyRooms(ctx context.Context, userID string) ([]models.Room, error) {
	records, err := withIndexFallback(ctx, s.Probe, models.UserIDIndex,
		func(ctx context.Context) ([]models.Participation, error) {
			return s.Store.QueryParticipationsByUser(ctx, userID)
		},
		func(ctx context.Context) ([]models.Participation, error) {
			return s.Store.ScanParticipationsByUser(ctx, userID)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list participations: %w", err)
	}

	roomIDs := make([]string, 0, len(records))
	for _, p := range records {
		roomIDs = append(roomIDs, p.RoomID)
	}
	rooms, err := s.Store.GetRooms(ctx, roomIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load rooms: %w", err)
	}

	now := s.Now()
	active := make([]models.Room, 0, len(rooms))
	for _, room := range rooms {
		if room.Expired(now) {
			continue
		}
		match, err := s.Matches.FindRoomMatch(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		if match != nil {
			continue
		}
		active = append(active, room)
	}

	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.After(active[j].CreatedAt) })
	return active, nil
}
