package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"matchroom_server/models"
)

// MemoryStore is an in-process Store with the same conditional-write
// semantics as DynamoStore. Used for local runs and tests.
type MemoryStore struct {
	mu             sync.RWMutex
	rooms          map[string]models.Room
	codes          map[string]models.RoomCode
	participations map[string]map[string]models.Participation // roomId -> userKey -> record
	matches        map[string]models.Match
	userMatches    map[string]map[string]models.UserMatch // userId -> sortKey -> row
	notReady       map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:          make(map[string]models.Room),
		codes:          make(map[string]models.RoomCode),
		participations: make(map[string]map[string]models.Participation),
		matches:        make(map[string]models.Match),
		userMatches:    make(map[string]map[string]models.UserMatch),
		notReady:       make(map[string]bool),
	}
}

var _ Store = (*MemoryStore)(nil)

// SetIndexReady toggles whether an index reports itself queryable. While an
// index is not ready, queries against it fail with ErrIndexNotReady.
func (m *MemoryStore) SetIndexReady(index string, ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notReady[index] = !ready
}

func (m *MemoryStore) indexErr(index string) error {
	if m.notReady[index] {
		return ErrIndexNotReady
	}
	return nil
}

func cloneRoom(r models.Room) models.Room {
	r.Tags = append([]string(nil), r.Tags...)
	r.Candidates = append([]models.Candidate(nil), r.Candidates...)
	return r
}

func cloneMatch(mt models.Match) models.Match {
	mt.MatchedUsers = append([]string(nil), mt.MatchedUsers...)
	return mt
}

func (m *MemoryStore) CreateRoom(_ context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; ok {
		return ErrRoomExists
	}
	m.rooms[room.ID] = cloneRoom(*room)
	return nil
}

func (m *MemoryStore) GetRoom(_ context.Context, roomID string) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	r = cloneRoom(r)
	return &r, nil
}

func (m *MemoryStore) GetRooms(_ context.Context, roomIDs []string) ([]models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{}, len(roomIDs))
	var rooms []models.Room
	for _, id := range roomIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if r, ok := m.rooms[id]; ok {
			rooms = append(rooms, cloneRoom(r))
		}
	}
	return rooms, nil
}

func (m *MemoryStore) roomsByCode(code string) []models.Room {
	var rooms []models.Room
	for _, r := range m.rooms {
		if r.Code == code {
			rooms = append(rooms, cloneRoom(r))
		}
	}
	return rooms
}

func (m *MemoryStore) QueryRoomsByCode(_ context.Context, code string) ([]models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.indexErr(models.RoomCodeIndex); err != nil {
		return nil, err
	}
	return m.roomsByCode(code), nil
}

func (m *MemoryStore) ScanRoomsByCode(_ context.Context, code string) ([]models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roomsByCode(code), nil
}

func (m *MemoryStore) ReserveCode(_ context.Context, reservation *models.RoomCode, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.codes[reservation.Code]; ok && held.ExpiresAt.After(now) {
		return ErrCodeTaken
	}
	m.codes[reservation.Code] = *reservation
	return nil
}

func (m *MemoryStore) ReleaseCode(_ context.Context, code, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.codes[code]; ok && held.RoomID == roomID {
		delete(m.codes, code)
	}
	return nil
}

func (m *MemoryStore) PutParticipation(_ context.Context, p *models.Participation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	records, ok := m.participations[p.RoomID]
	if !ok {
		records = make(map[string]models.Participation)
		m.participations[p.RoomID] = records
	}
	records[p.UserKey] = *p
	return nil
}

func (m *MemoryStore) QueryParticipations(_ context.Context, roomID string) ([]models.Participation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Participation, 0, len(m.participations[roomID]))
	for _, p := range m.participations[roomID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserKey < out[j].UserKey })
	return out, nil
}

func (m *MemoryStore) QueryPositiveVotes(_ context.Context, roomID, candidateID string) ([]models.Participation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Participation
	for _, p := range m.participations[roomID] {
		if p.CandidateID == candidateID && p.Vote && !p.IsParticipation {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) participationsByUser(userID string) []models.Participation {
	var out []models.Participation
	for _, records := range m.participations {
		for _, p := range records {
			if p.UserID == userID {
				out = append(out, p)
			}
		}
	}
	return out
}

func (m *MemoryStore) QueryParticipationsByUser(_ context.Context, userID string) ([]models.Participation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.indexErr(models.UserIDIndex); err != nil {
		return nil, err
	}
	out := m.participationsByUser(userID)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStore) ScanParticipationsByUser(_ context.Context, userID string) ([]models.Participation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.participationsByUser(userID), nil
}

func (m *MemoryStore) GetMatch(_ context.Context, matchID string) (*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	mt = cloneMatch(mt)
	return &mt, nil
}

func (m *MemoryStore) CreateMatch(_ context.Context, match *models.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[match.ID]; ok {
		return ErrMatchExists
	}
	match.SortKey = models.MatchSortKey(match)
	m.matches[match.ID] = cloneMatch(*match)
	return nil
}

func (m *MemoryStore) PutUserMatches(_ context.Context, rows []models.UserMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		byKey, ok := m.userMatches[row.UserID]
		if !ok {
			byKey = make(map[string]models.UserMatch)
			m.userMatches[row.UserID] = byKey
		}
		row.MatchedUsers = append([]string(nil), row.MatchedUsers...)
		byKey[row.SortKey] = row
	}
	return nil
}

func (m *MemoryStore) matchesWhere(pred func(models.Match) bool) []models.Match {
	var out []models.Match
	for _, mt := range m.matches {
		if pred(mt) {
			out = append(out, cloneMatch(mt))
		}
	}
	return out
}

func (m *MemoryStore) QueryMatchesByRoom(_ context.Context, roomID string, limit int32) ([]models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.indexErr(models.MatchRoomIndex); err != nil {
		return nil, err
	}
	out := m.matchesWhere(func(mt models.Match) bool { return mt.RoomID == roomID })
	sort.Slice(out, func(i, j int) bool { return out[i].SortKey < out[j].SortKey })
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ScanMatchesByRoom(_ context.Context, roomID string) ([]models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.matchesWhere(func(mt models.Match) bool { return mt.RoomID == roomID }), nil
}

func (m *MemoryStore) QueryUserMatches(_ context.Context, userID string, limit int32) ([]models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.indexErr(models.UserMatchesTable); err != nil {
		return nil, err
	}
	rows := make([]models.UserMatch, 0, len(m.userMatches[userID]))
	for _, row := range m.userMatches[userID] {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return strings.Compare(rows[i].SortKey, rows[j].SortKey) > 0 })
	if limit > 0 && len(rows) > int(limit) {
		rows = rows[:limit]
	}
	out := make([]models.Match, 0, len(rows))
	for i := range rows {
		out = append(out, cloneMatch(rows[i].Match()))
	}
	return out, nil
}

func (m *MemoryStore) ScanMatchesByUser(_ context.Context, userID string) ([]models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.matchesWhere(func(mt models.Match) bool { return mt.Involves(userID) }), nil
}

func (m *MemoryStore) IndexReady(_ context.Context, index string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.notReady[index], nil
}
