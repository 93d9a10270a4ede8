package services

import (
	"context"
	"sync"
	"time"

	"matchroom_server/models"
)

var testCatalog = map[string][]models.Candidate{
	models.KindMovie: {
		{ID: "7", Title: "Heat", PosterPath: "heat.jpg", Tags: []string{"crime", "drama"}},
		{ID: "8", Title: "Alien", PosterPath: "alien.jpg", Tags: []string{"horror", "scifi"}},
		{ID: "9", Title: "Up", PosterPath: "up.jpg", Tags: []string{"animation", "family"}},
	},
}

type recordingNotifier struct {
	mu      sync.Mutex
	matches []*models.Match
}

func (n *recordingNotifier) NotifyMatch(_ context.Context, m *models.Match) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.matches = append(n.matches, m)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.matches)
}

// testClock is a settable clock shared by every service under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store    *MemoryStore
	probe    *IndexProbe
	rooms    *RoomService
	votes    *VoteService
	matches  *MatchQueryService
	notifier *recordingNotifier
	clock    *testClock
}

func newTestEnv() *testEnv {
	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	probe := NewIndexProbe(store, 0)
	matches := NewMatchQueryService(store, probe)
	allocator := NewRoomCodeAllocator(store, probe)
	allocator.Now = clock.Now
	rooms := NewRoomService(store, allocator, &StaticCandidateSource{Catalog: testCatalog}, matches, probe, time.Hour)
	rooms.Now = clock.Now
	notifier := &recordingNotifier{}
	votes := NewVoteService(store, rooms, notifier)
	votes.Now = clock.Now
	return &testEnv{
		store:    store,
		probe:    probe,
		rooms:    rooms,
		votes:    votes,
		matches:  matches,
		notifier: notifier,
		clock:    clock,
	}
}

// newRoomWith creates a room hosted by users[0] and joins the rest.
func (e *testEnv) newRoomWith(ctx context.Context, users ...string) (*models.Room, error) {
	room, err := e.rooms.CreateRoom(ctx, users[0], models.KindMovie, nil)
	if err != nil {
		return nil, err
	}
	for _, u := range users[1:] {
		if _, err := e.rooms.JoinRoom(ctx, u, room.Code); err != nil {
			return nil, err
		}
	}
	return room, nil
}
