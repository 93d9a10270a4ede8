package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"matchroom_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoteEndToEnd(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	room, err := env.newRoomWith(ctx, "A", "B")
	require.NoError(t, err)

	match, err := env.votes.RecordVote(ctx, "A", room.ID, "7", true)
	require.NoError(t, err)
	assert.Nil(t, match)

	found, err := env.matches.FindRoomMatch(ctx, room.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	match, err = env.votes.RecordVote(ctx, "B", room.ID, "7", true)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, []string{"A", "B"}, match.MatchedUsers)
	assert.Equal(t, "7", match.CandidateID)
	assert.Equal(t, "Heat", match.Title)
	assert.Equal(t, models.MatchID(room.ID, "7"), match.ID)

	found, err = env.matches.FindRoomMatch(ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, match.ID, found.ID)
	assert.Equal(t, []string{"A", "B"}, found.MatchedUsers)

	// C joins after the match and sees nothing
	_, err = env.rooms.JoinRoom(ctx, "C", room.Code)
	require.NoError(t, err)
	cMatches, err := env.matches.FindUserMatches(ctx, "C")
	require.NoError(t, err)
	assert.Empty(t, cMatches)

	aMatches, err := env.matches.FindUserMatches(ctx, "A")
	require.NoError(t, err)
	require.Len(t, aMatches, 1)
	assert.Equal(t, match.ID, aMatches[0].ID)

	assert.Equal(t, 1, env.notifier.count())
}

func TestLateJoinerDoesNotAlterMatch(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	room, err := env.newRoomWith(ctx, "A", "B")
	require.NoError(t, err)

	_, err = env.votes.RecordVote(ctx, "A", room.ID, "7", true)
	require.NoError(t, err)
	first, err := env.votes.RecordVote(ctx, "B", room.ID, "7", true)
	require.NoError(t, err)
	require.NotNil(t, first)

	_, err = env.rooms.JoinRoom(ctx, "C", room.Code)
	require.NoError(t, err)
	again, err := env.votes.RecordVote(ctx, "C", room.ID, "7", true)
	require.NoError(t, err)
	// the existing match is returned unchanged
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, []string{"A", "B"}, again.MatchedUsers)

	stored, err := env.store.GetMatch(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, stored.MatchedUsers)
	assert.Equal(t, 1, env.notifier.count())
}

func TestSingleParticipantNeverMatches(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	room, err := env.newRoomWith(ctx, "solo")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		for _, c := range []string{"7", "8", "9"} {
			match, err := env.votes.RecordVote(ctx, "solo", room.ID, c, true)
			require.NoError(t, err)
			assert.Nil(t, match)
		}
	}
	found, err := env.matches.FindRoomMatch(ctx, room.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.Equal(t, 0, env.notifier.count())
}

func TestNoMatchUntilEveryoneSaysYes(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	room, err := env.newRoomWith(ctx, "A", "B", "C")
	require.NoError(t, err)

	for _, v := range []struct {
		user string
		vote bool
	}{{"A", true}, {"B", true}, {"C", false}} {
		match, err := env.votes.RecordVote(ctx, v.user, room.ID, "8", v.vote)
		require.NoError(t, err)
		assert.Nil(t, match)
	}

	// C changes their mind; the latest vote wins
	match, err := env.votes.RecordVote(ctx, "C", room.ID, "8", true)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, []string{"A", "B", "C"}, match.MatchedUsers)
}

func TestReVoteIsIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	room, err := env.newRoomWith(ctx, "A", "B")
	require.NoError(t, err)

	_, err = env.votes.RecordVote(ctx, "A", room.ID, "9", true)
	require.NoError(t, err)
	before, err := env.store.QueryParticipations(ctx, room.ID)
	require.NoError(t, err)

	_, err = env.votes.RecordVote(ctx, "A", room.ID, "9", true)
	require.NoError(t, err)
	after, err := env.store.QueryParticipations(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	m1, err := env.votes.RecordVote(ctx, "B", room.ID, "9", true)
	require.NoError(t, err)
	require.NotNil(t, m1)
	m2, err := env.votes.RecordVote(ctx, "B", room.ID, "9", true)
	require.NoError(t, err)
	require.NotNil(t, m2)
	assert.Equal(t, m1.ID, m2.ID)
	assert.Equal(t, m1.Timestamp, m2.Timestamp)
	assert.Equal(t, 1, env.notifier.count())
}

func TestVoteValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	room, err := env.newRoomWith(ctx, "A", "B")
	require.NoError(t, err)

	_, err = env.votes.RecordVote(ctx, "A", room.ID, "404", true)
	assert.ErrorIs(t, err, ErrInvalidCandidate)

	_, err = env.votes.RecordVote(ctx, "A", "missing-room", "7", true)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	env.clock.Advance(2 * env.rooms.TTL)
	_, err = env.votes.RecordVote(ctx, "A", room.ID, "7", true)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestConcurrentFinalVotesCreateOneMatch(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	const n = 6
	users := make([]string, n)
	for i := range users {
		users[i] = fmt.Sprintf("user-%d", i)
	}
	room, err := env.newRoomWith(ctx, users...)
	require.NoError(t, err)

	// everyone's yes is already stored, so every racing call sees the full set
	for _, u := range users {
		record := models.NewVote(room.ID, u, "7", true, env.clock.Now())
		require.NoError(t, env.store.PutParticipation(ctx, &record))
	}

	var wg sync.WaitGroup
	results := make([]*models.Match, n)
	errs := make([]error, n)
	start := make(chan struct{})
	for i, u := range users {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			<-start
			results[i], errs[i] = env.votes.RecordVote(ctx, u, room.ID, "7", true)
		}(i, u)
	}
	close(start)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].ID, results[i].ID)
		assert.Equal(t, results[0].Timestamp, results[i].Timestamp)
		assert.Equal(t, users, results[i].MatchedUsers)
	}
	assert.Equal(t, 1, env.notifier.count())

	byRoom, err := env.store.ScanMatchesByRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, byRoom, 1)
}

func TestConcurrentFirstVotesCreateAtMostOneMatch(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	users := []string{"u1", "u2", "u3", "u4", "u5"}
	room, err := env.newRoomWith(ctx, users...)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ids []string
	for _, u := range users {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			m, err := env.votes.RecordVote(ctx, u, room.ID, "8", true)
			assert.NoError(t, err)
			if m != nil {
				mu.Lock()
				ids = append(ids, m.ID)
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()

	// the last writer always sees every yes, so at least one call reports the match
	require.NotEmpty(t, ids)
	for _, id := range ids {
		assert.Equal(t, models.MatchID(room.ID, "8"), id)
	}
	assert.Equal(t, 1, env.notifier.count())
}

// staleReadStore misses the first GetMatch calls, as a reader racing a
// concurrent creator would.
type staleReadStore struct {
	*MemoryStore
	mu     sync.Mutex
	misses int
}

func (s *staleReadStore) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	s.mu.Lock()
	if s.misses > 0 {
		s.misses--
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	s.mu.Unlock()
	return s.MemoryStore.GetMatch(ctx, matchID)
}

func TestLosingCreateReturnsWinner(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	room, err := env.newRoomWith(ctx, "A", "B")
	require.NoError(t, err)

	_, err = env.votes.RecordVote(ctx, "A", room.ID, "7", true)
	require.NoError(t, err)
	winner, err := env.votes.RecordVote(ctx, "B", room.ID, "7", true)
	require.NoError(t, err)
	require.NotNil(t, winner)

	// C completes the set again but does not see the match before creating
	_, err = env.rooms.JoinRoom(ctx, "C", room.Code)
	require.NoError(t, err)
	env.votes.Store = &staleReadStore{MemoryStore: env.store, misses: 1}

	got, err := env.votes.RecordVote(ctx, "C", room.ID, "7", true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, winner.ID, got.ID)
	assert.Equal(t, []string{"A", "B"}, got.MatchedUsers)
	assert.True(t, winner.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, 1, env.notifier.count())

	stored, err := env.store.GetMatch(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, stored.MatchedUsers)
}

// failingUserMatchStore fails the first PutUserMatches calls.
type failingUserMatchStore struct {
	*MemoryStore
	mu       sync.Mutex
	failures int
}

func (s *failingUserMatchStore) PutUserMatches(ctx context.Context, rows []models.UserMatch) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return errors.New("throughput exceeded")
	}
	s.mu.Unlock()
	return s.MemoryStore.PutUserMatches(ctx, rows)
}

func TestRepeatVoteRepairsUserMatchIndex(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	room, err := env.newRoomWith(ctx, "A", "B")
	require.NoError(t, err)
	env.votes.Store = &failingUserMatchStore{MemoryStore: env.store, failures: 1}

	_, err = env.votes.RecordVote(ctx, "A", room.ID, "7", true)
	require.NoError(t, err)
	match, err := env.votes.RecordVote(ctx, "B", room.ID, "7", true)
	require.NoError(t, err)
	require.NotNil(t, match)

	indexed, err := env.matches.CheckUserMatches(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, indexed)

	again, err := env.votes.RecordVote(ctx, "B", room.ID, "7", true)
	require.NoError(t, err)
	assert.Equal(t, match.ID, again.ID)

	for _, u := range []string{"A", "B"} {
		indexed, err = env.matches.CheckUserMatches(ctx, u)
		require.NoError(t, err)
		require.Len(t, indexed, 1, u)
		assert.Equal(t, match.ID, indexed[0].ID)
	}

	env.store.SetIndexReady(models.UserMatchesTable, false)
	scanned, err := env.matches.CheckUserMatches(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, indexed[0].ID, scanned[0].ID)
	assert.Equal(t, 1, env.notifier.count())
}
