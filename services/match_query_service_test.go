package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"matchroom_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMatch(t *testing.T, store *MemoryStore, roomID, candidateID string, ts time.Time, users ...string) models.Match {
	t.Helper()
	m := models.Match{
		ID:           models.MatchID(roomID, candidateID),
		RoomID:       roomID,
		CandidateID:  candidateID,
		Title:        "title-" + candidateID,
		MatchedUsers: users,
		Timestamp:    ts,
	}
	ctx := context.Background()
	require.NoError(t, store.CreateMatch(ctx, &m))
	require.NoError(t, store.PutUserMatches(ctx, models.UserMatchesFor(&m)))
	return m
}

func matchIDs(ms []models.Match) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}

func TestUserMatchesIndexAndScanAgree(t *testing.T) {
	store := NewMemoryStore()
	svc := NewMatchQueryService(store, NewIndexProbe(store, 0))
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 60; i++ {
		// pairs share a timestamp to exercise the id tie-break
		ts := base.Add(time.Duration(i/2) * time.Minute)
		seedMatch(t, store, fmt.Sprintf("room-%02d", i), "c", ts, "u", fmt.Sprintf("other-%d", i))
	}
	seedMatch(t, store, "room-x", "c", base.Add(time.Hour), "someone", "else")

	indexed, err := svc.FindUserMatches(ctx, "u")
	require.NoError(t, err)
	require.Len(t, indexed, UserMatchesLimit)
	assert.Equal(t, "room-59#c", indexed[0].ID)
	assert.Equal(t, "room-58#c", indexed[1].ID)
	for i := 1; i < len(indexed); i++ {
		assert.False(t, indexed[i].Timestamp.After(indexed[i-1].Timestamp))
	}

	checked, err := svc.CheckUserMatches(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, matchIDs(indexed[:CheckMatchesLimit]), matchIDs(checked))

	store.SetIndexReady(models.UserMatchesTable, false)
	scanned, err := svc.FindUserMatches(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, matchIDs(indexed), matchIDs(scanned))
	assert.Equal(t, indexed, scanned)

	scannedCheck, err := svc.CheckUserMatches(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, matchIDs(checked), matchIDs(scannedCheck))
}

func TestUserMatchesEmpty(t *testing.T) {
	store := NewMemoryStore()
	svc := NewMatchQueryService(store, NewIndexProbe(store, 0))

	got, err := svc.FindUserMatches(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFindRoomMatchReturnsEarliest(t *testing.T) {
	store := NewMemoryStore()
	svc := NewMatchQueryService(store, NewIndexProbe(store, 0))
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	seedMatch(t, store, "r1", "late", base.Add(time.Minute), "a", "b")
	seedMatch(t, store, "r1", "early", base, "a", "b")
	seedMatch(t, store, "r2", "other", base.Add(-time.Hour), "a", "b")

	m, err := svc.FindRoomMatch(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "r1#early", m.ID)

	store.SetIndexReady(models.MatchRoomIndex, false)
	scanned, err := svc.FindRoomMatch(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, m, scanned)

	none, err := svc.FindRoomMatch(ctx, "empty")
	require.NoError(t, err)
	assert.Nil(t, none)
}
