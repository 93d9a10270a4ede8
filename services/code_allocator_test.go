package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"matchroom_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(codes ...string) CodeGenerator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func newTestAllocator(store *MemoryStore, now time.Time, gen CodeGenerator) *RoomCodeAllocator {
	a := NewRoomCodeAllocator(store, NewIndexProbe(store, 0))
	a.Generate = gen
	a.Now = func() time.Time { return now }
	return a
}

func TestRandomCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := RandomCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, ch := range code {
			require.True(t, strings.ContainsRune(CodeAlphabet, ch))
		}
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}

func TestAllocateSkipsLiveCodes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	require.NoError(t, store.CreateRoom(ctx, &models.Room{ID: "r1", Code: "AAAAAA", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	a := newTestAllocator(store, now, sequence("AAAAAA", "BBBBBB"))
	code, err := a.Allocate(ctx, "r2", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", code)
}

func TestAllocateReusesExpiredCodes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	require.NoError(t, store.CreateRoom(ctx, &models.Room{ID: "old", Code: "AAAAAA", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.ReserveCode(ctx, &models.RoomCode{Code: "AAAAAA", RoomID: "old", ExpiresAt: now.Add(-time.Minute)}, now.Add(-time.Hour)))

	a := newTestAllocator(store, now, sequence("AAAAAA"))
	code, err := a.Allocate(ctx, "new", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", code)
}

func TestAllocateTreatsReservationConflictAsCollision(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	// reserved by a room that has not been written yet
	require.NoError(t, store.ReserveCode(ctx, &models.RoomCode{Code: "AAAAAA", RoomID: "pending", ExpiresAt: now.Add(time.Hour)}, now))

	a := newTestAllocator(store, now, sequence("AAAAAA", "CCCCCC"))
	code, err := a.Allocate(ctx, "r2", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "CCCCCC", code)
}

func TestAllocateExhausted(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	require.NoError(t, store.CreateRoom(ctx, &models.Room{ID: "r1", Code: "AAAAAA", ExpiresAt: now.Add(time.Hour)}))

	calls := 0
	a := newTestAllocator(store, now, func() (string, error) {
		calls++
		return "AAAAAA", nil
	})
	_, err := a.Allocate(ctx, "r2", now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrCodeExhausted)
	assert.Equal(t, MaxAllocateAttempts, calls)
}

func TestAllocateUsesScanWhenIndexNotReady(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	require.NoError(t, store.CreateRoom(ctx, &models.Room{ID: "r1", Code: "AAAAAA", ExpiresAt: now.Add(time.Hour)}))
	store.SetIndexReady(models.RoomCodeIndex, false)

	a := newTestAllocator(store, now, sequence("AAAAAA", "DDDDDD"))
	inUse, err := a.CodeInUse(ctx, "AAAAAA", now)
	require.NoError(t, err)
	assert.True(t, inUse)

	code, err := a.Allocate(ctx, "r2", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "DDDDDD", code)
}

func TestConcurrentRoomCreationYieldsUniqueCodes(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	// a tiny code space forces collisions between concurrent creators
	env.rooms.Allocator.Generate = sequence("AAAAAA", "BBBBBB", "CCCCCC", "DDDDDD", "EEEEEE", "FFFFFF", "GGGGGG", "HHHHHH")

	const n = 8
	var wg sync.WaitGroup
	codes := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			room, err := env.rooms.CreateRoom(ctx, "host", models.KindMovie, nil)
			if err == nil {
				codes <- room.Code
			}
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]struct{})
	for c := range codes {
		_, dup := seen[c]
		assert.False(t, dup, "code %s handed out twice", c)
		seen[c] = struct{}{}
	}
	assert.NotEmpty(t, seen)
}
