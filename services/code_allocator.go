package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"matchroom_server/metrics"
	"matchroom_server/models"

	"github.com/rs/zerolog/log"
)

// Join codes avoid characters that are easy to misread (0/O, 1/I).
const (
	CodeAlphabet        = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength          = 6
	MaxAllocateAttempts = 10
)

// CodeGenerator produces candidate join codes.
type CodeGenerator func() (string, error)

// RandomCode draws CodeLength characters from CodeAlphabet using crypto/rand.
func RandomCode() (string, error) {
	buf := make([]byte, CodeLength)
	max := big.NewInt(int64(len(CodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		buf[i] = CodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// RoomCodeAllocator hands out join codes that no live room is using.
type RoomCodeAllocator struct {
	Store    Store
	Probe    *IndexProbe
	Generate CodeGenerator
	Now      func() time.Time
}

func NewRoomCodeAllocator(store Store, probe *IndexProbe) *RoomCodeAllocator {
	return &RoomCodeAllocator{Store: store, Probe: probe, Generate: RandomCode, Now: time.Now}
}

// Allocate finds an unused code and reserves it for roomID until expiresAt.
func (a *RoomCodeAllocator) Allocate(ctx context.Context, roomID string, expiresAt time.Time) (string, error) {
	for attempt := 1; attempt <= MaxAllocateAttempts; attempt++ {
		code, err := a.Generate()
		if err != nil {
			return "", err
		}

		now := a.Now()
		inUse, err := a.CodeInUse(ctx, code, now)
		if err != nil {
			return "", err
		}
		if !inUse {
			err = a.Store.ReserveCode(ctx, &models.RoomCode{Code: code, RoomID: roomID, ExpiresAt: expiresAt}, now)
			if err == nil {
				return code, nil
			}
			if !errors.Is(err, ErrCodeTaken) {
				return "", fmt.Errorf("failed to reserve room code: %w", err)
			}
		}

		metrics.CodeCollisions.Inc()
		log.Debug().Str("code", code).Int("attempt", attempt).Msg("room code collision")
	}
	return "", ErrCodeExhausted
}

// CodeInUse reports whether a non-expired room currently holds code.
func (a *RoomCodeAllocator) CodeInUse(ctx context.Context, code string, now time.Time) (bool, error) {
	rooms, err := a.roomsByCode(ctx, code)
	if err != nil {
		return false, err
	}
	for i := range rooms {
		if !rooms[i].Expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (a *RoomCodeAllocator) roomsByCode(ctx context.Context, code string) ([]models.Room, error) {
	rooms, err := withIndexFallback(ctx, a.Probe, models.RoomCodeIndex,
		func(ctx context.Context) ([]models.Room, error) { return a.Store.QueryRoomsByCode(ctx, code) },
		func(ctx context.Context) ([]models.Room, error) { return a.Store.ScanRoomsByCode(ctx, code) },
	)
	if err != nil {
		return nil, fmt.Errorf("failed to look up room code: %w", err)
	}
	return rooms, nil
}
