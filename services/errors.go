package services

import "errors"

// Caller-facing errors. Controllers map these to HTTP status codes.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomExpired      = errors.New("room expired")
	ErrInvalidCandidate = errors.New("invalid candidate")
	ErrInvalidKind      = errors.New("invalid kind")
	ErrTooManyTags      = errors.New("too many tags")
	ErrNoCandidates     = errors.New("no candidates available")
	ErrCodeExhausted    = errors.New("could not allocate a unique room code")
)

// Store-level errors.
var (
	ErrNotFound      = errors.New("item not found")
	ErrRoomExists    = errors.New("room already exists")
	ErrMatchExists   = errors.New("match already exists")
	ErrCodeTaken     = errors.New("room code already reserved")
	ErrIndexNotReady = errors.New("index not ready")
)
