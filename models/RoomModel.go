package models

import "time"

// Room kinds accepted by room creation
const (
	KindMovie = "movie"
	KindTV    = "tv"
)

// MaxRoomTags caps how many catalog tags a room may filter on
const MaxRoomTags = 2

type Candidate struct {
	ID          string   `dynamodbav:"id" json:"id"`
	Title       string   `dynamodbav:"title" json:"title"`
	PosterPath  string   `dynamodbav:"posterPath" json:"posterPath"`
	Overview    string   `dynamodbav:"overview,omitempty" json:"overview,omitempty"`
	ReleaseDate string   `dynamodbav:"releaseDate,omitempty" json:"releaseDate,omitempty"`
	Tags        []string `dynamodbav:"tags,omitempty" json:"tags,omitempty"`
}

type Room struct {
	ID         string      `dynamodbav:"id" json:"id"`                        // Partition key (uuid)
	Code       string      `dynamodbav:"code" json:"code"`                    // Join code, GSI code-index
	HostID     string      `dynamodbav:"hostId" json:"hostId"`                // Creator
	Kind       string      `dynamodbav:"kind" json:"kind"`                    // movie | tv
	Tags       []string    `dynamodbav:"tags" json:"tags"`                    // Catalog filters
	Candidates []Candidate `dynamodbav:"candidates" json:"candidates"`        // Items to vote on
	CreatedAt  time.Time   `dynamodbav:"createdAt" json:"createdAt"`          // RFC3339
	ExpiresAt  time.Time   `dynamodbav:"expiresAt,unixtime" json:"expiresAt"` // Epoch seconds, table TTL attribute
}

// Expired reports whether the room's TTL has passed at now.
func (r *Room) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Candidate returns the room candidate with the given id, if any.
func (r *Room) Candidate(candidateID string) (*Candidate, bool) {
	for i := range r.Candidates {
		if r.Candidates[i].ID == candidateID {
			return &r.Candidates[i], true
		}
	}
	return nil, false
}

// RoomCode reserves a join code for a room until it expires.
type RoomCode struct {
	Code      string    `dynamodbav:"code" json:"code"`
	RoomID    string    `dynamodbav:"roomId" json:"roomId"`
	ExpiresAt time.Time `dynamodbav:"expiresAt,unixtime" json:"expiresAt"`
}

// Table and index names
const (
	RoomsTable     = "Rooms"
	RoomCodesTable = "RoomCodes"
	RoomCodeIndex  = "code-index" // PK: code
)
