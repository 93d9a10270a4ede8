package models

import (
	"strings"
	"time"
)

type Match struct {
	ID           string    `dynamodbav:"id" json:"id"`                     // "{roomId}#{candidateId}"
	RoomID       string    `dynamodbav:"roomId" json:"roomId"`             // GSI roomId-index
	CandidateID  string    `dynamodbav:"candidateId" json:"candidateId"`
	Title        string    `dynamodbav:"title" json:"title"`
	PosterPath   string    `dynamodbav:"posterPath" json:"posterPath"`
	MatchedUsers []string  `dynamodbav:"matchedUsers" json:"matchedUsers"` // Fixed at creation
	Timestamp    time.Time `dynamodbav:"timestamp" json:"timestamp"`
	SortKey      string    `dynamodbav:"sortKey" json:"-"` // roomId-index sort key, see MatchSortKey
}

// MatchID derives the match key for a room and candidate.
func MatchID(roomID, candidateID string) string {
	return roomID + "#" + candidateID
}

// Involves reports whether userID is one of the matched users.
func (m *Match) Involves(userID string) bool {
	for _, u := range m.MatchedUsers {
		if u == userID {
			return true
		}
	}
	return false
}

// Event converts the match into the payload pushed to subscribers.
func (m *Match) Event() MatchEvent {
	return MatchEvent{
		RoomID:       m.RoomID,
		MatchID:      m.ID,
		CandidateID:  m.CandidateID,
		Title:        m.Title,
		PosterPath:   m.PosterPath,
		MatchedUsers: m.MatchedUsers,
		Timestamp:    m.Timestamp,
	}
}

// UserMatch is the per-user index row written for each matched user.
type UserMatch struct {
	UserID       string    `dynamodbav:"userId" json:"userId"`   // Partition key
	SortKey      string    `dynamodbav:"sortKey" json:"sortKey"` // "{timestamp}#{matchId}"
	MatchID      string    `dynamodbav:"matchId" json:"matchId"`
	RoomID       string    `dynamodbav:"roomId" json:"roomId"`
	CandidateID  string    `dynamodbav:"candidateId" json:"candidateId"`
	Title        string    `dynamodbav:"title" json:"title"`
	PosterPath   string    `dynamodbav:"posterPath" json:"posterPath"`
	MatchedUsers []string  `dynamodbav:"matchedUsers" json:"matchedUsers"`
	Timestamp    time.Time `dynamodbav:"timestamp" json:"timestamp"`
}

// MatchSortKey orders index rows by time, then by match id. Stored timestamps
// drop trailing zeros, so they do not sort lexically; this key does.
func MatchSortKey(m *Match) string {
	return m.Timestamp.UTC().Format(sortKeyLayout) + "#" + m.ID
}

// fixed width so lexical order is chronological
const sortKeyLayout = "2006-01-02T15:04:05.000000000Z"

// UserMatchesFor fans a match out into one index row per matched user.
func UserMatchesFor(m *Match) []UserMatch {
	rows := make([]UserMatch, 0, len(m.MatchedUsers))
	sk := MatchSortKey(m)
	for _, u := range m.MatchedUsers {
		rows = append(rows, UserMatch{
			UserID:       u,
			SortKey:      sk,
			MatchID:      m.ID,
			RoomID:       m.RoomID,
			CandidateID:  m.CandidateID,
			Title:        m.Title,
			PosterPath:   m.PosterPath,
			MatchedUsers: m.MatchedUsers,
			Timestamp:    m.Timestamp,
		})
	}
	return rows
}

func (um *UserMatch) Match() Match {
	return Match{
		ID:           um.MatchID,
		RoomID:       um.RoomID,
		CandidateID:  um.CandidateID,
		Title:        um.Title,
		PosterPath:   um.PosterPath,
		MatchedUsers: um.MatchedUsers,
		Timestamp:    um.Timestamp,
		SortKey:      um.SortKey,
	}
}

// MatchEvent is the push payload for a newly created match.
type MatchEvent struct {
	RoomID       string    `json:"roomId"`
	MatchID      string    `json:"matchId"`
	CandidateID  string    `json:"candidateId"`
	Title        string    `json:"title"`
	PosterPath   string    `json:"posterPath"`
	MatchedUsers []string  `json:"matchedUsers"`
	Timestamp    time.Time `json:"timestamp"`
}

// Topic prefixes for match broadcasts
const (
	RoomTopicPrefix = "room:"
	UserTopicPrefix = "user:"
)

func RoomTopic(roomID string) string { return RoomTopicPrefix + roomID }

func UserTopic(userID string) string { return UserTopicPrefix + userID }

// ParseTopic splits a topic into its kind prefix and id.
func ParseTopic(topic string) (prefix, id string, ok bool) {
	for _, p := range []string{RoomTopicPrefix, UserTopicPrefix} {
		if strings.HasPrefix(topic, p) && len(topic) > len(p) {
			return p, topic[len(p):], true
		}
	}
	return "", "", false
}

const (
	MatchesTable     = "Matches"
	MatchRoomIndex   = "roomId-index" // PK: roomId, SK: sortKey
	UserMatchesTable = "UserMatches"  // PK: userId, SK: sortKey
)

// PushMessage is the frame written to websocket match subscribers.
type PushMessage struct {
	Type  string     `json:"type"` // "match"
	Topic string     `json:"topic"`
	Match MatchEvent `json:"match"`
}

const PushTypeMatch = "match"
