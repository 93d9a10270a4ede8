package models

import "time"

// JoinedCandidateID is the candidate id carried by participation markers.
const JoinedCandidateID = "__joined__"

const joinedSuffix = "JOINED"

type Participation struct {
	RoomID          string    `dynamodbav:"roomId" json:"roomId"`                   // Partition key
	UserKey         string    `dynamodbav:"userKey" json:"userKey"`                 // Sort key: "{userId}#JOINED" or "{userId}#{candidateId}"
	UserID          string    `dynamodbav:"userId" json:"userId"`                   // GSI userId-index
	CandidateID     string    `dynamodbav:"candidateId" json:"candidateId"`
	Vote            bool      `dynamodbav:"vote" json:"vote"`
	IsParticipation bool      `dynamodbav:"isParticipation" json:"isParticipation"` // true for join markers
	Timestamp       time.Time `dynamodbav:"timestamp" json:"timestamp"`
}

// JoinedUserKey is the sort key of a user's participation marker.
func JoinedUserKey(userID string) string {
	return userID + "#" + joinedSuffix
}

// VoteUserKey is the sort key of a user's vote on a candidate.
func VoteUserKey(userID, candidateID string) string {
	return userID + "#" + candidateID
}

// NewParticipationMarker builds the record written when a user joins a room.
func NewParticipationMarker(roomID, userID string, now time.Time) Participation {
	return Participation{
		RoomID:          roomID,
		UserKey:         JoinedUserKey(userID),
		UserID:          userID,
		CandidateID:     JoinedCandidateID,
		Vote:            false,
		IsParticipation: true,
		Timestamp:       now,
	}
}

// NewVote builds a vote record.
func NewVote(roomID, userID, candidateID string, vote bool, now time.Time) Participation {
	return Participation{
		RoomID:      roomID,
		UserKey:     VoteUserKey(userID, candidateID),
		UserID:      userID,
		CandidateID: candidateID,
		Vote:        vote,
		Timestamp:   now,
	}
}

const (
	ParticipantsTable = "RoomParticipants"
	UserIDIndex       = "userId-index" // PK: userId, SK: timestamp
)
