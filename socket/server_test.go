package socket

import (
	"context"
	"testing"
	"time"

	"matchroom_server/auth"
	"matchroom_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketServerPublishValidatesTopic(t *testing.T) {
	s := NewSocketServer(testSecret)
	defer s.Close()

	assert.Equal(t, "socketio", s.Name())
	assert.Error(t, s.PublishMatch(context.Background(), "bogus", models.MatchEvent{}))
	assert.NoError(t, s.PublishMatch(context.Background(), models.RoomTopic("r1"), models.MatchEvent{MatchID: "r1#c"}))
}

func TestSocketServerAuthenticate(t *testing.T) {
	s := NewSocketServer(testSecret)
	defer s.Close()

	_, err := s.authenticate("")
	assert.ErrorIs(t, err, auth.ErrMissingToken)

	_, err = s.authenticate("garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	token, err := auth.GenerateAccessToken("alice", testSecret, time.Minute)
	require.NoError(t, err)
	userID, err := s.authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}
