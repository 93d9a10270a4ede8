package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"matchroom_server/auth"
	"matchroom_server/helpers"
	"matchroom_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserFromToken(t *testing.T) {
	token, err := auth.GenerateAccessToken("alice", "any-secret", time.Hour)
	require.NoError(t, err)

	userID, err := userFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)

	_, err = userFromToken("not.a.jwt")
	assert.Error(t, err)
}

func TestRoomCommandRequiresToken(t *testing.T) {
	t.Setenv("MATCHWATCH_TOKEN", "")
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"room", "r1"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
}

func TestRoomCommandPrintsPolledMatchOnce(t *testing.T) {
	match := models.Match{ID: "r1#c1", RoomID: "r1", CandidateID: "c1", Title: "Inception", MatchedUsers: []string{"alice", "bob"}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/rooms/r1/match" {
			helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"match": match})
			return
		}
		// no push feed: the subscriber fails and the poller carries the watch
		http.NotFound(w, r)
	}))
	defer srv.Close()

	token, err := auth.GenerateAccessToken("alice", "s", time.Hour)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"room", "r1", "--api", srv.URL, "--token", token, "--once"})
	cmd.SetOut(out)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, cmd.ExecuteContext(ctx))

	var event models.MatchEvent
	require.NoError(t, json.Unmarshal(out.Bytes(), &event))
	assert.Equal(t, "r1#c1", event.MatchID)
	assert.Equal(t, "Inception", event.Title)
}
