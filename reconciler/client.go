package reconciler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"matchroom_server/models"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
)

// APIClient calls the match endpoints of the HTTP API on behalf of one user.
type APIClient struct {
	http *resty.Client
}

func NewAPIClient(baseURL, token string) *APIClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(token).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json")
	return &APIClient{http: c}
}

type apiError struct {
	Error string `json:"error"`
}

func (c *APIClient) get(ctx context.Context, path string, out interface{}) error {
	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(out).
		SetError(&failure).
		Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode(), failure.Error)
	}
	return nil
}

// CheckRoomMatch returns the room's match or nil.
func (c *APIClient) CheckRoomMatch(ctx context.Context, roomID string) (*models.Match, error) {
	var body struct {
		Match *models.Match `json:"match"`
	}
	if err := c.get(ctx, "/api/rooms/"+url.PathEscape(roomID)+"/match", &body); err != nil {
		return nil, err
	}
	return body.Match, nil
}

// CheckUserMatches returns the caller's most recent matches.
func (c *APIClient) CheckUserMatches(ctx context.Context) ([]models.Match, error) {
	var body struct {
		Matches []models.Match `json:"matches"`
	}
	if err := c.get(ctx, "/api/matches/check", &body); err != nil {
		return nil, err
	}
	return body.Matches, nil
}

// WebSocketSubscriber follows a topic on the server's /ws/matches endpoint.
type WebSocketSubscriber struct {
	BaseURL string // ws:// or wss:// origin
	Token   string
	Dialer  *websocket.Dialer
}

func NewWebSocketSubscriber(baseURL, token string) *WebSocketSubscriber {
	return &WebSocketSubscriber{BaseURL: baseURL, Token: token, Dialer: websocket.DefaultDialer}
}

// WebSocketURL converts an http(s) API origin into the matching ws(s) origin.
func WebSocketURL(apiURL string) string {
	switch {
	case strings.HasPrefix(apiURL, "https://"):
		return "wss://" + strings.TrimPrefix(apiURL, "https://")
	case strings.HasPrefix(apiURL, "http://"):
		return "ws://" + strings.TrimPrefix(apiURL, "http://")
	}
	return apiURL
}

func (s *WebSocketSubscriber) Subscribe(ctx context.Context, topic string, handle func(models.MatchEvent)) error {
	q := url.Values{}
	q.Set("topic", topic)
	endpoint := strings.TrimRight(s.BaseURL, "/") + "/ws/matches?" + q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.Token)
	conn, resp, err := s.Dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("subscribe %s: status %d: %w", topic, resp.StatusCode, err)
		}
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var msg models.PushMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		if msg.Type == models.PushTypeMatch {
			handle(msg.Match)
		}
	}
}
