package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/moodiary/moodiary/internal/config"
	"github.com/moodiary/moodiary/internal/events"
)

// RealtimeClient subscribes to the remote's websocket change feed for
// the entries table. It exists only to produce sync triggers: a change
// notification means another device pushed something, and a successful
// reconnect after a dropped connection means the network came back.
type RealtimeClient struct {
	wsURL     string
	anonKey   string
	token     string
	logger    *events.Logger
	dialer    *websocket.Dialer
	heartbeat time.Duration

	// OnChange fires when a remote entry changed.
	OnChange func()

	// OnReconnect fires after the feed reconnects following a drop.
	OnReconnect func()
}

// NewRealtimeClient creates a change-feed subscriber.
func NewRealtimeClient(cfg *config.APIConfig, logger *events.Logger) *RealtimeClient {
	return &RealtimeClient{
		wsURL:     websocketURL(cfg.BaseURL),
		anonKey:   cfg.AnonKey,
		logger:    logger.WithField("component", "realtime"),
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		heartbeat: 30 * time.Second,
	}
}

// SetToken sets the user's access token for the subscription.
func (c *RealtimeClient) SetToken(token string) {
	c.token = token
}

// realtimeMessage is the envelope of feed frames. Only the topic and
// event type matter here; payloads are not inspected.
type realtimeMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

// Run maintains the subscription until ctx is cancelled, reconnecting
// with backoff after drops. It never returns an error: the feed is an
// optimization, and sync still happens on the periodic trigger when the
// feed is down.
func (c *RealtimeClient) Run(ctx context.Context) {
	backoff := time.Second
	first := true

	for {
		if ctx.Err() != nil {
			return
		}

		err := c.connectAndListen(ctx, !first)
		if ctx.Err() != nil {
			return
		}
		first = false

		c.logger.WithError(err).Debug("Change feed dropped, reconnecting")

		select {
		case <-time.After(backoff):
			if backoff < time.Minute {
				backoff *= 2
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *RealtimeClient) connectAndListen(ctx context.Context, isReconnect bool) error {
	u := c.wsURL
	if c.anonKey != "" {
		u += "?apikey=" + url.QueryEscape(c.anonKey)
	}

	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial change feed: %w", err)
	}
	defer conn.Close()

	join := realtimeMessage{
		Topic:   "realtime:entries",
		Event:   "phx_join",
		Payload: json.RawMessage(fmt.Sprintf(`{"access_token":%q}`, c.token)),
		Ref:     "1",
	}
	if err := conn.WriteJSON(join); err != nil {
		return fmt.Errorf("join change feed: %w", err)
	}

	c.logger.Debug("Change feed connected")
	if isReconnect && c.OnReconnect != nil {
		c.OnReconnect()
	}

	// Close the connection when ctx ends to unblock ReadJSON.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	// Heartbeats keep the subscription alive through idle periods.
	go func() {
		ticker := time.NewTicker(c.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				hb := realtimeMessage{Topic: "phoenix", Event: "heartbeat", Payload: json.RawMessage(`{}`)}
				if err := conn.WriteJSON(hb); err != nil {
					return
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	for {
		var msg realtimeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read change feed: %w", err)
		}

		switch msg.Event {
		case "INSERT", "UPDATE", "DELETE":
			c.logger.WithField("event", msg.Event).Debug("Remote entry changed")
			if c.OnChange != nil {
				c.OnChange()
			}
		case "phx_reply", "phx_error", "heartbeat":
			// Protocol chatter, nothing to do.
		}
	}
}

func websocketURL(baseURL string) string {
	u := baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return strings.TrimSuffix(u, "/") + "/realtime/v1/websocket"
}
