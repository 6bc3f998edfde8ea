package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodiary/moodiary/internal/config"
	"github.com/moodiary/moodiary/internal/events"
)

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://proj.example.co", "wss://proj.example.co/realtime/v1/websocket"},
		{"http://localhost:8000", "ws://localhost:8000/realtime/v1/websocket"},
		{"https://proj.example.co/", "wss://proj.example.co/realtime/v1/websocket"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, websocketURL(tt.base))
	}
}

func TestRealtimeChangeAndReconnect(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	var conns int32
	hold := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "anon-key" {
			t.Error("missing apikey on websocket dial")
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var join realtimeMessage
		if err := conn.ReadJSON(&join); err != nil {
			return
		}
		if join.Event != "phx_join" || !strings.Contains(string(join.Payload), "user-token") {
			t.Errorf("unexpected join frame: %+v", join)
		}

		if atomic.AddInt32(&conns, 1) == 1 {
			// First connection: deliver one change, then drop.
			_ = conn.WriteJSON(realtimeMessage{
				Topic:   "realtime:entries",
				Event:   "UPDATE",
				Payload: json.RawMessage(`{}`),
			})
			time.Sleep(50 * time.Millisecond)
			return
		}
		// Later connections stay open until the test finishes.
		<-hold
	}))
	defer server.Close()
	defer close(hold)

	cfg := &config.APIConfig{BaseURL: server.URL, AnonKey: "anon-key"}
	client := NewRealtimeClient(cfg, events.NewTestLogger(events.ErrorLevel, io.Discard))
	client.SetToken("user-token")

	changed := make(chan struct{}, 1)
	reconnected := make(chan struct{}, 1)
	client.OnChange = func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}
	client.OnReconnect = func() {
		select {
		case reconnected <- struct{}{}:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("change notification never arrived")
	}

	// The server dropped the first connection; the client backs off
	// and reconnects.
	select {
	case <-reconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("reconnect notification never arrived")
	}

	require.GreaterOrEqual(t, atomic.LoadInt32(&conns), int32(2))
}
