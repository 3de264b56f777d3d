package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lifeshare/bloodlink-api/internal/models"
)

func newTestClient(sessionID string, buffer int) *Client {
	return &Client{SessionID: sessionID, UserID: "user-" + sessionID, send: make(chan []byte, buffer)}
}

func recvFrame(t *testing.T, client *Client) envelope {
	t.Helper()
	select {
	case frame := <-client.send:
		var env envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("expected a frame")
		return envelope{}
	}
}

func TestFanOutSkipsOriginSession(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	origin := newTestClient("origin", 4)
	other := newTestClient("other", 4)
	hub.clients[origin.SessionID] = origin
	hub.clients[other.SessionID] = other

	hub.fanOut(models.Event{
		Type:            models.EventNewRequest,
		Payload:         map[string]string{"id": "r1"},
		OriginSessionID: "origin",
	})

	require.Len(t, other.send, 1)
	assert.Empty(t, origin.send)

	var frame envelope
	require.NoError(t, json.Unmarshal(<-other.send, &frame))
	assert.Equal(t, models.EventNewRequest, frame.Type)
	assert.False(t, frame.Timestamp.IsZero())
}

func TestFanOutReachesAllWithoutOrigin(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	a := newTestClient("a", 4)
	b := newTestClient("b", 4)
	hub.clients[a.SessionID] = a
	hub.clients[b.SessionID] = b

	hub.fanOut(models.Event{Type: models.EventDonationStatusChanged, Payload: models.DonationStatusPayload{DonationID: "d1"}})

	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 1)
}

func TestFanOutDropsSlowConsumer(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	slow := newTestClient("slow", 1)
	slow.send <- []byte("backlog")
	fast := newTestClient("fast", 4)
	hub.clients[slow.SessionID] = slow
	hub.clients[fast.SessionID] = fast

	hub.fanOut(models.Event{Type: models.EventNewRequest})

	assert.NotContains(t, hub.clients, "slow")
	assert.Contains(t, hub.clients, "fast")
	assert.Len(t, fast.send, 1)
}

func TestHubRegisterAndBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := newTestClient("s1", 4)
	hub.register <- client
	assert.Equal(t, "connected", recvFrame(t, client).Type)

	hub.Publish(models.Event{Type: models.EventNewRequest, Payload: map[string]string{"id": "r1"}})

	assert.Equal(t, models.EventNewRequest, recvFrame(t, client).Type)
}

func TestHubSendsHelloOnRegister(t *testing.T) {
	// The hello frame is delivered by the hub loop, the sole owner of send
	// channel closes, and carries the session id the client echoes back.
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := newTestClient("s1", 4)
	hub.register <- client

	hello := recvFrame(t, client)
	assert.Equal(t, "connected", hello.Type)
	payload, ok := hello.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "s1", payload["session_id"])
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := newTestClient("s1", 4)
	hub.register <- client
	assert.Equal(t, "connected", recvFrame(t, client).Type)
	hub.unregister <- client

	select {
	case _, ok := <-client.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected send channel to close")
	}
}
