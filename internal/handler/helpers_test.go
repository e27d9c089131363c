package handler

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ugaemi/geotag-server/internal/room"
	"github.com/ugaemi/geotag-server/internal/store"
	"github.com/ugaemi/geotag-server/internal/ws"
)

var t0 = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC) // a Monday

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMessage struct {
	Type string
	Data json.RawMessage
}

// newTestClient creates a test client that captures sent messages.
func newTestClient(id string) (*ws.Client, chan sentMessage) {
	ch := make(chan sentMessage, 64)
	client := &ws.Client{
		ID:   id,
		Send: make(chan []byte, 256),
	}

	// Read sent messages in background
	go func() {
		for data := range client.Send {
			var msg sentMessage
			json.Unmarshal(data, &msg)
			ch <- msg
		}
	}()

	return client, ch
}

// readResponseOfType reads messages until one of msgType arrives.
func readResponseOfType(t *testing.T, ch chan sentMessage, msgType string) sentMessage {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case msg := <-ch:
			if msg.Type == msgType {
				return msg
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s", msgType)
			return sentMessage{}
		}
	}
}

// readError reads messages until an error arrives and returns its payload.
func readError(t *testing.T, ch chan sentMessage) ws.ErrorMessage {
	t.Helper()
	msg := readResponseOfType(t, ch, ws.TypeError)
	var e ws.ErrorMessage
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	return e
}

// drainCh discards all pending messages.
func drainCh(ch chan sentMessage) {
	for {
		select {
		case <-ch:
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

type testServer struct {
	router *Router
	rm     *room.Manager
	clock  *fakeClock
	store  *store.MemoryStore
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := &fakeClock{now: t0}
	st := store.NewMemoryStore()
	rm := room.NewManager(room.DefaultSettings(), st, room.WithClock(clock.Now))
	t.Cleanup(rm.Close)
	return &testServer{router: NewRouter(rm), rm: rm, clock: clock, store: st}
}

// send routes a message as if it arrived from client.
func (s *testServer) send(t *testing.T, client *ws.Client, msgType string, payload any) {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	raw, err := json.Marshal(ws.Message{Type: msgType, Data: data})
	require.NoError(t, err)
	s.router.HandleMessage(&ws.ClientMessage{Client: client, Data: raw})
}
