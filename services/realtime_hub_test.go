package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"potluck/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsPair returns the server side of a websocket connection and the dialed
// client side.
func wsPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- c
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("no websocket upgrade")
	}
	return server, client
}

func TestRealtimeHubBroadcast(t *testing.T) {
	hub := NewRealtimeHub(nil)
	t.Cleanup(hub.Close)

	server, client := wsPair(t)
	hub.Register(NewWSClient(server))
	require.Equal(t, 1, hub.Len())

	hub.Broadcast(ChangeMessage{Kind: KindDishChanged, Event: models.ChangeEvent{Op: models.OpInsert, ID: "abc"}})

	var msg ChangeMessage
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, client.ReadJSON(&msg))
	assert.Equal(t, KindDishChanged, msg.Kind)
	assert.Equal(t, "abc", msg.Event.ID)
}

func TestRealtimeHubStalledClientDoesNotBlock(t *testing.T) {
	hub := NewRealtimeHub(nil)
	t.Cleanup(hub.Close)

	server, _ := wsPair(t)
	cl := NewWSClient(server)
	hub.Register(cl)

	// a write that never finishes
	cl.wmu.Lock()
	defer cl.wmu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 4*sendBuffer; i++ {
			hub.Broadcast(ChangeMessage{Kind: KindDishChanged})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast waited on a stalled client")
	}
	assert.Zero(t, hub.Len(), "client with a full queue is dropped")
}
