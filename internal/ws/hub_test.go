package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastReachesClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(Message{Type: TypeRunState, RunID: "r1", Data: map[string]string{"state": "running"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Message
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, TypeRunState, got.Type)
	assert.Equal(t, "r1", got.RunID)
	assert.False(t, got.Timestamp.IsZero())
}

func TestHub_BroadcastWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub()
	for i := 0; i < 1000; i++ {
		hub.Broadcast(Message{Type: TypeEstimate})
	}
	assert.Zero(t, hub.ClientCount())
}

func TestHub_LeaveAfterShutdownDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	exited := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(exited)
	}()
	cancel()
	<-exited

	left := make(chan struct{})
	go func() {
		for i := 0; i < 32; i++ {
			hub.leave(&client{send: make(chan []byte)})
		}
		close(left)
	}()

	select {
	case <-left:
	case <-time.After(2 * time.Second):
		t.Fatal("leave blocked after the hub stopped")
	}
}

func TestHub_ServeWSAfterShutdownClosesConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	exited := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(exited)
	}()
	cancel()
	<-exited

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	for i := 0; i < 16; i++ {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		require.NoError(t, err)
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err = conn.ReadMessage()
		assert.Error(t, err)
		conn.Close()
	}
	assert.Zero(t, hub.ClientCount())
}
