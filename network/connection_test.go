package network

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A peer that stops reading must fail a send once the write deadline
// passes instead of blocking the sending goroutine forever.
func TestSendEnvelopeFailsOnStalledPeer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverConn := make(chan *WSConnection, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConn <- NewWSConnection(ws)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()
	// The client never reads, so the transport buffers eventually fill.

	conn := <-serverConn
	defer conn.Close()
	conn.SetWriteTimeout(100 * time.Millisecond)

	env := NewEnvelope(TypeChatMessage, map[string]string{"text": strings.Repeat("x", 1<<16)})

	start := time.Now()
	var sendErr error
	for i := 0; i < 1000 && sendErr == nil; i++ {
		sendErr = conn.SendEnvelope(env)
	}
	require.Error(t, sendErr, "writes to a stalled peer must eventually fail")
	assert.Less(t, time.Since(start), 30*time.Second)
}
