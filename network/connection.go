// network/connection.go
package network

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Connection interface {
	SendEnvelope(env *Envelope) error
	ReadEnvelope() (*Envelope, error)
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
}

// defaultWriteTimeout bounds one write to a slow peer. A peer that stops
// reading fails its next send instead of stalling every goroutine that
// fans out to it.
const defaultWriteTimeout = 10 * time.Second

type WSConnection struct {
	conn         *websocket.Conn
	sendMutex    sync.Mutex
	heartbeat    time.Duration
	writeTimeout time.Duration
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn, writeTimeout: defaultWriteTimeout}
}

// SetWriteTimeout overrides the per-write deadline.
func (c *WSConnection) SetWriteTimeout(d time.Duration) {
	c.sendMutex.Lock()
	c.writeTimeout = d
	c.sendMutex.Unlock()
}

func (c *WSConnection) SendEnvelope(env *Envelope) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WSConnection) ReadEnvelope() (*Envelope, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if c.heartbeat > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.heartbeat * 2))
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// SetHeartbeat arms the read deadline; a connection silent for twice the
// interval fails its next read and is torn down by the server read loop.
func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	c.heartbeat = interval
	c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(interval * 2))
		return nil
	})
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
