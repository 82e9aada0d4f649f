package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is a server-to-client message.
type Event struct {
	Type     string `json:"type"`
	Value    any    `json:"value,omitempty"`
	Text     string `json:"text,omitempty"`
	Role     string `json:"role,omitempty"`
	Modality string `json:"modality,omitempty"`
	Sequence int    `json:"sequence,omitempty"`
}

const (
	EventHistory       = "history"
	EventQuestions     = "questions"
	EventDone          = "done"
	EventTranscription = "transcription"
	EventError         = "error"
)

// Channel is one open websocket to a client. Writes are serialized so the
// registry can close a channel while its worker is sending.
type Channel struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func newChannel(conn *websocket.Conn, writeTimeout time.Duration) *Channel {
	return &Channel{conn: conn, writeTimeout: writeTimeout}
}

// Send writes ev as JSON.
func (c *Channel) Send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(ev)
}

// Close sends a close frame with code and reason, then drops the
// connection. Only the first call has any effect.
func (c *Channel) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
	c.conn.Close()
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
