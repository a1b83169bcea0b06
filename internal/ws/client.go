package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-backend/internal/models"
	"chat-backend/internal/observability"
	"chat-backend/internal/presence"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// Client wraps a websocket connection as a presence.Conn. All writes funnel
// through a single buffered channel drained by writePump, so events reach
// the peer in the order they were emitted.
type Client struct {
	connID string
	userID int
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}

	closeOnce sync.Once
}

var _ presence.Conn = (*Client)(nil)

func newClient(conn *websocket.Conn, userID int) *Client {
	return &Client{
		connID: newConnID(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// UserID returns the authenticated owner of the connection.
func (c *Client) UserID() int {
	return c.userID
}

// Emit queues an event for delivery. A closed connection swallows the
// event; a full buffer drops it and leaves recovery to the reconnect sweep.
func (c *Client) Emit(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("marshal %s payload: %v", event, err)
		return
	}
	frame, err := json.Marshal(models.Event{Event: event, Data: payload})
	if err != nil {
		log.Printf("marshal %s frame: %v", event, err)
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- frame:
		observability.IncWSEvent("out", event)
	default:
		log.Printf("dropping %s for user %d: send buffer full", event, c.userID)
	}
}

// Close invalidates the handle. No event is delivered after Close returns
// the write pump.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
