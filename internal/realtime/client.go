package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	sendBuffer   = 64
	pingInterval = 25 * time.Second
	writeWait    = 10 * time.Second
	maxFrameSize = 64 << 10
)

// Client is one WebSocket connection of one player.
type Client struct {
	ws       *websocket.Conn
	send     chan []byte
	playerID string
	name     string
	limiter  *rate.Limiter

	mu     sync.Mutex
	closed bool
}

func newClient(ws *websocket.Conn, playerID, name string, limiter *rate.Limiter) *Client {
	return &Client{
		ws:       ws,
		send:     make(chan []byte, sendBuffer),
		playerID: playerID,
		name:     name,
		limiter:  limiter,
	}
}

func (c *Client) PlayerID() string { return c.playerID }

// enqueue never blocks; a client that cannot keep up is disconnected.
func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.closed = true
		close(c.send)
		return false
	}
}

// Close stops the writer after it flushes what is already queued.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
