package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
	maxFrameSize   = 4096
)

// Client represents a single WebSocket connection.
type Client struct {
	id   string
	hub  *Hub
	conn *ws.Conn
	send chan []byte

	// boundUserID is the user of the HTTP session that opened the
	// connection; 0 means any user id may be claimed.
	boundUserID int64

	// Guarded by hub.mu.
	userID   int64
	families map[int64]struct{}
}

// NewClient creates a Client tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn, sessionUserID int64) *Client {
	return &Client{
		id:          uuid.NewString(),
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		boundUserID: sessionUserID,
		families:    make(map[int64]struct{}),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		c.writePump(ctx)
		cancel()
	}()
	c.readPump(ctx)
}

func (c *Client) trySend(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// readPump dispatches inbound frames until the connection errors or closes.
func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxFrameSize)
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != ws.MessageText {
			c.hub.sendError(c, "binary frames are not supported")
			continue
		}
		c.handle(data)
	}
}

// handle decodes one inbound frame and applies it to the hub.
func (c *Client) handle(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.hub.sendError(c, "malformed message")
		return
	}

	switch f.Event {
	case EventAuthenticate:
		var p authenticatePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.hub.sendError(c, "malformed authenticate payload")
			return
		}
		if err := c.hub.Authenticate(c, p.UserID); err != nil {
			c.hub.logger.Debug("authenticate rejected", "conn", c.id, "error", err)
		}
	case EventJoinFamily:
		var p familyPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.hub.sendError(c, "malformed join_family payload")
			return
		}
		if err := c.hub.JoinFamily(c, p.FamilyID); err != nil {
			c.hub.logger.Debug("join family rejected", "conn", c.id, "family_id", p.FamilyID, "error", err)
		}
	case EventLeaveFamily:
		var p familyPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.hub.sendError(c, "malformed leave_family payload")
			return
		}
		c.hub.LeaveFamily(c, p.FamilyID)
	default:
		c.hub.sendError(c, "unknown event: "+f.Event)
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub closed the channel; connection is done
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, ws.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
