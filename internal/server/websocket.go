package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lox/twentyone/internal/protocol"
	"github.com/lox/twentyone/internal/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// feedConn is one WebSocket subscriber to a session's event feed. It
// can also carry action messages back over the socket, using the same
// dispatch the REST routes use.
type feedConn struct {
	server    *Server
	gameID    string
	conn      *websocket.Conn
	sub       *session.Subscriber
	send      chan *protocol.Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// handleWebSocket upgrades the request and attaches the connection to
// the session's event feed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &feedConn{
		server: s,
		gameID: id,
		conn:   conn,
		sub:    s.sessions.Hub().Subscribe(id),
		send:   make(chan *protocol.Message, 256),
		logger: s.logger.WithPrefix("feed"),
		ctx:    ctx,
		cancel: cancel,
	}

	// Seed the feed with the current state so a client needs no
	// separate GET before its first frame.
	if msg, err := protocol.NewMessage(protocol.MessageTypeState, protocol.StateData{GameID: id, Snapshot: snap}); err == nil {
		c.send <- msg
	}

	s.logger.Info("Feed connected", "game_id", id)
	go c.writePump()
	go c.readPump()
	go c.forward()
}

// close tears the connection down. Safe to call from any pump.
func (c *feedConn) close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.sub.Close()
		close(c.send)
		err = c.conn.Close()
		c.logger.Info("Feed disconnected", "game_id", c.gameID)
	})
	return err
}

// forward relays hub events into the write pump
func (c *feedConn) forward() {
	for {
		select {
		case msg, ok := <-c.sub.C():
			if !ok {
				// Session deleted or subscriber dropped
				_ = c.close()
				return
			}
			c.sendMessage(msg)
		case <-c.ctx.Done():
			return
		}
	}
}

// sendMessage queues a message for the write pump, dropping the
// connection if its buffer is full.
func (c *feedConn) sendMessage(msg *protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, this is expected during shutdown
			c.logger.Debug("Dropped message on closed feed", "error", r)
		}
	}()

	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	default:
		c.logger.Warn("Feed send buffer full, closing connection", "game_id", c.gameID)
		_ = c.close()
	}
}

// readPump handles incoming messages from the client
func (c *feedConn) readPump() {
	defer func() { _ = c.close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// handleMessage processes an incoming message. Successful actions get
// no direct reply; the resulting state event fans out through the hub
// to every subscriber including this one.
func (c *feedConn) handleMessage(msg *protocol.Message) {
	if msg.Type != protocol.MessageTypeAction {
		c.sendError("invalid_message", fmt.Sprintf("unsupported message type %q", msg.Type), msg.RequestID)
		return
	}

	var data protocol.ActionData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError("invalid_message", "failed to parse action data", msg.RequestID)
		return
	}

	c.logger.Debug("Received action", "game_id", c.gameID, "action", data.Action)
	if _, err := c.server.applyAction(c.ctx, c.gameID, data); err != nil {
		_, code := statusForError(err)
		c.sendError(code, err.Error(), msg.RequestID)
	}
}

func (c *feedConn) sendError(code, message, requestID string) {
	msg, err := protocol.NewMessage(protocol.MessageTypeError, protocol.ErrorData{Code: code, Message: message})
	if err != nil {
		return
	}
	msg.RequestID = requestID
	c.sendMessage(msg)
}

// writePump handles outgoing messages to the client
func (c *feedConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
