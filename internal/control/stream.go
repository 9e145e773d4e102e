// internal/control/stream.go
package control

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xkilldash9x/raidpilot/api/schemas"
	"github.com/xkilldash9x/raidpilot/internal/messaging"
	"github.com/xkilldash9x/raidpilot/internal/status"
)

// wsClient is one open status stream. Every write goes through writePump.
type wsClient struct {
	server *Server
	conn   *websocket.Conn
	send   chan messaging.Response
	done   chan struct{}
}

// handleStatusStream upgrades the connection, sends the current status, then pushes
// every published report. Requests read from the socket are answered on it.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade has already written an HTTP error.
		s.logger.Error("Failed to upgrade connection to WebSocket", zap.Error(err))
		return
	}
	s.logger.Info("Status stream opened", zap.String("remoteAddr", r.RemoteAddr))

	updates, unsubscribe := s.bus.Subscribe(status.TopicStatus)
	c := &wsClient{
		server: s,
		conn:   conn,
		send:   make(chan messaging.Response, sendChannelSize),
		done:   make(chan struct{}),
	}
	c.queue(s.router.Handle(r.Context(), messaging.Request{Type: messaging.KindGetStatus}))

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		c.writePump(updates)
	}()
	// The hijacked connection outlives r.Context(); the pumps are stopped by the
	// connection closing instead.
	c.readPump(context.WithoutCancel(r.Context()))

	close(c.done)
	<-pumpDone
	unsubscribe()
	s.logger.Info("Status stream closed", zap.String("remoteAddr", r.RemoteAddr))
}

// readPump reads requests until the connection fails or is closed.
func (c *wsClient) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.server.logger.Error("Failed to set initial read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req messaging.Request
		if err := c.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Debug("Status stream closed unexpectedly", zap.Error(err))
			}
			return
		}
		c.queue(c.server.router.Handle(ctx, req))
	}
}

// writePump serializes writes: responses, pushed reports and pings.
func (c *wsClient) writePump(updates <-chan status.Message) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case resp := <-c.send:
			if !c.write(resp) {
				return
			}
		case msg, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			report, ok := msg.Payload.(schemas.StatusReport)
			if !ok {
				continue
			}
			if !c.write(messaging.Response{Success: true, Type: messaging.StatusUpdateType, Status: &report}) {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.server.logger.Debug("Error sending PING", zap.Error(err))
				return
			}
		case <-c.server.shutdown:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) write(resp messaging.Response) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := c.conn.WriteJSON(resp); err != nil {
		c.server.logger.Debug("Error writing to status stream", zap.Error(err))
		return false
	}
	return true
}

// queue hands resp to the write pump, dropping it if the client has fallen behind.
func (c *wsClient) queue(resp messaging.Response) {
	select {
	case c.send <- resp:
	default:
		c.server.logger.Warn("Status stream send buffer full, dropping message")
	}
}
