package socket

import (
	"context"
	"dwilive/domain/event"
	"dwilive/services"
	"dwilive/sink"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// connection pumps one websocket. The read loop dispatches frames one at a
// time in arrival order; the write loop is the only writer of the socket.
type connection struct {
	conn       *websocket.Conn
	session    services.Session
	sink       *sink.ConnectionSink
	dispatcher *Dispatcher
	opts       Options
	log        *slog.Logger
}

func (c *connection) readLoop(ctx context.Context) {
	c.conn.SetReadLimit(c.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		kind, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Connection lost", "connection_id", c.session.ConnID, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		ack, ok := c.dispatcher.Dispatch(ctx, c.session, raw)
		if !ok {
			continue
		}
		if err := c.sink.Reply(ctx, ack); err != nil {
			c.log.Debug("Ack not sent", "connection_id", c.session.ConnID, "ack_id", ack.AckID, "error", err)
			return
		}
	}
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	// Closing the sink releases a read loop waiting to queue an ack.
	defer func() {
		ticker.Stop()
		c.sink.Close()
		_ = c.conn.Close()
	}()

	for {
		// Pending acks go out before queued broadcasts
		select {
		case f := <-c.sink.Acks():
			if !c.write(f) {
				return
			}
			continue
		default:
		}

		select {
		case f := <-c.sink.Acks():
			if !c.write(f) {
				return
			}
		case f := <-c.sink.Frames():
			if !c.write(f) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.sink.Done():
			deadline := time.Now().Add(c.opts.WriteWait)
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

func (c *connection) write(f event.Frame) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	if err := c.conn.WriteJSON(f); err != nil {
		c.log.Debug("Write failed", "connection_id", c.session.ConnID, "event", f.Event, "error", err)
		return false
	}
	return true
}
