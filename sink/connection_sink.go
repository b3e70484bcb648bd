package sink

import (
	"context"
	"dwilive/domain"
	"dwilive/domain/event"
	"dwilive/errors"
	"sync"
)

// ConnectionSink buffers the outbound frames of one websocket connection.
// The write loop of the connection drains Frames.
type ConnectionSink struct {
	id     string
	userID domain.UserID
	frames chan event.Frame
	acks   chan event.Frame
	done   chan struct{}
	once   sync.Once
}

func NewConnectionSink(id string, userID domain.UserID, bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		id:     id,
		userID: userID,
		frames: make(chan event.Frame, bufferSize),
		acks:   make(chan event.Frame, 1),
		done:   make(chan struct{}),
	}
}

func (c *ConnectionSink) ID() string { return c.id }

func (c *ConnectionSink) UserID() domain.UserID { return c.userID }

// Consume never blocks: a slow client loses the frame instead of stalling the room.
func (c *ConnectionSink) Consume(_ context.Context, f event.Frame) error {
	select {
	case <-c.done:
		return errors.ErrSinkClosed
	default:
	}
	select {
	case c.frames <- f:
		return nil
	default:
		return errors.ErrSinkFull
	}
}

// Reply queues an acknowledgment outside the broadcast buffer. It waits
// while the previous ack is still unwritten and fails once the connection
// is gone.
func (c *ConnectionSink) Reply(ctx context.Context, f event.Frame) error {
	select {
	case <-c.done:
		return errors.ErrSinkClosed
	default:
	}
	select {
	case c.acks <- f:
		return nil
	case <-c.done:
		return errors.ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ConnectionSink) Frames() <-chan event.Frame { return c.frames }

func (c *ConnectionSink) Acks() <-chan event.Frame { return c.acks }

// Done is closed once the connection is gone.
func (c *ConnectionSink) Done() <-chan struct{} { return c.done }

// Close stops accepting frames. The frame channel itself is never closed
// since broadcasters may still hold the sink.
func (c *ConnectionSink) Close() {
	c.once.Do(func() { close(c.done) })
}
