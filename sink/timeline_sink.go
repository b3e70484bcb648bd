package sink

import (
	"context"
	"dwilive/domain"
	"dwilive/domain/event"
	"sync"

	"github.com/samber/lo"
)

// Timeline holds every frame it receives, in order. It stands in for a
// connection wherever frames only need to be observed.
type Timeline struct {
	mu     sync.Mutex
	id     string
	userID domain.UserID
	Frames []event.Frame
}

func NewTimeline(id string, userID domain.UserID) *Timeline {
	return &Timeline{id: id, userID: userID}
}

func (t *Timeline) ID() string { return t.id }

func (t *Timeline) UserID() domain.UserID { return t.userID }

func (t *Timeline) Consume(_ context.Context, f event.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Frames = append(t.Frames, f)
	return nil
}

// Received returns the frames of the given event received so far.
func (t *Timeline) Received(name event.Name) []event.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return lo.Filter(t.Frames, func(f event.Frame, _ int) bool { return f.Event == name })
}
