package runtime

import (
	"context"
	"dwilive/contract"
	"dwilive/domain"
	"dwilive/domain/event"
	"log/slog"
	"sync"
)

type Set[K comparable] map[K]struct{}

// Registry is a bipartite index between open connections and rooms.
// Both directions are kept so that a disconnect and a room broadcast
// are each a single lookup.
type Registry struct {
	mu            sync.RWMutex
	log           *slog.Logger
	sessions      map[string]contract.EventSink         // connection -> sink
	subscriptions map[string]Set[domain.ConversationID] // connection -> rooms
	roomMembers   map[domain.ConversationID]Set[string] // room -> connections
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:           log,
		sessions:      make(map[string]contract.EventSink),
		subscriptions: make(map[string]Set[domain.ConversationID]),
		roomMembers:   make(map[domain.ConversationID]Set[string]),
	}
}

// Register makes an authenticated connection known before it joins any room.
func (r *Registry) Register(sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sink.ID()] = sink
	if _, ok := r.subscriptions[sink.ID()]; !ok {
		r.subscriptions[sink.ID()] = make(Set[domain.ConversationID])
	}
}

// Join subscribes a registered connection to a room. It reports false when
// the connection was already subscribed or is unknown.
func (r *Registry) Join(connID string, conversationID domain.ConversationID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.subscriptions[connID]
	if !ok {
		return false
	}
	if _, already := rooms[conversationID]; already {
		return false
	}
	rooms[conversationID] = struct{}{}
	if _, ok := r.roomMembers[conversationID]; !ok {
		r.roomMembers[conversationID] = make(Set[string])
	}
	r.roomMembers[conversationID][connID] = struct{}{}
	return true
}

// Leave unsubscribes a connection from a room and reports whether it was subscribed.
func (r *Registry) Leave(connID string, conversationID domain.ConversationID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unsubscribe(connID, conversationID)
}

func (r *Registry) IsSubscribed(connID string, conversationID domain.ConversationID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roomMembers[conversationID][connID]
	return ok
}

// Disconnect forgets a connection and every subscription it held.
// It returns the rooms the connection was in.
func (r *Registry) Disconnect(connID string) []domain.ConversationID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []domain.ConversationID
	for conversationID := range r.subscriptions[connID] {
		r.unsubscribe(connID, conversationID)
		left = append(left, conversationID)
	}
	delete(r.subscriptions, connID)
	delete(r.sessions, connID)
	return left
}

// UnsubscribeUser removes every connection of a user from a room and returns
// how many were removed.
func (r *Registry) UnsubscribeUser(userID domain.UserID, conversationID domain.ConversationID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for connID := range r.roomMembers[conversationID] {
		if sink, ok := r.sessions[connID]; ok && sink.UserID() == userID {
			if r.unsubscribe(connID, conversationID) {
				removed++
			}
		}
	}
	return removed
}

// CloseRoom force-unsubscribes everyone from a room, typically because the
// conversation behind it is gone. The former subscribers are returned.
func (r *Registry) CloseRoom(conversationID domain.ConversationID) []contract.EventSink {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sinks []contract.EventSink
	for connID := range r.roomMembers[conversationID] {
		if sink, ok := r.sessions[connID]; ok {
			sinks = append(sinks, sink)
		}
		delete(r.subscriptions[connID], conversationID)
	}
	delete(r.roomMembers, conversationID)
	return sinks
}

// Broadcast hands f to every connection subscribed to the room except
// excludeConnID, and returns the number of sinks that accepted it.
// Sinks are collected under the read lock and fed outside of it.
func (r *Registry) Broadcast(ctx context.Context, conversationID domain.ConversationID, f event.Frame, excludeConnID string) int {
	delivered := 0
	for _, sink := range r.sinksForRoom(conversationID, excludeConnID) {
		if err := sink.Consume(ctx, f); err != nil {
			r.log.Warn("Frame dropped",
				"event", f.Event,
				"conversation_id", conversationID,
				"connection_id", sink.ID(),
				"error", err)
			continue
		}
		delivered++
	}
	return delivered
}

func (r *Registry) Counts() (connections, rooms int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), len(r.roomMembers)
}

func (r *Registry) sinksForRoom(conversationID domain.ConversationID, excludeConnID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[conversationID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for connID := range members {
		if connID == excludeConnID {
			continue
		}
		if sink, exists := r.sessions[connID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// unsubscribe must be called with the write lock held.
// Empty rooms are removed so the map does not grow with dead conversations.
func (r *Registry) unsubscribe(connID string, conversationID domain.ConversationID) bool {
	members, ok := r.roomMembers[conversationID]
	if !ok {
		return false
	}
	if _, ok := members[connID]; !ok {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.roomMembers, conversationID)
	}
	delete(r.subscriptions[connID], conversationID)
	return true
}
