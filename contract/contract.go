//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"dwilive/domain"
	"dwilive/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes, avoiding the need for
// manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one open connection.
// Consume must not block: a sink that cannot keep up drops the frame.
type EventSink interface {
	ID() string
	UserID() domain.UserID
	Consume(ctx context.Context, f event.Frame) error
}

// IRegistry is the in-memory room index: connection -> rooms and room -> connections.
type IRegistry interface {
	Register(sink EventSink)
	Join(connID string, conversationID domain.ConversationID) bool
	Leave(connID string, conversationID domain.ConversationID) bool
	IsSubscribed(connID string, conversationID domain.ConversationID) bool
	Disconnect(connID string) []domain.ConversationID
	UnsubscribeUser(userID domain.UserID, conversationID domain.ConversationID) int
	CloseRoom(conversationID domain.ConversationID) []EventSink
	Broadcast(ctx context.Context, conversationID domain.ConversationID, f event.Frame, excludeConnID string) int
	Counts() (connections, rooms int)
}

// IMembershipOracle answers from persisted membership, never from the room index.
type IMembershipOracle interface {
	IsParticipant(ctx context.Context, userID domain.UserID, conversationID domain.ConversationID) (bool, error)
}
