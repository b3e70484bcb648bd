package socket

import (
	"context"
	"dwilive/domain"
	"dwilive/domain/event"
	"dwilive/errors"
	"dwilive/services"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// stubChat answers every call through its function fields; a nil field panics.
// When set, contexts receives the context of every join and disconnected is
// closed on Disconnect.
type stubChat struct {
	join         func(event.ConversationRequest) (event.RoomPayload, error)
	send         func(event.SendMessageRequest) (event.MessageDTO, error)
	typing       func(event.ConversationRequest, bool) error
	contexts     chan context.Context
	disconnected chan struct{}
}

func (s *stubChat) JoinConversation(ctx context.Context, _ services.Session, req event.ConversationRequest) (event.RoomPayload, error) {
	if s.contexts != nil {
		s.contexts <- ctx
	}
	return s.join(req)
}

func (s *stubChat) LeaveConversation(_ context.Context, _ services.Session, req event.ConversationRequest) (event.RoomPayload, error) {
	return event.RoomPayload{ConversationID: req.ConversationID}, nil
}

func (s *stubChat) SendMessage(_ context.Context, _ services.Session, req event.SendMessageRequest) (event.MessageDTO, error) {
	return s.send(req)
}

func (s *stubChat) Typing(_ context.Context, _ services.Session, req event.ConversationRequest, isTyping bool) error {
	return s.typing(req, isTyping)
}

func (s *stubChat) Disconnect(services.Session) {
	if s.disconnected != nil {
		close(s.disconnected)
	}
}

func newDispatcher(chat *stubChat) *Dispatcher {
	return NewDispatcher(chat, logs.GetLoggerFromLevel(slog.LevelDebug))
}

var testSession = services.Session{ConnID: "conn-1", User: domain.User{ID: domain.NewUserID(), Username: "alice"}}

func dispatch(t *testing.T, d *Dispatcher, raw string) event.Ack {
	t.Helper()
	frame, ok := d.Dispatch(context.Background(), testSession, []byte(raw))
	require.True(t, ok)
	require.Equal(t, event.Acknowledgment, frame.Event)
	require.Equal(t, "1", frame.AckID)
	ack, ok := frame.Data.(event.Ack)
	require.True(t, ok)
	return ack
}

func TestDispatcher_Routes_Valid_Payload(t *testing.T) {
	req := require.New(t)
	conv := domain.NewConversationID().String()
	var received event.SendMessageRequest
	d := newDispatcher(&stubChat{send: func(r event.SendMessageRequest) (event.MessageDTO, error) {
		received = r
		return event.MessageDTO{ID: "msg_1", Content: r.Content}, nil
	}})

	ack := dispatch(t, d, `{"event":"send-message","ackId":"1","data":{"conversationId":"`+conv+`","content":"hi"}}`)

	req.Equal(event.StatusOK, ack.Status)
	req.Equal(event.MessageDTO{ID: "msg_1", Content: "hi"}, ack.Data)
	req.Equal(conv, received.ConversationID)
}

func TestDispatcher_Rejects_Before_Handler(t *testing.T) {
	conv := domain.NewConversationID().String()
	tests := []struct {
		name string
		raw  string
	}{
		{"Unknown event", `{"event":"shout","ackId":"1","data":{}}`},
		{"Missing data", `{"event":"join-conversation","ackId":"1"}`},
		{"Wrong shape", `{"event":"join-conversation","ackId":"1","data":"conv"}`},
		{"Malformed id", `{"event":"join-conversation","ackId":"1","data":{"conversationId":"42"}}`},
		{"Empty content", `{"event":"send-message","ackId":"1","data":{"conversationId":"` + conv + `"}}`},
		{"Unsupported type", `{"event":"send-message","ackId":"1","data":{"conversationId":"` + conv + `","content":"x","type":"video"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			// Handlers would panic if reached
			d := newDispatcher(&stubChat{})

			ack := dispatch(t, d, tt.raw)

			req.Equal(event.StatusError, ack.Status)
			req.Equal(errors.CodeValidation, ack.Code)
			req.NotEmpty(ack.Error)
		})
	}
}

func TestDispatcher_Maps_Handler_Errors(t *testing.T) {
	req := require.New(t)
	conv := domain.NewConversationID().String()
	d := newDispatcher(&stubChat{join: func(event.ConversationRequest) (event.RoomPayload, error) {
		return event.RoomPayload{}, errors.ErrUnauthorized
	}})

	ack := dispatch(t, d, `{"event":"join-conversation","ackId":"1","data":{"conversationId":"`+conv+`"}}`)

	req.Equal(event.StatusError, ack.Status)
	req.Equal(errors.CodeUnauthorized, ack.Code)
	req.Equal(errors.ErrUnauthorized.Error(), ack.Error)
}

func TestDispatcher_Panic_Becomes_Internal_Ack(t *testing.T) {
	req := require.New(t)
	conv := domain.NewConversationID().String()
	d := newDispatcher(&stubChat{join: func(event.ConversationRequest) (event.RoomPayload, error) {
		panic("boom")
	}})

	ack := dispatch(t, d, `{"event":"join-conversation","ackId":"1","data":{"conversationId":"`+conv+`"}}`)

	req.Equal(errors.CodeInternal, ack.Code)
	req.NotContains(ack.Error, "boom")

	// The dispatcher keeps serving afterwards
	ack = dispatch(t, d, `{"event":"leave-conversation","ackId":"1","data":{"conversationId":"`+conv+`"}}`)
	req.Equal(event.StatusOK, ack.Status)
}

func TestDispatcher_No_Ack_Without_Ack_Id(t *testing.T) {
	req := require.New(t)
	conv := domain.NewConversationID().String()
	var calls []bool
	d := newDispatcher(&stubChat{typing: func(_ event.ConversationRequest, isTyping bool) error {
		calls = append(calls, isTyping)
		return nil
	}})

	_, ok := d.Dispatch(context.Background(), testSession, []byte(`{"event":"typing-start","data":{"conversationId":"`+conv+`"}}`))
	req.False(ok)
	_, ok = d.Dispatch(context.Background(), testSession, []byte(`{"event":"typing-stop","data":{"conversationId":"`+conv+`"}}`))
	req.False(ok)
	_, ok = d.Dispatch(context.Background(), testSession, []byte(`not json`))
	req.False(ok)

	req.Equal([]bool{true, false}, calls)
}
