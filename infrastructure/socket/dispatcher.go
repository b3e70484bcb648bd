package socket

import (
	"context"
	"dwilive/domain/event"
	"dwilive/errors"
	"dwilive/services"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
)

type handlerFunc func(ctx context.Context, s services.Session, data json.RawMessage) (any, error)

// Dispatcher routes inbound frames to the chat service. Every handler runs
// behind the same validation wrapper and failure boundary.
type Dispatcher struct {
	log    *slog.Logger
	routes map[event.Name]handlerFunc
}

func NewDispatcher(chat services.IChatService, log *slog.Logger) *Dispatcher {
	typing := func(isTyping bool) handlerFunc {
		return bind(func(ctx context.Context, s services.Session, req event.ConversationRequest) (any, error) {
			return nil, chat.Typing(ctx, s, req, isTyping)
		})
	}
	return &Dispatcher{
		log: log,
		routes: map[event.Name]handlerFunc{
			event.JoinConversation:  bind(chat.JoinConversation),
			event.LeaveConversation: bind(chat.LeaveConversation),
			event.SendMessage:       bind(chat.SendMessage),
			event.TypingStart:       typing(true),
			event.TypingStop:        typing(false),
		},
	}
}

// bind decodes and validates the payload before fn ever sees it.
func bind[Req, Res any](fn func(context.Context, services.Session, Req) (Res, error)) handlerFunc {
	return func(ctx context.Context, s services.Session, data json.RawMessage) (any, error) {
		var req Req
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				return nil, fmt.Errorf("%w: malformed payload: %w", errors.ErrValidation, err)
			}
		}
		if err := event.Validate(req); err != nil {
			return nil, err
		}
		return fn(ctx, s, req)
	}
}

// Dispatch handles one raw frame and returns the acknowledgment to write
// back. ok is false when the client did not ask for one.
func (d *Dispatcher) Dispatch(ctx context.Context, s services.Session, raw []byte) (ack event.Frame, ok bool) {
	var in event.Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		d.log.Debug("Malformed frame", "connection_id", s.ConnID, "error", err)
		return event.Frame{}, false
	}
	result := d.handle(ctx, s, in)
	if in.AckID == "" {
		return event.Frame{}, false
	}
	return result.Frame(in.AckID), true
}

func (d *Dispatcher) handle(ctx context.Context, s services.Session, in event.Inbound) (ack event.Ack) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Handler panicked",
				"event", in.Event,
				"connection_id", s.ConnID,
				"user_id", s.User.ID,
				"panic", r,
				"stack", string(debug.Stack()))
			ack = event.Failure(fmt.Errorf("%w: %v", errors.ErrHandlerPanic, r))
		}
	}()

	route, ok := d.routes[in.Event]
	if !ok {
		return event.Failure(fmt.Errorf("%w: %q", errors.ErrUnknownEvent, in.Event))
	}
	data, err := route(ctx, s, in.Data)
	if err != nil {
		d.logFailure(in.Event, s, err)
		return event.Failure(err)
	}
	return event.OK(data)
}

func (d *Dispatcher) logFailure(name event.Name, s services.Session, err error) {
	attrs := []any{"event", name, "connection_id", s.ConnID, "user_id", s.User.ID, "error", err}
	switch errors.AckCode(err) {
	case errors.CodeInternal:
		d.log.Error("Event failed", attrs...)
	case errors.CodeUnauthorized:
		d.log.Warn("Event refused", attrs...)
	default:
		d.log.Debug("Event rejected", attrs...)
	}
}
