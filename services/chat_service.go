package services

import (
	"context"
	"dwilive/contract"
	"dwilive/domain"
	"dwilive/domain/event"
	"dwilive/errors"
	"dwilive/moderation"
	"dwilive/repositories"
	"log/slog"
)

// Session is the per-connection context handed to every realtime handler:
// the connection it came from and the user resolved at handshake.
type Session struct {
	ConnID string
	User   domain.User
}

type IChatService interface {
	JoinConversation(ctx context.Context, s Session, req event.ConversationRequest) (event.RoomPayload, error)
	LeaveConversation(ctx context.Context, s Session, req event.ConversationRequest) (event.RoomPayload, error)
	SendMessage(ctx context.Context, s Session, req event.SendMessageRequest) (event.MessageDTO, error)
	Typing(ctx context.Context, s Session, req event.ConversationRequest, isTyping bool) error
	Disconnect(s Session)
}

// ChatService runs the room and message flows of live connections.
// Every action asks the oracle first; room subscription alone grants nothing.
type ChatService struct {
	oracle           contract.IMembershipOracle
	registry         contract.IRegistry
	messages         repositories.IMessageRepository
	conversations    repositories.IConversationRepository
	moderator        *moderation.Moderator
	log              *slog.Logger
	maxContentLength int
}

func NewChatService(
	oracle contract.IMembershipOracle,
	registry contract.IRegistry,
	messages repositories.IMessageRepository,
	conversations repositories.IConversationRepository,
	moderator *moderation.Moderator,
	log *slog.Logger,
	maxContentLength int,
) *ChatService {
	return &ChatService{
		oracle:           oracle,
		registry:         registry,
		messages:         messages,
		conversations:    conversations,
		moderator:        moderator,
		log:              log,
		maxContentLength: maxContentLength,
	}
}

// JoinConversation subscribes the connection to the room. Joining twice is a
// no-op and peers only hear about the first one.
func (c *ChatService) JoinConversation(ctx context.Context, s Session, req event.ConversationRequest) (event.RoomPayload, error) {
	conversationID, err := c.authorize(ctx, s, req.ConversationID)
	if err != nil {
		return event.RoomPayload{}, err
	}
	if c.registry.Join(s.ConnID, conversationID) {
		c.registry.Broadcast(ctx, conversationID, event.NewFrame(event.UserJoinedConversation, event.UserJoinedPayload{
			ConversationID: conversationID.String(),
			User:           event.ToUserDTO(s.User),
		}), s.ConnID)
		c.log.Debug("Room joined", "conversation_id", conversationID, "user_id", s.User.ID, "connection_id", s.ConnID)
	}
	return event.RoomPayload{ConversationID: conversationID.String()}, nil
}

// LeaveConversation unsubscribes the connection. The user must still be a
// participant, a kicked user stays subscribed until disconnect.
func (c *ChatService) LeaveConversation(ctx context.Context, s Session, req event.ConversationRequest) (event.RoomPayload, error) {
	conversationID, err := c.authorize(ctx, s, req.ConversationID)
	if err != nil {
		return event.RoomPayload{}, err
	}
	if c.registry.Leave(s.ConnID, conversationID) {
		c.registry.Broadcast(ctx, conversationID, event.NewFrame(event.UserLeftConversation, event.UserLeftPayload{
			ConversationID: conversationID.String(),
			UserID:         s.User.ID.String(),
		}), s.ConnID)
		c.log.Debug("Room left", "conversation_id", conversationID, "user_id", s.User.ID, "connection_id", s.ConnID)
	}
	return event.RoomPayload{ConversationID: conversationID.String()}, nil
}

// SendMessage authorizes, validates, persists and broadcasts a message.
// The sender's own connection is left out of the broadcast and gets the
// message through the returned value instead.
func (c *ChatService) SendMessage(ctx context.Context, s Session, req event.SendMessageRequest) (event.MessageDTO, error) {
	conversationID, err := c.authorize(ctx, s, req.ConversationID)
	if err != nil {
		return event.MessageDTO{}, err
	}
	body, err := ParseBody(req.Content, req.Type, c.maxContentLength)
	if err != nil {
		return event.MessageDTO{}, err
	}
	if text, ok := body.(domain.TextBody); ok {
		if censored, changed := c.moderator.Censor(text.Text); changed {
			body = domain.TextBody{Text: censored}
		}
	}
	message, err := domain.NewUserMessage(conversationID, s.User.ID, body)
	if err != nil {
		return event.MessageDTO{}, err
	}

	// Once accepted, the message is stored and delivered even if the
	// connection goes away meanwhile.
	ctx = context.WithoutCancel(ctx)
	stored, err := c.messages.Create(ctx, message)
	if err != nil {
		return event.MessageDTO{}, err
	}
	dto, err := event.ToMessageDTO(stored)
	if err != nil {
		return event.MessageDTO{}, err
	}
	if err := c.conversations.SetLastMessage(ctx, conversationID, stored.ID, stored.CreatedAt); err != nil {
		c.log.Warn("Last message not updated", "conversation_id", conversationID, "message_id", stored.ID, "error", err)
	}
	delivered := c.registry.Broadcast(ctx, conversationID, event.NewFrame(event.ReceiveMessage, dto), s.ConnID)
	c.log.Debug("Message posted", "conversation_id", conversationID, "message_id", stored.ID, "delivered", delivered)
	return dto, nil
}

// Typing relays a typing indicator to the other subscribers. Nothing is stored.
func (c *ChatService) Typing(ctx context.Context, s Session, req event.ConversationRequest, isTyping bool) error {
	conversationID, err := c.authorize(ctx, s, req.ConversationID)
	if err != nil {
		return err
	}
	c.registry.Broadcast(ctx, conversationID, event.NewFrame(event.DisplayTyping, event.TypingPayload{
		ConversationID: conversationID.String(),
		UserID:         s.User.ID.String(),
		IsTyping:       isTyping,
	}), s.ConnID)
	return nil
}

// Disconnect drops every subscription of the connection. Peers are not notified.
func (c *ChatService) Disconnect(s Session) {
	rooms := c.registry.Disconnect(s.ConnID)
	c.log.Debug("Connection closed", "connection_id", s.ConnID, "user_id", s.User.ID, "rooms", len(rooms))
}

func (c *ChatService) authorize(ctx context.Context, s Session, rawID string) (domain.ConversationID, error) {
	conversationID, err := domain.ParseConversationID(rawID)
	if err != nil {
		return "", err
	}
	ok, err := c.oracle.IsParticipant(ctx, s.User.ID, conversationID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.ErrUnauthorized
	}
	return conversationID, nil
}
