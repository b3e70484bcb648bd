package services

import (
	"context"
	"dwilive/contract"
	"dwilive/domain"
	"dwilive/domain/event"
	"dwilive/errors"
	"dwilive/repositories"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

type IConversationService interface {
	Create(ctx context.Context, creator domain.User, req CreateConversationRequest) (event.ConversationDTO, error)
	List(ctx context.Context, viewer domain.User) ([]event.ConversationDTO, error)
	Get(ctx context.Context, viewer domain.User, rawID string) (event.ConversationDTO, error)
	AddMember(ctx context.Context, admin domain.User, rawID string, req AddMemberRequest) (event.ConversationDTO, error)
	RemoveMember(ctx context.Context, admin domain.User, rawID, rawUserID string) (event.ConversationDTO, error)
	Leave(ctx context.Context, user domain.User, rawID string) error
	JoinPublic(ctx context.Context, user domain.User, rawID string) (event.ConversationDTO, error)
	Rename(ctx context.Context, admin domain.User, rawID string, req RenameRequest) (event.ConversationDTO, error)
	History(ctx context.Context, viewer domain.User, rawID string, query HistoryQuery) ([]event.MessageDTO, error)
}

// ConversationService owns conversation lifecycle: creation, membership
// changes and history. Membership changes are pushed to the live room.
type ConversationService struct {
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	users         repositories.IUserRepository
	registry      contract.IRegistry
	log           *slog.Logger
	defaultLimit  int
	maxLimit      int
}

func NewConversationService(
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	users repositories.IUserRepository,
	registry contract.IRegistry,
	log *slog.Logger,
	defaultLimit, maxLimit int,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		registry:      registry,
		log:           log,
		defaultLimit:  defaultLimit,
		maxLimit:      maxLimit,
	}
}

// Create opens a direct chat, reusing the existing one for the same pair,
// or a group whose creator becomes the admin.
func (s *ConversationService) Create(ctx context.Context, creator domain.User, req CreateConversationRequest) (event.ConversationDTO, error) {
	if err := event.Validate(req); err != nil {
		return event.ConversationDTO{}, err
	}
	others := lo.Uniq(lo.Map(req.ParticipantIDs, func(id string, _ int) domain.UserID { return domain.UserID(id) }))
	others = lo.Without(others, creator.ID)
	known, err := s.users.GetMany(ctx, others)
	if err != nil {
		return event.ConversationDTO{}, err
	}
	if len(known) != len(others) {
		return event.ConversationDTO{}, errors.ErrUserNotFound
	}

	now := time.Now().UTC()
	var c domain.Conversation
	switch domain.ConversationKind(req.Type) {
	case domain.Direct:
		if len(others) != 1 {
			return event.ConversationDTO{}, fmt.Errorf("%w: a direct chat needs exactly one other participant", errors.ErrInvalidConversation)
		}
		existing, err := s.conversations.FindDirect(ctx, creator.ID, others[0])
		if err == nil {
			return s.render(ctx, existing, creator.ID)
		}
		if !errors.Is(err, errors.ErrConversationNotFound) {
			return event.ConversationDTO{}, err
		}
		c, err = domain.NewDirectConversation(creator.ID, others[0], now)
		if err != nil {
			return event.ConversationDTO{}, err
		}
	default:
		c, err = domain.NewGroupConversation(req.Name, creator.ID, others, req.IsPrivate, now)
		if err != nil {
			return event.ConversationDTO{}, err
		}
	}
	if err := s.conversations.Create(ctx, c); err != nil {
		return event.ConversationDTO{}, err
	}
	s.log.Info("Conversation created", "conversation_id", c.ID, "kind", c.Kind, "participants", len(c.Participants))
	return s.render(ctx, c, creator.ID)
}

func (s *ConversationService) List(ctx context.Context, viewer domain.User) ([]event.ConversationDTO, error) {
	conversations, err := s.conversations.ListForUser(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	res := make([]event.ConversationDTO, 0, len(conversations))
	for _, c := range conversations {
		dto, err := s.render(ctx, c, viewer.ID)
		if err != nil {
			return nil, err
		}
		res = append(res, dto)
	}
	return res, nil
}

// Get shows a conversation to its participants, and public groups to anyone.
func (s *ConversationService) Get(ctx context.Context, viewer domain.User, rawID string) (event.ConversationDTO, error) {
	c, err := s.load(ctx, rawID)
	if err != nil {
		return event.ConversationDTO{}, err
	}
	if !c.IsParticipant(viewer.ID) && (c.Kind == domain.Direct || c.IsPrivate) {
		return event.ConversationDTO{}, errors.ErrUnauthorized
	}
	return s.render(ctx, c, viewer.ID)
}

func (s *ConversationService) AddMember(ctx context.Context, admin domain.User, rawID string, req AddMemberRequest) (event.ConversationDTO, error) {
	if err := event.Validate(req); err != nil {
		return event.ConversationDTO{}, err
	}
	c, err := s.loadAsAdmin(ctx, admin, rawID)
	if err != nil {
		return event.ConversationDTO{}, err
	}
	added, err := s.users.GetByID(ctx, domain.UserID(req.UserID))
	if err != nil {
		return event.ConversationDTO{}, err
	}
	c, err = s.conversations.AddParticipant(ctx, c.ID, added.ID)
	if err != nil {
		return event.ConversationDTO{}, err
	}
	c = s.postSystemMessage(ctx, c, domain.MemberAddedMetadata{AdminName: admin.Name(), AddedUserName: added.Name()})
	s.registry.Broadcast(ctx, c.ID, event.NewFrame(event.MemberAddedToConversation, event.MemberAddedPayload{
		ConversationID: c.ID.String(),
		AddedUser:      event.ToUserDTO(added),
		AdminID:        admin.ID.String(),
	}), "")
	return s.render(ctx, c, admin.ID)
}

// RemoveMember kicks a participant. The kicked user's open connections keep
// their room subscription until they disconnect, but every further action
// on the room is refused.
func (s *ConversationService) RemoveMember(ctx context.Context, admin domain.User, rawID, rawUserID string) (event.ConversationDTO, error) {
	c, err := s.loadAsAdmin(ctx, admin, rawID)
	if err != nil {
		return event.ConversationDTO{}, err
	}
	kicked, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return event.ConversationDTO{}, err
	}
	if kicked == admin.ID {
		return event.ConversationDTO{}, errors.ErrCannotKickSelf
	}
	c, err = s.conversations.RemoveParticipant(ctx, c.ID, kicked)
	if err != nil {
		return event.ConversationDTO{}, err
	}
	s.registry.Broadcast(ctx, c.ID, event.NewFrame(event.MemberKickedFromConversation, event.MemberKickedPayload{
		ConversationID: c.ID.String(),
		KickedUserID:   kicked.String(),
		AdminID:        admin.ID.String(),
	}), "")
	s.log.Info("Member removed", "conversation_id", c.ID, "user_id", kicked)
	return s.render(ctx, c, admin.ID)
}

// Leave removes the user from a group. When the admin leaves, the group is
// deleted and every live subscriber is unsubscribed and told so.
func (s *ConversationService) Leave(ctx context.Context, user domain.User, rawID string) error {
	c, err := s.load(ctx, rawID)
	if err != nil {
		return err
	}
	if !c.IsParticipant(user.ID) {
		return errors.ErrUnauthorized
	}
	if c.Kind == domain.Direct {
		return errors.ErrCannotLeaveDirect
	}
	if c.IsAdmin(user.ID) {
		if err := s.conversations.Delete(ctx, c.ID); err != nil {
			return err
		}
		frame := event.NewFrame(event.ConversationDeleted, event.ConversationDeletedPayload{ConversationID: c.ID.String()})
		for _, sink := range s.registry.CloseRoom(c.ID) {
			if err := sink.Consume(ctx, frame); err != nil {
				s.log.Warn("Frame dropped", "event", frame.Event, "connection_id", sink.ID(), "error", err)
			}
		}
		s.log.Info("Conversation deleted", "conversation_id", c.ID, "admin_id", user.ID)
		return nil
	}
	if _, err := s.conversations.RemoveParticipant(ctx, c.ID, user.ID); err != nil {
		return err
	}
	s.registry.UnsubscribeUser(user.ID, c.ID)
	s.registry.Broadcast(ctx, c.ID, event.NewFrame(event.UserLeftConversation, event.UserLeftPayload{
		ConversationID: c.ID.String(),
		UserID:         user.ID.String(),
	}), "")
	return nil
}

// JoinPublic lets anyone enter a non private group.
func (s *ConversationService) JoinPublic(ctx context.Context, user domain.User, rawID string) (event.ConversationDTO, error) {
	c, err := s.load(ctx, rawID)
	if err != nil {
		return event.ConversationDTO{}, err
	}
	if c.Kind != domain.Group || c.IsPrivate {
		return event.ConversationDTO{}, errors.ErrPrivateConversation
	}
	c, err = s.conversations.AddParticipant(ctx, c.ID, user.ID)
	if err != nil {
		return event.ConversationDTO{}, err
	}
	c = s.postSystemMessage(ctx, c, domain.UserJoinedMetadata{UserID: user.ID, Username: user.Username})
	return s.render(ctx, c, user.ID)
}

func (s *ConversationService) Rename(ctx context.Context, admin domain.User, rawID string, req RenameRequest) (event.ConversationDTO, error) {
	if err := event.Validate(req); err != nil {
		return event.ConversationDTO{}, err
	}
	c, err := s.loadAsAdmin(ctx, admin, rawID)
	if err != nil {
		return event.ConversationDTO{}, err
	}
	oldName := c.Name
	c, err = s.conversations.Rename(ctx, c.ID, req.Name)
	if err != nil {
		return event.ConversationDTO{}, err
	}
	c = s.postSystemMessage(ctx, c, domain.GroupRenamedMetadata{AdminName: admin.Name(), OldName: oldName, NewName: c.Name})
	return s.render(ctx, c, admin.ID)
}

// History pages backwards: the newest messages strictly older than
// query.Before, oldest first.
func (s *ConversationService) History(ctx context.Context, viewer domain.User, rawID string, query HistoryQuery) ([]event.MessageDTO, error) {
	c, err := s.load(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if !c.IsParticipant(viewer.ID) {
		return nil, errors.ErrUnauthorized
	}
	limit := query.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	limit = min(limit, s.maxLimit)
	var before *time.Time
	if query.Before != "" {
		t, err := time.Parse(time.RFC3339Nano, query.Before)
		if err != nil {
			return nil, fmt.Errorf("%w: before must be an ISO-8601 date", errors.ErrValidation)
		}
		before = &t
	}
	messages, err := s.messages.List(ctx, c.ID, before, limit)
	if err != nil {
		return nil, err
	}
	return event.ToMessageDTOs(messages)
}

// postSystemMessage stores a lifecycle message, pushes it to the room and
// returns c pointing at it. A failure is logged: the membership change itself
// already happened.
func (s *ConversationService) postSystemMessage(ctx context.Context, c domain.Conversation, metadata domain.SystemMetadata) domain.Conversation {
	stored, err := s.messages.Create(ctx, domain.NewSystemMessage(c.ID, metadata))
	if err != nil {
		s.log.Error("System message not stored", "conversation_id", c.ID, "kind", metadata.Kind(), "error", err)
		return c
	}
	if err := s.conversations.SetLastMessage(ctx, c.ID, stored.ID, stored.CreatedAt); err != nil {
		s.log.Warn("Last message not updated", "conversation_id", c.ID, "error", err)
	} else {
		c.LastMessageID, c.UpdatedAt = stored.ID, stored.CreatedAt
	}
	dto, err := event.ToMessageDTO(stored)
	if err != nil {
		s.log.Error("System message not rendered", "message_id", stored.ID, "error", err)
		return c
	}
	s.registry.Broadcast(ctx, c.ID, event.NewFrame(event.ReceiveMessage, dto), "")
	return c
}

func (s *ConversationService) load(ctx context.Context, rawID string) (domain.Conversation, error) {
	id, err := domain.ParseConversationID(rawID)
	if err != nil {
		return domain.Conversation{}, err
	}
	return s.conversations.GetByID(ctx, id)
}

// loadAsAdmin returns a group that admin governs.
func (s *ConversationService) loadAsAdmin(ctx context.Context, admin domain.User, rawID string) (domain.Conversation, error) {
	c, err := s.load(ctx, rawID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if c.Kind == domain.Direct {
		return domain.Conversation{}, errors.ErrDirectImmutable
	}
	if !c.IsAdmin(admin.ID) {
		return domain.Conversation{}, errors.ErrNotAdmin
	}
	return c, nil
}

func (s *ConversationService) render(ctx context.Context, c domain.Conversation, viewer domain.UserID) (event.ConversationDTO, error) {
	users, err := s.users.GetMany(ctx, c.Participants)
	if err != nil {
		return event.ConversationDTO{}, err
	}
	var last *event.MessageDTO
	if c.LastMessageID != "" {
		message, err := s.messages.GetByID(ctx, c.LastMessageID)
		switch {
		case err == nil:
			if dto, err := event.ToMessageDTO(message); err == nil {
				last = &dto
			}
		case !errors.Is(err, errors.ErrMessageNotFound):
			return event.ConversationDTO{}, err
		}
	}
	return event.ToConversationDTO(c, viewer, users, last), nil
}
