package event

import (
	"dwilive/domain"
	"dwilive/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// ISOTime matches the millisecond UTC form clients already parse.
const ISOTime = "2006-01-02T15:04:05.000Z"

func FormatTime(t time.Time) string {
	return t.UTC().Format(ISOTime)
}

// FormatCursor keeps the full precision of a message timestamp. Message
// createdAt doubles as the history cursor and must match the stored key.
func FormatCursor(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

type UserDTO struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// MessageDTO is shared by the REST history and the live socket feed so both
// paths produce identical payloads for the same message.
type MessageDTO struct {
	ID             string                `json:"id"`
	ConversationID string                `json:"conversationId"`
	Type           domain.MessageType    `json:"type"`
	Content        string                `json:"content"`
	Sender         *UserDTO              `json:"sender"`
	Metadata       domain.SystemMetadata `json:"metadata"`
	CreatedAt      string                `json:"createdAt"`
}

type ConversationDTO struct {
	ID           string                  `json:"id"`
	Type         domain.ConversationKind `json:"type"`
	Name         string                  `json:"name"`
	IsPrivate    bool                    `json:"isPrivate"`
	Participants []UserDTO               `json:"participants"`
	Admin        *UserDTO                `json:"admin"`
	LastMessage  *MessageDTO             `json:"lastMessage"`
	CreatedAt    string                  `json:"createdAt"`
	UpdatedAt    string                  `json:"updatedAt"`
}

func ToUserDTO(u domain.User) UserDTO {
	var avatar *string
	if u.AvatarURL != "" {
		avatar = lo.ToPtr(u.AvatarURL)
	}
	return UserDTO{
		ID:          u.ID.String(),
		Username:    u.Username,
		DisplayName: u.Name(),
		AvatarURL:   avatar,
		CreatedAt:   FormatTime(u.CreatedAt),
		UpdatedAt:   FormatTime(u.UpdatedAt),
	}
}

// ToMessageDTO fails when a user message reaches it with an unresolved sender.
func ToMessageDTO(m domain.Message) (MessageDTO, error) {
	dto := MessageDTO{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		Type:           m.Type(),
		Content:        m.Body.Content(),
		CreatedAt:      FormatCursor(m.CreatedAt),
	}
	if body, ok := m.Body.(domain.SystemBody); ok {
		dto.Metadata = body.Metadata
		return dto, nil
	}
	sender, ok := m.Sender.Get()
	if !ok {
		return MessageDTO{}, fmt.Errorf("%w: message %s, sender %q", errors.ErrSenderNotFound, m.ID, m.Sender.ID())
	}
	dto.Sender = lo.ToPtr(ToUserDTO(sender))
	return dto, nil
}

// UnmarshalJSON restores the concrete metadata type from the system kind
// carried in content.
func (m *MessageDTO) UnmarshalJSON(data []byte) error {
	type plain MessageDTO
	var wire struct {
		plain
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*m = MessageDTO(wire.plain)
	if m.Type != domain.SystemMessage || len(wire.Metadata) == 0 || string(wire.Metadata) == "null" {
		return nil
	}
	metadata, err := decodeMetadata(domain.SystemKind(m.Content), wire.Metadata)
	if err != nil {
		return err
	}
	m.Metadata = metadata
	return nil
}

func decodeMetadata(kind domain.SystemKind, raw json.RawMessage) (domain.SystemMetadata, error) {
	switch kind {
	case domain.UserJoined:
		return decodeAs[domain.UserJoinedMetadata](raw)
	case domain.MemberAdded:
		return decodeAs[domain.MemberAddedMetadata](raw)
	case domain.GroupRenamed:
		return decodeAs[domain.GroupRenamedMetadata](raw)
	default:
		return nil, fmt.Errorf("%w: unknown system message %q", errors.ErrValidation, kind)
	}
}

func decodeAs[T domain.SystemMetadata](raw json.RawMessage) (domain.SystemMetadata, error) {
	var metadata T
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

func ToMessageDTOs(messages []domain.Message) ([]MessageDTO, error) {
	res := make([]MessageDTO, 0, len(messages))
	for _, m := range messages {
		dto, err := ToMessageDTO(m)
		if err != nil {
			return nil, err
		}
		res = append(res, dto)
	}
	return res, nil
}

// ToConversationDTO renders c for viewer. users must hold every participant
// that should be listed; lastMessage may be nil.
func ToConversationDTO(c domain.Conversation, viewer domain.UserID,
	users map[domain.UserID]domain.User, lastMessage *MessageDTO) ConversationDTO {
	participants := lo.FilterMap(c.Participants, func(id domain.UserID, _ int) (UserDTO, bool) {
		u, ok := users[id]
		if !ok {
			return UserDTO{}, false
		}
		return ToUserDTO(u), true
	})
	var admin *UserDTO
	if u, ok := users[c.Admin]; ok && c.Admin != "" {
		admin = lo.ToPtr(ToUserDTO(u))
	}
	return ConversationDTO{
		ID:           c.ID.String(),
		Type:         c.Kind,
		Name:         c.DisplayName(viewer, users),
		IsPrivate:    c.IsPrivate,
		Participants: participants,
		Admin:        admin,
		LastMessage:  lastMessage,
		CreatedAt:    FormatTime(c.CreatedAt),
		UpdatedAt:    FormatTime(c.UpdatedAt),
	}
}
