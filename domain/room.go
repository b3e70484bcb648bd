package domain

import (
	"dwilive/errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

type ConversationKind string

const (
	Direct ConversationKind = "direct"
	Group  ConversationKind = "group"
)

// Conversation is the persisted chat thread. A room is its live, in-memory
// counterpart and only exists while connections are subscribed.
type Conversation struct {
	ID            ConversationID
	Kind          ConversationKind
	Name          string
	IsPrivate     bool
	Participants  []UserID
	Admin         UserID
	LastMessageID MessageID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewDirectConversation pairs two distinct users. Direct chats are always private.
func NewDirectConversation(a, b UserID, at time.Time) (Conversation, error) {
	c := Conversation{
		ID:           NewConversationID(),
		Kind:         Direct,
		IsPrivate:    true,
		Participants: []UserID{a, b},
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	return c, c.Validate()
}

// NewGroupConversation makes admin the first participant; duplicates are dropped.
func NewGroupConversation(name string, admin UserID, members []UserID, isPrivate bool, at time.Time) (Conversation, error) {
	participants := []UserID{admin}
	for _, m := range members {
		if !slices.Contains(participants, m) {
			participants = append(participants, m)
		}
	}
	c := Conversation{
		ID:           NewConversationID(),
		Kind:         Group,
		Name:         strings.TrimSpace(name),
		IsPrivate:    isPrivate,
		Participants: participants,
		Admin:        admin,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	return c, c.Validate()
}

// Validate checks the structural invariants of both conversation kinds.
func (c Conversation) Validate() error {
	switch c.Kind {
	case Direct:
		if len(c.Participants) != 2 || c.Participants[0] == c.Participants[1] {
			return fmt.Errorf("%w: a direct chat needs exactly two distinct participants", errors.ErrInvalidConversation)
		}
		if c.Admin != "" {
			return fmt.Errorf("%w: a direct chat has no admin", errors.ErrInvalidConversation)
		}
	case Group:
		if len(c.Participants) == 0 {
			return fmt.Errorf("%w: a group needs at least one participant", errors.ErrInvalidConversation)
		}
		if c.Name == "" {
			return fmt.Errorf("%w: group name is required", errors.ErrInvalidConversation)
		}
		if c.Admin == "" || !c.IsParticipant(c.Admin) {
			return fmt.Errorf("%w: the admin must be a participant", errors.ErrInvalidConversation)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", errors.ErrInvalidConversation, c.Kind)
	}
	return nil
}

func (c Conversation) IsParticipant(id UserID) bool {
	return slices.Contains(c.Participants, id)
}

func (c Conversation) IsAdmin(id UserID) bool {
	return c.Kind == Group && c.Admin != "" && c.Admin == id
}

// DisplayName derives the name shown to viewer. Direct chats take the other
// participant's name from users.
func (c Conversation) DisplayName(viewer UserID, users map[UserID]User) string {
	if c.Name != "" {
		return c.Name
	}
	if c.Kind == Direct {
		for _, p := range c.Participants {
			if p == viewer {
				continue
			}
			if u, ok := users[p]; ok {
				return u.Name()
			}
		}
	}
	return "Unknown user"
}
