package domain

import (
	"dwilive/errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Public identifiers are "<prefix>_<uuid>" so that a user id can never be
// mistaken for a conversation id on the wire.
const (
	UserPrefix         = "user"
	ConversationPrefix = "conv"
	MessagePrefix      = "msg"
)

type UserID string

type ConversationID string

type MessageID string

func NewUserID() UserID { return UserID(newPrefixed(UserPrefix)) }

func NewConversationID() ConversationID { return ConversationID(newPrefixed(ConversationPrefix)) }

func NewMessageID() MessageID { return MessageID(newPrefixed(MessagePrefix)) }

func ParseUserID(s string) (UserID, error) {
	if !HasPrefixedID(s, UserPrefix) {
		return "", fmt.Errorf("%w: %q is not a user id", errors.ErrInvalidID, s)
	}
	return UserID(s), nil
}

func ParseConversationID(s string) (ConversationID, error) {
	if !HasPrefixedID(s, ConversationPrefix) {
		return "", fmt.Errorf("%w: %q is not a conversation id", errors.ErrInvalidID, s)
	}
	return ConversationID(s), nil
}

// HasPrefixedID reports whether s is "<prefix>_" followed by a valid uuid.
func HasPrefixedID(s, prefix string) bool {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

func newPrefixed(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

func (id UserID) String() string { return string(id) }

func (id ConversationID) String() string { return string(id) }

func (id MessageID) String() string { return string(id) }
