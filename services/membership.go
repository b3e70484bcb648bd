package services

import (
	"context"
	"dwilive/domain"
	"dwilive/errors"
	"dwilive/repositories"
)

// MembershipOracle reads the persisted participant set on every call.
// Nothing is cached: a kick must take effect on the very next action.
type MembershipOracle struct {
	conversations repositories.IConversationRepository
}

func NewMembershipOracle(conversations repositories.IConversationRepository) *MembershipOracle {
	return &MembershipOracle{conversations: conversations}
}

// IsParticipant reports false, without error, for an unknown conversation.
func (o *MembershipOracle) IsParticipant(ctx context.Context, userID domain.UserID, conversationID domain.ConversationID) (bool, error) {
	c, err := o.conversations.GetByID(ctx, conversationID)
	if errors.Is(err, errors.ErrConversationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c.IsParticipant(userID), nil
}
