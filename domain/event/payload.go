package event

// Inbound payload schemas. Tags are enforced by the socket validation wrapper
// before any handler runs; "convid" is registered there.

type ConversationRequest struct {
	ConversationID string `json:"conversationId" validate:"required,convid"`
}

type SendMessageRequest struct {
	ConversationID string `json:"conversationId" validate:"required,convid"`
	Content        string `json:"content" validate:"required"`
	Type           string `json:"type" validate:"omitempty,oneof=text image"`
}

// Outbound payloads.

type UserJoinedPayload struct {
	ConversationID string  `json:"conversationId"`
	User           UserDTO `json:"user"`
}

type UserLeftPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type MemberAddedPayload struct {
	ConversationID string  `json:"conversationId"`
	AddedUser      UserDTO `json:"addedUser"`
	AdminID        string  `json:"adminId"`
}

type MemberKickedPayload struct {
	ConversationID string `json:"conversationId"`
	KickedUserID   string `json:"kickedUserId"`
	AdminID        string `json:"adminId"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

type ConversationDeletedPayload struct {
	ConversationID string `json:"conversationId"`
}

// RoomPayload is returned in the ack of join/leave.
type RoomPayload struct {
	ConversationID string `json:"conversationId"`
}
