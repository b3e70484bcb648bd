package services

type CreateConversationRequest struct {
	Type           string   `json:"type" validate:"required,oneof=direct group"`
	ParticipantIDs []string `json:"participantIds" validate:"dive,userid"`
	Name           string   `json:"name" validate:"max=100"`
	IsPrivate      bool     `json:"isPrivate"`
}

type AddMemberRequest struct {
	UserID string `json:"userId" validate:"required,userid"`
}

type RenameRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// UpdateProfileRequest leaves nil fields untouched.
type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,max=64"`
	AvatarURL   *string `json:"avatarUrl" validate:"omitempty,max=2048"`
}

type HistoryQuery struct {
	Limit  int
	Before string
}
