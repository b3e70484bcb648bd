// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable: there is no update timestamp.
package domain

import (
	"dwilive/errors"
	"fmt"
	"time"
)

type MessageType string

const (
	TextMessage   MessageType = "text"
	ImageMessage  MessageType = "image"
	SystemMessage MessageType = "system"
)

type SystemKind string

const (
	UserJoined   SystemKind = "USER_JOINED"
	MemberAdded  SystemKind = "MEMBER_ADDED"
	GroupRenamed SystemKind = "GROUP_RENAMED"
)

// Body is the tagged payload of a message: TextBody, ImageBody or SystemBody.
type Body interface {
	Type() MessageType
	// Content is the stored content column: free text, an image reference,
	// or the system kind tag.
	Content() string
	isBody()
}

type TextBody struct{ Text string }

type ImageBody struct{ URL string }

type SystemBody struct {
	Kind     SystemKind
	Metadata SystemMetadata
}

func (TextBody) Type() MessageType { return TextMessage }
func (b TextBody) Content() string { return b.Text }
func (TextBody) isBody() {}
func (ImageBody) Type() MessageType { return ImageMessage }
func (b ImageBody) Content() string { return b.URL }
func (ImageBody) isBody() {}
func (SystemBody) Type() MessageType { return SystemMessage }
func (b SystemBody) Content() string { return string(b.Kind) }
func (SystemBody) isBody() {}

// SystemMetadata describes the lifecycle event behind a system message.
type SystemMetadata interface {
	Kind() SystemKind
}

type UserJoinedMetadata struct {
	UserID   UserID `json:"userId"`
	Username string `json:"username"`
}

type MemberAddedMetadata struct {
	AdminName     string `json:"adminName"`
	AddedUserName string `json:"addedUserName"`
}

type GroupRenamedMetadata struct {
	AdminName string `json:"adminName"`
	OldName   string `json:"oldName"`
	NewName   string `json:"newName"`
}

func (UserJoinedMetadata) Kind() SystemKind { return UserJoined }
func (MemberAddedMetadata) Kind() SystemKind { return MemberAdded }
func (GroupRenamedMetadata) Kind() SystemKind { return GroupRenamed }

// Message has a sender exactly when its body is not a system body.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	Sender         Ref[User]
	Body           Body
	CreatedAt      time.Time
}

func (m Message) Type() MessageType { return m.Body.Type() }

// NewUserMessage builds a text or image message written by sender.
func NewUserMessage(conversationID ConversationID, sender UserID, body Body) (Message, error) {
	if sender == "" {
		return Message{}, fmt.Errorf("%w: a user message needs a sender", errors.ErrValidation)
	}
	if body == nil || body.Type() == SystemMessage {
		return Message{}, errors.ErrInvalidType
	}
	return Message{
		ConversationID: conversationID,
		Sender:         RefByID[User](string(sender)),
		Body:           body,
	}, nil
}

// NewSystemMessage builds a sender-less message describing a lifecycle event.
func NewSystemMessage(conversationID ConversationID, metadata SystemMetadata) Message {
	return Message{
		ConversationID: conversationID,
		Body:           SystemBody{Kind: metadata.Kind(), Metadata: metadata},
	}
}

// BodyOf rebuilds a body from its stored columns.
func BodyOf(t MessageType, content string, metadata SystemMetadata) (Body, error) {
	switch t {
	case TextMessage:
		return TextBody{Text: content}, nil
	case ImageMessage:
		return ImageBody{URL: content}, nil
	case SystemMessage:
		if metadata == nil || string(metadata.Kind()) != content {
			return nil, fmt.Errorf("%w: system message %q without matching metadata", errors.ErrValidation, content)
		}
		return SystemBody{Kind: metadata.Kind(), Metadata: metadata}, nil
	default:
		return nil, errors.ErrInvalidType
	}
}
