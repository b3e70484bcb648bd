package event

import (
	"dwilive/errors"
	"encoding/json"
)

type Name string

// Client -> server.
const (
	JoinConversation  Name = "join-conversation"
	LeaveConversation Name = "leave-conversation"
	SendMessage       Name = "send-message"
	TypingStart       Name = "typing-start"
	TypingStop        Name = "typing-stop"
)

// Server -> client.
const (
	ReceiveMessage               Name = "receive-message"
	UserJoinedConversation       Name = "user-joined-conversation"
	UserLeftConversation         Name = "user-left-conversation"
	MemberAddedToConversation    Name = "member-added-to-conversation"
	MemberKickedFromConversation Name = "member-kicked-from-conversation"
	DisplayTyping                Name = "display-typing"
	ConversationDeleted          Name = "conversation-deleted"
	Acknowledgment               Name = "ack"
)

// Inbound is a raw client frame; Data is decoded against the event's schema.
type Inbound struct {
	Event Name            `json:"event"`
	AckID string          `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// Frame is anything written to a connection: a room broadcast or an ack.
type Frame struct {
	Event Name   `json:"event"`
	AckID string `json:"ackId,omitempty"`
	Data  any    `json:"data"`
}

func NewFrame(name Name, data any) Frame {
	return Frame{Event: name, Data: data}
}

type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// Ack is the reply envelope of an inbound event.
type Ack struct {
	Status Status      `json:"status"`
	Data   any         `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
	Code   errors.Code `json:"code,omitempty"`
}

func OK(data any) Ack {
	return Ack{Status: StatusOK, Data: data}
}

// Failure turns err into an error envelope; internal causes are not exposed.
func Failure(err error) Ack {
	return Ack{
		Status: StatusError,
		Error:  errors.AckMessage(err),
		Code:   errors.AckCode(err),
	}
}

func (a Ack) Frame(ackID string) Frame {
	return Frame{Event: Acknowledgment, AckID: ackID, Data: a}
}
