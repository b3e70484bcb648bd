package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic  = fmt.Errorf("worker panic")
	ErrHandlerPanic = fmt.Errorf("handler panic")

	// Connection level
	ErrAuthentication = fmt.Errorf("authentication error")
	ErrMissingToken   = fmt.Errorf("%w: no token provided", ErrAuthentication)
	ErrInvalidToken   = fmt.Errorf("%w: invalid token", ErrAuthentication)
	ErrUnknownSubject = fmt.Errorf("%w: user not found", ErrAuthentication)

	// Per action
	ErrUnauthorized   = fmt.Errorf("you are not a participant of this conversation")
	ErrValidation     = fmt.Errorf("validation failed")
	ErrEmptyContent   = fmt.Errorf("%w: message content cannot be empty", ErrValidation)
	ErrContentTooLong = fmt.Errorf("%w: message content is too long", ErrValidation)
	ErrInvalidType    = fmt.Errorf("%w: message type must be text or image", ErrValidation)
	ErrInvalidImage   = fmt.Errorf("%w: image content must be an http(s) url or an image data uri", ErrValidation)
	ErrInvalidID      = fmt.Errorf("%w: invalid identifier", ErrValidation)
	ErrSenderNotFound = fmt.Errorf("message sender could not be resolved")
	ErrUnknownEvent   = fmt.Errorf("%w: unknown event", ErrValidation)

	// Conversation rules
	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrInvalidConversation  = fmt.Errorf("%w: invalid conversation", ErrValidation)
	ErrNotAdmin             = fmt.Errorf("only the admin can perform this action")
	ErrDirectImmutable      = fmt.Errorf("cannot change members of a direct chat")
	ErrCannotLeaveDirect    = fmt.Errorf("cannot leave a direct chat")
	ErrAlreadyParticipant   = fmt.Errorf("user already in conversation")
	ErrNotParticipant       = fmt.Errorf("member is not a participant of this conversation")
	ErrCannotKickSelf       = fmt.Errorf("you cannot kick yourself out of the conversation")
	ErrPrivateConversation  = fmt.Errorf("conversation is private")
	ErrMessageNotFound      = fmt.Errorf("message not found")

	// Accounts
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrSinkFull   = fmt.Errorf("connection buffer is full")
	ErrSinkClosed = fmt.Errorf("connection is closed")
)

// Code is the machine readable error code carried by socket acknowledgments.
type Code string

const (
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeInternal     Code = "INTERNAL_SERVER_ERROR"
)

// AckCode classifies err for an acknowledgment. Anything unknown is internal.
func AckCode(err error) Code {
	switch {
	case stderrors.Is(err, ErrUnauthorized),
		stderrors.Is(err, ErrAuthentication):
		return CodeUnauthorized
	case stderrors.Is(err, ErrValidation):
		return CodeValidation
	default:
		return CodeInternal
	}
}

// AckMessage returns the message exposed to the client. Internal failures stay opaque.
func AckMessage(err error) string {
	if AckCode(err) == CodeInternal {
		return "Internal Server Error. Please try again later."
	}
	return err.Error()
}

// HTTPStatus maps domain errors to REST status codes.
func HTTPStatus(err error) int {
	switch {
	case stderrors.Is(err, ErrAuthentication), stderrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrUnauthorized), stderrors.Is(err, ErrNotAdmin),
		stderrors.Is(err, ErrPrivateConversation):
		return http.StatusForbidden
	case stderrors.Is(err, ErrConversationNotFound), stderrors.Is(err, ErrUserNotFound),
		stderrors.Is(err, ErrMessageNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case stderrors.Is(err, ErrValidation), stderrors.Is(err, ErrInvalidPassword),
		stderrors.Is(err, ErrDirectImmutable), stderrors.Is(err, ErrCannotLeaveDirect),
		stderrors.Is(err, ErrAlreadyParticipant), stderrors.Is(err, ErrNotParticipant),
		stderrors.Is(err, ErrCannotKickSelf):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Is and As re-export the standard helpers so callers need a single errors import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func New(text string) error { return stderrors.New(text) }
