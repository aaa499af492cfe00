package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	ErrInvalidPayload     = fmt.Errorf("invalid payload")
	ErrUnknownEvent       = fmt.Errorf("unknown event")
	ErrNotSubscribed      = fmt.Errorf("connection is not subscribed to room")
	ErrReactionNotAllowed = fmt.Errorf("reaction is not allowed")

	ErrCallNotFound          = fmt.Errorf("call session not found")
	ErrInvalidCallTransition = fmt.Errorf("invalid call transition")

	ErrMissingToken      = fmt.Errorf("missing token")
	ErrInvalidToken      = fmt.Errorf("invalid or expired token")
	ErrTooManyAttempts   = fmt.Errorf("too many failed attempts")
	ErrInvalidCharacter  = fmt.Errorf("replacement must be a single character")
	ErrRoomNotFound      = fmt.Errorf("chat room not found")
	ErrMessageNotFound   = fmt.Errorf("message not found")
	ErrNotMessageOwner   = fmt.Errorf("message belongs to another user")
	ErrMemberNotFound    = fmt.Errorf("member not found")
	ErrSinkFull          = fmt.Errorf("sink buffer is full")
	ErrSinkClosed        = fmt.Errorf("sink is closed")
	ErrOrchestratorState = fmt.Errorf("orchestrator is not running")

	ErrConnectionReplaced = fmt.Errorf("connection replaced by a newer one")
)
