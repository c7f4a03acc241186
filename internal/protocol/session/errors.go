package session

import (
	"errors"
	"fmt"

	"github.com/danmuck/edgemgmt/internal/protocol"
)

var (
	ErrUnexpectedMessage = errors.New("session: unexpected message")
	ErrTimeout           = errors.New("session: timeout waiting for reply")
	ErrNotSubscribed     = errors.New("session: not subscribed")
	ErrClosed            = errors.New("session: closed")
	ErrInvalidConfig     = errors.New("session: invalid config")
)

// ServerError carries the reason reported by an error message from the edge.
type ServerError struct {
	Tag     protocol.Tag
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return "session: server reported an error without a reason"
	}
	return e.Message
}

// UnexpectedMessageError reports a message type the current state does not
// accept.
type UnexpectedMessageError struct {
	State State
	Type  protocol.MessageType
}

func (e *UnexpectedMessageError) Error() string {
	return fmt.Sprintf("session: unexpected %q message while %s", e.Type, e.State)
}

func (e *UnexpectedMessageError) Is(target error) bool {
	return target == ErrUnexpectedMessage
}
