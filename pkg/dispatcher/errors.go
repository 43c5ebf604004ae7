package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/morezero/browser-bridge/pkg/queue"
	"github.com/morezero/browser-bridge/pkg/script"
	"github.com/morezero/browser-bridge/pkg/session"
)

// CommandError is a request failure carrying the message returned to the client.
type CommandError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CommandError) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error, format string, args ...any) *CommandError {
	return &CommandError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func noSuchObject(id string, err error) *CommandError {
	return newError(KindResolution, err, "no such object: %s", id)
}

func notAFacet(typ, id string, err error) *CommandError {
	return newError(KindResolution, err, "no such object, or %s is not a facet of %s", typ, id)
}

func notACommand(command, typ string) *CommandError {
	return newError(KindCapability, nil, "no such object, or %s is not a recognized command for %s", command, typ)
}

func scriptsDisabled() *CommandError {
	return newError(KindCapability, script.ErrDisabled, "%s", script.ErrDisabled.Error())
}

// asCommandError classifies any error returned on a request path.
func asCommandError(err error) *CommandError {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce
	}
	var le *session.LaunchError
	switch {
	case errors.As(err, &le):
		return &CommandError{Kind: KindLaunch, Message: le.Error(), Err: err}
	case errors.Is(err, queue.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &CommandError{Kind: KindTimeout, Message: err.Error(), Err: err}
	case errors.Is(err, queue.ErrClosed), errors.Is(err, session.ErrClosed):
		return &CommandError{Kind: KindClosed, Message: err.Error(), Err: err}
	default:
		return &CommandError{Kind: KindInvocation, Message: err.Error(), Err: err}
	}
}
