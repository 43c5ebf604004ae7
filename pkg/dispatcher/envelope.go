// Package dispatcher turns client requests into engine invocations: it resolves the subject
// object, checks the command against the capability spec, runs it on the object's queue and
// normalizes the result back into the registry.
package dispatcher

import (
	"encoding/json"
	"fmt"
)

// SessionRequest starts a session. Type names the engine (chrome, chromium, firefox, webkit);
// Args holds the launch options.
type SessionRequest struct {
	Type string          `json:"type"`
	Args json.RawMessage `json:"args,omitempty"`
}

// CommandRequest invokes Command on the object with id Object. Type is the declared type of
// the subject; when it differs from the registered type it names a facet of Object.
type CommandRequest struct {
	Type    string          `json:"type"`
	Object  string          `json:"object"`
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Result is the envelope every request is answered with.
type Result struct {
	Error   bool      `json:"error"`
	Message any       `json:"message"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

// ErrorKind classifies a failed request.
type ErrorKind string

const (
	KindRequest    ErrorKind = "request"
	KindResolution ErrorKind = "resolution"
	KindCapability ErrorKind = "capability"
	KindInvocation ErrorKind = "invocation"
	KindLaunch     ErrorKind = "launch"
	KindTimeout    ErrorKind = "timeout"
	KindClosed     ErrorKind = "closed"
)

// ShutdownMessage is the message of a successful shutdown.
const ShutdownMessage = "shutdown acknowledged"

func success(message any) *Result {
	return &Result{Message: message}
}

func failure(err error) *Result {
	ce := asCommandError(err)
	return &Result{Error: true, Message: ce.Message, Kind: ce.Kind}
}

// BadRequest is the result for a request the transport could not decode.
func BadRequest(err error) *Result {
	return &Result{Error: true, Message: fmt.Sprintf("invalid request: %v", err), Kind: KindRequest}
}
