package commsutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"
)

const codecLogPrefix = "commsutil:codec"

// ErrEmptyPayload is returned when a request carries no data.
var ErrEmptyPayload = errors.New("empty payload")

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes JSON bytes into the given target.
func DecodePayload(data []byte, v interface{}) error {
	if len(data) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(data, v)
}

// Reply encodes v and responds to msg. Failures are logged; a message without a reply
// subject is ignored.
func Reply(msg *comms.Msg, v interface{}) {
	if msg.Reply == "" {
		slog.Debug(fmt.Sprintf("%s - no reply subject on %s, dropping response", codecLogPrefix, msg.Subject))
		return
	}
	data, err := EncodePayload(v)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response on %s: %v", codecLogPrefix, msg.Subject, err))
		data = []byte(fmt.Sprintf(`{"error":true,"message":%q}`, err.Error()))
	}
	if err := msg.Respond(data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to respond on %s: %v", codecLogPrefix, msg.Subject, err))
	}
}
