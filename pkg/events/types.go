// Package events defines the event callback outcome and the publishers that deliver it to
// clients.
package events

// CallbackEvent is emitted each time a registered event callback runs.
type CallbackEvent struct {
	Object    string `json:"object"`
	Event     string `json:"event"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Failed reports whether the callback raised.
func (e *CallbackEvent) Failed() bool {
	return e.Error != ""
}
