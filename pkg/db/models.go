package db

import "time"

// CommandEntry represents a row in the bridge_commands table.
type CommandEntry struct {
	ID         string    `json:"id"`
	ObjectID   string    `json:"object_id"`
	ObjectType string    `json:"object_type"`
	Command    string    `json:"command"`
	IsError    bool      `json:"is_error"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Created    time.Time `json:"created"`
}
