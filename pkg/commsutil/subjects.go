package commsutil

import (
	"fmt"
	"strings"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "bridge"

// Subjects holds the request/reply and event subjects under one prefix.
type Subjects struct {
	Prefix   string
	Session  string
	Command  string
	Shutdown string
}

// NewSubjects builds the subjects for prefix. An empty prefix uses DefaultPrefix.
func NewSubjects(prefix string) Subjects {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Subjects{
		Prefix:   prefix,
		Session:  prefix + ".session",
		Command:  prefix + ".command",
		Shutdown: prefix + ".shutdown",
	}
}

// Event builds the subject callback outcomes for one object event are published on.
func (s Subjects) Event(objectID, event string) string {
	return fmt.Sprintf("%s.events.%s.%s", s.Prefix, token(objectID), token(event))
}

// Events is the wildcard matching every event subject.
func (s Subjects) Events() string {
	return s.Prefix + ".events.>"
}

// token makes s usable as a single subject token.
func token(s string) string {
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(s)
}
