package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/browser-bridge/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// Prefix overrides the subject prefix (BRIDGE_SUBJECT_PREFIX).
	Prefix string
}

// CommsPublisher publishes callback outcomes to per-object event subjects.
type CommsPublisher struct {
	nc       *comms.Conn
	subjects commsutil.Subjects
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	prefix := ""
	if opts != nil {
		prefix = opts.Prefix
	}
	return &CommsPublisher{nc: nc, subjects: commsutil.NewSubjects(prefix)}
}

// PublishCallback publishes event on <prefix>.events.<object>.<event>.
func (p *CommsPublisher) PublishCallback(_ context.Context, event *CallbackEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	subject := p.subjects.Event(event.Object, event.Event)
	if err := p.nc.Publish(subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published %s callback outcome for %s", commsPublisherLogPrefix, event.Event, event.Object))
	return nil
}
