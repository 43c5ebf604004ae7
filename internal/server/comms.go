package server

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/browser-bridge/pkg/commsutil"
	"github.com/morezero/browser-bridge/pkg/dispatcher"
)

const commsLogPrefix = "server:comms"

// subscribe registers the request/reply handlers on the session, command and shutdown
// subjects. NATS delivers a subscription's messages one at a time; the command handler only
// waits for its queue ticket before taking the next message, so same-object commands keep
// their arrival order while different objects run in parallel.
func (s *Server) subscribe() error {
	subjects := commsutil.NewSubjects(s.cfg.SubjectPrefix)

	handlers := []struct {
		subject string
		handle  comms.MsgHandler
	}{
		{subjects.Session, s.onSession},
		{subjects.Command, s.onCommand},
		{subjects.Shutdown, s.onShutdown},
	}
	for _, h := range handlers {
		sub, err := s.nc.Subscribe(h.subject, h.handle)
		if err != nil {
			return fmt.Errorf("%s - failed to subscribe to %s: %w", commsLogPrefix, h.subject, err)
		}
		s.subs = append(s.subs, sub)
		slog.Info(fmt.Sprintf("%s - Subscribed to %s", commsLogPrefix, h.subject))
	}
	return nil
}

func (s *Server) onSession(msg *comms.Msg) {
	var req dispatcher.SessionRequest
	if len(msg.Data) > 0 {
		if err := commsutil.DecodePayload(msg.Data, &req); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to decode session request: %v", commsLogPrefix, err))
			commsutil.Reply(msg, dispatcher.BadRequest(err))
			return
		}
	}
	// launches can take a while; keep the subscription free
	go func() {
		commsutil.Reply(msg, s.disp.Launch(context.Background(), &req))
	}()
}

func (s *Server) onCommand(msg *comms.Msg) {
	var req dispatcher.CommandRequest
	if err := commsutil.DecodePayload(msg.Data, &req); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode command request: %v", commsLogPrefix, err))
		commsutil.Reply(msg, dispatcher.BadRequest(err))
		return
	}
	results := s.disp.Submit(context.Background(), &req)
	go func() { commsutil.Reply(msg, <-results) }()
}

func (s *Server) onShutdown(msg *comms.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	commsutil.Reply(msg, s.disp.Shutdown(ctx))
	if err := s.nc.Flush(); err != nil {
		slog.Warn(fmt.Sprintf("%s - flush after shutdown reply: %v", commsLogPrefix, err))
	}
	s.requestStop()
}
