// Package fanout delivers lifecycle events to connected participants.
// Offline recipients are dropped without error; clients reconcile ride state
// over REST when they reconnect.
package fanout

import (
	"log/slog"

	"github.com/example/ride-hail/internal/observability"
	"github.com/example/ride-hail/internal/registry"
)

type Fanout struct {
	reg    *registry.Registry
	logger *slog.Logger
}

func New(reg *registry.Registry, logger *slog.Logger) *Fanout {
	return &Fanout{reg: reg, logger: logger}
}

// Notify delivers one event to one identity, if online.
func (f *Fanout) Notify(identity, event string, payload any) {
	ch, ok := f.reg.Lookup(identity)
	if !ok {
		observability.NotificationsDropped.Inc()
		f.logger.Debug("notify dropped, recipient offline", "identity", identity, "event", event)
		return
	}
	if err := ch.Send(event, payload); err != nil {
		observability.NotificationsDropped.Inc()
		f.logger.Warn("notify send failed", "identity", identity, "event", event, "error", err)
	}
}

// Broadcast sends the same payload to every identity in ids. A failed or
// offline recipient never stops delivery to the rest.
func (f *Fanout) Broadcast(ids []string, event string, payload any) {
	for _, id := range ids {
		f.Notify(id, event, payload)
	}
}
