// Package events provides lifecycle event sinks.
package events

import (
	"sync"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
	"github.com/custodia-labs/vectra-cli/internal/logger"
)

// Ensure implementations satisfy the interface.
var (
	_ driven.EventSink = (*LogSink)(nil)
	_ driven.EventSink = (*Capture)(nil)
)

// LogSink writes lifecycle events to the verbose logger.
type LogSink struct{}

// NewLogSink creates a logger-backed event sink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Emit delivers a lifecycle event.
func (s *LogSink) Emit(event domain.LifecycleEvent) {
	if event.Kind == domain.EventFailed {
		logger.Info("document %s failed: %s", event.DocumentID, event.Reason)
		return
	}
	logger.Debug("document %s: %s", event.DocumentID, event.Kind)
}

// Capture records emitted events in memory for inspection in tests.
type Capture struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

// NewCapture creates an in-memory capture sink.
func NewCapture() *Capture {
	return &Capture{}
}

// Emit delivers a lifecycle event.
func (c *Capture) Emit(event domain.LifecycleEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

// Events returns a copy of everything emitted so far.
func (c *Capture) Events() []domain.LifecycleEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.LifecycleEvent, len(c.events))
	copy(out, c.events)
	return out
}

// Kinds returns the emitted event kinds in order.
func (c *Capture) Kinds() []domain.LifecycleEventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.LifecycleEventKind, len(c.events))
	for i, e := range c.events {
		out[i] = e.Kind
	}
	return out
}
