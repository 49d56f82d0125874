package driven

import "github.com/custodia-labs/vectra-cli/internal/core/domain"

// EventSink consumes ingestion lifecycle events. Sinks must not block:
// emission happens on the ingestion path.
type EventSink interface {
	// Emit delivers a lifecycle event.
	Emit(event domain.LifecycleEvent)
}
