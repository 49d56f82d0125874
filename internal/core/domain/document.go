package domain

import "time"

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

// Ingestion lifecycle states. Failed is absorbing: reachable from
// every other state, with no way back.
const (
	StatusUploaded      DocumentStatus = "uploaded"
	StatusTypeValidated DocumentStatus = "type_validated"
	StatusChunked       DocumentStatus = "chunked"
	StatusEmbedded      DocumentStatus = "embedded"
	StatusIndexed       DocumentStatus = "indexed"
	StatusFailed        DocumentStatus = "failed"
)

// statusOrder gives each pipeline state its position so forward-only
// progression can be checked without enumerating every pair.
var statusOrder = map[DocumentStatus]int{
	StatusUploaded:      0,
	StatusTypeValidated: 1,
	StatusChunked:       2,
	StatusEmbedded:      3,
	StatusIndexed:       4,
}

// CanTransition reports whether a document may move from one status to
// the next. Only single forward steps are allowed, plus a step into
// failed from any non-terminal state.
func (s DocumentStatus) CanTransition(to DocumentStatus) bool {
	if s == StatusFailed || s == StatusIndexed {
		return false
	}
	if to == StatusFailed {
		return true
	}
	from, ok := statusOrder[s]
	if !ok {
		return false
	}
	next, ok := statusOrder[to]
	if !ok {
		return false
	}
	return next == from+1
}

// Document represents an ingested document and its lifecycle state.
// Identity is immutable; status advances through the pipeline states.
// The ingestion pipeline owns the document until it reaches indexed,
// after which the vector index owns its chunks.
type Document struct {
	// ID is the stable unique identifier for the document.
	ID string

	// Name is the human-readable document name.
	Name string

	// Size is the raw content size in bytes.
	Size int64

	// Mime is the detected media type.
	Mime string

	// Status is the current pipeline state.
	Status DocumentStatus

	// FailureReason records why the document entered failed, empty otherwise.
	FailureReason string

	// ChunkCount is the number of chunks produced, zero until chunked.
	ChunkCount int

	// Metadata contains arbitrary key-value pairs carried into the index.
	Metadata map[string]any

	// CreatedAt is when the document was first ingested. Together with ID
	// it defines the stable total order used by backfill.
	CreatedAt time.Time

	// UpdatedAt is when the document last changed state.
	UpdatedAt time.Time
}

// Chunk represents a searchable unit within a document.
// Chunks are immutable once created and are deleted only through
// deletion of the owning document.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links back to the owning Document.
	DocumentID string

	// Text is the chunk content.
	Text string

	// TokenCount is an estimate of the chunk's token length.
	TokenCount int

	// PageStart and PageEnd bound the source pages this chunk spans.
	// Both are zero when the source has no page structure.
	PageStart int
	PageEnd   int

	// Position is the ordinal position within the document.
	Position int

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// LifecycleEventKind names an ingestion lifecycle event.
type LifecycleEventKind string

// Lifecycle events emitted by the ingestion pipeline.
const (
	EventUploaded LifecycleEventKind = "uploaded"
	EventChunked  LifecycleEventKind = "chunked"
	EventEmbedded LifecycleEventKind = "embedded"
	EventIndexed  LifecycleEventKind = "indexed"
	EventFailed   LifecycleEventKind = "failed"
)

// LifecycleEvent is emitted as a document moves through the pipeline,
// consumable by external logging or monitoring collaborators.
type LifecycleEvent struct {
	// Kind identifies the transition.
	Kind LifecycleEventKind

	// DocumentID is the document that transitioned.
	DocumentID string

	// Reason carries the failure cause for EventFailed, empty otherwise.
	Reason string

	// At is when the transition happened.
	At time.Time
}
