package driven

import "context"

// Normaliser extracts plain text from a specific set of media types
// before chunking. Each normaliser handles the formats it declares.
type Normaliser interface {
	// MimeTypes returns the media types this normaliser handles.
	MimeTypes() []string

	// Priority returns the selection priority (higher = preferred)
	// when multiple normalisers claim the same media type.
	Priority() int

	// Normalise extracts plain text from the raw document content.
	Normalise(ctx context.Context, name string, raw []byte) (string, error)
}

// NormaliserRegistry dispatches normalisation by media type. A media
// type with no registered normaliser is not ingestable.
type NormaliserRegistry interface {
	// Register adds a normaliser to the registry.
	Register(n Normaliser)

	// Normalise extracts text using the best matching normaliser.
	// Returns ErrUnsupportedType when no normaliser claims the type.
	Normalise(ctx context.Context, mime, name string, raw []byte) (string, error)

	// SupportedMimeTypes returns all media types that can be ingested.
	SupportedMimeTypes() []string
}
