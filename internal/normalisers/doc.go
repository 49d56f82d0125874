// Package normalisers provides text extraction for the media types the
// ingestion pipeline accepts. Each sub-package handles one format; the
// Registry selects the right normaliser for a document's media type.
//
// Normalisers are registered with the Registry at startup.
package normalisers
