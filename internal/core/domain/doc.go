// Package domain defines the core business entities for Vectra.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested document and its lifecycle state
//   - Chunk: A searchable unit split out of a document
//   - EmbeddingUpsert: A chunk's vector under a fixed (model, dimension)
//   - CandidateResult: An ephemeral similarity hit
//   - RetrievalPolicy: Top-k/threshold/rerank tuning knobs
//   - MigrationState: The dual-write migration state machine
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
