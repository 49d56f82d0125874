// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - VectorStore: The uniform vector backend contract (upsert, query,
//     delete-by-document). Every backend implements exactly this surface.
//   - EmbeddingService: Generates vector embeddings.
//   - DocumentStore: Document/chunk metadata persistence.
//   - MigrationStore: Durable migration state persistence.
//   - RetryQueue: Durable queue for secondary writes that failed during
//     dual-write.
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Reranker: Secondary re-scoring pass. Without it, rerank-enabled
//     policies fall back to vector order.
//   - EventSink: Ingestion lifecycle event consumer. Without it, events
//     are dropped.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
