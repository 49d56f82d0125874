// Package driving defines the interfaces external actors use to call
// INTO the core.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// The CLI depends on these interfaces; core services implement them.
//
//   - IngestService: Turns raw documents into indexed vectors
//   - QueryService: Tuned similarity retrieval
//   - MigrationControl: Operator surface for the dual-write migration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or service package
package driving
