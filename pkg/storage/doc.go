/*
Package storage persists Author, Package and VersionRecord state and
exposes the atomic quota/status operations pkg/ingestion and
pkg/ingestionapi build on. The on-disk implementation is bbolt, the
same embedded transactional store the teacher uses for cluster state:
one bucket per entity, JSON-marshaled values keyed by ID, every
mutation wrapped in a single db.Update transaction.

The registry's concurrency model puts more weight on single-transaction
atomicity than the teacher's BoltStore needed, because quota debits and
version-status transitions must never observe a half-applied write
(spec §3, §5): TryConsumeStorage, FreeStorage and
TransitionVersionStatus each do their read-check-write inside one
transaction rather than as separate Get/Update calls.
*/
package storage
