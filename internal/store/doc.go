// Package store provides SQLite-backed durable storage for seqgate.
//
// The store holds two append-only tables:
//   - events: the dispatcher journal (scheduled, rejected, pushed,
//     push_failed, confirmed), written by Journal
//   - ledger: items accepted by LedgerSink, the reference downstream sink
//
// # Critical Patterns
//
// Logical Identity and Time
//   - Journal rows are ordered by their autoincrement seq, pushes carry the
//     dispatcher stamp; wall-clock time is never stored
//
// Deterministic Query Results
//   - All queries include ORDER BY seq ASC (events) or position ASC (ledger)
//
// Ledger Ordering Guard
//   - PRIMARY KEY(source_id, sequence) refuses a second push of a slot
//   - LedgerSink refuses any push that is not exactly last+1 for its source
//
// Sequence numbers are stored as their int64 bit pattern; SQLite INTEGER is
// signed.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
