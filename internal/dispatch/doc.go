// Package dispatch implements the seqgate ordering gate.
//
// The Dispatcher accepts items tagged with a per-source sequence number and
// forwards them to a Sink strictly in ascending, gapless order per source,
// regardless of the order in which Schedule calls arrive.
//
// ARCHITECTURE:
//
// Per-Source State Machine:
// Each source is a counter (nextExpected, starting at 0) plus a min-heap
// reorder buffer. Schedule forwards an item whose sequence equals the counter
// and buffers anything ahead of it. Every forward is followed by the
// contiguous-release loop, which drains the buffer while its minimum matches
// the counter. Confirm runs the same loop; it is idempotent.
//
// Locking:
// Each source has its own mutex, and all reads and writes of its state happen
// under it. The registry is sharded, so lookups for different sources rarely
// contend; a shard lock is never held while a source mutex is taken.
//
// Delivery:
// Forwarding decisions are committed under the source lock into an outbox and
// stamped with a dispatcher-wide logical clock. Sink.Push always runs outside
// the lock. At most one goroutine drains a given source's outbox at a time,
// so pushes reach the sink in commit order. The draining goroutine is the
// caller that committed first (inline delivery, the default) or a background
// goroutine (WithAsyncDelivery).
//
// CRITICAL PATTERNS:
//
// At-most-once forwarding:
// An item enters the outbox exactly once, at the moment nextExpected advances
// past it. Rejected items never touch state.
//
// No retries:
// A failed Push is reported to observers and logged. The decision stays
// committed; resubmission is an external policy.
package dispatch
