// Package harness runs YAML scenarios through a real dispatcher.
//
// A scenario is a list of Schedule and Confirm calls, optionally grouped into
// parallel blocks, followed by assertions on what reached the sink. Each run
// gets a fresh dispatcher with a deterministic clock and sequential item ids,
// a recording sink, and an SQLite journal and ledger (in memory unless the
// caller supplies a store). After the steps run the harness checks that:
//
//   - the ledger accepted exactly what the recording sink saw
//   - the sink saw no duplicate or overlapping pushes
//   - replaying the journal reproduces every source's push order
//
// Scenario files are validated twice: strictly by the YAML decoder, and
// against the embedded CUE schema in schema.cue.
//
// The trace is the ordered list of observer events. Events inside a parallel
// block are sorted by source and sequence with ids and stamps cleared, so the
// trace stays stable across runs and can be compared against golden files.
package harness
