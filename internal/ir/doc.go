// Package ir defines the value types shared by every seqgate package.
//
// ir imports nothing internal. The dispatcher, store, harness and CLI all
// exchange ir.Item values and never their own copies of the triple.
//
// Key design constraints:
//   - Items are immutable values, passed by value
//   - Sequence numbers are unsigned and scoped per source
//   - Traces are serialized with MarshalCanonical so golden files are byte-stable
package ir
