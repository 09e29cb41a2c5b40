package ir

import (
	"errors"
	"fmt"
)

// Item is a single submission awaiting ordered dispatch.
//
// Two items with the same SourceID must never share a Sequence. Items from
// different sources may share a Sequence freely.
type Item struct {
	// ID is the opaque, globally unique identifier of the submission.
	ID string `json:"id" yaml:"id"`

	// SourceID identifies the ordering domain (e.g. a wallet).
	SourceID string `json:"source_id" yaml:"source"`

	// Sequence is the per-source nonce. Sequence 0 is forwarded first.
	Sequence uint64 `json:"sequence" yaml:"sequence"`
}

// ErrEmptySource is returned by Validate for items without a SourceID.
var ErrEmptySource = errors.New("source id is required")

// Validate checks the fields the dispatcher relies on.
func (it Item) Validate() error {
	if it.SourceID == "" {
		return ErrEmptySource
	}
	return nil
}

// String renders the item as "source#sequence" for logs and error messages.
func (it Item) String() string {
	return fmt.Sprintf("%s#%d", it.SourceID, it.Sequence)
}

// Key returns the (source, sequence) pair identifying the item's slot.
func (it Item) Key() SlotKey {
	return SlotKey{SourceID: it.SourceID, Sequence: it.Sequence}
}

// SlotKey is the ordering slot an item occupies. At most one item may ever
// occupy a slot.
type SlotKey struct {
	SourceID string
	Sequence uint64
}
