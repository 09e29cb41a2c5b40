package dispatch

import (
	"context"

	"github.com/roach88/seqgate/internal/ir"
)

// Sink receives forwarded items. It is the dispatcher's only side-effecting
// boundary.
//
// Push is called at most once per item, and for any one source in strictly
// ascending, gapless sequence order. Push calls for the same source never
// overlap; calls for different sources may run concurrently.
type Sink interface {
	Push(ctx context.Context, item ir.Item) error
}

// SinkFunc adapts an ordinary function to the Sink interface.
type SinkFunc func(ctx context.Context, item ir.Item) error

// Push calls f(ctx, item).
func (f SinkFunc) Push(ctx context.Context, item ir.Item) error {
	return f(ctx, item)
}

// Delivery is a committed forwarding decision.
type Delivery struct {
	Item ir.Item

	// Stamp is the dispatcher clock value taken when the decision was
	// committed. Stamps are unique and increase in commit order.
	Stamp int64

	// Released is set when the item waited in the reorder buffer before
	// being committed.
	Released bool
}
