package dispatch

import "github.com/roach88/seqgate/internal/ir"

// Outcome is the result of a successful Schedule call.
type Outcome int

const (
	// OutcomeForwarded means the item was committed for delivery.
	OutcomeForwarded Outcome = iota + 1
	// OutcomeBuffered means the item is waiting for its predecessors.
	OutcomeBuffered
)

// String returns the lowercase outcome name used in traces and scenarios.
func (o Outcome) String() string {
	switch o {
	case OutcomeForwarded:
		return "forwarded"
	case OutcomeBuffered:
		return "buffered"
	default:
		return "unknown"
	}
}

// Observer receives dispatcher events.
//
// Scheduled, Rejected and Confirmed are called after the source lock is
// released and before any delivery the call triggers. Pushed and PushFailed
// are called by the goroutine draining the source's outbox, in stamp order
// per source. Implementations must be safe for concurrent use and must not
// call back into the dispatcher.
type Observer interface {
	Scheduled(item ir.Item, outcome Outcome)
	Rejected(item ir.Item, err *DispatchError)
	Pushed(d Delivery)
	PushFailed(d Delivery, err error)
	Confirmed(item ir.Item, released int)
}

// NopObserver ignores every event. Embed it to implement a subset of Observer.
type NopObserver struct{}

func (NopObserver) Scheduled(ir.Item, Outcome)       {}
func (NopObserver) Rejected(ir.Item, *DispatchError) {}
func (NopObserver) Pushed(Delivery)                  {}
func (NopObserver) PushFailed(Delivery, error)       {}
func (NopObserver) Confirmed(ir.Item, int)           {}

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	if len(list) == 1 {
		return list[0]
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) Scheduled(item ir.Item, outcome Outcome) {
	for _, o := range m {
		o.Scheduled(item, outcome)
	}
}

func (m multiObserver) Rejected(item ir.Item, err *DispatchError) {
	for _, o := range m {
		o.Rejected(item, err)
	}
}

func (m multiObserver) Pushed(d Delivery) {
	for _, o := range m {
		o.Pushed(d)
	}
}

func (m multiObserver) PushFailed(d Delivery, err error) {
	for _, o := range m {
		o.PushFailed(d, err)
	}
}

func (m multiObserver) Confirmed(item ir.Item, released int) {
	for _, o := range m {
		o.Confirmed(item, released)
	}
}
