package dispatch

import "log/slog"

// DefaultShards is the registry shard count used when WithShards is not given.
const DefaultShards = 32

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithObserver sets the event observer. Use Observers to combine several.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithClock replaces the logical clock used to stamp deliveries.
func WithClock(c Clock) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithShards sets the number of registry shards. Values below 1 are ignored.
func WithShards(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.shards = n
		}
	}
}

// WithMaxPending bounds each source's reorder buffer. Schedule rejects an item
// with ErrCodeBufferFull instead of buffering it once the source already holds
// n pending items. Zero or a negative value means unbounded (the default).
func WithMaxPending(n int) Option {
	return func(d *Dispatcher) {
		if n < 0 {
			n = 0
		}
		d.maxPending = n
	}
}

// WithAsyncDelivery drains outboxes on background goroutines so Schedule and
// Confirm return without waiting for Sink.Push. Use Wait or Close to block
// until delivery finishes.
func WithAsyncDelivery() Option {
	return func(d *Dispatcher) {
		d.async = true
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
