package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/seqgate/internal/dispatch"
	"github.com/roach88/seqgate/internal/ir"
)

// EventKind names a journal row type.
type EventKind string

const (
	EventScheduled  EventKind = "scheduled"
	EventRejected   EventKind = "rejected"
	EventPushed     EventKind = "pushed"
	EventPushFailed EventKind = "push_failed"
	EventConfirmed  EventKind = "confirmed"
)

// Event is one journal row.
type Event struct {
	Seq      int64     `json:"seq"`
	Kind     EventKind `json:"kind"`
	Item     ir.Item   `json:"item"`
	Outcome  string    `json:"outcome,omitempty"`
	Code     string    `json:"code,omitempty"`
	Stamp    int64     `json:"stamp,omitempty"`
	Released int       `json:"released,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

// AppendEvent inserts a journal row and returns its seq.
func (s *Store) AppendEvent(ctx context.Context, e Event) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(kind, item_id, source_id, sequence, outcome, code, stamp, released, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(e.Kind),
		e.Item.ID,
		e.Item.SourceID,
		int64(e.Item.Sequence),
		e.Outcome,
		e.Code,
		e.Stamp,
		e.Released,
		e.Detail,
	)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append event: last insert id: %w", err)
	}
	return seq, nil
}

// Journal records dispatcher events into the store.
//
// Journal implements dispatch.Observer. Observer callbacks cannot fail, so a
// write error is logged and kept; Err reports the first one.
type Journal struct {
	store  *Store
	logger *slog.Logger

	mu  sync.Mutex
	err error
}

var _ dispatch.Observer = (*Journal)(nil)

// NewJournal creates a journal writing to s. A nil logger discards.
func NewJournal(s *Store, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Journal{store: s, logger: logger}
}

// Err returns the first write error, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Journal) append(e Event) {
	if _, err := j.store.AppendEvent(context.Background(), e); err != nil {
		j.logger.Error("journal write failed", "kind", e.Kind, "item", e.Item.String(), "error", err)
		j.mu.Lock()
		if j.err == nil {
			j.err = err
		}
		j.mu.Unlock()
	}
}

func (j *Journal) Scheduled(item ir.Item, outcome dispatch.Outcome) {
	j.append(Event{Kind: EventScheduled, Item: item, Outcome: outcome.String()})
}

func (j *Journal) Rejected(item ir.Item, err *dispatch.DispatchError) {
	j.append(Event{Kind: EventRejected, Item: item, Code: string(err.Code), Detail: err.Message})
}

func (j *Journal) Pushed(d dispatch.Delivery) {
	j.append(Event{Kind: EventPushed, Item: d.Item, Stamp: d.Stamp})
}

func (j *Journal) PushFailed(d dispatch.Delivery, err error) {
	j.append(Event{Kind: EventPushFailed, Item: d.Item, Stamp: d.Stamp, Detail: err.Error()})
}

func (j *Journal) Confirmed(item ir.Item, released int) {
	j.append(Event{Kind: EventConfirmed, Item: item, Released: released})
}
