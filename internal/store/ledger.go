package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/seqgate/internal/dispatch"
	"github.com/roach88/seqgate/internal/ir"
)

var (
	// ErrOutOfOrder is returned when a push is not exactly one past the
	// source's last accepted sequence.
	ErrOutOfOrder = errors.New("sequence out of order")

	// ErrDuplicatePush is returned when a (source, sequence) slot was already
	// accepted.
	ErrDuplicatePush = errors.New("duplicate push")
)

// LedgerSink is a dispatch.Sink that appends pushes to the ledger table.
//
// It stands in for the downstream system that rejects submissions violating
// per-source sequencing: the first accepted sequence of a source must be 0 and
// every later one must be the previous plus one.
type LedgerSink struct {
	store *Store
}

var _ dispatch.Sink = (*LedgerSink)(nil)

// NewLedgerSink creates a sink writing to s.
func NewLedgerSink(s *Store) *LedgerSink {
	return &LedgerSink{store: s}
}

// Push implements dispatch.Sink.
func (l *LedgerSink) Push(ctx context.Context, item ir.Item) error {
	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger push: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger WHERE source_id = ? AND sequence = ?`,
		item.SourceID, int64(item.Sequence),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ledger push: lookup slot: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("ledger push %s: %w", item, ErrDuplicatePush)
	}

	var last sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM ledger WHERE source_id = ?`,
		item.SourceID,
	).Scan(&last)
	if err != nil {
		return fmt.Errorf("ledger push: lookup last: %w", err)
	}

	want := uint64(0)
	if last.Valid {
		want = uint64(last.Int64) + 1
	}
	if item.Sequence != want {
		return fmt.Errorf("ledger push %s: expected sequence %d: %w", item, want, ErrOutOfOrder)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger (source_id, sequence, item_id) VALUES (?, ?, ?)`,
		item.SourceID, int64(item.Sequence), item.ID,
	)
	if err != nil {
		return fmt.Errorf("ledger push: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger push: commit: %w", err)
	}
	return nil
}
