package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/seqgate/internal/ir"
)

// ReadEvents returns journal rows ordered by seq. An empty source returns
// every source; kinds, when given, filter by event kind.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadEvents(ctx context.Context, source string, kinds ...EventKind) ([]Event, error) {
	query := `
		SELECT seq, kind, item_id, source_id, sequence, outcome, code, stamp, released, detail
		FROM events`
	var (
		where []string
		args  []any
	)
	if source != "" {
		where = append(where, "source_id = ?")
		args = append(args, source)
	}
	if len(kinds) > 0 {
		marks := make([]string, len(kinds))
		for i, k := range kinds {
			marks[i] = "?"
			args = append(args, string(k))
		}
		where = append(where, "kind IN ("+strings.Join(marks, ", ")+")")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var (
		e    Event
		kind string
		seq  int64
	)
	err := rows.Scan(&e.Seq, &kind, &e.Item.ID, &e.Item.SourceID, &seq,
		&e.Outcome, &e.Code, &e.Stamp, &e.Released, &e.Detail)
	if err != nil {
		return Event{}, fmt.Errorf("scan event: %w", err)
	}
	e.Kind = EventKind(kind)
	e.Item.Sequence = uint64(seq)
	return e, nil
}

// ReadLedger returns accepted items in acceptance order. An empty source
// returns every source.
func (s *Store) ReadLedger(ctx context.Context, source string) ([]ir.Item, error) {
	query := `SELECT item_id, source_id, sequence FROM ledger`
	var args []any
	if source != "" {
		query += ` WHERE source_id = ?`
		args = append(args, source)
	}
	query += ` ORDER BY position ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	items := []ir.Item{}
	for rows.Next() {
		var (
			it  ir.Item
			seq int64
		)
		if err := rows.Scan(&it.ID, &it.SourceID, &seq); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		it.Sequence = uint64(seq)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}
	return items, nil
}

// Sources returns every source id present in the journal, sorted. Rows of
// items rejected for an empty source id are skipped.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT source_id FROM events WHERE source_id != ''
		 ORDER BY source_id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	sources := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return sources, nil
}

// MaxStamp returns the highest delivery stamp in the journal, or 0. A
// dispatcher writing more events to the journal seeds its clock with it.
func (s *Store) MaxStamp(ctx context.Context) (int64, error) {
	var stamp sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(stamp) FROM events`).Scan(&stamp)
	if err != nil {
		return 0, fmt.Errorf("query max stamp: %w", err)
	}
	return stamp.Int64, nil
}
