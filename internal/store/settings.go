package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/seqgate/internal/dispatch"
)

const settingMaxPending = "max_pending"

// Settings are the dispatcher options a journal was written under. Replay
// needs them to reach the same decisions.
type Settings struct {
	// MaxPending is the per-source buffer bound, 0 when unbounded.
	MaxPending int `json:"max_pending"`
}

// DispatchOptions returns the dispatcher options that reproduce s.
func (s Settings) DispatchOptions() []dispatch.Option {
	if s.MaxPending <= 0 {
		return nil
	}
	return []dispatch.Option{dispatch.WithMaxPending(s.MaxPending)}
}

// SaveSettings records the run's dispatcher settings, replacing earlier ones.
func (s *Store) SaveSettings(ctx context.Context, settings Settings) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		settingMaxPending, strconv.Itoa(settings.MaxPending))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// LoadSettings returns the recorded settings. A journal without a record
// yields the zero Settings.
func (s *Store) LoadSettings(ctx context.Context) (Settings, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, settingMaxPending).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %s %q: %w", settingMaxPending, value, err)
	}
	return Settings{MaxPending: n}, nil
}
