// ABOUTME: Trigger and action persistence for the SQLite store
// ABOUTME: Covers CRUD, enabled-trigger queries, ordered actions, and transactional reorder

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const triggerColumns = `id, device_id, name, description, type, config, is_enabled, created_at, updated_at`
const actionColumns = `id, trigger_id, name, type, config, ord, created_at, updated_at`

// CreateTrigger inserts a new trigger record
func (s *SQLiteStore) CreateTrigger(ctx context.Context, trigger *Trigger) error {
	query := `
		INSERT INTO triggers (` + triggerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		trigger.ID,
		trigger.DeviceID,
		trigger.Name,
		trigger.Description,
		trigger.Type,
		trigger.Config,
		trigger.IsEnabled,
		trigger.CreatedAt.Format(time.RFC3339),
		trigger.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting trigger: %w", err)
	}
	return nil
}

// GetTrigger retrieves a trigger by ID
func (s *SQLiteStore) GetTrigger(ctx context.Context, id string) (*Trigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM triggers WHERE id = ?`

	trigger, err := scanTrigger(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying trigger: %w", err)
	}
	return trigger, nil
}

// ListTriggers returns all triggers, newest first
func (s *SQLiteStore) ListTriggers(ctx context.Context) ([]*Trigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM triggers ORDER BY created_at DESC`
	return s.queryTriggers(ctx, query)
}

// ListTriggersByDevice returns all triggers for a device, newest first
func (s *SQLiteStore) ListTriggersByDevice(ctx context.Context, deviceID string) ([]*Trigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM triggers WHERE device_id = ? ORDER BY created_at DESC`
	return s.queryTriggers(ctx, query, deviceID)
}

// ListEnabledTriggers returns the enabled triggers for a device.
// This is the set shipped to the device in its config snapshot.
func (s *SQLiteStore) ListEnabledTriggers(ctx context.Context, deviceID string) ([]*Trigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM triggers WHERE device_id = ? AND is_enabled = 1 ORDER BY created_at ASC`
	return s.queryTriggers(ctx, query, deviceID)
}

// UpdateTrigger updates a trigger's mutable fields
func (s *SQLiteStore) UpdateTrigger(ctx context.Context, trigger *Trigger) error {
	query := `
		UPDATE triggers
		SET name = ?, description = ?, type = ?, config = ?, is_enabled = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		trigger.Name,
		trigger.Description,
		trigger.Type,
		trigger.Config,
		trigger.IsEnabled,
		time.Now().UTC().Format(time.RFC3339),
		trigger.ID,
	)
	if err != nil {
		return fmt.Errorf("updating trigger: %w", err)
	}
	return requireRowAffected(result)
}

// DeleteTrigger removes a trigger and, via cascade, its actions
func (s *SQLiteStore) DeleteTrigger(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM triggers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting trigger: %w", err)
	}
	return requireRowAffected(result)
}

// CreateAction inserts a new action record
func (s *SQLiteStore) CreateAction(ctx context.Context, action *Action) error {
	query := `
		INSERT INTO actions (` + actionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		action.ID,
		action.TriggerID,
		action.Name,
		action.Type,
		action.Config,
		action.Order,
		action.CreatedAt.Format(time.RFC3339),
		action.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting action: %w", err)
	}
	return nil
}

// GetAction retrieves an action by ID
func (s *SQLiteStore) GetAction(ctx context.Context, id string) (*Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE id = ?`

	action, err := scanAction(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying action: %w", err)
	}
	return action, nil
}

// ListActions returns all actions ordered by sequence number
func (s *SQLiteStore) ListActions(ctx context.Context) ([]*Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions ORDER BY ord ASC`
	return s.queryActions(ctx, query)
}

// ListActionsByTrigger returns a trigger's actions ordered by sequence number ascending
func (s *SQLiteStore) ListActionsByTrigger(ctx context.Context, triggerID string) ([]*Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE trigger_id = ? ORDER BY ord ASC`
	return s.queryActions(ctx, query, triggerID)
}

// UpdateAction updates an action's mutable fields
func (s *SQLiteStore) UpdateAction(ctx context.Context, action *Action) error {
	query := `
		UPDATE actions
		SET name = ?, type = ?, config = ?, ord = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		action.Name,
		action.Type,
		action.Config,
		action.Order,
		time.Now().UTC().Format(time.RFC3339),
		action.ID,
	)
	if err != nil {
		return fmt.Errorf("updating action: %w", err)
	}
	return requireRowAffected(result)
}

// DeleteAction removes an action
func (s *SQLiteStore) DeleteAction(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM actions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting action: %w", err)
	}
	return requireRowAffected(result)
}

// ReorderActions assigns sequence numbers 0..n-1 following the given ID order.
// All updates run in one transaction so a partial reorder never persists.
func (s *SQLiteStore) ReorderActions(ctx context.Context, triggerID string, actionIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reorder transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for i, id := range actionIDs {
		result, err := tx.ExecContext(ctx,
			`UPDATE actions SET ord = ?, updated_at = ? WHERE id = ? AND trigger_id = ?`,
			i, now, id, triggerID,
		)
		if err != nil {
			return fmt.Errorf("reordering action %s: %w", id, err)
		}
		if err := requireRowAffected(result); err != nil {
			return fmt.Errorf("reordering action %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reorder: %w", err)
	}
	return nil
}

// queryTriggers executes a trigger query and scans the results
func (s *SQLiteStore) queryTriggers(ctx context.Context, query string, args ...any) ([]*Trigger, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying triggers: %w", err)
	}
	defer rows.Close()

	triggers := []*Trigger{}
	for rows.Next() {
		trigger, err := scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trigger row: %w", err)
		}
		triggers = append(triggers, trigger)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trigger rows: %w", err)
	}
	return triggers, nil
}

// queryActions executes an action query and scans the results
func (s *SQLiteStore) queryActions(ctx context.Context, query string, args ...any) ([]*Action, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	actions := []*Action{}
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning action row: %w", err)
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action rows: %w", err)
	}
	return actions, nil
}

func scanTrigger(row rowScanner) (*Trigger, error) {
	trigger := &Trigger{}
	var createdAt, updatedAt string

	if err := row.Scan(
		&trigger.ID,
		&trigger.DeviceID,
		&trigger.Name,
		&trigger.Description,
		&trigger.Type,
		&trigger.Config,
		&trigger.IsEnabled,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if trigger.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if trigger.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return trigger, nil
}

func scanAction(row rowScanner) (*Action, error) {
	action := &Action{}
	var createdAt, updatedAt string

	if err := row.Scan(
		&action.ID,
		&action.TriggerID,
		&action.Name,
		&action.Type,
		&action.Config,
		&action.Order,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if action.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if action.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return action, nil
}
