// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides device/group persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		// Ensure parent directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS groups (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			color       TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS devices (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			hostname    TEXT NOT NULL DEFAULT '',
			ip_address  TEXT NOT NULL DEFAULT '',
			group_id    TEXT REFERENCES groups(id),
			is_online   INTEGER NOT NULL DEFAULT 0,
			last_seen   TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_devices_group ON devices(group_id);

		CREATE TABLE IF NOT EXISTS triggers (
			id          TEXT PRIMARY KEY,
			device_id   TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type        TEXT NOT NULL,
			config      TEXT NOT NULL DEFAULT '{}',
			is_enabled  INTEGER NOT NULL DEFAULT 1,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL,

			CHECK (type IN ('gpio_input', 'schedule', 'api_call'))
		);

		CREATE INDEX IF NOT EXISTS idx_triggers_device ON triggers(device_id);

		CREATE TABLE IF NOT EXISTS actions (
			id         TEXT PRIMARY KEY,
			trigger_id TEXT NOT NULL REFERENCES triggers(id) ON DELETE CASCADE,
			name       TEXT NOT NULL,
			type       TEXT NOT NULL,
			config     TEXT NOT NULL DEFAULT '{}',
			ord        INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			CHECK (type IN ('gpio_output', 'http_request', 'delay'))
		);

		CREATE INDEX IF NOT EXISTS idx_actions_trigger ON actions(trigger_id, ord);

		CREATE TABLE IF NOT EXISTS event_logs (
			id         TEXT PRIMARY KEY,
			device_id  TEXT NOT NULL,
			trigger_id TEXT,
			action_id  TEXT,
			type       TEXT NOT NULL,
			message    TEXT NOT NULL,
			metadata   TEXT,
			created_at TEXT NOT NULL,

			CHECK (type IN (
				'device_connected',
				'device_disconnected',
				'trigger_fired',
				'action_executed',
				'device_error'
			))
		);

		CREATE INDEX IF NOT EXISTS idx_events_device ON event_logs(device_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_events_created ON event_logs(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const deviceColumns = `id, name, description, hostname, ip_address, group_id, is_online, last_seen, created_at, updated_at`

// CreateDevice inserts a new device record
func (s *SQLiteStore) CreateDevice(ctx context.Context, device *Device) error {
	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		device.ID,
		device.Name,
		device.Description,
		device.Hostname,
		device.IPAddress,
		device.GroupID,
		device.IsOnline,
		nullableTime(device.LastSeen),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// GetDevice retrieves a device by ID
func (s *SQLiteStore) GetDevice(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	device, err := scanDevice(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return device, nil
}

// ListDevices returns all devices, newest first
func (s *SQLiteStore) ListDevices(ctx context.Context) ([]*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := []*Device{}
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

// UpdateDevice updates a device's mutable fields
func (s *SQLiteStore) UpdateDevice(ctx context.Context, device *Device) error {
	query := `
		UPDATE devices
		SET name = ?, description = ?, hostname = ?, ip_address = ?, group_id = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		device.Name,
		device.Description,
		device.Hostname,
		device.IPAddress,
		device.GroupID,
		time.Now().UTC().Format(time.RFC3339),
		device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return requireRowAffected(result)
}

// DeleteDevice removes a device and, via cascade, its triggers and actions
func (s *SQLiteStore) DeleteDevice(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireRowAffected(result)
}

// SetDeviceOnline marks a device online and stamps last_seen = now.
// Hostname and IP address are only overwritten when non-empty.
func (s *SQLiteStore) SetDeviceOnline(ctx context.Context, id, hostname, ipAddress string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		UPDATE devices
		SET is_online = 1,
		    last_seen = ?,
		    hostname = CASE WHEN ? != '' THEN ? ELSE hostname END,
		    ip_address = CASE WHEN ? != '' THEN ? ELSE ip_address END,
		    updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, now, hostname, hostname, ipAddress, ipAddress, now, id)
	if err != nil {
		return fmt.Errorf("marking device online: %w", err)
	}
	return requireRowAffected(result)
}

// SetDeviceOffline clears a device's online flag. The last_seen timestamp
// keeps the value from the device's last registration or heartbeat.
func (s *SQLiteStore) SetDeviceOffline(ctx context.Context, id string) error {
	query := `UPDATE devices SET is_online = 0, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("marking device offline: %w", err)
	}
	return requireRowAffected(result)
}

// CreateGroup inserts a new group record
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *Group) error {
	query := `
		INSERT INTO groups (id, name, description, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		group.ID,
		group.Name,
		group.Description,
		group.Color,
		group.CreatedAt.Format(time.RFC3339),
		group.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID
func (s *SQLiteStore) GetGroup(ctx context.Context, id string) (*Group, error) {
	query := `SELECT id, name, description, color, created_at, updated_at FROM groups WHERE id = ?`

	group := &Group{}
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.Color,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying group: %w", err)
	}

	if group.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if group.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return group, nil
}

// ListGroups returns all groups ordered by name
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*Group, error) {
	query := `SELECT id, name, description, color, created_at, updated_at FROM groups ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	groups := []*Group{}
	for rows.Next() {
		group := &Group{}
		var createdAt, updatedAt string
		if err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.Color, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning group row: %w", err)
		}
		if group.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if group.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating group rows: %w", err)
	}
	return groups, nil
}

// UpdateGroup updates a group's mutable fields
func (s *SQLiteStore) UpdateGroup(ctx context.Context, group *Group) error {
	query := `UPDATE groups SET name = ?, description = ?, color = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		group.Name,
		group.Description,
		group.Color,
		time.Now().UTC().Format(time.RFC3339),
		group.ID,
	)
	if err != nil {
		return fmt.Errorf("updating group: %w", err)
	}
	return requireRowAffected(result)
}

// DeleteGroup removes a group. Callers detach member devices first via
// DetachGroupDevices; the FK reference would otherwise reject the delete.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting group: %w", err)
	}
	return requireRowAffected(result)
}

// DetachGroupDevices clears group membership for all devices in a group
func (s *SQLiteStore) DetachGroupDevices(ctx context.Context, groupID string) error {
	query := `UPDATE devices SET group_id = NULL, updated_at = ? WHERE group_id = ?`

	_, err := s.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), groupID)
	if err != nil {
		return fmt.Errorf("detaching group devices: %w", err)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice reads one device row
func scanDevice(row rowScanner) (*Device, error) {
	device := &Device{}
	var groupID sql.NullString
	var lastSeen sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(
		&device.ID,
		&device.Name,
		&device.Description,
		&device.Hostname,
		&device.IPAddress,
		&groupID,
		&device.IsOnline,
		&lastSeen,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if groupID.Valid {
		device.GroupID = &groupID.String
	}
	if lastSeen.Valid {
		ts, err := time.Parse(time.RFC3339, lastSeen.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		device.LastSeen = &ts
	}

	var err error
	if device.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if device.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return device, nil
}

// nullableTime formats an optional timestamp for storage
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

// requireRowAffected converts a zero-row update/delete into ErrNotFound
func requireRowAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
