// ABOUTME: Event log store for the device audit trail
// ABOUTME: Append-only records with filtered pagination and retention cleanup

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const eventColumns = `id, device_id, trigger_id, action_id, type, message, metadata, created_at`

// SaveEvent appends an event log entry
func (s *SQLiteStore) SaveEvent(ctx context.Context, event *EventLog) error {
	query := `
		INSERT INTO event_logs (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.DeviceID,
		event.TriggerID,
		event.ActionID,
		string(event.Type),
		event.Message,
		event.Metadata,
		event.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	s.logger.Debug("saved event",
		"event_id", event.ID,
		"device_id", event.DeviceID,
		"type", event.Type,
	)
	return nil
}

// ListEvents returns one page of events matching the filter, newest first
func (s *SQLiteStore) ListEvents(ctx context.Context, filter EventFilter) (*EventPage, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}

	where := ` WHERE 1=1`
	var args []any
	if filter.DeviceID != "" {
		where += ` AND device_id = ?`
		args = append(args, filter.DeviceID)
	}
	if filter.Type != "" {
		where += ` AND type = ?`
		args = append(args, string(filter.Type))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM event_logs` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	query := `SELECT ` + eventColumns + ` FROM event_logs` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	events, err := s.queryEvents(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	totalPages := (total + filter.Limit - 1) / filter.Limit
	return &EventPage{
		Events:     events,
		Page:       filter.Page,
		Limit:      filter.Limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// ListEventsByDevice returns the most recent events for a device
func (s *SQLiteStore) ListEventsByDevice(ctx context.Context, deviceID string, limit int) ([]*EventLog, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	query := `SELECT ` + eventColumns + ` FROM event_logs WHERE device_id = ? ORDER BY created_at DESC LIMIT ?`
	return s.queryEvents(ctx, query, deviceID, limit)
}

// DeleteEventsBefore removes events older than the cutoff and returns the count removed
func (s *SQLiteStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM event_logs WHERE created_at < ?`,
		cutoff.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return deleted, nil
}

// queryEvents is a helper that executes a query and returns events
func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...any) ([]*EventLog, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := []*EventLog{}
	for rows.Next() {
		event := &EventLog{}
		var triggerID, actionID, metadata sql.NullString
		var eventType, createdAt string

		if err := rows.Scan(
			&event.ID,
			&event.DeviceID,
			&triggerID,
			&actionID,
			&eventType,
			&event.Message,
			&metadata,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}

		if triggerID.Valid {
			event.TriggerID = &triggerID.String
		}
		if actionID.Valid {
			event.ActionID = &actionID.String
		}
		if metadata.Valid {
			event.Metadata = &metadata.String
		}
		event.Type = EventType(eventType)
		event.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}
	return events, nil
}
