package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/samijaber1/aegis-tracker/internal/policy"
	"github.com/samijaber1/aegis-tracker/internal/slo"
	"github.com/samijaber1/aegis-tracker/internal/storage"
)

const defaultQueryLimit = 100

// Store implements AuditStorage using SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite storage with the given database path
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// StoreDefinition upserts the public view of a definition
func (s *Store) StoreDefinition(ctx context.Context, def *slo.Definition) error {
	defJSON, err := json.Marshal(def.Public())
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	query := `
		INSERT INTO slo_definitions (id, name, target_availability, window_minutes, definition_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			target_availability = excluded.target_availability,
			window_minutes = excluded.window_minutes,
			definition_json = excluded.definition_json,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = s.db.ExecContext(ctx, query,
		def.ID,
		def.Name,
		def.TargetAvailability,
		def.WindowMinutes,
		string(defJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store SLO definition: %w", err)
	}

	return nil
}

// StoreTransition records t and updates the latest state in one transaction
func (s *Store) StoreTransition(ctx context.Context, t storage.Transition) error {
	annotations := t.Annotations
	if annotations == nil {
		annotations = []policy.Annotation{}
	}
	annotationsJSON, err := json.Marshal(annotations)
	if err != nil {
		return fmt.Errorf("failed to marshal annotations: %w", err)
	}

	availability := sql.NullFloat64{}
	if t.MeasuredAvailability != nil {
		availability = sql.NullFloat64{Float64: *t.MeasuredAvailability, Valid: true}
	}
	ts := t.Timestamp.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transitions (
			slo_id, from_status, to_status, burn_rate, measured_availability,
			total_requests, error_count, annotations_json, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.SLOID,
		string(t.From),
		string(t.To),
		t.BurnRate,
		availability,
		t.TotalRequests,
		t.ErrorCount,
		string(annotationsJSON),
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to store transition: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO latest_state (
			slo_id, status, burn_rate, measured_availability, total_requests, error_count, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slo_id) DO UPDATE SET
			status = excluded.status,
			burn_rate = excluded.burn_rate,
			measured_availability = excluded.measured_availability,
			total_requests = excluded.total_requests,
			error_count = excluded.error_count,
			timestamp = excluded.timestamp,
			updated_at = CURRENT_TIMESTAMP
	`,
		t.SLOID,
		string(t.To),
		t.BurnRate,
		availability,
		t.TotalRequests,
		t.ErrorCount,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to update latest state: %w", err)
	}

	return tx.Commit()
}

// QueryTransitions retrieves transitions with optional filtering
func (s *Store) QueryTransitions(ctx context.Context, filter storage.TransitionFilter) ([]storage.Transition, error) {
	query := `
		SELECT id, slo_id, from_status, to_status, burn_rate, measured_availability,
		       total_requests, error_count, annotations_json, timestamp, created_at
		FROM transitions
		WHERE 1=1
	`
	args := []any{}

	if filter.SLOID != "" {
		query += " AND slo_id = ?"
		args = append(args, filter.SLOID)
	}

	if filter.Status != "" {
		query += " AND to_status = ?"
		args = append(args, filter.Status)
	}

	if filter.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartTime.UTC())
	}

	if filter.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndTime.UTC())
	}

	query += " ORDER BY timestamp DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	query += " LIMIT ?"
	args = append(args, limit)

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	records := []storage.Transition{}
	for rows.Next() {
		var record storage.Transition
		var from, to, annotationsJSON string
		var availability sql.NullFloat64

		err := rows.Scan(
			&record.ID,
			&record.SLOID,
			&from,
			&to,
			&record.BurnRate,
			&availability,
			&record.TotalRequests,
			&record.ErrorCount,
			&annotationsJSON,
			&record.Timestamp,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		record.From = policy.Status(from)
		record.To = policy.Status(to)
		if availability.Valid {
			v := availability.Float64
			record.MeasuredAvailability = &v
		}
		if err := json.Unmarshal([]byte(annotationsJSON), &record.Annotations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal annotations: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// GetLatestState retrieves the latest state for an SLO
func (s *Store) GetLatestState(ctx context.Context, sloID string) (*storage.LatestState, error) {
	query := `
		SELECT slo_id, status, burn_rate, measured_availability, total_requests, error_count,
		       timestamp, updated_at
		FROM latest_state
		WHERE slo_id = ?
	`

	var state storage.LatestState
	var status string
	var availability sql.NullFloat64

	err := s.db.QueryRowContext(ctx, query, sloID).Scan(
		&state.SLOID,
		&status,
		&state.BurnRate,
		&availability,
		&state.TotalRequests,
		&state.ErrorCount,
		&state.Timestamp,
		&state.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest state: %w", err)
	}

	state.Status = policy.Status(status)
	if availability.Valid {
		v := availability.Float64
		state.MeasuredAvailability = &v
	}

	return &state, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
