package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/feltworks/tourneyclock/go/internal/models"
	"github.com/sqlc-dev/pqtype"
)

// ChangeRepository is what the tracker, detector and coordinator need from
// the change log storage. Rows are never deleted; the only mutation after
// insert is flipping the applied flag once the change reaches the canonical
// store.
type ChangeRepository interface {
	InsertChange(ctx context.Context, change models.ChangeRecord) error
	// GetChange returns the recorded change for the (device, changeID)
	// pair, or (nil, nil) when no such change was recorded.
	GetChange(ctx context.Context, deviceID, changeID string) (*models.ChangeRecord, error)
	// MarkApplied records that the change's mutation reached the canonical
	// store. Idempotent.
	MarkApplied(ctx context.Context, deviceID, changeID string) error
	// LastChangeForEntity returns the most recent applied change for the
	// entity. Unapplied records never modified the canonical store, so they
	// are not history. Returns (nil, nil) when the entity has no applied
	// changes.
	LastChangeForEntity(ctx context.Context, entityType, entityID string) (*models.ChangeRecord, error)
	ChangesSince(ctx context.Context, sinceMs int64) ([]models.ChangeRecord, error)
}

// Repository is the Postgres-backed change log.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ ChangeRepository = (*Repository)(nil)

func (r *Repository) InsertChange(ctx context.Context, change models.ChangeRecord) error {
	const q = `
		INSERT INTO change_records (
			change_id, device_id, entity_type, entity_id, operation,
			data, local_timestamp, server_timestamp, applied
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	data := pqtype.NullRawMessage{RawMessage: change.Data, Valid: len(change.Data) > 0}
	_, err := r.db.ExecContext(ctx, q,
		change.ChangeID,
		change.DeviceID,
		change.EntityType,
		change.EntityID,
		change.Operation,
		data,
		change.LocalTimestamp,
		change.ServerTimestamp,
		change.Applied,
	)
	if err != nil {
		return fmt.Errorf("failed to insert change record: %w", err)
	}
	return nil
}

func (r *Repository) GetChange(ctx context.Context, deviceID, changeID string) (*models.ChangeRecord, error) {
	const q = `
		SELECT change_id, device_id, entity_type, entity_id, operation,
		       data, local_timestamp, server_timestamp, applied
		FROM change_records
		WHERE device_id = $1 AND change_id = $2`

	change, err := scanChange(r.db.QueryRowContext(ctx, q, deviceID, changeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get change record: %w", err)
	}
	return change, nil
}

func (r *Repository) MarkApplied(ctx context.Context, deviceID, changeID string) error {
	const q = `UPDATE change_records SET applied = TRUE WHERE device_id = $1 AND change_id = $2`

	if _, err := r.db.ExecContext(ctx, q, deviceID, changeID); err != nil {
		return fmt.Errorf("failed to mark change applied: %w", err)
	}
	return nil
}

func (r *Repository) LastChangeForEntity(ctx context.Context, entityType, entityID string) (*models.ChangeRecord, error) {
	const q = `
		SELECT change_id, device_id, entity_type, entity_id, operation,
		       data, local_timestamp, server_timestamp, applied
		FROM change_records
		WHERE entity_type = $1 AND entity_id = $2 AND applied
		ORDER BY server_timestamp DESC
		LIMIT 1`

	change, err := scanChange(r.db.QueryRowContext(ctx, q, entityType, entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last change for entity: %w", err)
	}
	return change, nil
}

func (r *Repository) ChangesSince(ctx context.Context, sinceMs int64) ([]models.ChangeRecord, error) {
	const q = `
		SELECT change_id, device_id, entity_type, entity_id, operation,
		       data, local_timestamp, server_timestamp, applied
		FROM change_records
		WHERE server_timestamp > $1 AND applied
		ORDER BY server_timestamp ASC`

	rows, err := r.db.QueryContext(ctx, q, sinceMs)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes since %d: %w", sinceMs, err)
	}
	defer rows.Close()

	var changes []models.ChangeRecord
	for rows.Next() {
		change, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change record: %w", err)
		}
		changes = append(changes, *change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate change records: %w", err)
	}
	return changes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChange(row rowScanner) (*models.ChangeRecord, error) {
	var change models.ChangeRecord
	var data pqtype.NullRawMessage
	err := row.Scan(
		&change.ChangeID,
		&change.DeviceID,
		&change.EntityType,
		&change.EntityID,
		&change.Operation,
		&data,
		&change.LocalTimestamp,
		&change.ServerTimestamp,
		&change.Applied,
	)
	if err != nil {
		return nil, err
	}
	if data.Valid {
		change.Data = data.RawMessage
	}
	return &change, nil
}
