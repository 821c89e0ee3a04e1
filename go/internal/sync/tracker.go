package sync

import (
	"context"
	"fmt"

	"github.com/feltworks/tourneyclock/go/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Tracker appends device changes to the change log, assigning the server
// timestamp at ingestion. A changeID already recorded for the device is an
// idempotent re-upload: it is logged and skipped, never an error.
type Tracker struct {
	repo  ChangeRepository
	clock clockwork.Clock
}

func NewTracker(repo ChangeRepository, clk clockwork.Clock) *Tracker {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Tracker{repo: repo, clock: clk}
}

// TrackChange records the change and returns it with its server timestamp.
// duplicate is true when the (device, changeID) pair was already recorded;
// the returned record is then the stored one, so the caller sees the
// original server timestamp and whether the earlier upload ever applied.
func (t *Tracker) TrackChange(ctx context.Context, deviceID string, upload ChangeUpload) (models.ChangeRecord, bool, error) {
	record := models.ChangeRecord{
		ChangeID:       upload.ChangeID,
		DeviceID:       deviceID,
		EntityType:     upload.EntityType,
		EntityID:       upload.EntityID,
		Operation:      upload.Operation,
		Data:           upload.Data,
		LocalTimestamp: upload.LocalTimestamp,
	}

	existing, err := t.repo.GetChange(ctx, deviceID, upload.ChangeID)
	if err != nil {
		return record, false, fmt.Errorf("failed to check for existing change: %w", err)
	}
	if existing != nil {
		log.Warn().
			Str("device_id", deviceID).
			Str("change_id", upload.ChangeID).
			Bool("applied", existing.Applied).
			Msg("duplicate change upload")
		return *existing, true, nil
	}

	record.ServerTimestamp = t.clock.Now().UnixMilli()
	if err := t.repo.InsertChange(ctx, record); err != nil {
		return record, false, fmt.Errorf("failed to track change: %w", err)
	}
	return record, false, nil
}
