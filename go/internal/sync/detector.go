package sync

import (
	"context"
	"fmt"

	"github.com/feltworks/tourneyclock/go/internal/models"
	"github.com/google/uuid"
)

// Detector decides apply-vs-conflict for an incoming change by comparing its
// declared base against the entity's recorded history.
type Detector struct {
	repo ChangeRepository
}

func NewDetector(repo ChangeRepository) *Detector {
	return &Detector{repo: repo}
}

// DetectConflict returns a ConflictRecord when the client's view was stale
// at edit time: the entity's last applied change came from a different
// device and landed server-side after the local timestamp the incoming
// change claims as its base. Only applied changes count as history; a
// conflicted record never touched the canonical store, so it cannot make
// later edits stale. Deletes get no special leniency in either direction; a
// delete racing an update conflicts like any other stale write, it is never
// silently resolved. Returns nil when the change can be applied.
func (d *Detector) DetectConflict(ctx context.Context, change models.ChangeRecord) (*models.ConflictRecord, error) {
	last, err := d.repo.LastChangeForEntity(ctx, change.EntityType, change.EntityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity history: %w", err)
	}
	if last == nil || last.DeviceID == change.DeviceID {
		return nil, nil
	}
	if last.ServerTimestamp <= change.LocalTimestamp {
		return nil, nil
	}

	return &models.ConflictRecord{
		ConflictID:    uuid.New().String(),
		EntityType:    change.EntityType,
		EntityID:      change.EntityID,
		LocalVersion:  change.Data,
		ServerVersion: last.Data,
	}, nil
}
