package sync

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Coordinator orchestrates device synchronization: batched uploads with
// per-change verdicts, and pulls of changes past a watermark.
type Coordinator struct {
	tracker  *Tracker
	detector *Detector
	registry *Registry
	repo     ChangeRepository
	clock    clockwork.Clock
}

func NewCoordinator(repo ChangeRepository, registry *Registry, clk clockwork.Clock) *Coordinator {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Coordinator{
		tracker:  NewTracker(repo, clk),
		detector: NewDetector(repo),
		registry: registry,
		repo:     repo,
		clock:    clk,
	}
}

// Upload processes each change independently: track, detect, then apply to
// the canonical store. One change failing or conflicting never blocks the
// rest of the batch; failed applies are logged and simply absent from the
// result, so the device retries them on its next upload. A re-upload short-
// circuits to synced only when the original upload actually applied;
// otherwise it runs detection and apply again, so a change is never
// reported synced without its mutation being durable.
func (c *Coordinator) Upload(ctx context.Context, deviceID string, changes []ChangeUpload) (UploadResult, error) {
	result := UploadResult{Synced: []string{}, Conflicts: nil}

	for _, upload := range changes {
		record, duplicate, err := c.tracker.TrackChange(ctx, deviceID, upload)
		if err != nil {
			log.Error().Err(err).
				Str("device_id", deviceID).
				Str("change_id", upload.ChangeID).
				Msg("failed to track change")
			continue
		}
		if duplicate && record.Applied {
			result.Synced = append(result.Synced, upload.ChangeID)
			continue
		}

		conflict, err := c.detector.DetectConflict(ctx, record)
		if err != nil {
			log.Error().Err(err).
				Str("device_id", deviceID).
				Str("change_id", upload.ChangeID).
				Msg("conflict detection failed")
			continue
		}
		if conflict != nil {
			log.Info().
				Str("device_id", deviceID).
				Str("entity_type", record.EntityType).
				Str("entity_id", record.EntityID).
				Str("conflict_id", conflict.ConflictID).
				Msg("change conflicts with newer server state")
			result.Conflicts = append(result.Conflicts, *conflict)
			continue
		}

		if err := c.registry.Apply(ctx, record); err != nil {
			log.Error().Err(err).
				Str("device_id", deviceID).
				Str("change_id", upload.ChangeID).
				Str("entity_type", record.EntityType).
				Msg("failed to apply change")
			continue
		}
		if err := c.repo.MarkApplied(ctx, deviceID, upload.ChangeID); err != nil {
			// Applied but not marked: leave it out of Synced so the device
			// retries, and the idempotent applier runs once more.
			log.Error().Err(err).
				Str("device_id", deviceID).
				Str("change_id", upload.ChangeID).
				Msg("failed to mark change applied")
			continue
		}
		result.Synced = append(result.Synced, upload.ChangeID)
	}

	log.Info().
		Str("device_id", deviceID).
		Int("uploaded", len(changes)).
		Int("synced", len(result.Synced)).
		Int("conflicts", len(result.Conflicts)).
		Msg("sync upload processed")
	return result, nil
}

// Pull returns every applied change recorded after since (epoch
// milliseconds), ordered by server timestamp, together with the server's
// current timestamp. Conflicted records are not replayed to other devices.
func (c *Coordinator) Pull(ctx context.Context, sinceMs int64) (PullResult, error) {
	changes, err := c.repo.ChangesSince(ctx, sinceMs)
	if err != nil {
		return PullResult{}, fmt.Errorf("failed to pull changes: %w", err)
	}
	return PullResult{
		Changes:         changes,
		ServerTimestamp: c.clock.Now().UnixMilli(),
	}, nil
}
