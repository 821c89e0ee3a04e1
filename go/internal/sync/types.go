package sync

import (
	"encoding/json"

	"github.com/feltworks/tourneyclock/go/internal/models"
)

// ChangeUpload is one change as a device submits it: no server timestamp
// yet, and the device id travels alongside the batch rather than per item.
type ChangeUpload struct {
	ChangeID       string                 `json:"change_id"`
	EntityType     string                 `json:"entity_type"`
	EntityID       string                 `json:"entity_id"`
	Operation      models.ChangeOperation `json:"operation"`
	Data           json.RawMessage        `json:"data,omitempty"`
	LocalTimestamp int64                  `json:"local_timestamp"`
}

// UploadResult reports the per-change verdicts for one batch. A change id
// appears in Synced when its mutation is durable server-side, including the
// idempotent case where an earlier upload already recorded it.
type UploadResult struct {
	Synced    []string                `json:"synced"`
	Conflicts []models.ConflictRecord `json:"conflicts"`
}

// PullResult carries every change after the client's watermark plus the
// server clock at read time, so the client's next since value is unambiguous
// even when changes land between pull and the next upload.
type PullResult struct {
	Changes         []models.ChangeRecord `json:"changes"`
	ServerTimestamp int64                 `json:"server_timestamp"`
}
