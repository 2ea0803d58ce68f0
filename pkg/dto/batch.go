package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/aedes/internal/batch"
	"github.com/your-org/aedes/internal/models"
	"github.com/your-org/aedes/internal/risk"
)

// BatchItemResponse is one batch item snapshot as rendered to the dashboard.
type BatchItemResponse struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	Status      string    `json:"status"`
	// Progress is present only while the item is processing; it has no
	// meaning in any other state.
	Progress   *int                     `json:"progress,omitempty"`
	Error      string                   `json:"error,omitempty"`
	ErrorKind  string                   `json:"error_kind,omitempty"`
	Result     *models.DetectionResult  `json:"result,omitempty"`
	EnqueuedAt string                   `json:"enqueued_at"`
	UpdatedAt  string                   `json:"updated_at"`
}

// NewBatchItem converts a manager snapshot into its API representation.
func NewBatchItem(it batch.Item) BatchItemResponse {
	r := BatchItemResponse{
		ID:          it.ID,
		FileName:    it.FileName,
		FileSize:    it.FileSize,
		ContentType: it.ContentType,
		Status:      string(it.Status),
		Error:       it.Error,
		ErrorKind:   string(it.ErrorKind),
		Result:      it.Result,
		EnqueuedAt:  it.EnqueuedAt.Format(time.RFC3339),
		UpdatedAt:   it.UpdatedAt.Format(time.RFC3339),
	}
	if it.Status == models.BatchProcessing {
		p := it.Progress
		r.Progress = &p
	}
	return r
}

type BatchListResponse struct {
	Items   []BatchItemResponse `json:"items"`
	Summary risk.Summary        `json:"summary"`
}

type EnqueueResponse struct {
	Items   []BatchItemResponse `json:"items"`
	Summary risk.Summary        `json:"summary"`
}

// WSEvent is a WebSocket message for real-time batch updates.
type WSEvent struct {
	Type string            `json:"type"` // item_processing, item_progress, item_completed, item_failed
	Item BatchItemResponse `json:"item"`
}

const (
	WSItemProcessing = "item_processing"
	WSItemProgress   = "item_progress"
	WSItemCompleted  = "item_completed"
	WSItemFailed     = "item_failed"
)

// WSEventForItem derives the event type from the item's state.
func WSEventForItem(it batch.Item) WSEvent {
	evtType := WSItemProgress
	switch it.Status {
	case models.BatchProcessing:
		if it.Progress == 0 {
			evtType = WSItemProcessing
		}
	case models.BatchCompleted:
		evtType = WSItemCompleted
	case models.BatchFailed:
		evtType = WSItemFailed
	}
	return WSEvent{Type: evtType, Item: NewBatchItem(it)}
}
