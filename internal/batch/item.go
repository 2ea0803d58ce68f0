package batch

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/aedes/internal/detector"
	"github.com/your-org/aedes/internal/models"
)

// item is the manager's mutable record for one enqueued image. It lives only
// inside the manager; external consumers see Item snapshots.
type item struct {
	id         uuid.UUID
	file       detector.File
	opts       detector.Options
	status     models.BatchStatus
	progress   int
	errorMsg   string
	errorKind  detector.Kind
	result     *models.DetectionResult
	enqueuedAt time.Time
	updatedAt  time.Time
}

// Item is a read-only snapshot of one batch item. The raw image bytes are
// deliberately excluded; they stay owned by the manager.
type Item struct {
	ID          uuid.UUID
	FileName    string
	FileSize    int64
	ContentType string
	Status      models.BatchStatus
	// Progress is the upload percentage, meaningful only while Status is
	// processing.
	Progress   int
	Error      string
	ErrorKind  detector.Kind
	Result     *models.DetectionResult
	EnqueuedAt time.Time
	UpdatedAt  time.Time
}

func (it *item) snapshot() Item {
	return Item{
		ID:          it.id,
		FileName:    it.file.Name,
		FileSize:    it.file.Size(),
		ContentType: it.file.ContentType,
		Status:      it.status,
		Progress:    it.progress,
		Error:       it.errorMsg,
		ErrorKind:   it.errorKind,
		Result:      it.result,
		EnqueuedAt:  it.enqueuedAt,
		UpdatedAt:   it.updatedAt,
	}
}
