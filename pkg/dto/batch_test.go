package dto

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/aedes/internal/batch"
	"github.com/your-org/aedes/internal/models"
)

func snapshot(status models.BatchStatus, progress int) batch.Item {
	return batch.Item{
		ID:          uuid.New(),
		FileName:    "patio.jpg",
		FileSize:    2048,
		ContentType: "image/jpeg",
		Status:      status,
		Progress:    progress,
		EnqueuedAt:  time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 3, 10, 12, 0, 5, 0, time.UTC),
	}
}

func TestNewBatchItemProgressVisibility(t *testing.T) {
	// Progress is rendered only while processing.
	r := NewBatchItem(snapshot(models.BatchProcessing, 42))
	require.NotNil(t, r.Progress)
	assert.Equal(t, 42, *r.Progress)

	for _, status := range []models.BatchStatus{models.BatchPending, models.BatchCompleted, models.BatchFailed} {
		r := NewBatchItem(snapshot(status, 42))
		assert.Nil(t, r.Progress, "status %s", status)
	}
}

func TestNewBatchItemFields(t *testing.T) {
	it := snapshot(models.BatchFailed, 0)
	it.Error = "File is too large."
	it.ErrorKind = "payload_too_large"

	r := NewBatchItem(it)

	assert.Equal(t, it.ID, r.ID)
	assert.Equal(t, "patio.jpg", r.FileName)
	assert.Equal(t, "failed", r.Status)
	assert.Equal(t, "File is too large.", r.Error)
	assert.Equal(t, "payload_too_large", r.ErrorKind)
	assert.Equal(t, "2026-03-10T12:00:00Z", r.EnqueuedAt)
	assert.Equal(t, "2026-03-10T12:00:05Z", r.UpdatedAt)
}

func TestWSEventForItem(t *testing.T) {
	tests := []struct {
		status   models.BatchStatus
		progress int
		want     string
	}{
		{models.BatchProcessing, 0, WSItemProcessing},
		{models.BatchProcessing, 55, WSItemProgress},
		{models.BatchCompleted, 0, WSItemCompleted},
		{models.BatchFailed, 0, WSItemFailed},
	}

	for _, tt := range tests {
		evt := WSEventForItem(snapshot(tt.status, tt.progress))
		assert.Equal(t, tt.want, evt.Type, "status %s progress %d", tt.status, tt.progress)
		assert.Equal(t, "patio.jpg", evt.Item.FileName)
	}
}
