package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/aedes/internal/detector"
	"github.com/your-org/aedes/internal/models"
	"github.com/your-org/aedes/internal/observability"
	"github.com/your-org/aedes/internal/risk"
)

// DefaultCeiling bounds how many detect calls run at once. Uncontrolled
// fan-out of multi-megabyte uploads would saturate bandwidth and the remote
// service.
const DefaultCeiling = 3

var (
	ErrItemNotFound   = errors.New("batch item not found")
	ErrItemProcessing = errors.New("batch item is processing and cannot be removed")
)

// Detector is the detect entry point the manager dispatches items to.
// *detector.Client satisfies it.
type Detector interface {
	Detect(ctx context.Context, file detector.File, opts detector.Options) (*models.DetectionResult, error)
}

// Publisher receives finished analyses, completed or failed.
type Publisher interface {
	PublishAnalysis(ctx context.Context, analysis models.Analysis) error
}

// ImageStore keeps the original image bytes of completed analyses.
type ImageStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// Config wires a Manager. Publisher, Images and Notify are optional.
type Config struct {
	Detector Detector
	Ceiling  int
	// Publisher receives a models.Analysis for every terminal item.
	Publisher Publisher
	// Images receives the original bytes of successfully analyzed images.
	Images ImageStore
	// Notify is called with an item snapshot after every status or progress
	// change. Called outside the manager lock.
	Notify func(Item)
}

// Manager owns the in-memory batch item collection and drives each item
// through pending -> processing -> completed|failed. It is the single writer:
// all mutations go through its methods, and asynchronous completions look
// items up by id so a late resolution for a removed item is dropped, never an
// error.
type Manager struct {
	det       Detector
	publisher Publisher
	images    ImageStore
	notify    func(Item)
	ceiling   int

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	items      map[uuid.UUID]*item
	order      []uuid.UUID
	processing int
}

func NewManager(cfg Config) *Manager {
	ceiling := cfg.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		det:       cfg.Detector,
		publisher: cfg.Publisher,
		images:    cfg.Images,
		notify:    cfg.Notify,
		ceiling:   ceiling,
		ctx:       ctx,
		cancel:    cancel,
		items:     make(map[uuid.UUID]*item),
	}
}

// Enqueue appends one item per file in submission order, all pending with
// progress 0, then admits as many as the concurrency ceiling allows.
func (m *Manager) Enqueue(files []detector.File, opts detector.Options) []Item {
	now := time.Now()

	m.mu.Lock()
	snapshots := make([]Item, 0, len(files))
	for _, f := range files {
		it := &item{
			id:         uuid.New(),
			file:       f,
			opts:       opts,
			status:     models.BatchPending,
			enqueuedAt: now,
			updatedAt:  now,
		}
		m.items[it.id] = it
		m.order = append(m.order, it.id)
		snapshots = append(snapshots, it.snapshot())
	}
	admitted := m.dispatchLocked()
	m.updateDepthLocked()
	m.mu.Unlock()

	for _, snap := range admitted {
		m.notifyItem(snap)
	}
	slog.Info("batch enqueue", "files", len(files), "queued", len(snapshots))
	return snapshots
}

// dispatchLocked admits pending items to processing, FIFO, until the ceiling
// is reached. Caller holds the lock; returned snapshots are for notification
// after it is released.
func (m *Manager) dispatchLocked() []Item {
	var admitted []Item
	for _, id := range m.order {
		if m.processing >= m.ceiling {
			break
		}
		it, ok := m.items[id]
		if !ok || it.status != models.BatchPending {
			continue
		}

		it.status = models.BatchProcessing
		it.progress = 0
		it.updatedAt = time.Now()
		m.processing++

		admitted = append(admitted, it.snapshot())
		go m.process(it.id, it.file, it.opts)
	}
	return admitted
}

// process runs one detect call. Its outcome is independent of every other
// item's; a failure only marks this item failed.
func (m *Manager) process(id uuid.UUID, file detector.File, opts detector.Options) {
	opts.OnProgress = func(percent int) {
		m.setProgress(id, percent)
	}

	result, err := m.det.Detect(m.ctx, file, opts)
	m.finish(id, file, result, err)
}

// setProgress records an upload progress update. Updates for removed items or
// items no longer processing are silently dropped.
func (m *Manager) setProgress(id uuid.UUID, percent int) {
	m.mu.Lock()
	it, ok := m.items[id]
	if !ok || it.status != models.BatchProcessing || percent <= it.progress {
		m.mu.Unlock()
		return
	}
	it.progress = percent
	it.updatedAt = time.Now()
	snap := it.snapshot()
	m.mu.Unlock()

	m.notifyItem(snap)
}

// finish transitions an item to its terminal state and admits the next
// pending item. A missing id means the item was removed while the request was
// in flight; the resolution is dropped.
func (m *Manager) finish(id uuid.UUID, file detector.File, result *models.DetectionResult, err error) {
	m.mu.Lock()
	m.processing--

	it, ok := m.items[id]
	if !ok {
		admitted := m.dispatchLocked()
		m.updateDepthLocked()
		m.mu.Unlock()
		for _, s := range admitted {
			m.notifyItem(s)
		}
		slog.Debug("dropping resolution for removed item", "item_id", id)
		return
	}

	it.updatedAt = time.Now()
	it.progress = 0
	if err != nil {
		de := detector.AsError(err)
		it.status = models.BatchFailed
		it.errorMsg = de.Message
		it.errorKind = de.Kind
		observability.ImagesProcessed.WithLabelValues("failed").Inc()
		slog.Warn("batch item failed", "item_id", id, "file", file.Name, "kind", de.Kind, "error", err)
	} else {
		it.status = models.BatchCompleted
		it.result = result
		observability.ImagesProcessed.WithLabelValues("completed").Inc()
		observability.BreedingSitesDetected.Add(float64(len(result.Detections)))
		slog.Info("batch item completed",
			"item_id", id,
			"file", file.Name,
			"detections", len(result.Detections),
			"risk_level", result.RiskAssessment.OverallRiskLevel,
		)
	}
	snap := it.snapshot()

	admitted := m.dispatchLocked()
	m.updateDepthLocked()
	m.mu.Unlock()

	m.publishAnalysis(snap, file)
	m.notifyItem(snap)
	for _, s := range admitted {
		m.notifyItem(s)
	}
}

// publishAnalysis stores the image and hands the finished analysis to the
// publisher. Both are best-effort: the batch item itself is already terminal.
func (m *Manager) publishAnalysis(snap Item, file detector.File) {
	ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
	defer cancel()

	analysis := models.Analysis{
		ID:           snap.ID,
		FileName:     snap.FileName,
		FileSize:     snap.FileSize,
		ContentType:  snap.ContentType,
		Status:       snap.Status,
		Result:       snap.Result,
		ErrorMessage: snap.Error,
		CreatedAt:    snap.UpdatedAt,
	}

	if snap.Status == models.BatchCompleted && m.images != nil {
		key := fmt.Sprintf("images/%s%s", snap.ID, path.Ext(file.Name))
		if err := m.images.PutObject(ctx, key, file.Data, file.ContentType); err != nil {
			slog.Warn("store analysis image", "item_id", snap.ID, "error", err)
		} else {
			analysis.ImageKey = key
		}
	}

	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishAnalysis(ctx, analysis); err != nil {
		slog.Warn("publish analysis", "item_id", snap.ID, "error", err)
	}
}

// Remove deletes an item along with its file bytes. Items actively processing
// are refused so an in-flight request is never orphaned mid-write; every other
// state is removable.
func (m *Manager) Remove(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return ErrItemNotFound
	}
	if it.status == models.BatchProcessing {
		return ErrItemProcessing
	}

	delete(m.items, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.updateDepthLocked()

	slog.Info("batch item removed", "item_id", id, "status", it.status)
	return nil
}

// Items returns snapshots of all items in submission order.
func (m *Manager) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Item, 0, len(m.order))
	for _, id := range m.order {
		if it, ok := m.items[id]; ok {
			out = append(out, it.snapshot())
		}
	}
	return out
}

// Summary recomputes status counts from the current collection.
func (m *Manager) Summary() risk.Summary {
	m.mu.Lock()
	statuses := make([]models.BatchStatus, 0, len(m.order))
	for _, id := range m.order {
		if it, ok := m.items[id]; ok {
			statuses = append(statuses, it.status)
		}
	}
	m.mu.Unlock()

	return risk.Summarize(statuses)
}

// Wait blocks until no items are pending or processing, or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		s := m.Summary()
		if s.Pending == 0 && s.Processing == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close cancels the manager's in-flight detect calls. Their late resolutions
// are dropped through the usual missing-or-terminal guards.
func (m *Manager) Close() {
	m.cancel()
}

func (m *Manager) updateDepthLocked() {
	depth := 0
	for _, it := range m.items {
		if it.status == models.BatchPending || it.status == models.BatchProcessing {
			depth++
		}
	}
	observability.BatchQueueDepth.Set(float64(depth))
}

func (m *Manager) notifyItem(snap Item) {
	if m.notify != nil {
		m.notify(snap)
	}
}
