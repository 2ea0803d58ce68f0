package batch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/aedes/internal/detector"
	"github.com/your-org/aedes/internal/models"
)

type outcome struct {
	result *models.DetectionResult
	err    error
}

// stubDetector blocks each detect call on a per-file gate so tests control
// exactly when and how every item resolves.
type stubDetector struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	gates       map[string]chan outcome
	onProgress  map[string]func(int)
}

func newStubDetector() *stubDetector {
	return &stubDetector{
		gates:      make(map[string]chan outcome),
		onProgress: make(map[string]func(int)),
	}
}

func (d *stubDetector) gate(name string) chan outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.gates[name]; !ok {
		d.gates[name] = make(chan outcome, 1)
	}
	return d.gates[name]
}

func (d *stubDetector) Detect(ctx context.Context, file detector.File, opts detector.Options) (*models.DetectionResult, error) {
	d.mu.Lock()
	d.inFlight++
	if d.inFlight > d.maxInFlight {
		d.maxInFlight = d.inFlight
	}
	d.onProgress[file.Name] = opts.OnProgress
	d.mu.Unlock()

	var out outcome
	select {
	case out = <-d.gate(file.Name):
	case <-ctx.Done():
		out = outcome{err: ctx.Err()}
	}

	d.mu.Lock()
	d.inFlight--
	d.mu.Unlock()
	return out.result, out.err
}

func (d *stubDetector) release(name string, out outcome) {
	d.gate(name) <- out
}

func (d *stubDetector) progressFunc(name string) func(int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.onProgress[name]
}

func (d *stubDetector) peakConcurrency() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxInFlight
}

type stubPublisher struct {
	mu       sync.Mutex
	analyses []models.Analysis
}

func (p *stubPublisher) PublishAnalysis(_ context.Context, a models.Analysis) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.analyses = append(p.analyses, a)
	return nil
}

func (p *stubPublisher) all() []models.Analysis {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Analysis(nil), p.analyses...)
}

type stubImageStore struct {
	mu   sync.Mutex
	keys []string
}

func (s *stubImageStore) PutObject(_ context.Context, key string, _ []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return nil
}

func files(names ...string) []detector.File {
	out := make([]detector.File, 0, len(names))
	for _, n := range names {
		out = append(out, detector.File{Name: n, ContentType: "image/jpeg", Data: []byte("img-" + n)})
	}
	return out
}

func successResult(detections int) *models.DetectionResult {
	result := &models.DetectionResult{
		RiskAssessment: models.RiskAssessment{
			OverallRiskLevel: models.RiskMedium,
			TotalDetections:  detections,
			RiskScore:        0.4,
		},
	}
	for i := 0; i < detections; i++ {
		result.Detections = append(result.Detections, models.Detection{ClassName: "charco", RiskLevel: models.RiskMedium})
	}
	return result
}

func statusByName(items []Item) map[string]models.BatchStatus {
	out := make(map[string]models.BatchStatus, len(items))
	for _, it := range items {
		out[it.FileName] = it.Status
	}
	return out
}

func waitAll(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))
}

func TestEnqueueAdmitsUpToCeiling(t *testing.T) {
	det := newStubDetector()
	m := NewManager(Config{Detector: det, Ceiling: 2})
	defer m.Close()

	snaps := m.Enqueue(files("a.jpg", "b.jpg", "c.jpg"), detector.Options{})
	require.Len(t, snaps, 3)

	require.Eventually(t, func() bool {
		st := statusByName(m.Items())
		return st["a.jpg"] == models.BatchProcessing &&
			st["b.jpg"] == models.BatchProcessing &&
			st["c.jpg"] == models.BatchPending
	}, 2*time.Second, 10*time.Millisecond)

	// Resolving the first admits the third; the second stays in flight.
	det.release("a.jpg", outcome{result: successResult(1)})
	require.Eventually(t, func() bool {
		st := statusByName(m.Items())
		return st["a.jpg"] == models.BatchCompleted &&
			st["b.jpg"] == models.BatchProcessing &&
			st["c.jpg"] == models.BatchProcessing
	}, 2*time.Second, 10*time.Millisecond)

	det.release("b.jpg", outcome{result: successResult(0)})
	det.release("c.jpg", outcome{result: successResult(2)})
	waitAll(t, m)

	s := m.Summary()
	assert.Equal(t, 3, s.Completed)
	assert.Equal(t, 3, s.Total)
}

func TestCeilingNeverExceeded(t *testing.T) {
	det := newStubDetector()
	m := NewManager(Config{Detector: det, Ceiling: 2})
	defer m.Close()

	names := []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg", "6.jpg"}
	m.Enqueue(files(names...), detector.Options{})

	require.Eventually(t, func() bool {
		return m.Summary().Processing == 2
	}, 2*time.Second, 10*time.Millisecond)

	for _, n := range names {
		det.release(n, outcome{result: successResult(0)})
	}
	waitAll(t, m)

	assert.Equal(t, 2, det.peakConcurrency())
	assert.Equal(t, 6, m.Summary().Completed)
}

func TestItemsKeepSubmissionOrder(t *testing.T) {
	det := newStubDetector()
	m := NewManager(Config{Detector: det, Ceiling: 1})
	defer m.Close()

	m.Enqueue(files("x.jpg", "y.jpg", "z.jpg"), detector.Options{})

	items := m.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "x.jpg", items[0].FileName)
	assert.Equal(t, "y.jpg", items[1].FileName)
	assert.Equal(t, "z.jpg", items[2].FileName)

	for _, n := range []string{"x.jpg", "y.jpg", "z.jpg"} {
		det.release(n, outcome{result: successResult(0)})
	}
	waitAll(t, m)

	items = m.Items()
	assert.Equal(t, "x.jpg", items[0].FileName)
	assert.Equal(t, "z.jpg", items[2].FileName)
}

func TestFailureIsolation(t *testing.T) {
	det := newStubDetector()
	m := NewManager(Config{Detector: det, Ceiling: 3})
	defer m.Close()

	m.Enqueue(files("ok1.jpg", "down.jpg", "ok2.jpg"), detector.Options{})

	require.Eventually(t, func() bool {
		return m.Summary().Processing == 3
	}, 2*time.Second, 10*time.Millisecond)

	det.release("ok1.jpg", outcome{result: successResult(2)})
	det.release("down.jpg", outcome{err: &detector.Error{
		Kind:    detector.KindUnreachable,
		Message: detector.UserMessage(detector.KindUnreachable),
	}})
	det.release("ok2.jpg", outcome{result: successResult(1)})
	waitAll(t, m)

	st := statusByName(m.Items())
	assert.Equal(t, models.BatchCompleted, st["ok1.jpg"])
	assert.Equal(t, models.BatchFailed, st["down.jpg"])
	assert.Equal(t, models.BatchCompleted, st["ok2.jpg"])

	for _, it := range m.Items() {
		if it.FileName == "down.jpg" {
			assert.Equal(t, "Cannot reach the detection service; verify it is running.", it.Error)
			assert.Equal(t, detector.KindUnreachable, it.ErrorKind)
			assert.Nil(t, it.Result)
		}
	}

	s := m.Summary()
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 1, s.Failed)
}

func TestUnclassifiedFailureGetsGenericMessage(t *testing.T) {
	det := newStubDetector()
	m := NewManager(Config{Detector: det, Ceiling: 1})
	defer m.Close()

	m.Enqueue(files("odd.jpg"), detector.Options{})
	det.release("odd.jpg", outcome{err: fmt.Errorf("surprise")})
	waitAll(t, m)

	it := m.Items()[0]
	assert.Equal(t, models.BatchFailed, it.Status)
	assert.Equal(t, "Image analysis failed; please try again.", it.Error)
	assert.Equal(t, detector.KindUnclassified, it.ErrorKind)
}

func TestRemoveRules(t *testing.T) {
	det := newStubDetector()
	m := NewManager(Config{Detector: det, Ceiling: 1})
	defer m.Close()

	snaps := m.Enqueue(files("active.jpg", "queued.jpg"), detector.Options{})
	active, queued := snaps[0].ID, snaps[1].ID

	require.Eventually(t, func() bool {
		return m.Summary().Processing == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, m.Remove(uuid.New()), ErrItemNotFound)
	assert.ErrorIs(t, m.Remove(active), ErrItemProcessing)

	require.NoError(t, m.Remove(queued))
	require.Len(t, m.Items(), 1)

	det.release("active.jpg", outcome{err: &detector.Error{
		Kind:    detector.KindTimeout,
		Message: detector.UserMessage(detector.KindTimeout),
	}})
	waitAll(t, m)

	// Failed items become removable.
	require.NoError(t, m.Remove(active))
	assert.Empty(t, m.Items())
	assert.Equal(t, 0, m.Summary().Total)
}

func TestProgressOnlyWhileProcessing(t *testing.T) {
	det := newStubDetector()
	m := NewManager(Config{Detector: det, Ceiling: 1})
	defer m.Close()

	m.Enqueue(files("up.jpg"), detector.Options{})

	require.Eventually(t, func() bool {
		return det.progressFunc("up.jpg") != nil
	}, 2*time.Second, 10*time.Millisecond)
	report := det.progressFunc("up.jpg")

	report(40)
	assert.Equal(t, 40, m.Items()[0].Progress)

	// Non-increasing updates are dropped.
	report(30)
	assert.Equal(t, 40, m.Items()[0].Progress)

	report(85)
	assert.Equal(t, 85, m.Items()[0].Progress)

	det.release("up.jpg", outcome{result: successResult(0)})
	waitAll(t, m)

	it := m.Items()[0]
	assert.Equal(t, models.BatchCompleted, it.Status)
	assert.Equal(t, 0, it.Progress)

	// A straggler update after completion changes nothing.
	report(99)
	it = m.Items()[0]
	assert.Equal(t, models.BatchCompleted, it.Status)
	assert.Equal(t, 0, it.Progress)
}

func TestNotifySeesLifecycle(t *testing.T) {
	det := newStubDetector()

	var mu sync.Mutex
	var statuses []models.BatchStatus
	m := NewManager(Config{
		Detector: det,
		Ceiling:  1,
		Notify: func(it Item) {
			mu.Lock()
			statuses = append(statuses, it.Status)
			mu.Unlock()
		},
	})
	defer m.Close()

	m.Enqueue(files("n.jpg"), detector.Options{})
	det.release("n.jpg", outcome{result: successResult(0)})
	waitAll(t, m)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, models.BatchProcessing, statuses[0])
	assert.Equal(t, models.BatchCompleted, statuses[len(statuses)-1])
}

func TestPublisherReceivesTerminalAnalyses(t *testing.T) {
	det := newStubDetector()
	pub := &stubPublisher{}
	store := &stubImageStore{}
	m := NewManager(Config{Detector: det, Ceiling: 2, Publisher: pub, Images: store})
	defer m.Close()

	snaps := m.Enqueue(files("good.jpg", "bad.jpg"), detector.Options{})
	det.release("good.jpg", outcome{result: successResult(3)})
	det.release("bad.jpg", outcome{err: &detector.Error{
		Kind:    detector.KindServerError,
		Message: detector.UserMessage(detector.KindServerError),
	}})
	waitAll(t, m)

	require.Eventually(t, func() bool {
		return len(pub.all()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	byName := make(map[string]models.Analysis)
	for _, a := range pub.all() {
		byName[a.FileName] = a
	}

	good := byName["good.jpg"]
	assert.Equal(t, snaps[0].ID, good.ID)
	assert.Equal(t, models.BatchCompleted, good.Status)
	require.NotNil(t, good.Result)
	assert.Equal(t, 3, good.Result.RiskAssessment.TotalDetections)
	assert.Equal(t, fmt.Sprintf("images/%s.jpg", good.ID), good.ImageKey)

	bad := byName["bad.jpg"]
	assert.Equal(t, models.BatchFailed, bad.Status)
	assert.Nil(t, bad.Result)
	assert.Equal(t, "Internal error in the detection service.", bad.ErrorMessage)
	assert.Empty(t, bad.ImageKey)

	// Only the completed image was stored.
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.keys, 1)
	assert.Equal(t, fmt.Sprintf("images/%s.jpg", good.ID), store.keys[0])
}

func TestCloseCancelsInFlight(t *testing.T) {
	det := newStubDetector()
	m := NewManager(Config{Detector: det, Ceiling: 1})

	m.Enqueue(files("hang.jpg"), detector.Options{})
	require.Eventually(t, func() bool {
		return m.Summary().Processing == 1
	}, 2*time.Second, 10*time.Millisecond)

	m.Close()

	require.Eventually(t, func() bool {
		return m.Summary().Failed == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.BatchFailed, m.Items()[0].Status)
}
