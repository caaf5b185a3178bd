package dispatcher

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/margincheck/internal/analysis"
	"github.com/local/margincheck/internal/export"
	"github.com/local/margincheck/internal/inspector"
	"github.com/local/margincheck/internal/queue"
	"github.com/local/margincheck/internal/store"
)

type fakeQueue struct {
	mu        sync.Mutex
	cancelled map[string]bool
	delayed   []queue.Job
	dlq       []string
}

func (q *fakeQueue) Dequeue(context.Context, string, time.Duration) (string, *queue.Job, error) {
	return "", nil, nil
}
func (q *fakeQueue) Ack(context.Context, string) error { return nil }
func (q *fakeQueue) IsCancelled(_ context.Context, id string) (bool, error) {
	return q.cancelled[id], nil
}
func (q *fakeQueue) EnqueueDelayed(_ context.Context, job queue.Job, _ time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed = append(q.delayed, job)
	return nil
}
func (q *fakeQueue) AddDLQ(_ context.Context, _ []byte, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dlq = append(q.dlq, reason)
	return nil
}

type fakeStatus struct {
	mu      sync.Mutex
	history []store.Status
}

func (s *fakeStatus) Set(_ context.Context, _ string, st store.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, st)
	return nil
}

func (s *fakeStatus) last() store.Status { return s.history[len(s.history)-1] }

type fakeReports struct {
	saved map[string][]byte
	fps   map[string]string
}

func (r *fakeReports) SaveReport(_ context.Context, id, format string, data []byte) error {
	r.saved[id+"."+format] = data
	return nil
}
func (r *fakeReports) RememberFingerprint(_ context.Context, fp, id string) error {
	if fp != "" {
		r.fps[fp] = id
	}
	return nil
}

type fetchFunc func(ctx context.Context, ref string) ([]byte, error)

func (f fetchFunc) Fetch(ctx context.Context, ref string) ([]byte, error) { return f(ctx, ref) }

type memSink struct{ got map[string][]byte }

func (m *memSink) Deliver(_ context.Context, data []byte, name string, _ export.Format) (string, error) {
	m.got[name] = data
	return "mem://" + name, nil
}

// stubDoc serves identical pages with a black box inset by 10 px.
type stubDoc struct {
	pages  int
	failAt int
	closed bool
}

func (d *stubDoc) NumPages() int { return d.pages }
func (d *stubDoc) Page(n int) (analysis.PageImage, error) {
	if n == d.failAt {
		return analysis.PageImage{}, errors.New("cannot render")
	}
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if x >= 10 && x < 90 && y >= 10 && y < 90 {
				c = color.NRGBA{A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return analysis.PageImage{WidthPt: 100, HeightPt: 100, Scale: 1, Raster: img}, nil
}
func (d *stubDoc) Close() error { d.closed = true; return nil }

type fixture struct {
	q       *fakeQueue
	status  *fakeStatus
	reports *fakeReports
	sink    *memSink
	doc     *stubDoc
	fetch   fetchFunc
	loadErr error
}

func newFixture() *fixture {
	return &fixture{
		q:       &fakeQueue{cancelled: map[string]bool{}},
		status:  &fakeStatus{},
		reports: &fakeReports{saved: map[string][]byte{}, fps: map[string]string{}},
		sink:    &memSink{got: map[string][]byte{}},
		doc:     &stubDoc{pages: 3},
		fetch:   func(context.Context, string) ([]byte, error) { return []byte("%PDF-1.4"), nil },
	}
}

func (f *fixture) worker(maxAttempts int) *Worker {
	load := inspector.Loader(func([]byte) (inspector.Document, error) {
		if f.loadErr != nil {
			return nil, f.loadErr
		}
		return f.doc, nil
	})
	return New(Config{MaxAttempts: maxAttempts, RetryDelay: time.Millisecond, SinkName: "mem"}, Deps{
		Queue:   f.q,
		Status:  f.status,
		Reports: f.reports,
		Fetch:   f.fetch,
		Load:    load,
		Sink:    func(string) export.Sink { return f.sink },
	})
}

func job() queue.Job {
	return queue.Job{JobID: "j1", Source: "file:///tmp/in.pdf", Settings: analysis.DefaultSettings(), Fingerprint: "fp1"}
}

func TestProcess_Success(t *testing.T) {
	f := newFixture()
	f.worker(3).Process(context.Background(), job())

	st := f.status.last()
	assert.Equal(t, store.StateSuccess, st.Status)
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, 3, st.Pages)
	assert.Equal(t, "All margins are uniform across all pages (within 5mm threshold)", st.Message)
	assert.Equal(t, true, st.Metadata["uniform"])

	assert.Contains(t, f.reports.saved, "j1.json")
	assert.Contains(t, f.reports.saved, "j1.csv")
	assert.Equal(t, "j1", f.reports.fps["fp1"])
	assert.Contains(t, f.sink.got, "pdf-margin-analysis.json")
	assert.Contains(t, f.sink.got, "pdf-margin-analysis.csv")
	assert.True(t, f.doc.closed)
	assert.Empty(t, f.q.dlq)

	// per-page progress went through the processing state
	var sawPage bool
	for _, s := range f.status.history {
		if s.Status == store.StateProcessing && s.Message == "analyzing page 2 of 3" {
			sawPage = true
			assert.Equal(t, 10+80*2/3, s.Progress)
		}
	}
	assert.True(t, sawPage)
}

func TestProcess_CancelledJobIsSkipped(t *testing.T) {
	f := newFixture()
	f.q.cancelled["j1"] = true
	f.worker(3).Process(context.Background(), job())

	assert.Equal(t, store.StateCancelled, f.status.last().Status)
	assert.Empty(t, f.reports.saved)
}

func TestProcess_RenderFailureIsTerminal(t *testing.T) {
	f := newFixture()
	f.doc.failAt = 2
	f.worker(3).Process(context.Background(), job())

	st := f.status.last()
	assert.Equal(t, store.StateFailed, st.Status)
	assert.Equal(t, string(analysis.RenderFailure), st.ErrorKind)
	assert.Empty(t, f.q.delayed)
	require.Len(t, f.q.dlq, 1)
	assert.Contains(t, f.q.dlq[0], "render_failure")
	assert.Empty(t, f.reports.saved)
}

func TestProcess_InvalidInputIsTerminal(t *testing.T) {
	f := newFixture()
	f.loadErr = analysis.Errorf(analysis.InvalidInput, nil, "expected application/pdf, got text/plain")
	f.worker(3).Process(context.Background(), job())

	assert.Equal(t, string(analysis.InvalidInput), f.status.last().ErrorKind)
	assert.Empty(t, f.q.delayed)
	assert.Len(t, f.q.dlq, 1)
}

func TestProcess_TransientFetchErrorIsRetried(t *testing.T) {
	f := newFixture()
	f.fetch = func(context.Context, string) ([]byte, error) { return nil, errors.New("dial tcp: connection refused") }

	j := job()
	f.worker(2).Process(context.Background(), j)
	require.Len(t, f.q.delayed, 1)
	assert.Equal(t, 1, f.q.delayed[0].Attempt)
	assert.Equal(t, store.StateQueued, f.status.last().Status)
	assert.Empty(t, f.q.dlq)

	// last attempt fails for good
	f.worker(2).Process(context.Background(), f.q.delayed[0])
	assert.Len(t, f.q.delayed, 1)
	assert.Equal(t, store.StateFailed, f.status.last().Status)
	assert.Equal(t, "transient", f.status.last().ErrorKind)
	assert.Len(t, f.q.dlq, 1)
}

func TestClassifier(t *testing.T) {
	assert.True(t, isTransientError(context.DeadlineExceeded))
	assert.True(t, isTransientError(errors.New("http 503")))
	assert.True(t, isTransientError(errors.New("http 429")))
	assert.False(t, isTransientError(errors.New("http 404")))
	assert.False(t, isTransientError(analysis.Errorf(analysis.RenderFailure, errors.New("timeout"), "page 1")))
	assert.False(t, isTransientError(errors.New("open /x.pdf: no such file or directory")))
	assert.False(t, isTransientError(nil))

	assert.Equal(t, "invalid_input", errorKind(analysis.Errorf(analysis.InvalidInput, nil, "x")))
	assert.Equal(t, "fetch_failed", errorKind(errors.New("http 404")))
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, retryDelay(time.Second, time.Minute, 0))
	assert.Equal(t, 4*time.Second, retryDelay(time.Second, time.Minute, 2))
	assert.Equal(t, time.Minute, retryDelay(time.Second, time.Minute, 10))
}
