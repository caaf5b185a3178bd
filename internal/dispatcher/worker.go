package dispatcher

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"

    "github.com/local/margincheck/internal/analysis"
    "github.com/local/margincheck/internal/export"
    "github.com/local/margincheck/internal/inspector"
    "github.com/local/margincheck/internal/logger"
    "github.com/local/margincheck/internal/metrics"
    "github.com/local/margincheck/internal/queue"
    "github.com/local/margincheck/internal/store"
)

type Queue interface {
    Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, *queue.Job, error)
    Ack(ctx context.Context, msgID string) error
    IsCancelled(ctx context.Context, jobID string) (bool, error)
    EnqueueDelayed(ctx context.Context, job queue.Job, executeAt time.Time) error
    AddDLQ(ctx context.Context, payload []byte, reason string) error
}

// StatusStore records job progress.
type StatusStore interface {
    Set(ctx context.Context, jobID string, st store.Status) error
}

// ReportStore keeps finished exports.
type ReportStore interface {
    SaveReport(ctx context.Context, jobID, format string, data []byte) error
    RememberFingerprint(ctx context.Context, fp, jobID string) error
}

// Fetcher resolves a job source to document bytes.
type Fetcher interface {
    Fetch(ctx context.Context, ref string) ([]byte, error)
}

// SinkFactory returns the export sink for a job, or nil for none.
type SinkFactory func(jobID string) export.Sink

type Config struct {
    Concurrency int
    MaxAttempts int
    RetryDelay  time.Duration
    IdleBackoff time.Duration
    JobTimeout  time.Duration
    // SinkName labels export metrics ("local", "s3", ...).
    SinkName string
}

// Deps are the collaborators a Worker needs. Sink may be nil.
type Deps struct {
    Queue   Queue
    Status  StatusStore
    Reports ReportStore
    Fetch   Fetcher
    Load    inspector.Loader
    Sink    SinkFactory
}

type Worker struct {
    cfg  Config
    deps Deps
    stop chan struct{}
    wg   sync.WaitGroup
    now  func() time.Time
}

func New(cfg Config, deps Deps) *Worker {
    if cfg.Concurrency <= 0 { cfg.Concurrency = 2 }
    if cfg.MaxAttempts <= 0 { cfg.MaxAttempts = 1 }
    if cfg.RetryDelay <= 0 { cfg.RetryDelay = 5 * time.Second }
    if cfg.IdleBackoff <= 0 { cfg.IdleBackoff = 500 * time.Millisecond }
    if cfg.JobTimeout <= 0 { cfg.JobTimeout = 10 * time.Minute }
    return &Worker{cfg: cfg, deps: deps, stop: make(chan struct{}), now: time.Now}
}

func (w *Worker) Start() {
    for i := 0; i < w.cfg.Concurrency; i++ {
        w.wg.Add(1)
        go w.loop(i)
    }
}

// Stop signals all loops and waits for in-flight jobs to finish or ctx to expire.
func (w *Worker) Stop(ctx context.Context) error {
    close(w.stop)
    done := make(chan struct{})
    go func() { w.wg.Wait(); close(done) }()
    select {
    case <-done:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

func (w *Worker) loop(id int) {
    defer w.wg.Done()
    consumer := fmt.Sprintf("margin-worker-%d", id)
    log.Info().Int("worker", id).Msg("dispatcher worker started")
    for {
        select {
        case <-w.stop:
            log.Info().Int("worker", id).Msg("dispatcher worker stopped")
            return
        default:
        }

        msgID, job, err := w.deps.Queue.Dequeue(context.Background(), consumer, 2*time.Second)
        if err != nil {
            log.Error().Err(err).Msg("queue dequeue error")
            time.Sleep(w.cfg.IdleBackoff)
            continue
        }
        if job == nil { continue }

        w.Process(context.Background(), *job)
        if err := w.deps.Queue.Ack(context.Background(), msgID); err != nil {
            log.Warn().Err(err).Str("job_id", job.JobID).Msg("ack failed")
        }
    }
}

// Process runs one job to a terminal state or schedules its retry.
func (w *Worker) Process(parent context.Context, job queue.Job) {
    jl := logger.Job(job.JobID)
    if cancelled, _ := w.deps.Queue.IsCancelled(parent, job.JobID); cancelled {
        jl.Warn().Msg("job cancelled before processing; skipping")
        w.setStatus(parent, jl, job.JobID, store.Status{Status: store.StateCancelled, Message: "cancelled"})
        return
    }

    ctx, cancel := context.WithTimeout(parent, w.cfg.JobTimeout)
    defer cancel()

    start := w.now()
    w.setStatus(ctx, jl, job.JobID, store.Status{
        Status: store.StateProcessing, Progress: 5, Message: "fetching document", Start: &start,
    })

    rep, err := w.analyze(ctx, jl, job)
    took := w.now().Sub(start)
    if err != nil {
        metrics.ObserveRun(0, took, err)
        w.fail(ctx, jl, job, start, err)
        return
    }
    metrics.ObserveRun(len(rep.Pages), took, nil)

    sum := analysis.Summarize(rep)
    metrics.ObserveUniformity(sum.Uniformity.All)
    locations, err := w.publish(ctx, jl, job, rep)
    if err != nil {
        w.fail(ctx, jl, job, start, err)
        return
    }

    end := w.now()
    w.setStatus(ctx, jl, job.JobID, store.Status{
        Status:   store.StateSuccess,
        Progress: 100,
        Message:  sum.Verdict(rep.Settings.MarginThreshold),
        Pages:    len(rep.Pages),
        Start:    &start,
        End:      &end,
        Metadata: map[string]interface{}{
            "filename":          job.Filename,
            "uniform":           sum.Uniformity.All,
            "inconsistentEdges": sum.InconsistentEdges,
            "bleedPages":        sum.BleedPages,
            "blankPages":        sum.BlankPages,
            "exports":           locations,
        },
    })
    jl.Info().Int("pages", len(rep.Pages)).Dur("took", took).Bool("uniform", sum.Uniformity.All).Msg("job completed")
}

func (w *Worker) analyze(ctx context.Context, jl *zerolog.Logger, job queue.Job) (*analysis.Report, error) {
    data, err := w.deps.Fetch.Fetch(ctx, job.Source)
    if err != nil {
        return nil, fmt.Errorf("fetch %s: %w", job.Source, err)
    }
    doc, err := w.deps.Load(data)
    if err != nil {
        return nil, err
    }
    defer doc.Close()

    jl.Debug().Int("pages", doc.NumPages()).Int("attempt", job.Attempt).Msg("document loaded")
    src := &progressSource{Source: doc, report: func(done, total int) {
        w.setStatus(ctx, jl, job.JobID, store.Status{
            Status:   store.StateProcessing,
            Progress: 10 + 80*done/total,
            Message:  fmt.Sprintf("analyzing page %d of %d", done, total),
            Pages:    total,
        })
    }}
    return analysis.Analyze(src, job.Settings)
}

// publish renders both exports, stores them and hands them to the sink.
// Sink failures are logged and counted; the stored report stays authoritative.
func (w *Worker) publish(ctx context.Context, jl *zerolog.Logger, job queue.Job, rep *analysis.Report) (map[string]string, error) {
    generated := w.now()
    var sink export.Sink
    if w.deps.Sink != nil { sink = w.deps.Sink(job.JobID) }

    locations := map[string]string{}
    for _, f := range []export.Format{export.FormatJSON, export.FormatCSV} {
        data, err := export.Render(rep, f, generated)
        if err != nil {
            return nil, fmt.Errorf("render %s: %w", f, err)
        }
        if err := w.deps.Reports.SaveReport(ctx, job.JobID, string(f), data); err != nil {
            return nil, fmt.Errorf("store %s report: %w", f, err)
        }
        if sink == nil { continue }
        loc, err := sink.Deliver(ctx, data, f.Filename(), f)
        metrics.IncExport(string(f), w.cfg.SinkName, err)
        if err != nil {
            jl.Warn().Err(err).Str("format", string(f)).Str("sink", w.cfg.SinkName).Msg("export delivery failed")
            continue
        }
        locations[string(f)] = loc
    }
    if err := w.deps.Reports.RememberFingerprint(ctx, job.Fingerprint, job.JobID); err != nil {
        jl.Warn().Err(err).Msg("failed to remember fingerprint")
    }
    return locations, nil
}

func (w *Worker) fail(ctx context.Context, jl *zerolog.Logger, job queue.Job, start time.Time, err error) {
    // the job context may already be done; terminal bookkeeping uses its own
    bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
    defer cancel()

    if isTransientError(err) && job.Attempt+1 < w.cfg.MaxAttempts {
        next := job
        next.Attempt++
        delay := retryDelay(w.cfg.RetryDelay, 5*time.Minute, job.Attempt)
        qerr := w.deps.Queue.EnqueueDelayed(bctx, next, w.now().Add(delay))
        if qerr == nil {
            jl.Warn().Err(err).Int("attempt", next.Attempt).Dur("delay", delay).Msg("job failed; retry scheduled")
            w.setStatus(bctx, jl, job.JobID, store.Status{
                Status: store.StateQueued, Message: fmt.Sprintf("retrying after error: %v", err), Start: &start,
            })
            return
        }
        jl.Error().Err(qerr).Msg("failed to schedule retry")
    }

    kind := errorKind(err)
    jl.Error().Err(err).Str("kind", kind).Int("attempt", job.Attempt).Msg("job failed")
    end := w.now()
    w.setStatus(bctx, jl, job.JobID, store.Status{
        Status: store.StateFailed, Message: err.Error(), ErrorKind: kind, Start: &start, End: &end,
    })
    payload, _ := json.Marshal(job)
    if derr := w.deps.Queue.AddDLQ(bctx, payload, kind+": "+err.Error()); derr != nil {
        jl.Error().Err(derr).Msg("failed to add job to DLQ")
    }
}

func (w *Worker) setStatus(ctx context.Context, jl *zerolog.Logger, jobID string, st store.Status) {
    if err := w.deps.Status.Set(ctx, jobID, st); err != nil {
        jl.Warn().Err(err).Str("status", st.Status).Msg("failed to update job status")
    }
}

// progressSource reports every rendered page to a callback.
type progressSource struct {
    analysis.Source
    done   int
    report func(done, total int)
}

func (p *progressSource) Page(n int) (analysis.PageImage, error) {
    pg, err := p.Source.Page(n)
    if err == nil {
        p.done++
        p.report(p.done, p.Source.NumPages())
    }
    return pg, err
}
