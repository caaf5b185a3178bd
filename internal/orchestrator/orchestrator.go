package orchestrator

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog/log"

    "github.com/local/margincheck/internal/analysis"
    "github.com/local/margincheck/internal/export"
    "github.com/local/margincheck/internal/pdfdoc"
    "github.com/local/margincheck/internal/queue"
    "github.com/local/margincheck/internal/statuscheck"
    "github.com/local/margincheck/internal/store"
)

type Queue interface {
    Enqueue(ctx context.Context, job queue.Job) error
    CancelJob(ctx context.Context, jobID string) error
}

type StatusStore interface {
    Set(ctx context.Context, jobID string, st store.Status) error
    Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

type ReportStore interface {
    GetReport(ctx context.Context, jobID, format string) ([]byte, bool, error)
    LookupFingerprint(ctx context.Context, fp string) (string, bool, error)
}

// SettingsHolder owns the process-wide settings new jobs start from.
type SettingsHolder interface {
    Settings() analysis.Settings
    SetSettings(s analysis.Settings) error
}

// StatusChecker reports dependency health.
type StatusChecker interface {
    Summary(ctx context.Context) statuscheck.Summary
}

type Dependencies struct {
    Queue    Queue
    Status   StatusStore
    Reports  ReportStore
    Settings SettingsHolder
    Checker  StatusChecker
    Metrics  http.Handler
}

type Options struct {
    UploadDir   string
    MaxUploadMB int
}

type Orchestrator struct {
    deps Dependencies
    opts Options
    now  func() time.Time
}

func New(deps Dependencies, opts Options) *Orchestrator {
    if opts.UploadDir == "" { opts.UploadDir = "uploads" }
    if opts.MaxUploadMB <= 0 { opts.MaxUploadMB = 64 }
    return &Orchestrator{deps: deps, opts: opts, now: time.Now}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request){ w.WriteHeader(http.StatusOK); _,_ = w.Write([]byte("ok")) })
    mux.HandleFunc("/status", o.handleStatus)
    mux.HandleFunc("/settings", o.handleSettings)
    mux.HandleFunc("/analyze", o.handleAnalyze)
    mux.HandleFunc("/progress/", o.handleProgress)
    mux.HandleFunc("/report/", o.handleReport)
    mux.HandleFunc("/cancel", o.handleCancelJob)
    if o.deps.Metrics != nil { mux.Handle("/metrics", o.deps.Metrics) }
}

type analyzeResp struct {
    Status   string            `json:"status"`
    JobID    string            `json:"job_id"`
    Message  string            `json:"message"`
    Cached   bool              `json:"cached,omitempty"`
    Settings analysis.Settings `json:"settings"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    _ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
    writeJSON(w, code, map[string]any{"success": false, "error": msg})
}

// statusForError maps analysis error kinds to HTTP codes.
func statusForError(err error) int {
    switch analysis.KindOf(err) {
    case analysis.InvalidInput:
        return http.StatusUnprocessableEntity
    case analysis.Misconfiguration:
        return http.StatusBadRequest
    }
    return http.StatusInternalServerError
}

func (o *Orchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
    if o.deps.Checker == nil { writeError(w, http.StatusServiceUnavailable, "status checks unavailable"); return }
    sum := o.deps.Checker.Summary(r.Context())
    code := http.StatusOK
    if !sum.Healthy() { code = http.StatusServiceUnavailable }
    writeJSON(w, code, sum)
}

type settingsReq struct {
    BleedSize       *float64 `json:"bleedSize"`
    MarginThreshold *float64 `json:"marginThreshold"`
}

func (o *Orchestrator) handleSettings(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodGet:
        writeJSON(w, http.StatusOK, o.deps.Settings.Settings())
    case http.MethodPut, http.MethodPost:
        var req settingsReq
        if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
            writeError(w, http.StatusBadRequest, "invalid json"); return
        }
        s := o.deps.Settings.Settings()
        if req.BleedSize != nil { s.BleedSize = *req.BleedSize }
        if req.MarginThreshold != nil { s.MarginThreshold = *req.MarginThreshold }
        if err := o.deps.Settings.SetSettings(s); err != nil {
            writeError(w, statusForError(err), err.Error()); return
        }
        log.Info().Float64("bleed_mm", s.BleedSize).Float64("threshold_mm", s.MarginThreshold).Msg("settings updated")
        writeJSON(w, http.StatusOK, s)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// settingsFor applies optional per-request overrides on top of the
// process-wide settings. The result is the snapshot the job runs with.
func (o *Orchestrator) settingsFor(bleed, threshold string) (analysis.Settings, error) {
    s := o.deps.Settings.Settings()
    if bleed != "" {
        v, err := analysis.ParseMillimeters(bleed)
        if err != nil { return s, err }
        s.BleedSize = v
    }
    if threshold != "" {
        v, err := analysis.ParseMillimeters(threshold)
        if err != nil { return s, err }
        s.MarginThreshold = v
    }
    return s, s.Validate()
}

type sourceReq struct {
    Source          string `json:"source"`
    BleedSize       string `json:"bleedSize"`
    MarginThreshold string `json:"marginThreshold"`
}

// handleAnalyze accepts either a multipart upload (field "file") or a JSON
// body {"source": "s3://..."} referencing a document elsewhere.
func (o *Orchestrator) handleAnalyze(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
        o.analyzeSource(w, r)
        return
    }
    o.analyzeUpload(w, r)
}

func (o *Orchestrator) analyzeSource(w http.ResponseWriter, r *http.Request) {
    var req sourceReq
    if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
        writeError(w, http.StatusBadRequest, "invalid json"); return
    }
    if req.Source == "" { writeError(w, http.StatusBadRequest, "missing source"); return }
    if !remoteSource(req.Source) {
        writeError(w, http.StatusBadRequest, "source must be an s3:// or http(s):// URL"); return
    }
    s, err := o.settingsFor(req.BleedSize, req.MarginThreshold)
    if err != nil { writeError(w, statusForError(err), err.Error()); return }

    job := queue.Job{JobID: uuid.NewString(), Source: req.Source, Filename: sourceName(req.Source), Settings: s}
    o.enqueue(w, r, job, "api")
}

func (o *Orchestrator) analyzeUpload(w http.ResponseWriter, r *http.Request) {
    limit := int64(o.opts.MaxUploadMB) << 20
    r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
    if err := r.ParseMultipartForm(32 << 20); err != nil {
        writeError(w, http.StatusBadRequest, "invalid multipart form"); return
    }
    file, hdr, err := r.FormFile("file")
    if err != nil { writeError(w, http.StatusBadRequest, "missing file"); return }
    defer file.Close()

    data, err := io.ReadAll(io.LimitReader(file, limit+1))
    if err != nil { writeError(w, http.StatusBadRequest, "read failed"); return }
    if int64(len(data)) > limit {
        writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", o.opts.MaxUploadMB)); return
    }
    if mt, ok := pdfdoc.Sniff(data); !ok {
        writeError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("expected a PDF, got %s", mt)); return
    }

    s, err := o.settingsFor(r.FormValue("bleedSize"), r.FormValue("marginThreshold"))
    if err != nil { writeError(w, statusForError(err), err.Error()); return }

    fp := store.Fingerprint(data, s)
    if o.deps.Reports != nil {
        if prev, ok, err := o.deps.Reports.LookupFingerprint(r.Context(), fp); err == nil && ok {
            if _, found, _ := o.deps.Reports.GetReport(r.Context(), prev, string(export.FormatJSON)); found {
                log.Info().Str("job_id", prev).Str("fingerprint", fp[:12]).Msg("reusing cached report")
                writeJSON(w, http.StatusOK, analyzeResp{Status: "ok", JobID: prev, Message: "Report already available", Cached: true, Settings: s})
                return
            }
        }
    }

    jobID := uuid.NewString()
    name := hdr.Filename
    if name == "" { name = "upload.pdf" }
    localPath, err := SaveUpload(o.opts.UploadDir, jobID, name, data)
    if err != nil {
        log.Error().Err(err).Msg("cannot save upload")
        writeError(w, http.StatusInternalServerError, "cannot save upload"); return
    }

    job := queue.Job{JobID: jobID, Source: "file://" + localPath, Filename: name, Settings: s, Fingerprint: fp}
    o.enqueue(w, r, job, "upload")
}

func (o *Orchestrator) enqueue(w http.ResponseWriter, r *http.Request, job queue.Job, origin string) {
    start := o.now()
    job.EnqueuedAt = start.UTC()
    _ = o.deps.Status.Set(r.Context(), job.JobID, store.Status{Status: store.StateQueued, Progress: 0, Message: "queued",
        Start: &start, Metadata: map[string]any{"source": origin, "filename": job.Filename, "settings": job.Settings}})
    if err := o.deps.Queue.Enqueue(r.Context(), job); err != nil {
        log.Error().Err(err).Str("job_id", job.JobID).Msg("enqueue failed")
        writeError(w, http.StatusServiceUnavailable, "queue unavailable")
        return
    }
    log.Info().Str("job_id", job.JobID).Str("source", job.Source).Str("origin", origin).
        Float64("bleed_mm", job.Settings.BleedSize).Float64("threshold_mm", job.Settings.MarginThreshold).Msg("job created")
    writeJSON(w, http.StatusCreated, analyzeResp{Status: "ok", JobID: job.JobID, Message: "Analysis job created", Settings: job.Settings})
}

// remoteSource reports whether ref may be fetched on behalf of an API caller.
// Local paths are only ever built for our own saved uploads.
func remoteSource(ref string) bool {
    return strings.HasPrefix(ref, "s3://") || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func sourceName(ref string) string {
    if i := strings.IndexAny(ref, "?#"); i >= 0 { ref = ref[:i] }
    if i := strings.LastIndex(ref, "/"); i >= 0 { return ref[i+1:] }
    return ref
}

func (o *Orchestrator) handleProgress(w http.ResponseWriter, r *http.Request) {
    id := strings.TrimPrefix(r.URL.Path, "/progress/")
    st, ok, err := o.deps.Status.Get(r.Context(), id)
    if err != nil { writeError(w, http.StatusInternalServerError, "status unavailable"); return }
    if !ok { writeError(w, http.StatusNotFound, "not found"); return }
    writeJSON(w, http.StatusOK, map[string]any{
        "success":    st.Status == store.StateSuccess,
        "job_id":     id,
        "status":     st.Status,
        "progress":   st.Progress,
        "message":    st.Message,
        "pages":      st.Pages,
        "error_kind": st.ErrorKind,
        "start_time": st.Start,
        "end_time":   st.End,
        "metadata":   st.Metadata,
    })
}

// handleReport serves /report/{id}.json and /report/{id}.csv.
func (o *Orchestrator) handleReport(w http.ResponseWriter, r *http.Request) {
    name := strings.TrimPrefix(r.URL.Path, "/report/")
    dot := strings.LastIndex(name, ".")
    if dot <= 0 { writeError(w, http.StatusNotFound, "not found"); return }
    id := name[:dot]
    f, err := export.ParseFormat(name[dot+1:])
    if err != nil { writeError(w, http.StatusNotFound, err.Error()); return }

    b, ok, err := o.deps.Reports.GetReport(r.Context(), id, string(f))
    if err != nil { writeError(w, http.StatusInternalServerError, "report store unavailable"); return }
    if !ok {
        st, found, _ := o.deps.Status.Get(r.Context(), id)
        switch {
        case !found:
            writeError(w, http.StatusNotFound, "not found")
        case st.Status == store.StateFailed:
            writeError(w, http.StatusConflict, st.Message)
        case !st.Terminal():
            writeJSON(w, http.StatusAccepted, map[string]any{"success": false, "status": st.Status, "progress": st.Progress})
        default:
            writeError(w, http.StatusNotFound, "report expired")
        }
        return
    }
    w.Header().Set("Content-Type", f.ContentType())
    w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", f.Filename()))
    _, _ = w.Write(b)
}

type cancelReq struct {
    JobID  string `json:"job_id"`
    Reason string `json:"reason,omitempty"`
}

// handleCancelJob marks a job cancelled. A run that already started is not
// interrupted; its worker still finishes it.
func (o *Orchestrator) handleCancelJob(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    var req cancelReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid json"); return }
    if req.JobID == "" { writeError(w, http.StatusBadRequest, "missing job_id"); return }

    st, ok, err := o.deps.Status.Get(r.Context(), req.JobID)
    if err != nil { writeError(w, http.StatusInternalServerError, "status unavailable"); return }
    if !ok { writeError(w, http.StatusNotFound, "not found"); return }
    if st.Status != store.StateQueued {
        writeError(w, http.StatusConflict, fmt.Sprintf("job is %s", st.Status)); return
    }
    if err := o.deps.Queue.CancelJob(r.Context(), req.JobID); err != nil {
        writeError(w, http.StatusInternalServerError, "cancel failed"); return
    }
    st.Status = store.StateCancelled
    st.Progress = 0
    if req.Reason != "" { st.Message = fmt.Sprintf("Cancelled: %s", req.Reason) } else { st.Message = "Cancelled" }
    now := o.now(); st.End = &now
    _ = o.deps.Status.Set(r.Context(), req.JobID, st)
    writeJSON(w, http.StatusOK, map[string]any{"success": true, "job_id": req.JobID, "status": store.StateCancelled})
}
