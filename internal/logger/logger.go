package logger

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "sync"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults sized for job logs: one line per page plus a handful per job.
const (
    defaultMaxSizeMB  = 50
    defaultMaxBackups = 5
    defaultMaxAgeDays = 14

    axiomBatch  = 200
    axiomBuffer = 1000
)

// Options defines logger initialization parameters.
type Options struct {
    Service      string
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool

    // Console overrides stdout, mainly for tests and the CLI (stderr).
    Console      io.Writer

    // Axiom
    SendToAxiom   bool
    AxiomAPIKey   string
    AxiomOrgID    string
    AxiomDataset  string
    AxiomFlush    time.Duration
    AxiomMinLevel string
}

var (
    global zerolog.Logger
    ax     *axiomClient
)

func withDefaults(opts Options) Options {
    if opts.Service == "" { opts.Service = "margincheck" }
    if opts.Console == nil { opts.Console = os.Stdout }
    if opts.MaxSizeMB <= 0 { opts.MaxSizeMB = defaultMaxSizeMB }
    if opts.MaxBackups <= 0 { opts.MaxBackups = defaultMaxBackups }
    if opts.MaxAgeDays <= 0 { opts.MaxAgeDays = defaultMaxAgeDays }
    if opts.AxiomDataset == "" { opts.AxiomDataset = "dev_margincheck" }
    if opts.AxiomFlush <= 0 { opts.AxiomFlush = 10 * time.Second }
    return opts
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
    if s == "" { return def }
    lvl, err := zerolog.ParseLevel(s)
    if err != nil || lvl == zerolog.NoLevel { return def }
    return lvl
}

// Init sets up the global logger: file rotation when a file is given, console
// output, and Axiom forwarding of job events when enabled.
func Init(opts Options) error {
    opts = withDefaults(opts)

    var writers []io.Writer
    if opts.File != "" {
        if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
            return fmt.Errorf("create logs dir: %w", err)
        }
        writers = append(writers, &lumberjack.Logger{
            Filename:   opts.File,
            MaxSize:    opts.MaxSizeMB,
            MaxBackups: opts.MaxBackups,
            MaxAge:     opts.MaxAgeDays,
            Compress:   opts.Compress,
        })
    }

    if opts.Pretty {
        writers = append(writers, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.RFC3339})
    } else {
        writers = append(writers, opts.Console)
    }

    if opts.SendToAxiom && opts.AxiomAPIKey != "" {
        client, err := newAxiomClient(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
        if err != nil {
            fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
        } else {
            ax = client
            writers = append(writers, &axiomWriter{
                sink:     client,
                service:  opts.Service,
                minLevel: parseLevel(opts.AxiomMinLevel, zerolog.InfoLevel),
            })
        }
    }

    zerolog.TimeFieldFormat = time.RFC3339
    lvl := parseLevel(opts.Level, zerolog.InfoLevel)

    global = zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().Timestamp().Str("service", opts.Service).Logger()
    log.Logger = global
    return nil
}

// Close flushes any buffered external loggers.
func Close() {
    if ax != nil {
        _ = ax.Close()
        ax = nil
    }
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }

// Job returns a child logger tagged with a job id.
func Job(jobID string) *zerolog.Logger {
    l := log.With().Str("job_id", jobID).Logger()
    return &l
}

type eventSender interface {
    Send(ev axiom.Event)
}

// axiomWriter forwards zerolog JSON lines at or above minLevel to Axiom.
type axiomWriter struct {
    sink     eventSender
    service  string
    minLevel zerolog.Level
}

func (w *axiomWriter) Write(p []byte) (int, error) {
    var ev map[string]interface{}
    if err := json.Unmarshal(p, &ev); err != nil {
        ev = map[string]interface{}{"message": string(p), zerolog.LevelFieldName: "info"}
    }
    if s, ok := ev[zerolog.LevelFieldName].(string); ok {
        if lvl, err := zerolog.ParseLevel(s); err == nil && lvl < w.minLevel {
            return len(p), nil
        }
    }
    ev["service"] = w.service
    if _, ok := ev[ingest.TimestampField]; !ok {
        ev[ingest.TimestampField] = time.Now()
    }
    w.sink.Send(axiom.Event(ev))
    return len(p), nil
}

// axiomClient batches events and ingests them in the background.
type axiomClient struct {
    client  *axiom.Client
    dataset string
    ch      chan axiom.Event
    wg      sync.WaitGroup
    cancel  context.CancelFunc
}

func newAxiomClient(token, orgID, dataset string, flushEvery time.Duration) (*axiomClient, error) {
    opts := []axiom.Option{axiom.SetToken(token)}
    if orgID != "" { opts = append(opts, axiom.SetOrganizationID(orgID)) }
    c, err := axiom.NewClient(opts...)
    if err != nil { return nil, fmt.Errorf("axiom client: %w", err) }
    ctx, cancel := context.WithCancel(context.Background())
    ac := &axiomClient{
        client:  c,
        dataset: dataset,
        ch:      make(chan axiom.Event, axiomBuffer),
        cancel:  cancel,
    }
    ac.wg.Add(1)
    go ac.loop(ctx, flushEvery)
    return ac, nil
}

// Send never blocks the caller; events are dropped when the buffer is full.
func (a *axiomClient) Send(ev axiom.Event) {
    select {
    case a.ch <- ev:
    default:
    }
}

func (a *axiomClient) loop(ctx context.Context, flushEvery time.Duration) {
    defer a.wg.Done()
    ticker := time.NewTicker(flushEvery)
    defer ticker.Stop()
    batch := make([]axiom.Event, 0, axiomBatch)
    flush := func() {
        if len(batch) == 0 { return }
        fctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
        if _, err := a.client.IngestEvents(fctx, a.dataset, batch); err != nil {
            fmt.Fprintf(os.Stderr, "axiom ingest (%d events): %v\n", len(batch), err)
        }
        cancel()
        batch = batch[:0]
    }
    for {
        select {
        case <-ctx.Done():
            // drain what is already buffered before the final flush
            for {
                select {
                case ev := <-a.ch:
                    batch = append(batch, ev)
                    continue
                default:
                }
                break
            }
            flush()
            return
        case <-ticker.C:
            flush()
        case ev := <-a.ch:
            batch = append(batch, ev)
            if len(batch) >= axiomBatch { flush() }
        }
    }
}

func (a *axiomClient) Close() error {
    a.cancel()
    a.wg.Wait()
    return nil
}
