package main

import (
    "context"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/margincheck/internal/config"
    "github.com/local/margincheck/internal/dispatcher"
    "github.com/local/margincheck/internal/export"
    "github.com/local/margincheck/internal/inspector"
    logpkg "github.com/local/margincheck/internal/logger"
    "github.com/local/margincheck/internal/metrics"
    "github.com/local/margincheck/internal/orchestrator"
    "github.com/local/margincheck/internal/pdfdoc"
    "github.com/local/margincheck/internal/queue"
    "github.com/local/margincheck/internal/statuscheck"
    "github.com/local/margincheck/internal/storage"
    "github.com/local/margincheck/internal/store"
)

func main() {
    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Service: "margincheck-api",
        Level: cfg.Logging.Level,
        Pretty: cfg.Logging.Pretty,
        File: cfg.Logging.File,
        MaxSizeMB: cfg.Logging.MaxSizeMB,
        MaxBackups: cfg.Logging.MaxBackups,
        MaxAgeDays: cfg.Logging.MaxAgeDays,
        Compress: cfg.Logging.Compress,
        SendToAxiom: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey: cfg.Axiom.APIKey,
        AxiomOrgID: cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush: cfg.Axiom.FlushInterval,
        AxiomMinLevel: cfg.Axiom.MinLevel,
    })
    defer logpkg.Close()
    metrics.Init()

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // Queue
    rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.PollInterval)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to connect to redis")
    }
    defer rq.Close()

    // Status + report store
    rs, err := store.NewRedisStatus(cfg.Queue.RedisURL, cfg.Worker.ResultTTL)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init redis status store")
    }
    defer rs.Close()
    reports := store.NewReportStore(rs.Client(), cfg.Worker.ResultTTL)

    // Object storage (optional)
    var s3c *storage.S3Client
    if cfg.Storage.S3Bucket != "" {
        s3c, err = storage.NewS3Client(ctx, storage.S3Options{
            Bucket: cfg.Storage.S3Bucket,
            Region: cfg.Storage.AWSRegion,
            AccessKey: cfg.Storage.AWSKey,
            SecretKey: cfg.Storage.AWSSecret,
        })
        if err != nil {
            log.Warn().Err(err).Msg("S3 unavailable; s3:// sources and the s3 sink are disabled")
            s3c = nil
        }
    }

    insp := inspector.New(inspector.PDFLoader(cfg.Analysis.RenderScale), cfg.Analysis.Settings)
    insp.SetObserver(metrics.RunObserver{})

    checkOpts := statuscheck.Options{Redis: rq, Renderer: pdfdoc.SelfTest}
    if s3c != nil { checkOpts.S3 = s3c }

    orch := orchestrator.New(orchestrator.Dependencies{
        Queue:    rq,
        Status:   rs,
        Reports:  reports,
        Settings: insp,
        Checker:  statuscheck.New(checkOpts),
        Metrics:  metrics.Handler(),
    }, orchestrator.Options{UploadDir: cfg.Storage.UploadDir, MaxUploadMB: cfg.HTTP.MaxUploadMB})
    mux := http.NewServeMux()
    orch.RegisterRoutes(mux)
    go orchestrator.RunCleanup(ctx, cfg.Storage.UploadDir, cfg.Worker.ResultTTL, time.Hour)

    // Dispatcher worker (optional)
    if cfg.Worker.Enabled {
        disp := dispatcher.New(dispatcher.Config{
            Concurrency: cfg.Worker.Concurrency,
            MaxAttempts: cfg.Worker.MaxAttempts,
            RetryDelay:  cfg.Worker.RetryDelay,
            IdleBackoff: cfg.Worker.IdleBackoff,
            JobTimeout:  cfg.Worker.JobTimeout,
            SinkName:    cfg.Storage.ExportSink,
        }, dispatcher.Deps{
            Queue:   rq,
            Status:  rs,
            Reports: reports,
            Fetch:   storage.Fetcher{S3: s3c, MaxBytes: int64(cfg.HTTP.MaxUploadMB) << 20},
            Load:    inspector.PDFLoader(cfg.Analysis.RenderScale),
            Sink:    sinkFactory(cfg.Storage, s3c),
        })
        disp.Start()
        defer func() {
            sctx, scancel := context.WithTimeout(context.Background(), 30*time.Second)
            defer scancel()
            _ = disp.Stop(sctx)
        }()
        go dispatcher.MonitorDepths(ctx, rq, 15*time.Second)
    }

    port := cfg.HTTP.Port
    srv := &http.Server{Addr: ":"+port, Handler: mux}

    go func(){
        log.Info().Msgf("HTTP server listening on :%s", port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    cancel()
    sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer scancel()
    _ = srv.Shutdown(sctx)
    fmt.Println("shutdown complete")
}

// sinkFactory picks where finished exports are delivered besides Redis.
func sinkFactory(sc cfgpkg.StorageConfig, s3c *storage.S3Client) dispatcher.SinkFactory {
    switch sc.ExportSink {
    case "none", "":
        return nil
    case "s3":
        if s3c == nil {
            log.Warn().Msg("EXPORT_SINK=s3 but S3 is not configured; exports stay in Redis only")
            return nil
        }
        return func(jobID string) export.Sink { return storage.S3Sink{Client: s3c, Prefix: sc.S3Prefix, JobID: jobID} }
    default:
        return func(jobID string) export.Sink { return export.LocalSink{Dir: sc.ResultDir, Prefix: jobID} }
    }
}
