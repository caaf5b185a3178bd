package config

import (
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    "github.com/local/margincheck/internal/analysis"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
    MinLevel      string
}

// AnalysisConfig holds the initial margin settings and render scale.
type AnalysisConfig struct {
    Settings    analysis.Settings
    RenderScale float64
}

// WorkerConfig defines worker behavior and limits.
type WorkerConfig struct {
    Concurrency  int
    Enabled      bool
    IdleBackoff  time.Duration
    ResultTTL    time.Duration
    MaxAttempts  int
    RetryDelay   time.Duration
    JobTimeout   time.Duration
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
    RedisURL     string
    Stream       string
    Group        string
    PollInterval time.Duration
}

// StorageConfig defines where uploads and exports go.
type StorageConfig struct {
    UploadDir  string
    ResultDir  string
    S3Bucket   string
    S3Prefix   string
    ExportSink string // "local"|"s3"|"none"
    AWSKey     string
    AWSSecret  string
    AWSRegion  string
}

// HTTPConfig defines the API listener.
type HTTPConfig struct {
    Port        string
    MaxUploadMB int
}

// Config is the top-level configuration.
type Config struct {
    Logging  LoggingConfig
    Axiom    AxiomConfig
    Analysis AnalysisConfig
    Worker   WorkerConfig
    Queue    QueueConfig
    Storage  StorageConfig
    HTTP     HTTPConfig
}

// FromEnv loads configuration from environment with sensible defaults.
// A .env file in the working directory is loaded first when present.
func FromEnv() Config {
    _ = godotenv.Load()

    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/margincheck.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "50"), 50),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "5"), 5),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "14"), 14),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_margincheck",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
        MinLevel:      strings.ToLower(getEnv("AXIOM_MIN_LEVEL", "info")),
    }

    // Analysis defaults
    cfg.Analysis = AnalysisConfig{
        Settings:    settingsFromEnv(),
        RenderScale: parseFloat(getEnv("RENDER_SCALE", "2.0"), 2.0),
    }
    if cfg.Analysis.RenderScale <= 0 { cfg.Analysis.RenderScale = 2.0 }

    // Worker defaults
    cfg.Worker = WorkerConfig{
        Concurrency: parseInt(getEnv("WORKER_CONCURRENCY", "2"), 2),
        Enabled:     parseBool(getEnv("RUN_WORKER", "true")),
        IdleBackoff: parseDuration(getEnv("WORKER_IDLE_BACKOFF", "500ms"), 500*time.Millisecond),
        ResultTTL:   parseDuration(getEnv("RESULT_TTL", "168h"), 7*24*time.Hour),
        MaxAttempts: parseInt(getEnv("WORKER_MAX_ATTEMPTS", "3"), 3),
        RetryDelay:  parseDuration(getEnv("WORKER_RETRY_DELAY", "5s"), 5*time.Second),
        JobTimeout:  parseDuration(getEnv("WORKER_JOB_TIMEOUT", "10m"), 10*time.Minute),
    }
    if cfg.Worker.MaxAttempts < 1 { cfg.Worker.MaxAttempts = 1 }

    // Queue defaults
    cfg.Queue = QueueConfig{
        RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
        Stream:       getEnv("QUEUE_STREAM", "jobs:margins"),
        Group:        getEnv("QUEUE_GROUP", "workers:margins"),
        PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "100ms"), 100*time.Millisecond),
    }

    cfg.Storage = StorageConfig{
        UploadDir:  getEnv("UPLOAD_DIR", "uploads"),
        ResultDir:  getEnv("RESULT_DIR", "uploads/results"),
        S3Bucket:   getEnv("AWS_S3_BUCKET", ""),
        S3Prefix:   getEnv("AWS_S3_PREFIX", "margin-reports"),
        ExportSink: strings.ToLower(getEnv("EXPORT_SINK", "local")),
        AWSKey:     getEnv("AWS_ACCESS_KEY_ID", ""),
        AWSSecret:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
        AWSRegion:  getEnv("AWS_REGION", ""),
    }

    cfg.HTTP = HTTPConfig{
        Port:        getEnv("PORT", "8080"),
        MaxUploadMB: parseInt(getEnv("MAX_UPLOAD_MB", "64"), 64),
    }

    return cfg
}

// settingsFromEnv reads BLEED_SIZE_MM and MARGIN_THRESHOLD_MM. Values that do
// not validate are replaced by the defaults.
func settingsFromEnv() analysis.Settings {
    s := analysis.DefaultSettings()
    if v, ok := millimetres("BLEED_SIZE_MM"); ok {
        if err := analysis.ValidateBleedSize(v); err != nil {
            log.Warn().Err(err).Msg("ignoring BLEED_SIZE_MM")
        } else {
            s.BleedSize = v
        }
    }
    if v, ok := millimetres("MARGIN_THRESHOLD_MM"); ok {
        if err := analysis.ValidateMarginThreshold(v); err != nil {
            log.Warn().Err(err).Msg("ignoring MARGIN_THRESHOLD_MM")
        } else {
            s.MarginThreshold = v
        }
    }
    return s
}

func millimetres(key string) (float64, bool) {
    raw := os.Getenv(key)
    if raw == "" { return 0, false }
    v, err := analysis.ParseMillimeters(raw)
    if err != nil {
        log.Warn().Err(err).Str("key", key).Msg("ignoring non-numeric setting")
        return 0, false
    }
    return v, true
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
