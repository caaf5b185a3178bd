package statuscheck

import (
    "context"
    "errors"
    "time"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
    Ping(ctx context.Context) error
}

// BucketChecker reports whether the configured bucket is reachable.
type BucketChecker interface {
    HeadBucket(ctx context.Context) error
}

// Checker aggregates health checks for external dependencies.
type Checker struct {
    redis    RedisPinger
    s3       BucketChecker
    renderer func() error
}

// Options configures the Checker. Nil fields report the subsystem as not configured.
type Options struct {
    Redis    RedisPinger
    S3       BucketChecker
    Renderer func() error
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    Redis    Status `json:"redis"`
    S3       Status `json:"s3"`
    Renderer Status `json:"renderer"`
}

// Healthy reports whether everything required for analysis works. S3 is optional.
func (s Summary) Healthy() bool { return s.Redis.OK && s.Renderer.OK }

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    return &Checker{redis: opts.Redis, s3: opts.S3, renderer: opts.Renderer}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        Redis:    c.checkRedis(ctx),
        S3:       c.checkS3(ctx),
        Renderer: c.checkRenderer(),
    }
}

func (c *Checker) checkRedis(ctx context.Context) Status {
    if c.redis == nil {
        return Status{OK: false, Message: "client unavailable"}
    }
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := c.redis.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
    if c.s3 == nil {
        return Status{OK: false, Message: "Bucket not configured"}
    }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := c.s3.HeadBucket(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkRenderer() Status {
    if c.renderer == nil {
        return Status{OK: false, Message: "not configured"}
    }
    if err := c.renderer(); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
