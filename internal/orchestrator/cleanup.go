package orchestrator

import (
    "context"
    "os"
    "path/filepath"
    "time"

    "github.com/rs/zerolog/log"
)

// CleanupUploads removes uploaded documents in dir older than maxAge and
// returns how many were deleted. Subdirectories (e.g. results) are skipped.
func CleanupUploads(dir string, maxAge time.Duration, now time.Time) int {
    entries, err := os.ReadDir(dir)
    if err != nil { return 0 }
    removed := 0
    for _, e := range entries {
        if e.IsDir() { continue }
        info, err := e.Info()
        if err != nil { continue }
        if now.Sub(info.ModTime()) >= maxAge {
            if os.Remove(filepath.Join(dir, e.Name())) == nil { removed++ }
        }
    }
    return removed
}

// RunCleanup calls CleanupUploads every interval until ctx is done.
func RunCleanup(ctx context.Context, dir string, maxAge, interval time.Duration) {
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case t := <-ticker.C:
            if n := CleanupUploads(dir, maxAge, t); n > 0 {
                log.Info().Int("removed", n).Str("dir", dir).Msg("cleaned up old uploads")
            }
        }
    }
}
