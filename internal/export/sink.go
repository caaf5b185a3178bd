package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Sink persists or delivers a finished export. It returns a locator for the
// stored payload (path, URL, ...).
type Sink interface {
	Deliver(ctx context.Context, data []byte, filename string, f Format) (string, error)
}

// LocalSink writes exports below Dir, defaulting to ./uploads/results.
type LocalSink struct {
	Dir string
	// Prefix is prepended to every file name, typically a job id.
	Prefix string
}

func (s LocalSink) Deliver(ctx context.Context, data []byte, filename string, f Format) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := s.Dir
	if dir == "" {
		dir = filepath.Join("uploads", "results")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create result dir: %w", err)
	}
	if filename == "" {
		filename = f.Filename()
	}
	name := filepath.Base(filename)
	if s.Prefix != "" {
		name = s.Prefix + "_" + name
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s export: %w", f, err)
	}
	return p, nil
}
