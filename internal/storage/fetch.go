package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Fetcher resolves a document reference to its bytes. Supported references:
// - file://path or plain filesystem paths
// - http(s):// URLs
// - s3://bucket/key (requires S3)
type Fetcher struct {
	HTTP     *http.Client
	S3       *S3Client
	MaxBytes int64
}

// Fetch reads the whole document referenced by ref.
func (f Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	// Strip optional #page fragment if present
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}
	switch {
	case strings.HasPrefix(ref, "s3://"):
		if f.S3 == nil {
			return nil, fmt.Errorf("s3 not configured for %s", ref)
		}
		bucket, key, err := ParseS3URL(ref)
		if err != nil {
			return nil, err
		}
		return f.S3.Download(ctx, bucket, key)
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		return f.fetchHTTP(ctx, ref)
	default:
		return f.fetchFile(strings.TrimPrefix(ref, "file://"))
	}
}

func (f Fetcher) limit(r io.Reader) io.Reader {
	if f.MaxBytes <= 0 {
		return r
	}
	return io.LimitReader(r, f.MaxBytes+1)
}

func (f Fetcher) checkSize(b []byte) ([]byte, error) {
	if f.MaxBytes > 0 && int64(len(b)) > f.MaxBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", f.MaxBytes)
	}
	return b, nil
}

func (f Fetcher) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	cli := f.HTTP
	if cli == nil {
		cli = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	b, err := io.ReadAll(f.limit(resp.Body))
	if err != nil {
		return nil, err
	}
	return f.checkSize(b)
}

func (f Fetcher) fetchFile(p string) ([]byte, error) {
	fh, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	b, err := io.ReadAll(f.limit(fh))
	if err != nil {
		return nil, err
	}
	return f.checkSize(b)
}
