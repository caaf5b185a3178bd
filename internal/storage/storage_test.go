package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseS3URL(t *testing.T) {
	b, k, err := ParseS3URL("s3://bucket/dir/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "bucket", b)
	assert.Equal(t, "dir/doc.pdf", k)

	for _, bad := range []string{"s3://bucket", "s3:///key", "s3://bucket/", "http://x/y"} {
		_, _, err := ParseS3URL(bad)
		assert.Error(t, err, bad)
	}
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "reports/job1/pdf-margin-analysis.csv", objectKey("/reports/", "job1", "pdf-margin-analysis.csv"))
	assert.Equal(t, "a.json", objectKey("", "", "a.json"))
}

func TestFetch_File(t *testing.T) {
	p := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4"), 0o644))

	b, err := Fetcher{}.Fetch(context.Background(), "file://"+p+"#page=2")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(b))

	_, err = Fetcher{MaxBytes: 3}.Fetch(context.Background(), p)
	assert.Error(t, err)

	_, err = Fetcher{}.Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestFetch_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	b, err := Fetcher{HTTP: srv.Client()}.Fetch(context.Background(), srv.URL+"/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(b))

	_, err = Fetcher{HTTP: srv.Client()}.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestFetch_S3WithoutClient(t *testing.T) {
	_, err := Fetcher{}.Fetch(context.Background(), "s3://bucket/key.pdf")
	assert.Error(t, err)
}
