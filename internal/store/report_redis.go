package store

import (
    "context"
    "encoding/hex"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"
    "golang.org/x/crypto/blake2b"

    "github.com/local/margincheck/internal/analysis"
)

// ReportStore keeps rendered exports per job, and maps document
// fingerprints to the job that already analysed them.
type ReportStore struct {
    client *redis.Client
    ttl    time.Duration
}

// NewReportStore shares an existing client, typically RedisStatus.Client().
func NewReportStore(c *redis.Client, ttl time.Duration) *ReportStore {
    return &ReportStore{client: c, ttl: ttl}
}

func (s *ReportStore) reportKey(jobID, format string) string {
    return fmt.Sprintf("margins:%s:report:%s", jobID, format)
}

func fingerprintKey(fp string) string { return "margins:fp:" + fp }

// SaveReport stores one rendered export.
func (s *ReportStore) SaveReport(ctx context.Context, jobID, format string, data []byte) error {
    return s.client.Set(ctx, s.reportKey(jobID, format), data, s.ttl).Err()
}

// GetReport returns a stored export; ok is false when it does not exist or expired.
func (s *ReportStore) GetReport(ctx context.Context, jobID, format string) ([]byte, bool, error) {
    b, err := s.client.Get(ctx, s.reportKey(jobID, format)).Bytes()
    if err == redis.Nil { return nil, false, nil }
    if err != nil { return nil, false, err }
    return b, true, nil
}

// RememberFingerprint maps a fingerprint to the job holding its report.
func (s *ReportStore) RememberFingerprint(ctx context.Context, fp, jobID string) error {
    if fp == "" { return nil }
    return s.client.Set(ctx, fingerprintKey(fp), jobID, s.ttl).Err()
}

// LookupFingerprint returns the job id previously stored for fp.
func (s *ReportStore) LookupFingerprint(ctx context.Context, fp string) (string, bool, error) {
    if fp == "" { return "", false, nil }
    jobID, err := s.client.Get(ctx, fingerprintKey(fp)).Result()
    if err == redis.Nil { return "", false, nil }
    if err != nil { return "", false, err }
    return jobID, true, nil
}

// Fingerprint identifies an analysis input: the document bytes together with
// the settings it is analysed under. Equal inputs yield equal reports.
func Fingerprint(data []byte, s analysis.Settings) string {
    h, _ := blake2b.New256(nil)
    h.Write(data)
    h.Write([]byte{0})
    h.Write([]byte(strconv.FormatFloat(s.BleedSize, 'g', -1, 64)))
    h.Write([]byte{'|'})
    h.Write([]byte(strconv.FormatFloat(s.MarginThreshold, 'g', -1, 64)))
    return hex.EncodeToString(h.Sum(nil))
}
