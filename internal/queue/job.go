package queue

import (
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/local/margincheck/internal/analysis"
)

// Job is the payload carried by one stream entry.
type Job struct {
    JobID       string            `json:"job_id"`
    Source      string            `json:"source"`
    Filename    string            `json:"filename,omitempty"`
    Settings    analysis.Settings `json:"settings"`
    Fingerprint string            `json:"fingerprint,omitempty"`
    Attempt     int               `json:"attempt"`
    EnqueuedAt  time.Time         `json:"enqueued_at"`
}

// Encode serializes the job for the stream.
func (j Job) Encode() ([]byte, error) {
    if j.JobID == "" { return nil, errors.New("job_id is required") }
    if j.Source == "" { return nil, fmt.Errorf("job %s: source is required", j.JobID) }
    return json.Marshal(j)
}

// DecodeJob parses a stream payload.
func DecodeJob(b []byte) (Job, error) {
    var j Job
    if err := json.Unmarshal(b, &j); err != nil {
        return Job{}, fmt.Errorf("decode job: %w", err)
    }
    if j.JobID == "" {
        return Job{}, errors.New("decode job: missing job_id")
    }
    return j, nil
}
