package store

import (
    "context"
    "encoding/json"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Job states reported by /progress.
const (
    StateQueued     = "queued"
    StateProcessing = "processing"
    StateSuccess    = "success"
    StateFailed     = "failed"
    StateCancelled  = "cancelled"
)

type Status struct {
    Status    string                 `json:"status"`
    Progress  int                    `json:"progress"`
    Message   string                 `json:"message"`
    Pages     int                    `json:"pages,omitempty"`
    ErrorKind string                 `json:"error_kind,omitempty"`
    Start     *time.Time             `json:"start_time,omitempty"`
    End       *time.Time             `json:"end_time,omitempty"`
    Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Terminal reports whether the job will not change state anymore.
func (s Status) Terminal() bool {
    return s.Status == StateSuccess || s.Status == StateFailed || s.Status == StateCancelled
}

type RedisStatus struct {
    client *redis.Client
    keyNS  string
    ttl    time.Duration
}

func NewRedisStatus(redisURL string, ttl time.Duration) (*RedisStatus, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, err }
    c := redis.NewClient(opt)
    if err := c.Ping(context.Background()).Err(); err != nil { return nil, err }
    return &RedisStatus{client: c, keyNS: "margins", ttl: ttl}, nil
}

func (s *RedisStatus) key(jobID string) string { return fmt.Sprintf("%s:%s:status", s.keyNS, jobID) }

func (s *RedisStatus) Set(ctx context.Context, jobID string, st Status) error {
    k := s.key(jobID)
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, k, statusToHash(st))
    if s.ttl > 0 { pipe.Expire(ctx, k, s.ttl) }
    _, err := pipe.Exec(ctx)
    return err
}

func (s *RedisStatus) Get(ctx context.Context, jobID string) (Status, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
    if err != nil { return Status{}, false, err }
    if len(res) == 0 { return Status{}, false, nil }
    return statusFromHash(res), true, nil
}

func (s *RedisStatus) Close() error { return s.client.Close() }

// Client returns the underlying Redis client
func (s *RedisStatus) Client() *redis.Client { return s.client }

func statusToHash(st Status) map[string]interface{} {
    m := map[string]interface{}{
        "status":   st.Status,
        "progress": st.Progress,
        "message":  st.Message,
        "pages":    st.Pages,
        "kind":     st.ErrorKind,
    }
    if st.Start != nil { m["start"] = st.Start.Format(time.RFC3339Nano) }
    if st.End != nil { m["end"] = st.End.Format(time.RFC3339Nano) }
    if st.Metadata != nil {
        b, _ := json.Marshal(st.Metadata)
        m["metadata"] = string(b)
    }
    return m
}

func statusFromHash(res map[string]string) Status {
    st := Status{
        Status:    res["status"],
        Message:   res["message"],
        ErrorKind: res["kind"],
    }
    // parse errors leave the zero value
    st.Progress, _ = strconv.Atoi(res["progress"])
    st.Pages, _ = strconv.Atoi(res["pages"])
    if v := res["start"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.Start = &t }
    }
    if v := res["end"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.End = &t }
    }
    if v := res["metadata"]; v != "" {
        _ = json.Unmarshal([]byte(v), &st.Metadata)
    }
    return st
}
