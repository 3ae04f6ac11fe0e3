package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Stage names reported while a document moves through the pipeline.
const (
	StageReceived   = "received"
	StageExtracting = "extracting"
	StageAnalyzing  = "analyzing"
	StageValidating = "validating"
	StageRefining   = "refining"
	StageDone       = "done"
	StageFailed     = "failed"
)

// Status is the externally visible state of one extraction request.
type Status struct {
	Stage    string         `json:"stage"`
	Progress int            `json:"progress"`
	Message  string         `json:"message"`
	Start    *time.Time     `json:"start_time,omitempty"`
	End      *time.Time     `json:"end_time,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// StatusStore persists request status keyed by request id.
type StatusStore interface {
	Set(ctx context.Context, requestID string, st Status) error
	Get(ctx context.Context, requestID string) (Status, bool, error)
}

// RedisStatus keeps request status in a Redis hash with a TTL; a
// finished request stays queryable for a week.
type RedisStatus struct {
	client *redis.Client
	keyNS  string
	ttl    time.Duration
}

func NewRedisStatus(redisURL string) (*RedisStatus, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisStatus{client: c, keyNS: "request", ttl: 7 * 24 * time.Hour}, nil
}

func (s *RedisStatus) key(requestID string) string {
	return fmt.Sprintf("%s:%s:status", s.keyNS, requestID)
}

func (s *RedisStatus) Set(ctx context.Context, requestID string, st Status) error {
	m := map[string]any{
		"stage":    st.Stage,
		"progress": st.Progress,
		"message":  st.Message,
	}
	if st.Start != nil {
		m["start"] = st.Start.Format(time.RFC3339Nano)
	}
	if st.End != nil {
		m["end"] = st.End.Format(time.RFC3339Nano)
	}
	if st.Metadata != nil {
		b, _ := json.Marshal(st.Metadata)
		m["metadata"] = string(b)
	}
	key := s.key(requestID)
	if err := s.client.HSet(ctx, key, m).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

func (s *RedisStatus) Get(ctx context.Context, requestID string) (Status, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(requestID)).Result()
	if err != nil {
		return Status{}, false, err
	}
	if len(res) == 0 {
		return Status{}, false, nil
	}
	st := Status{Stage: res["stage"], Message: res["message"]}
	if p := res["progress"]; p != "" {
		st.Progress, _ = strconv.Atoi(p)
	}
	if v := res["start"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.Start = &t
		}
	}
	if v := res["end"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.End = &t
		}
	}
	if v := res["metadata"]; v != "" {
		_ = json.Unmarshal([]byte(v), &st.Metadata)
	}
	return st, true, nil
}

func (s *RedisStatus) Close() error { return s.client.Close() }

// NopStatus discards status updates; used when Redis is not configured.
type NopStatus struct{}

func (NopStatus) Set(context.Context, string, Status) error { return nil }
func (NopStatus) Get(context.Context, string) (Status, bool, error) {
	return Status{}, false, nil
}
