package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrReportCacheDisabled = errors.New("report cache disabled")

// CachedReport is what an HTTP replay returns and what the cache stores.
type CachedReport struct {
	RunID    string          `json:"runId"`
	Summary  RunSummary      `json:"summary"`
	Accounts json.RawMessage `json:"accounts"`
}

// ReportCache remembers replay reports so a retried upload of the same file
// gets the same run back instead of a new one.
type ReportCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewReportCache returns a cache backed by rdb. A nil client yields a cache
// whose operations return ErrReportCacheDisabled.
func NewReportCache(rdb *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{redis: rdb, ttl: ttl}
}

func (c *ReportCache) Enabled() bool {
	return c != nil && c.redis != nil
}

// ContentKey derives the cache key of an uploaded file.
func ContentKey(body []byte) string {
	sum := sha256.Sum256(body)
	return "replay:content:" + hex.EncodeToString(sum[:])
}

// RunKey is the cache key of a report by run id.
func RunKey(runID string) string {
	return "replay:run:" + runID
}

// Get returns the report stored under key. found is false on a miss.
func (c *ReportCache) Get(ctx context.Context, key string) (report *CachedReport, found bool, err error) {
	if !c.Enabled() {
		return nil, false, ErrReportCacheDisabled
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cached CachedReport
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false, err
	}
	return &cached, true, nil
}

// Put stores report under both its content key and its run key.
func (c *ReportCache) Put(ctx context.Context, contentKey string, report *CachedReport) error {
	if !c.Enabled() {
		return ErrReportCacheDisabled
	}

	data, err := json.Marshal(report)
	if err != nil {
		return err
	}

	if err := c.redis.Set(ctx, contentKey, data, c.ttl).Err(); err != nil {
		return err
	}
	return c.redis.Set(ctx, RunKey(report.RunID), data, c.ttl).Err()
}
