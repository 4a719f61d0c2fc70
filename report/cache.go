package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"craftfolio/analytics/models"
)

const latestCacheTTL = 48 * time.Hour

// Cache keeps the latest report per cadence in Redis so dashboard reads
// skip Postgres on the hot path. Misses fall through to the report store.
type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func latestKey(rtype models.ReportType) string {
	return fmt.Sprintf("analytics:latest_report:%s", rtype)
}

// Set stores the report as the latest of its cadence.
func (c *Cache) Set(ctx context.Context, rep *models.Report) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, latestKey(rep.Metadata.Type), payload, latestCacheTTL).Err()
}

// Get returns the cached latest report of a cadence, or (nil, nil) on a miss.
func (c *Cache) Get(ctx context.Context, rtype models.ReportType) (*models.Report, error) {
	raw, err := c.rdb.Get(ctx, latestKey(rtype)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rep models.Report
	if err := json.Unmarshal(raw, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}
