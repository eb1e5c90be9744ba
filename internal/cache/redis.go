// Package cache keeps run state and threshold watermarks in Redis, as an
// alternative to the Postgres store for deployments without a database.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"expiry-notifier/internal/logging"
	"expiry-notifier/internal/models"
)

const (
	lastRunKey      = "expiry:last_run_date"
	watermarkPrefix = "expiry:watermark:"
)

// Client wraps a go-redis client.
type Client struct {
	rdb    *goredis.Client
	logger *logging.Logger
}

// NewClient connects to addr and pings it.
func NewClient(addr, password string, db int, logger *logging.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Infof("Connected to Redis at %s", addr)
	return &Client{rdb: rdb, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) LastRunDate(ctx context.Context) (string, error) {
	v, err := c.rdb.Get(ctx, lastRunKey).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get last run date: %w", err)
	}
	return v, nil
}

func (c *Client) SetLastRunDate(ctx context.Context, date string) error {
	if err := c.rdb.Set(ctx, lastRunKey, date, 0).Err(); err != nil {
		return fmt.Errorf("failed to set last run date: %w", err)
	}
	return nil
}

func (c *Client) GetWatermark(ctx context.Context, key models.WatermarkKey) (models.Watermark, bool, error) {
	fields, err := c.rdb.HGetAll(ctx, watermarkPrefix+key.String()).Result()
	if err != nil {
		return models.Watermark{}, false, fmt.Errorf("failed to get watermark for %s: %w", key, err)
	}
	if len(fields) == 0 {
		return models.Watermark{}, false, nil
	}
	threshold, err := strconv.Atoi(fields["threshold"])
	if err != nil {
		return models.Watermark{}, false, fmt.Errorf("corrupt watermark for %s: %w", key, err)
	}
	return models.Watermark{
		LastNotifiedDate: fields["last_notified_date"],
		Threshold:        threshold,
		Expiry:           fields["expiry"],
	}, true, nil
}

func (c *Client) SetWatermark(ctx context.Context, key models.WatermarkKey, wm models.Watermark) error {
	err := c.rdb.HSet(ctx, watermarkPrefix+key.String(),
		"last_notified_date", wm.LastNotifiedDate,
		"threshold", wm.Threshold,
		"expiry", wm.Expiry,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set watermark for %s: %w", key, err)
	}
	return nil
}
