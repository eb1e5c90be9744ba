// Package kafka lets an external scheduler trigger passes by publishing to a
// topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"expiry-notifier/internal/expiry"
	"expiry-notifier/internal/logging"
	"expiry-notifier/internal/notification"
)

// Runner starts notification passes.
type Runner interface {
	Run(ctx context.Context, today time.Time, opts notification.Options) (notification.Report, error)
	Today() time.Time
	Logger() *logging.Logger
}

// Trigger is the message body. Every field is optional; an empty message
// runs today's pass.
type Trigger struct {
	Date  string `json:"date"`
	Force bool   `json:"force"`
}

type Consumer struct {
	reader *kafka.Reader
	svc    Runner
	logger *logging.Logger
}

func NewConsumer(brokers []string, topic, groupID string, svc Runner) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	return &Consumer{reader: r, svc: svc, logger: svc.Logger()}
}

// Start reads triggers until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)
		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					c.logger.Infof("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}
			c.handle(ctx, msg.Value)
		}
	}()
}

// handle runs the pass for one message. Shutdown does not cancel a pass that
// has started: a half-finished pass leaves the day unmarked and the next
// trigger would mail everyone again.
func (c *Consumer) handle(ctx context.Context, value []byte) {
	today, t, err := ParseTrigger(value, c.svc.Today())
	if err != nil {
		c.logger.Errorf("Invalid trigger message %q: %v", string(value), err)
		return
	}
	if _, err := c.svc.Run(context.WithoutCancel(ctx), today, notification.Options{Force: t.Force, Trigger: "kafka"}); err != nil {
		c.logger.Errorf("Triggered run failed: %v", err)
	}
}

// ParseTrigger decodes value and resolves the pass date against today.
func ParseTrigger(value []byte, today time.Time) (time.Time, Trigger, error) {
	var t Trigger
	if s := strings.TrimSpace(string(value)); s != "" {
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			return time.Time{}, Trigger{}, fmt.Errorf("decode trigger: %w", err)
		}
	}
	if t.Date == "" {
		return today, t, nil
	}
	d, err := time.ParseInLocation(expiry.DayLayout, t.Date, today.Location())
	if err != nil {
		return time.Time{}, Trigger{}, fmt.Errorf("invalid date %q: %w", t.Date, err)
	}
	return d, t, nil
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Closing Kafka reader failed: %v", err)
	}
}
