package notification

import (
	"context"
	"errors"

	"expiry-notifier/internal/alert"
	"expiry-notifier/internal/models"
)

// MultiSink writes every entry to each sink. All sinks are attempted even
// when one fails.
func MultiSink(sinks ...alert.AuditSink) alert.AuditSink {
	return multiSink(sinks)
}

type multiSink []alert.AuditSink

func (m multiSink) Append(ctx context.Context, entries ...models.AuditEntry) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, entries...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
