package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expiry-notifier/internal/logging"
	"expiry-notifier/internal/notification"
)

type fakeRunner struct{ opts []notification.Options }

func (f *fakeRunner) Run(_ context.Context, _ time.Time, opts notification.Options) (notification.Report, error) {
	f.opts = append(f.opts, opts)
	return notification.Report{}, nil
}

func (f *fakeRunner) Today() time.Time { return time.Now() }

func TestAddDaily(t *testing.T) {
	s := New(&fakeRunner{}, time.UTC, logging.NewNop())
	require.NoError(t, s.AddDaily("0 7 * * *"))
	assert.Error(t, s.AddDaily("every morning"))
	assert.Len(t, s.cron.Entries(), 1)
}

func TestFire(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, nil, logging.NewNop())
	s.fire()
	require.Len(t, runner.opts, 1)
	assert.Equal(t, "cron", runner.opts[0].Trigger)
	assert.False(t, runner.opts[0].Force)
}
