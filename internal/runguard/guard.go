// Package runguard makes sure the full notification pass happens at most once
// per calendar day, however often the trigger fires.
//
// The check and the mark are separate calls against the store, so two
// processes starting at the same moment can both pass ShouldRun. Triggers are
// expected to be sequential; the notification service serializes runs within
// one process.
package runguard

import (
	"context"
	"fmt"
	"time"
)

// DayLayout is the format of the persisted last-run date.
const DayLayout = "2006-01-02"

// Store persists the last completed run date. LastRunDate returns "" when no
// run has been recorded yet.
type Store interface {
	LastRunDate(ctx context.Context) (string, error)
	SetLastRunDate(ctx context.Context, date string) error
}

// Guard decides whether today's pass still has to run.
type Guard struct {
	store Store
}

// New returns a Guard backed by store.
func New(store Store) *Guard {
	return &Guard{store: store}
}

// ShouldRun reports false when a full pass already completed on today's date.
func (g *Guard) ShouldRun(ctx context.Context, today time.Time) (bool, error) {
	last, err := g.store.LastRunDate(ctx)
	if err != nil {
		return false, fmt.Errorf("read last run date: %w", err)
	}
	return last != today.Format(DayLayout), nil
}

// MarkRan records today as done. Call it only after every dispatch attempt of
// the pass has been made.
func (g *Guard) MarkRan(ctx context.Context, today time.Time) error {
	if err := g.store.SetLastRunDate(ctx, today.Format(DayLayout)); err != nil {
		return fmt.Errorf("write last run date: %w", err)
	}
	return nil
}
