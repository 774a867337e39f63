package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// ErrStopped is returned by Trigger.After once the trigger has been stopped.
var ErrStopped = errors.New("trigger stopped")

// Trigger runs fn once after a delay. At most one call is pending at a time:
// scheduling a new one replaces the previous.
type Trigger interface {
	After(d time.Duration, fn func()) error
	Stop()
}

// CronTrigger schedules one-shot jobs on a gocron scheduler.
type CronTrigger struct {
	mu      sync.Mutex
	cron    *gocron.Scheduler
	pending *gocron.Job
	started bool
	stopped bool
}

// NewCronTrigger creates a trigger backed by a UTC gocron scheduler.
func NewCronTrigger() *CronTrigger {
	return &CronTrigger{cron: gocron.NewScheduler(time.UTC)}
}

func (t *CronTrigger) After(d time.Duration, fn func()) error {
	if d <= 0 {
		return fmt.Errorf("invalid delay %s", d)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrStopped
	}
	if t.pending != nil {
		t.cron.RemoveByReference(t.pending)
		t.pending = nil
	}

	job, err := t.cron.Every(d).WaitForSchedule().LimitRunsTo(1).Do(fn)
	if err != nil {
		return fmt.Errorf("schedule next cycle: %w", err)
	}
	t.pending = job

	if !t.started {
		t.cron.StartAsync()
		t.started = true
	}
	return nil
}

// Stop drops the pending job. A job already running is not interrupted.
func (t *CronTrigger) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.pending = nil
	started := t.started
	t.mu.Unlock()

	// The running job may call After; it must not find the lock held here.
	if started {
		t.cron.Stop()
	}
}
