// Package debounce delays an action until input has been quiet for a while.
package debounce

import (
	"context"
	"sync"
	"time"
)

// Debouncer runs the most recent scheduled job once no new job has been
// scheduled for the configured delay.
//
// Scheduling a job stops the pending timer and cancels the context of the job
// that may already be running, so a slow request started by an earlier
// keystroke can tell, when it completes, that its result is stale.
type Debouncer struct {
	delay time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	gen    uint64
	wg     sync.WaitGroup
}

// New returns a debouncer with the given quiet period.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule replaces any pending or running job with job. The context passed
// to job is cancelled as soon as another job is scheduled or Stop is called;
// it is also returned, so a caller waiting for the result can notice that the
// job was superseded.
func (d *Debouncer) Schedule(parent context.Context, job func(ctx context.Context)) context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.supersedeLocked()

	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.gen++
	gen := d.gen

	d.wg.Add(1)
	d.timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		current := gen == d.gen
		d.mu.Unlock()
		if !current || ctx.Err() != nil {
			return
		}
		job(ctx)
	})
	return ctx
}

// Stop cancels the pending timer and the running job, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.supersedeLocked()
	d.gen++
}

// Wait blocks until no timer is pending and no job is running.
func (d *Debouncer) Wait() {
	d.wg.Wait()
}

func (d *Debouncer) supersedeLocked() {
	if d.timer != nil && d.timer.Stop() {
		// the callback will never run, so it cannot call Done itself
		d.wg.Done()
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.timer = nil
	d.cancel = nil
}
