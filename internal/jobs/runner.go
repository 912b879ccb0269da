// Package jobs runs the periodic sweeps in-process when no queue worker
// is configured.
package jobs

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one idempotent periodic task returning how many rows it touched.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int, error)

	running atomic.Bool
}

// Runner ticks every job on a shared interval. A tick is skipped for a job
// whose previous run has not returned.
type Runner struct {
	interval time.Duration
	jobs     []*Job
	wg       sync.WaitGroup
}

func NewRunner(interval time.Duration, jobs ...*Job) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{interval: interval, jobs: jobs}
}

// Start launches the ticker loop; it stops when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTicker(r.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.Tick(ctx)
			}
		}
	}()
	log.Printf("[jobs] runner started (every %s, %d job(s))", r.interval, len(r.jobs))
}

// Tick starts one run of every idle job without waiting for it.
func (r *Runner) Tick(ctx context.Context) {
	for _, j := range r.jobs {
		if !j.running.CompareAndSwap(false, true) {
			log.Printf("[jobs] %s still running, skipping tick", j.Name)
			continue
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer j.running.Store(false)
			n, err := j.Run(ctx)
			switch {
			case err != nil:
				log.Printf("[jobs] %s: %v", j.Name, err)
			case n > 0:
				log.Printf("[jobs] %s: %d row(s)", j.Name, n)
			}
		}()
	}
}

// Wait blocks until the loop and every in-flight run have returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
