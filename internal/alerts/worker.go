package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zillah777/fixia-platform-sub000/internal/matching"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

// Dispatcher runs the provider fan-out for one request.
type Dispatcher interface {
	Dispatch(ctx context.Context, requestID string) (matching.Result, error)
}

// Sweep is one idempotent periodic job returning how many rows it touched.
type Sweep func(ctx context.Context) (int, error)

type WorkerDeps struct {
	Dispatcher       Dispatcher
	Mailer           Sender
	SweepRequests    Sweep
	SweepObligations Sweep
	SweepInterval    time.Duration
}

// Worker consumes dispatch and email tasks and schedules the sweeps.
type Worker struct {
	deps      WorkerDeps
	server    *asynq.Server
	scheduler *asynq.Scheduler
}

func NewWorker(redisAddr string, deps WorkerDeps) *Worker {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &Worker{
		deps: deps,
		server: asynq.NewServer(opts, asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				QueueMatching: 6,
				QueueEmails:   3,
				QueueSweeps:   1,
			},
		}),
		scheduler: asynq.NewScheduler(opts, nil),
	}
}

// Mux routes every task type to its handler.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskDispatchRequest, w.handleDispatch)
	mux.HandleFunc(TaskEmailNotification, w.handleEmail)
	mux.HandleFunc(TaskSweepRequests, w.sweep("expire requests", w.deps.SweepRequests))
	mux.HandleFunc(TaskSweepObligations, w.sweep("overdue obligations", w.deps.SweepObligations))
	return mux
}

// Start begins consuming tasks and registers the periodic sweeps. It
// does not block.
func (w *Worker) Start() error {
	interval := w.deps.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	every := fmt.Sprintf("@every %s", interval)
	for _, t := range []string{TaskSweepRequests, TaskSweepObligations} {
		if _, err := w.scheduler.Register(every, asynq.NewTask(t, nil), asynq.Queue(QueueSweeps), asynq.MaxRetry(0), asynq.Unique(interval)); err != nil {
			return fmt.Errorf("register %s: %w", t, err)
		}
	}
	if err := w.server.Start(w.Mux()); err != nil {
		return fmt.Errorf("asynq server: %w", err)
	}
	if err := w.scheduler.Start(); err != nil {
		return fmt.Errorf("asynq scheduler: %w", err)
	}
	log.Printf("Asynq worker started (sweep every %s)", interval)
	return nil
}

func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
}

func (w *Worker) handleDispatch(ctx context.Context, t *asynq.Task) error {
	var p DispatchPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	res, err := w.deps.Dispatcher.Dispatch(ctx, p.RequestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return err
	}
	// Per-provider failures are retried by re-running the task; delivered
	// notices are skipped through their claim.
	if res.Failed > 0 {
		return fmt.Errorf("dispatch request=%s: %d delivery(ies) failed", p.RequestID, res.Failed)
	}
	return nil
}

func (w *Worker) handleEmail(ctx context.Context, t *asynq.Task) error {
	var p EmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err := w.deps.Mailer.Send(ctx, p.Envelope); err != nil {
		log.Printf("[notify][ERROR] %s email send failed: %v", p.Type, err)
		return err
	}
	log.Printf("[notify] %s email sent -> to=%s user=%s", p.Type, p.Envelope.To, p.UserID)
	return nil
}

func (w *Worker) sweep(name string, fn Sweep) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		if fn == nil {
			return nil
		}
		n, err := fn(ctx)
		if err != nil {
			log.Printf("[jobs] %s: %v", name, err)
			return err
		}
		if n > 0 {
			log.Printf("[jobs] %s: %d row(s)", name, n)
		}
		return nil
	}
}
