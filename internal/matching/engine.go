package matching

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/events"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

type Options struct {
	Policy           Policy
	Weights          Weights
	Parallelism      int
	DeliveryTimeout  time.Duration
	NoticeStaleAfter time.Duration
}

// Engine fans a new request out to every eligible provider.
type Engine struct {
	store    store.Store
	clock    domain.Clock
	events   events.Publisher
	presence Presence
	opts     Options
}

func NewEngine(s store.Store, clock domain.Clock, pub events.Publisher, presence Presence, opts Options) *Engine {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 10 * time.Second
	}
	if opts.NoticeStaleAfter <= 0 {
		opts.NoticeStaleAfter = 5 * time.Minute
	}
	return &Engine{store: s, clock: clock, events: pub, presence: presence, opts: opts}
}

// Result counts what happened to each eligible provider.
type Result struct {
	Eligible int `json:"eligible"`
	Sent     int `json:"sent"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

type snapshot struct {
	request    domain.ServiceRequest
	candidates []domain.WorkProfile
}

// Candidates returns the ranked eligible providers for r at now.
func (e *Engine) Candidates(r domain.ServiceRequest, profiles []domain.WorkProfile, now time.Time) []Scored {
	var eligible []domain.WorkProfile
	for _, p := range profiles {
		if Eligible(r, p, now, e.opts.Policy) {
			eligible = append(eligible, p)
		}
	}
	return Rank(eligible, e.opts.Weights, e.presence)
}

// Dispatch notifies eligible providers about requestID. Each (request,
// provider) pair is sent at most once unless a previous attempt failed. A
// slow or failing delivery never holds up the others.
func (e *Engine) Dispatch(ctx context.Context, requestID string) (Result, error) {
	snap, err := store.Get(ctx, e.store, func(q store.Queries) (snapshot, error) {
		r, err := q.GetRequest(ctx, requestID, false)
		if err != nil {
			return snapshot{}, err
		}
		profiles, err := q.ListCandidateProfiles(ctx, r.CategoryID, r.Locality)
		if err != nil {
			return snapshot{}, err
		}
		return snapshot{request: r, candidates: profiles}, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("load request %s: %w", requestID, err)
	}

	now := e.clock.Now()
	if !snap.request.Open(now) {
		log.Printf("[match] request=%s not open (status=%s), skipping dispatch", requestID, snap.request.Status)
		return Result{}, nil
	}

	ranked := e.Candidates(snap.request, snap.candidates, now)
	res := Result{Eligible: len(ranked)}
	var sent, skipped, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(e.opts.Parallelism)
	for _, sc := range ranked {
		g.Go(func() error {
			switch e.deliver(ctx, snap.request, sc) {
			case outcomeSent:
				sent.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Sent, res.Skipped, res.Failed = int(sent.Load()), int(skipped.Load()), int(failed.Load())
	log.Printf("[match] request=%s eligible=%d sent=%d skipped=%d failed=%d", requestID, res.Eligible, res.Sent, res.Skipped, res.Failed)
	return res, nil
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (e *Engine) deliver(ctx context.Context, r domain.ServiceRequest, sc Scored) outcome {
	providerID := sc.Profile.ProviderID
	claimed, err := store.Get(ctx, e.store, func(q store.Queries) (bool, error) {
		return q.ClaimNotice(ctx, r.ID, providerID, e.clock.Now(), e.opts.NoticeStaleAfter)
	})
	if err != nil {
		log.Printf("[match] claim request=%s provider=%s: %v", r.ID, providerID, err)
		return outcomeFailed
	}
	if !claimed {
		return outcomeSkipped
	}

	dctx, cancel := context.WithTimeout(ctx, e.opts.DeliveryTimeout)
	defer cancel()
	pubErr := e.events.Publish(dctx, events.Event{
		UserID:    providerID,
		Type:      events.NewServiceRequest,
		Title:     "New request: " + r.Title,
		Body:      fmt.Sprintf("A %s request in %s matches your profile.", r.UrgencyTier, r.Locality),
		Reference: r.ID,
		Data: map[string]any{
			"request_id":   r.ID,
			"category_id":  r.CategoryID,
			"locality":     r.Locality,
			"urgency_tier": r.UrgencyTier,
			"expires_at":   r.ExpiresAt,
			"score":        sc.Score,
		},
		At: e.clock.Now(),
	})

	status, out := domain.NoticeSent, outcomeSent
	if pubErr != nil {
		log.Printf("[match] deliver request=%s provider=%s: %v", r.ID, providerID, pubErr)
		status, out = domain.NoticeFailed, outcomeFailed
	}
	// Use the parent context: the delivery deadline may have passed.
	if err := e.store.InTx(ctx, func(q store.Queries) error {
		return q.SetNoticeStatus(ctx, r.ID, providerID, status)
	}); err != nil {
		log.Printf("[match] record notice request=%s provider=%s: %v", r.ID, providerID, err)
	}
	return out
}

// AsyncDispatcher runs Dispatch off the caller's goroutine. It is the
// in-process alternative to the queued dispatcher.
type AsyncDispatcher struct {
	engine  *Engine
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncDispatcher(e *Engine, timeout time.Duration) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &AsyncDispatcher{engine: e, timeout: timeout}
}

// Schedule never blocks on delivery and never fails.
func (d *AsyncDispatcher) Schedule(_ context.Context, requestID string) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if _, err := d.engine.Dispatch(ctx, requestID); err != nil {
			log.Printf("[match] async dispatch request=%s: %v", requestID, err)
		}
	}()
	return nil
}

// Wait blocks until every scheduled dispatch has returned.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}
