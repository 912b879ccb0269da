// Package obligations tracks the reviews each party owes after a completed
// connection and blocks further actions once one is overdue.
package obligations

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/events"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

// Gate is the single blocking contract consulted before request creation,
// interest submission and role switches.
type Gate struct {
	store  store.Store
	clock  domain.Clock
	events events.Publisher
	due    time.Duration
}

func New(s store.Store, clock domain.Clock, pub events.Publisher, due time.Duration) *Gate {
	return &Gate{store: s, clock: clock, events: pub, due: due}
}

// Status is the caller-facing summary of a user's blocking state.
type Status struct {
	Blocked     bool                      `json:"blocked"`
	Count       int                       `json:"count"`
	Reasons     []string                  `json:"reasons"`
	Obligations []domain.ReviewObligation `json:"obligations"`
}

func blocking(ctx context.Context, q store.Queries, userID string) ([]domain.ReviewObligation, error) {
	open, err := q.ListObligationsByOwner(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	var out []domain.ReviewObligation
	for _, o := range open {
		if o.Blocking {
			out = append(out, o)
		}
	}
	return out, nil
}

func blockedError(obs []domain.ReviewObligation) error {
	ids := make([]string, 0, len(obs))
	for _, o := range obs {
		ids = append(ids, o.ConnectionID)
	}
	return domain.Blocked(
		"you have overdue reviews",
		fmt.Sprintf("review %d counterpart(s) first", len(obs)),
		map[string]any{"count": len(obs), "connection_ids": ids},
	)
}

// Check fails with a Blocked error when userID has any blocking obligation.
// It runs inside the caller's transaction so the decision and the guarded
// write see the same state.
func (g *Gate) Check(ctx context.Context, q store.Queries, userID string) error {
	obs, err := blocking(ctx, q, userID)
	if err != nil {
		return err
	}
	if len(obs) > 0 {
		return blockedError(obs)
	}
	return nil
}

func (g *Gate) IsBlocked(ctx context.Context, userID string) (bool, error) {
	st, err := g.Status(ctx, userID)
	return st.Blocked, err
}

func (g *Gate) Status(ctx context.Context, userID string) (Status, error) {
	obs, err := store.Get(ctx, g.store, func(q store.Queries) ([]domain.ReviewObligation, error) {
		return blocking(ctx, q, userID)
	})
	if err != nil {
		return Status{}, err
	}
	st := Status{
		Blocked:     len(obs) > 0,
		Count:       len(obs),
		Reasons:     make([]string, 0, len(obs)),
		Obligations: obs,
	}
	for _, o := range obs {
		st.Reasons = append(st.Reasons, fmt.Sprintf("review for connection %s was due %s", o.ConnectionID, o.DueAt.Format(time.RFC3339)))
	}
	if st.Obligations == nil {
		st.Obligations = []domain.ReviewObligation{}
	}
	return st, nil
}

// Open creates the pair of obligations owed once conn completes. It is only
// called from the completion step, inside its transaction.
func (g *Gate) Open(ctx context.Context, q store.Queries, conn domain.Connection, completedAt time.Time) ([]domain.ReviewObligation, error) {
	due := completedAt.Add(g.due)
	pair := []domain.ReviewObligation{
		{OwnerID: conn.RequesterID, CounterpartyID: conn.ProviderID},
		{OwnerID: conn.ProviderID, CounterpartyID: conn.RequesterID},
	}
	for i := range pair {
		pair[i].ID = uuid.NewString()
		pair[i].ConnectionID = conn.ID
		pair[i].DueAt = due
		pair[i].CreatedAt = completedAt
		if err := q.InsertObligation(ctx, pair[i]); err != nil {
			return nil, err
		}
	}
	return pair, nil
}

// Resolve clears the obligation ownerID holds for connectionID. It reports
// false when there was nothing left to resolve.
func (g *Gate) Resolve(ctx context.Context, q store.Queries, connectionID, ownerID string) (bool, error) {
	return q.ResolveObligation(ctx, connectionID, ownerID, g.clock.Now())
}

// SweepOverdue flips blocking on every unresolved obligation past its due
// time and tells each newly blocked owner. Safe to run concurrently.
func (g *Gate) SweepOverdue(ctx context.Context) (int, error) {
	now := g.clock.Now()
	flipped, err := store.Get(ctx, g.store, func(q store.Queries) ([]domain.ReviewObligation, error) {
		return q.MarkOverdueBlocking(ctx, now)
	})
	if err != nil {
		return 0, err
	}

	perOwner := make(map[string]int)
	var owners []string
	for _, o := range flipped {
		if perOwner[o.OwnerID] == 0 {
			owners = append(owners, o.OwnerID)
		}
		perOwner[o.OwnerID]++
	}
	for _, owner := range owners {
		err := g.events.Publish(ctx, events.Event{
			UserID: owner,
			Type:   events.ReviewObligationOverdue,
			Title:  "Review overdue",
			Body:   fmt.Sprintf("You have %d overdue review(s). New requests and interests are paused until you submit them.", perOwner[owner]),
			Data:   map[string]any{"count": perOwner[owner]},
			At:     now,
		})
		if err != nil {
			log.Printf("[gate] notify overdue owner=%s: %v", owner, err)
		}
	}
	if len(flipped) > 0 {
		log.Printf("[gate] %d obligation(s) now blocking", len(flipped))
	}
	return len(flipped), nil
}

func (g *Gate) ListMine(ctx context.Context, userID string) ([]domain.ReviewObligation, error) {
	list, err := store.Get(ctx, g.store, func(q store.Queries) ([]domain.ReviewObligation, error) {
		return q.ListObligationsByOwner(ctx, userID, false)
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.ReviewObligation{}
	}
	return list, nil
}
