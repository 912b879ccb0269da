// Package connections owns the bilateral engagement created once a
// requester accepts an interest, through to mutual completion.
package connections

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/events"
	"github.com/zillah777/fixia-platform-sub000/internal/obligations"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

type Coordinator struct {
	store  store.Store
	clock  domain.Clock
	events events.Publisher
	gate   *obligations.Gate
}

func NewCoordinator(s store.Store, clock domain.Clock, pub events.Publisher, gate *obligations.Gate) *Coordinator {
	return &Coordinator{store: s, clock: clock, events: pub, gate: gate}
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound("connection")
	}
	return err
}

// Open creates the single connection for an accepted interest. It runs in
// the selecting transaction.
func (co *Coordinator) Open(ctx context.Context, q store.Queries, r domain.ServiceRequest, in domain.Interest) (domain.Connection, error) {
	if in.Status != domain.InterestAccepted {
		return domain.Connection{}, domain.Conflict("only an accepted interest opens a connection", "accept the interest first")
	}
	requestID, interestID := r.ID, in.ID
	c := domain.Connection{
		ID:          uuid.NewString(),
		RequesterID: r.RequesterID,
		ProviderID:  in.ProviderID,
		RequestID:   &requestID,
		InterestID:  &interestID,
		ChannelID:   "chan_" + uuid.NewString(),
		Status:      domain.ConnectionServiceInProgress,
		AgreedPrice: in.ProposedPrice,
		CreatedAt:   co.clock.Now(),
	}
	if err := q.InsertConnection(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Connection{}, domain.Conflict("a connection already exists for this interest", "open the existing connection")
		}
		return domain.Connection{}, err
	}
	return c, nil
}

// participant loads the connection and checks userID is one of its parties.
func participant(ctx context.Context, q store.Queries, userID, id string, lock bool) (domain.Connection, domain.PartyRole, error) {
	c, err := q.GetConnection(ctx, id, lock)
	if err != nil {
		return domain.Connection{}, "", notFound(err)
	}
	role, ok := c.RoleOf(userID)
	if !ok {
		return domain.Connection{}, "", domain.Forbidden("you are not part of this connection", "open one of your own connections from GET /connections/mine")
	}
	return c, role, nil
}

// Cancel ends a connection before anyone has confirmed completion. The
// request is cancelled with it.
func (co *Coordinator) Cancel(ctx context.Context, userID, id string) (domain.Connection, error) {
	var out domain.Connection
	err := co.store.InTx(ctx, func(q store.Queries) error {
		c, _, err := participant(ctx, q, userID, id, true)
		if err != nil {
			return err
		}
		if !c.Status.Live() {
			return domain.Conflict("connection is already "+string(c.Status), "check GET /connections/:id/status for its current state")
		}
		confs, err := q.ListConfirmations(ctx, c.ID)
		if err != nil {
			return err
		}
		if c.RequesterConfirmed || c.ProviderConfirmed || len(confs) > 0 {
			return domain.Conflict("a completion confirmation already exists", "confirm completion to finish this connection")
		}

		now := co.clock.Now()
		c.Status = domain.ConnectionCancelled
		c.CancelledAt = &now
		if err := q.UpdateConnection(ctx, c); err != nil {
			return err
		}
		if c.RequestID != nil {
			r, err := q.GetRequest(ctx, *c.RequestID, true)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if err == nil && r.Status == domain.RequestInProgress {
				r.Status = domain.RequestCancelled
				r.UpdatedAt = now
				if err := q.UpdateRequest(ctx, r); err != nil {
					return err
				}
			}
		}
		out = c
		return nil
	})
	if err == nil {
		log.Printf("[connections] connection=%s cancelled by user=%s", out.ID, userID)
	}
	return out, err
}

func (co *Coordinator) Get(ctx context.Context, userID, id string) (domain.Connection, error) {
	return store.Get(ctx, co.store, func(q store.Queries) (domain.Connection, error) {
		c, _, err := participant(ctx, q, userID, id, false)
		return c, err
	})
}

// StatusView is the per-party picture of a connection.
type StatusView struct {
	Connection    domain.Connection               `json:"connection"`
	State         State                           `json:"state"`
	YourRole      domain.PartyRole                `json:"your_role"`
	YouConfirmed  bool                            `json:"you_confirmed"`
	BothConfirmed bool                            `json:"both_confirmed"`
	Confirmations []domain.CompletionConfirmation `json:"confirmations"`
	Obligations   []domain.ReviewObligation       `json:"obligations"`
}

func (co *Coordinator) Status(ctx context.Context, userID, id string) (StatusView, error) {
	return store.Get(ctx, co.store, func(q store.Queries) (StatusView, error) {
		c, role, err := participant(ctx, q, userID, id, false)
		if err != nil {
			return StatusView{}, err
		}
		confs, err := q.ListConfirmations(ctx, c.ID)
		if err != nil {
			return StatusView{}, err
		}
		obs, err := q.ListObligationsByConnection(ctx, c.ID)
		if err != nil {
			return StatusView{}, err
		}
		if confs == nil {
			confs = []domain.CompletionConfirmation{}
		}
		if obs == nil {
			obs = []domain.ReviewObligation{}
		}
		st := StateOf(c)
		return StatusView{
			Connection:    c,
			State:         st,
			YourRole:      role,
			YouConfirmed:  c.Confirmed(role),
			BothConfirmed: st == Completed,
			Confirmations: confs,
			Obligations:   obs,
		}, nil
	})
}

func (co *Coordinator) ListMine(ctx context.Context, userID string) ([]domain.Connection, error) {
	list, err := store.Get(ctx, co.store, func(q store.Queries) ([]domain.Connection, error) {
		return q.ListConnectionsByUser(ctx, userID)
	})
	if list == nil {
		list = []domain.Connection{}
	}
	return list, err
}

func (co *Coordinator) notify(ctx context.Context, e events.Event) {
	if err := co.events.Publish(ctx, e); err != nil {
		log.Printf("[connections] notify %s user=%s: %v", e.Type, e.UserID, err)
	}
}
