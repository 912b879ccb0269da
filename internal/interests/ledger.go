// Package interests records provider bids on service requests.
package interests

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/events"
	"github.com/zillah777/fixia-platform-sub000/internal/matching"
	"github.com/zillah777/fixia-platform-sub000/internal/obligations"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

const maxMessageLen = 1000

type Ledger struct {
	store  store.Store
	clock  domain.Clock
	events events.Publisher
	gate   *obligations.Gate
}

func NewLedger(s store.Store, clock domain.Clock, pub events.Publisher, gate *obligations.Gate) *Ledger {
	return &Ledger{store: s, clock: clock, events: pub, gate: gate}
}

// Terms are the provider's offer.
type Terms struct {
	ProposedPrice float64 `json:"proposed_price"`
	Message       string  `json:"message"`
}

func (t Terms) validate() error {
	if t.ProposedPrice < 0 {
		return domain.Validation("proposed_price must not be negative", "send a price of zero or more")
	}
	if len(t.Message) > maxMessageLen {
		return domain.Validation(fmt.Sprintf("message is longer than %d characters", maxMessageLen), "shorten the message")
	}
	return nil
}

// UpdateInput changes only the fields that are present.
type UpdateInput struct {
	ProposedPrice *float64 `json:"proposed_price"`
	Message       *string  `json:"message"`
}

func requestNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound("request")
	}
	return err
}

func interestNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound("interest")
	}
	return err
}

// Submit records providerID's bid on requestID.
func (l *Ledger) Submit(ctx context.Context, providerID, requestID string, terms Terms) (domain.Interest, error) {
	if err := terms.validate(); err != nil {
		return domain.Interest{}, err
	}

	var (
		in  domain.Interest
		req domain.ServiceRequest
	)
	err := l.store.InTx(ctx, func(q store.Queries) error {
		if err := l.gate.Check(ctx, q, providerID); err != nil {
			return err
		}

		now := l.clock.Now()
		r, err := q.GetRequest(ctx, requestID, true)
		if err != nil {
			return requestNotFound(err)
		}
		switch {
		case r.Status == domain.RequestExpired, r.Status == domain.RequestActive && r.Lapsed(now):
			return domain.Expired("this request has expired")
		case r.Status != domain.RequestActive:
			return domain.NotFound("open request")
		case r.RequesterID == providerID:
			return domain.Forbidden("you cannot bid on your own request", "browse requests posted by others")
		}

		profile, err := q.GetWorkProfile(ctx, providerID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.Forbidden("a work profile is required to submit interests", "complete your work profile")
		}
		if err != nil {
			return err
		}
		if !profile.Active || !matching.Covers(r, profile) {
			return domain.Forbidden("your work profile does not cover this category and locality", "add the category and locality to your work profile")
		}

		in = domain.Interest{
			ID:            uuid.NewString(),
			RequestID:     r.ID,
			ProviderID:    providerID,
			ProposedPrice: terms.ProposedPrice,
			Message:       terms.Message,
			Status:        domain.InterestPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := q.InsertInterest(ctx, in); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return domain.Conflict("you already expressed interest in this request", "update your existing interest instead")
			}
			return err
		}

		r.InterestedCount++
		r.UpdatedAt = now
		req = r
		return q.UpdateRequest(ctx, r)
	})
	if err != nil {
		return domain.Interest{}, err
	}

	l.notify(ctx, events.Event{
		UserID:    req.RequesterID,
		Type:      events.NewInterest,
		Title:     "New interest in your request",
		Body:      fmt.Sprintf("A provider is interested in %q.", req.Title),
		Reference: req.ID,
		Data:      map[string]any{"request_id": req.ID, "interest_id": in.ID, "proposed_price": in.ProposedPrice},
		At:        in.CreatedAt,
	})
	return in, nil
}

// Accept marks interest accepted and rejects every other pending interest on
// the same request. It runs inside the caller's transaction and publishes
// nothing; the caller notifies after commit.
func (l *Ledger) Accept(ctx context.Context, q store.Queries, interest domain.Interest) (domain.Interest, []domain.Interest, error) {
	if interest.Status != domain.InterestPending {
		return domain.Interest{}, nil, domain.Conflict("interest is no longer pending", "refresh the list of interests")
	}
	now := l.clock.Now()
	interest.Status = domain.InterestAccepted
	interest.UpdatedAt = now
	if err := q.UpdateInterest(ctx, interest); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Interest{}, nil, domain.Conflict("another interest was already accepted", "refresh the request")
		}
		return domain.Interest{}, nil, err
	}
	rejected, err := q.RejectPendingInterests(ctx, interest.RequestID, interest.ID, now)
	if err != nil {
		return domain.Interest{}, nil, err
	}
	return interest, rejected, nil
}

// mutable loads an interest owned by providerID that is still editable.
func (l *Ledger) mutable(ctx context.Context, q store.Queries, providerID, interestID string) (domain.Interest, domain.ServiceRequest, error) {
	in, err := q.GetInterest(ctx, interestID, false)
	if err != nil {
		return domain.Interest{}, domain.ServiceRequest{}, interestNotFound(err)
	}
	if in.ProviderID != providerID {
		return domain.Interest{}, domain.ServiceRequest{}, domain.Forbidden("this interest belongs to another provider", "manage your own interests from GET /interests/mine")
	}
	// Lock order is request then interest, the same as selection.
	r, err := q.GetRequest(ctx, in.RequestID, true)
	if err != nil {
		return domain.Interest{}, domain.ServiceRequest{}, requestNotFound(err)
	}
	if in, err = q.GetInterest(ctx, interestID, true); err != nil {
		return domain.Interest{}, domain.ServiceRequest{}, interestNotFound(err)
	}
	if in.Status != domain.InterestPending || !r.Open(l.clock.Now()) {
		return domain.Interest{}, domain.ServiceRequest{}, domain.Conflict("interest can only change while pending on an open request", "refresh the request")
	}
	return in, r, nil
}

// Withdraw retracts a pending interest.
func (l *Ledger) Withdraw(ctx context.Context, providerID, interestID string) (domain.Interest, error) {
	var out domain.Interest
	err := l.store.InTx(ctx, func(q store.Queries) error {
		in, r, err := l.mutable(ctx, q, providerID, interestID)
		if err != nil {
			return err
		}
		now := l.clock.Now()
		in.Status = domain.InterestWithdrawn
		in.UpdatedAt = now
		if err := q.UpdateInterest(ctx, in); err != nil {
			return err
		}
		if r.InterestedCount > 0 {
			r.InterestedCount--
		}
		r.UpdatedAt = now
		out = in
		return q.UpdateRequest(ctx, r)
	})
	return out, err
}

// Update changes the present fields of a pending interest and flags it as
// unseen by the requester.
func (l *Ledger) Update(ctx context.Context, providerID, interestID string, in UpdateInput) (domain.Interest, error) {
	var out domain.Interest
	err := l.store.InTx(ctx, func(q store.Queries) error {
		cur, _, err := l.mutable(ctx, q, providerID, interestID)
		if err != nil {
			return err
		}
		terms := Terms{ProposedPrice: cur.ProposedPrice, Message: cur.Message}
		if in.ProposedPrice != nil {
			terms.ProposedPrice = *in.ProposedPrice
		}
		if in.Message != nil {
			terms.Message = *in.Message
		}
		if err := terms.validate(); err != nil {
			return err
		}
		cur.ProposedPrice, cur.Message = terms.ProposedPrice, terms.Message
		cur.ViewedByRequester = false
		cur.UpdatedAt = l.clock.Now()
		out = cur
		return q.UpdateInterest(ctx, cur)
	})
	return out, err
}

// ListForRequest returns every interest on the request and marks them
// viewed. Only the requester may list them.
func (l *Ledger) ListForRequest(ctx context.Context, requesterID, requestID string) ([]domain.Interest, error) {
	var out []domain.Interest
	err := l.store.InTx(ctx, func(q store.Queries) error {
		r, err := q.GetRequest(ctx, requestID, false)
		if err != nil {
			return requestNotFound(err)
		}
		if r.RequesterID != requesterID {
			return domain.Forbidden("only the requester can see these interests", "open one of your own requests instead")
		}
		list, err := q.ListInterestsByRequest(ctx, requestID)
		if err != nil {
			return err
		}
		out = list
		return q.MarkInterestsViewed(ctx, requestID)
	})
	if out == nil {
		out = []domain.Interest{}
	}
	return out, err
}

func (l *Ledger) ListMine(ctx context.Context, providerID string) ([]domain.Interest, error) {
	list, err := store.Get(ctx, l.store, func(q store.Queries) ([]domain.Interest, error) {
		return q.ListInterestsByProvider(ctx, providerID)
	})
	if list == nil {
		list = []domain.Interest{}
	}
	return list, err
}

func (l *Ledger) notify(ctx context.Context, e events.Event) {
	if err := l.events.Publish(ctx, e); err != nil {
		log.Printf("[interests] notify %s user=%s: %v", e.Type, e.UserID, err)
	}
}
