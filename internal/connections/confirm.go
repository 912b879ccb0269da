package connections

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/events"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

// State is the mutual completion progress of a connection.
type State string

const (
	NoConfirmations State = "no_confirmations"
	OneConfirmed    State = "one_confirmed"
	Completed       State = "completed"
)

// StateOf derives the state from the monotonic confirmation flags.
func StateOf(c domain.Connection) State {
	switch {
	case c.RequesterConfirmed && c.ProviderConfirmed:
		return Completed
	case c.RequesterConfirmed || c.ProviderConfirmed:
		return OneConfirmed
	}
	return NoConfirmations
}

const maxNoteLen = 1000

type ConfirmInput struct {
	Note     string `json:"note"`
	Evidence bool   `json:"evidence"`
}

type ConfirmResult struct {
	Connection    domain.Connection `json:"connection"`
	State         State             `json:"state"`
	BothConfirmed bool              `json:"both_confirmed"`
}

// Confirm records partyID's attestation that the work was delivered. The
// connection row stays locked from the read of the flags to the write, so
// of two simultaneous confirmations exactly one sees the other's flag and
// completes the connection.
func (co *Coordinator) Confirm(ctx context.Context, connectionID, partyID string, in ConfirmInput) (ConfirmResult, error) {
	if len(in.Note) > maxNoteLen {
		return ConfirmResult{}, domain.Validation(fmt.Sprintf("note is longer than %d characters", maxNoteLen), "shorten the note")
	}

	var res ConfirmResult
	err := co.store.InTx(ctx, func(q store.Queries) error {
		c, role, err := participant(ctx, q, partyID, connectionID, true)
		if err != nil {
			return err
		}
		switch c.Status {
		case domain.ConnectionCancelled:
			return domain.Conflict("this connection was cancelled", "post a new request if the work is still needed")
		case domain.ConnectionCompleted:
			return domain.Conflict("this connection is already completed", "leave a review for your counterpart")
		}
		if c.Confirmed(role) {
			return domain.Conflict("you already confirmed completion", "wait for the other party to confirm")
		}

		now := co.clock.Now()
		err = q.InsertConfirmation(ctx, domain.CompletionConfirmation{
			ConnectionID:     c.ID,
			PartyID:          partyID,
			Role:             role,
			SatisfactionNote: in.Note,
			EvidenceFlag:     in.Evidence,
			CreatedAt:        now,
		})
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Conflict("you already confirmed completion", "wait for the other party to confirm")
		}
		if err != nil {
			return err
		}

		if role == domain.PartyRequester {
			c.RequesterConfirmed = true
		} else {
			c.ProviderConfirmed = true
		}
		if StateOf(c) == Completed {
			if err := co.complete(ctx, q, &c, now); err != nil {
				return err
			}
		} else if err := q.UpdateConnection(ctx, c); err != nil {
			return err
		}

		res = ConfirmResult{Connection: c, State: StateOf(c), BothConfirmed: StateOf(c) == Completed}
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	c := res.Connection
	if res.BothConfirmed {
		log.Printf("[connections] connection=%s completed", c.ID)
		for _, uid := range []string{c.RequesterID, c.ProviderID} {
			co.notify(ctx, events.Event{
				UserID:    uid,
				Type:      events.ServiceMutuallyCompleted,
				Title:     "Service completed",
				Body:      "Both parties confirmed completion. Please leave a review for your counterpart.",
				Reference: c.ID,
				Data:      map[string]any{"connection_id": c.ID, "completed_at": c.CompletedAt},
				At:        *c.CompletedAt,
			})
		}
	} else {
		co.notify(ctx, events.Event{
			UserID:    c.Counterpart(partyID),
			Type:      events.PartnerConfirmedCompletion,
			Title:     "Your partner confirmed completion",
			Body:      "Confirm completion too so the service can be closed.",
			Reference: c.ID,
			Data:      map[string]any{"connection_id": c.ID},
			At:        co.clock.Now(),
		})
	}
	return res, nil
}

// complete is the only path to a completed connection. It is reached from
// Confirm once both flags are set, inside the same transaction.
func (co *Coordinator) complete(ctx context.Context, q store.Queries, c *domain.Connection, now time.Time) error {
	c.Status = domain.ConnectionCompleted
	c.CompletedAt = &now
	if err := q.UpdateConnection(ctx, *c); err != nil {
		return err
	}
	if c.RequestID != nil {
		r, err := q.GetRequest(ctx, *c.RequestID, true)
		switch {
		case err == nil:
			r.Status = domain.RequestCompleted
			r.UpdatedAt = now
			if err := q.UpdateRequest(ctx, r); err != nil {
				return err
			}
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
	}
	_, err := co.gate.Open(ctx, q, *c, now)
	return err
}
