// Package events defines the user-facing notifications emitted by the core
// services after their transactions commit.
package events

import (
	"context"
	"time"
)

type Type string

const (
	NewInterest                Type = "new_interest"
	InterestAccepted           Type = "interest_accepted"
	InterestRejected           Type = "interest_rejected"
	PartnerConfirmedCompletion Type = "partner_confirmed_completion"
	ServiceMutuallyCompleted   Type = "service_mutually_completed"
	NewServiceRequest          Type = "new_service_request"
	ReviewReceived             Type = "review_received"
	ReviewObligationOverdue    Type = "review_obligation_overdue"
)

// Event is addressed to one user.
type Event struct {
	UserID    string         `json:"user_id"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Reference string         `json:"reference,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	At        time.Time      `json:"at"`
}

// Publisher delivers events. Callers treat failures as best effort: state
// has already committed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })

// PublishAll sends each event and returns the first error. Every event is
// attempted.
func PublishAll(ctx context.Context, p Publisher, evs ...Event) error {
	var first error
	for _, e := range evs {
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
