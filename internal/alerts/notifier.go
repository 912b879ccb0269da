package alerts

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/events"
	"github.com/zillah777/fixia-platform-sub000/internal/realtime"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

// Pusher delivers a realtime frame to a user's open sockets.
type Pusher interface {
	Push(userID string, m realtime.Message) int
}

// EmailQueue accepts outbound email work.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, p EmailPayload) error
}

// emailed lists the event types that also go out by email.
var emailed = map[events.Type]bool{
	events.NewServiceRequest:        true,
	events.InterestAccepted:         true,
	events.ServiceMutuallyCompleted: true,
	events.ReviewObligationOverdue:  true,
}

// Notifier is the production events.Publisher. The in-app row is the
// delivery of record; the realtime push and the email are best effort.
type Notifier struct {
	store  store.Store
	clock  domain.Clock
	hub    Pusher
	mail   EmailQueue
	appURL string
}

func NewNotifier(s store.Store, clock domain.Clock, hub Pusher, mail EmailQueue, appURL string) *Notifier {
	if appURL == "" {
		appURL = "http://localhost:3000"
	}
	return &Notifier{store: s, clock: clock, hub: hub, mail: mail, appURL: strings.TrimRight(appURL, "/")}
}

func (n *Notifier) Publish(ctx context.Context, e events.Event) error {
	at := e.At
	if at.IsZero() {
		at = n.clock.Now()
	}
	row := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    e.UserID,
		Type:      string(e.Type),
		Title:     e.Title,
		Body:      e.Body,
		Reference: e.Reference,
		CreatedAt: at,
	}
	if err := n.store.InTx(ctx, func(q store.Queries) error {
		return q.InsertNotification(ctx, row)
	}); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	if n.hub != nil {
		n.hub.Push(e.UserID, realtime.Message{Type: string(e.Type), Data: e})
	}

	if n.mail != nil && emailed[e.Type] {
		n.email(ctx, e)
	}
	return nil
}

func (n *Notifier) email(ctx context.Context, e events.Event) {
	u, err := store.Get(ctx, n.store, func(q store.Queries) (domain.User, error) {
		return q.GetUser(ctx, e.UserID, false)
	})
	if err != nil {
		log.Printf("[notify][ERROR] lookup user=%s for %s email: %v", e.UserID, e.Type, err)
		return
	}
	if u.Email == "" {
		return
	}
	body := fmt.Sprintf("Hi %s,\n\n%s\n\nOpen Fixia: %s\n\nIf the link doesn't work, copy and paste the URL above.", u.Name, e.Body, n.appURL)
	err = n.mail.EnqueueEmail(ctx, EmailPayload{
		UserID:   u.ID,
		Type:     string(e.Type),
		Envelope: EmailEnvelope{To: u.Email, Subject: e.Title, Body: body},
		SentAt:   n.clock.Now(),
	})
	if err != nil {
		log.Printf("[notify][ERROR] enqueue %s email user=%s: %v", e.Type, e.UserID, err)
	}
}
