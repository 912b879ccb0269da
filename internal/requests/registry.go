// Package requests owns the service request lifecycle from posting to
// selection, expiry or cancellation.
package requests

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/zillah777/fixia-platform-sub000/internal/connections"
	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/events"
	"github.com/zillah777/fixia-platform-sub000/internal/interests"
	"github.com/zillah777/fixia-platform-sub000/internal/obligations"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

// Dispatcher schedules matching for a freshly created request. It must not
// block on delivery.
type Dispatcher interface {
	Schedule(ctx context.Context, requestID string) error
}

type Registry struct {
	store    store.Store
	clock    domain.Clock
	events   events.Publisher
	gate     *obligations.Gate
	ledger   *interests.Ledger
	coord    *connections.Coordinator
	dispatch Dispatcher
	windows  map[domain.UrgencyTier]time.Duration
}

type Deps struct {
	Store       store.Store
	Clock       domain.Clock
	Events      events.Publisher
	Gate        *obligations.Gate
	Ledger      *interests.Ledger
	Coordinator *connections.Coordinator
	Dispatcher  Dispatcher
	// Windows maps each urgency tier to how long its requests stay open.
	Windows map[domain.UrgencyTier]time.Duration
}

func NewRegistry(d Deps) *Registry {
	return &Registry{
		store:    d.Store,
		clock:    d.Clock,
		events:   d.Events,
		gate:     d.Gate,
		ledger:   d.Ledger,
		coord:    d.Coordinator,
		dispatch: d.Dispatcher,
		windows:  d.Windows,
	}
}

const (
	maxTitleLen       = 200
	maxDescriptionLen = 4000
)

type CreateInput struct {
	CategoryID  string             `json:"category_id"`
	Locality    string             `json:"locality"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	UrgencyTier domain.UrgencyTier `json:"urgency_tier"`
	BudgetMin   float64            `json:"budget_min"`
	BudgetMax   float64            `json:"budget_max"`
}

func validateBudget(lo, hi float64) error {
	if lo < 0 || hi < 0 {
		return domain.Validation("budget must not be negative", "send a budget of zero or more")
	}
	if hi > 0 && hi < lo {
		return domain.Validation("budget_max is below budget_min", "swap or correct the budget range")
	}
	return nil
}

func validateText(title, description string) error {
	if strings.TrimSpace(title) == "" {
		return domain.Validation("title is required", "describe the job in a few words")
	}
	if len(title) > maxTitleLen {
		return domain.Validation(fmt.Sprintf("title is longer than %d characters", maxTitleLen), "shorten the title")
	}
	if strings.IndexFunc(title, unicode.IsControl) >= 0 {
		return domain.Validation("title must be a single line of text", "remove line breaks and tabs from the title")
	}
	if len(description) > maxDescriptionLen {
		return domain.Validation(fmt.Sprintf("description is longer than %d characters", maxDescriptionLen), "shorten the description")
	}
	return nil
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.CategoryID) == "" {
		return domain.Validation("category_id is required", "pick a service category")
	}
	if strings.TrimSpace(in.Locality) == "" || in.Locality == domain.AllLocalities {
		return domain.Validation("locality is required", "pick the locality where the work is needed")
	}
	if !in.UrgencyTier.Valid() {
		return domain.Validation("urgency_tier must be one of emergency, high, medium, low", "pick one of the four urgency tiers")
	}
	if err := validateText(in.Title, in.Description); err != nil {
		return err
	}
	return validateBudget(in.BudgetMin, in.BudgetMax)
}

// UpdateInput changes only the fields that are present.
type UpdateInput struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	BudgetMin   *float64 `json:"budget_min"`
	BudgetMax   *float64 `json:"budget_max"`
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound("request")
	}
	return err
}

// Create posts a new active request for requesterID and schedules matching.
func (rg *Registry) Create(ctx context.Context, requesterID string, in CreateInput) (domain.ServiceRequest, error) {
	if err := in.validate(); err != nil {
		return domain.ServiceRequest{}, err
	}

	var r domain.ServiceRequest
	err := rg.store.InTx(ctx, func(q store.Queries) error {
		// The token role may predate a role switch; the stored role decides.
		u, err := q.GetUser(ctx, requesterID, false)
		if errors.Is(err, store.ErrNotFound) {
			return domain.NotFound("user")
		}
		if err != nil {
			return err
		}
		if u.Role != domain.RoleRequester {
			return domain.Forbidden("only requesters can post requests", "switch to the requester role first")
		}
		if err := rg.gate.Check(ctx, q, requesterID); err != nil {
			return err
		}
		now := rg.clock.Now()
		r = domain.ServiceRequest{
			ID:          uuid.NewString(),
			RequesterID: requesterID,
			CategoryID:  strings.TrimSpace(in.CategoryID),
			Locality:    strings.TrimSpace(in.Locality),
			Title:       strings.TrimSpace(in.Title),
			Description: in.Description,
			UrgencyTier: in.UrgencyTier,
			BudgetMin:   in.BudgetMin,
			BudgetMax:   in.BudgetMax,
			Status:      domain.RequestActive,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(rg.windows[in.UrgencyTier]),
		}
		return q.InsertRequest(ctx, r)
	})
	if err != nil {
		return domain.ServiceRequest{}, err
	}

	log.Printf("[requests] request=%s created urgency=%s expires=%s", r.ID, r.UrgencyTier, r.ExpiresAt.Format(time.RFC3339))
	if rg.dispatch != nil {
		if err := rg.dispatch.Schedule(ctx, r.ID); err != nil {
			log.Printf("[requests] schedule dispatch request=%s: %v", r.ID, err)
		}
	}
	return r, nil
}

// Expire moves one lapsed active request to expired. It reports whether
// anything changed and is a no-op otherwise.
func (rg *Registry) Expire(ctx context.Context, id string) (bool, error) {
	var changed bool
	err := rg.store.InTx(ctx, func(q store.Queries) error {
		changed = false
		r, err := q.GetRequest(ctx, id, true)
		if err != nil {
			return notFound(err)
		}
		now := rg.clock.Now()
		if r.Status != domain.RequestActive || !r.Lapsed(now) {
			return nil
		}
		list, err := q.ListInterestsByRequest(ctx, id)
		if err != nil {
			return err
		}
		for _, in := range list {
			if in.Status == domain.InterestAccepted {
				return nil
			}
		}
		r.Status = domain.RequestExpired
		r.UpdatedAt = now
		changed = true
		return q.UpdateRequest(ctx, r)
	})
	return changed, err
}

// SweepExpired expires every lapsed active request in one statement.
func (rg *Registry) SweepExpired(ctx context.Context) (int, error) {
	ids, err := store.Get(ctx, rg.store, func(q store.Queries) ([]string, error) {
		return q.ExpireDueRequests(ctx, rg.clock.Now())
	})
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		log.Printf("[requests] expired %d request(s)", len(ids))
	}
	return len(ids), nil
}

// Selection is what the requester gets back from Select.
type Selection struct {
	Request    domain.ServiceRequest `json:"request"`
	Interest   domain.Interest       `json:"interest"`
	Connection domain.Connection     `json:"connection"`
}

// Select accepts interestID on requestID, rejects the other pending
// interests and opens the connection, all in one transaction. The request
// row lock makes a concurrent second select observe a non-active request.
func (rg *Registry) Select(ctx context.Context, requesterID, requestID, interestID string) (Selection, error) {
	var (
		sel      Selection
		rejected []domain.Interest
	)
	err := rg.store.InTx(ctx, func(q store.Queries) error {
		r, err := q.GetRequest(ctx, requestID, true)
		if err != nil {
			return notFound(err)
		}
		if r.RequesterID != requesterID {
			return domain.Forbidden("only the requester can select a provider", "select providers only on requests you posted")
		}
		now := rg.clock.Now()
		switch {
		case r.Status == domain.RequestExpired, r.Status == domain.RequestActive && r.Lapsed(now):
			return domain.Expired("this request has expired")
		case r.Status != domain.RequestActive:
			return domain.Conflict("this request is no longer open", "refresh the request to see its current state")
		}

		in, err := q.GetInterest(ctx, interestID, true)
		if errors.Is(err, store.ErrNotFound) {
			return domain.NotFound("interest")
		}
		if err != nil {
			return err
		}
		if in.RequestID != r.ID {
			return domain.Conflict("interest does not belong to this request", "pick an interest from this request")
		}

		accepted, rej, err := rg.ledger.Accept(ctx, q, in)
		if err != nil {
			return err
		}
		providerID := accepted.ProviderID
		r.Status = domain.RequestInProgress
		r.SelectedProviderID = &providerID
		r.UpdatedAt = now
		if err := q.UpdateRequest(ctx, r); err != nil {
			return err
		}
		conn, err := rg.coord.Open(ctx, q, r, accepted)
		if err != nil {
			return err
		}
		sel = Selection{Request: r, Interest: accepted, Connection: conn}
		rejected = rej
		return nil
	})
	if err != nil {
		return Selection{}, err
	}

	rg.notify(ctx, events.Event{
		UserID:    sel.Interest.ProviderID,
		Type:      events.InterestAccepted,
		Title:     "Your interest was accepted",
		Body:      fmt.Sprintf("You were selected for %q.", sel.Request.Title),
		Reference: sel.Connection.ID,
		Data: map[string]any{
			"request_id":    sel.Request.ID,
			"connection_id": sel.Connection.ID,
			"channel_id":    sel.Connection.ChannelID,
		},
		At: sel.Connection.CreatedAt,
	})
	for _, in := range rejected {
		rg.notify(ctx, events.Event{
			UserID:    in.ProviderID,
			Type:      events.InterestRejected,
			Title:     "Another provider was selected",
			Body:      fmt.Sprintf("The requester chose another provider for %q.", sel.Request.Title),
			Reference: sel.Request.ID,
			Data:      map[string]any{"request_id": sel.Request.ID, "interest_id": in.ID},
			At:        in.UpdatedAt,
		})
	}
	return sel, nil
}

// Get returns a request to its owner, its selected provider, or anyone
// while it is still open.
func (rg *Registry) Get(ctx context.Context, userID, id string) (domain.ServiceRequest, error) {
	r, err := store.Get(ctx, rg.store, func(q store.Queries) (domain.ServiceRequest, error) {
		r, err := q.GetRequest(ctx, id, false)
		return r, notFound(err)
	})
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if r.RequesterID == userID || r.Open(rg.clock.Now()) {
		return r, nil
	}
	if r.SelectedProviderID != nil && *r.SelectedProviderID == userID {
		return r, nil
	}
	return domain.ServiceRequest{}, domain.Forbidden("this request is no longer public", "browse requests that are still open")
}

func (rg *Registry) ListMine(ctx context.Context, requesterID string, status domain.RequestStatus) ([]domain.ServiceRequest, error) {
	if status != "" && !status.Valid() {
		return nil, domain.Validation("unknown status filter", "use active, in_progress, completed, cancelled or expired")
	}
	list, err := store.Get(ctx, rg.store, func(q store.Queries) ([]domain.ServiceRequest, error) {
		return q.ListRequestsByRequester(ctx, requesterID, status)
	})
	if list == nil {
		list = []domain.ServiceRequest{}
	}
	return list, err
}

// editable loads an open request owned by requesterID.
func (rg *Registry) editable(ctx context.Context, q store.Queries, requesterID, id string) (domain.ServiceRequest, error) {
	r, err := q.GetRequest(ctx, id, true)
	if err != nil {
		return domain.ServiceRequest{}, notFound(err)
	}
	if r.RequesterID != requesterID {
		return domain.ServiceRequest{}, domain.Forbidden("only the requester can change this request", "edit one of your own requests instead")
	}
	if r.Status == domain.RequestExpired || r.Lapsed(rg.clock.Now()) && r.Status == domain.RequestActive {
		return domain.ServiceRequest{}, domain.Expired("this request has expired")
	}
	if r.Status != domain.RequestActive {
		return domain.ServiceRequest{}, domain.Conflict("only active requests can change", "post a new request instead")
	}
	return r, nil
}

func (rg *Registry) Update(ctx context.Context, requesterID, id string, in UpdateInput) (domain.ServiceRequest, error) {
	var out domain.ServiceRequest
	err := rg.store.InTx(ctx, func(q store.Queries) error {
		r, err := rg.editable(ctx, q, requesterID, id)
		if err != nil {
			return err
		}
		if in.Title != nil {
			r.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			r.Description = *in.Description
		}
		if in.BudgetMin != nil {
			r.BudgetMin = *in.BudgetMin
		}
		if in.BudgetMax != nil {
			r.BudgetMax = *in.BudgetMax
		}
		if err := validateText(r.Title, r.Description); err != nil {
			return err
		}
		if err := validateBudget(r.BudgetMin, r.BudgetMax); err != nil {
			return err
		}
		r.UpdatedAt = rg.clock.Now()
		out = r
		return q.UpdateRequest(ctx, r)
	})
	return out, err
}

// Cancel withdraws an active request. Pending interests stay visible.
func (rg *Registry) Cancel(ctx context.Context, requesterID, id string) (domain.ServiceRequest, error) {
	var out domain.ServiceRequest
	err := rg.store.InTx(ctx, func(q store.Queries) error {
		r, err := rg.editable(ctx, q, requesterID, id)
		if err != nil {
			return err
		}
		r.Status = domain.RequestCancelled
		r.UpdatedAt = rg.clock.Now()
		out = r
		return q.UpdateRequest(ctx, r)
	})
	return out, err
}

func (rg *Registry) notify(ctx context.Context, e events.Event) {
	if err := rg.events.Publish(ctx, e); err != nil {
		log.Printf("[requests] notify %s user=%s: %v", e.Type, e.UserID, err)
	}
}
