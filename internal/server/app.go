// Package server assembles the services and exposes them over HTTP.
package server

import (
	"github.com/zillah777/fixia-platform-sub000/internal/alerts"
	"github.com/zillah777/fixia-platform-sub000/internal/auth"
	"github.com/zillah777/fixia-platform-sub000/internal/config"
	"github.com/zillah777/fixia-platform-sub000/internal/connections"
	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/events"
	"github.com/zillah777/fixia-platform-sub000/internal/interests"
	"github.com/zillah777/fixia-platform-sub000/internal/matching"
	"github.com/zillah777/fixia-platform-sub000/internal/obligations"
	"github.com/zillah777/fixia-platform-sub000/internal/profiles"
	"github.com/zillah777/fixia-platform-sub000/internal/realtime"
	"github.com/zillah777/fixia-platform-sub000/internal/requests"
	"github.com/zillah777/fixia-platform-sub000/internal/reviews"
	"github.com/zillah777/fixia-platform-sub000/internal/roles"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

type Deps struct {
	Store     store.Store
	Clock     domain.Clock
	Tuning    config.Tuning
	JWTSecret string
	AppURL    string
	// Mail receives outbound email. Nil disables email.
	Mail alerts.EmailQueue
	// Dispatcher schedules matching for new requests. When nil the engine
	// runs in-process through a matching.AsyncDispatcher.
	Dispatcher requests.Dispatcher
	// Events overrides the notifier; tests use it to record events.
	Events events.Publisher
}

// App holds every service of one running instance.
type App struct {
	Store       store.Store
	Clock       domain.Clock
	Hub         *realtime.Hub
	Events      events.Publisher
	Tokens      *auth.Tokens
	Gate        *obligations.Gate
	Directory   *profiles.Directory
	Engine      *matching.Engine
	Ledger      *interests.Ledger
	Coordinator *connections.Coordinator
	Registry    *requests.Registry
	Reviews     *reviews.Service
	Roles       *roles.Guard
	// Async is set when dispatch runs in-process.
	Async *matching.AsyncDispatcher

	authRatePerMinute int
}

func NewApp(d Deps) *App {
	if d.Clock == nil {
		d.Clock = domain.SystemClock
	}
	t := d.Tuning
	hub := realtime.NewHub()

	pub := d.Events
	if pub == nil {
		pub = alerts.NewNotifier(d.Store, d.Clock, hub, d.Mail, d.AppURL)
	}

	a := &App{
		Store:             d.Store,
		Clock:             d.Clock,
		Hub:               hub,
		Events:            pub,
		Tokens:            auth.NewTokens(d.JWTSecret),
		authRatePerMinute: 20,
	}
	a.Gate = obligations.New(d.Store, d.Clock, pub, t.ObligationDue)
	a.Directory = profiles.NewDirectory(d.Store, d.Clock)
	a.Engine = matching.NewEngine(d.Store, d.Clock, pub, hub, matching.Options{
		Policy: matching.Policy{EligibleTiers: t.EligibleTiers},
		Weights: matching.Weights{
			Rating:    t.RatingWeight,
			TierBonus: t.TierBonus,
			Online:    t.OnlineBonus,
		},
		Parallelism:      t.DispatchParallelism,
		DeliveryTimeout:  t.DeliveryTimeout,
		NoticeStaleAfter: t.NoticeStaleAfter,
	})
	a.Ledger = interests.NewLedger(d.Store, d.Clock, pub, a.Gate)
	a.Coordinator = connections.NewCoordinator(d.Store, d.Clock, pub, a.Gate)

	dispatcher := d.Dispatcher
	if dispatcher == nil {
		a.Async = matching.NewAsyncDispatcher(a.Engine, 0)
		dispatcher = a.Async
	}
	a.Registry = requests.NewRegistry(requests.Deps{
		Store:       d.Store,
		Clock:       d.Clock,
		Events:      pub,
		Gate:        a.Gate,
		Ledger:      a.Ledger,
		Coordinator: a.Coordinator,
		Dispatcher:  dispatcher,
		Windows:     t.UrgencyWindows,
	})
	a.Reviews = reviews.NewService(d.Store, d.Clock, pub, a.Gate, t.ReviewEditWindow)
	a.Roles = roles.NewGuard(d.Store, d.Clock, a.Gate)
	return a
}

// Wait blocks until in-process dispatches have finished.
func (a *App) Wait() {
	if a.Async != nil {
		a.Async.Wait()
	}
}
