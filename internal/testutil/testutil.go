// Package testutil holds shared fakes and fixtures for package tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/events"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

// T0 is the reference instant used across scenario tests.
var T0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// Clock is a settable domain.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Publisher records every event it receives. When Fail is set it returns
// that error for events addressed to the matching user ("" matches all).
type Publisher struct {
	mu     sync.Mutex
	events []events.Event
	Fail   error
	FailOn string
}

func (p *Publisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Fail != nil && (p.FailOn == "" || p.FailOn == e.UserID) {
		return p.Fail
	}
	p.events = append(p.events, e)
	return nil
}

func (p *Publisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// OfType returns the recorded events of type t, in publish order.
func (p *Publisher) OfType(t events.Type) []events.Event {
	var out []events.Event
	for _, e := range p.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// SeedUser inserts a user with the given role.
func SeedUser(t testing.TB, s store.Store, id string, role domain.Role) domain.User {
	t.Helper()
	u := domain.User{
		ID:        id,
		Name:      id,
		Email:     id + "@fixia.test",
		Role:      role,
		IsActive:  true,
		CreatedAt: T0,
	}
	err := s.InTx(context.Background(), func(q store.Queries) error {
		if err := q.CreateUser(context.Background(), u); err != nil {
			return err
		}
		return q.SetRoleProfile(context.Background(), domain.RoleProfile{UserID: id, Role: role, Active: true, UpdatedAt: T0})
	})
	require.NoError(t, err)
	return u
}

// SeedProvider inserts a provider user and an eligible work profile. mutate
// may adjust the profile before it is saved.
func SeedProvider(t testing.TB, s store.Store, id, category, locality string, mutate func(*domain.WorkProfile)) domain.WorkProfile {
	t.Helper()
	SeedUser(t, s, id, domain.RoleProvider)
	p := domain.DefaultWorkProfile(id, T0)
	p.Categories = []string{category}
	p.Localities = []string{locality}
	p.Available = true
	p.Verified = true
	p.Tier = domain.TierBasic
	if mutate != nil {
		mutate(&p)
	}
	err := s.InTx(context.Background(), func(q store.Queries) error {
		return q.SaveWorkProfile(context.Background(), p)
	})
	require.NoError(t, err)
	return p
}
