// Package roles moves users between the requester and provider roles.
package roles

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/obligations"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

type Guard struct {
	store store.Store
	clock domain.Clock
	gate  *obligations.Gate
}

func NewGuard(s store.Store, clock domain.Clock, gate *obligations.Gate) *Guard {
	return &Guard{store: s, clock: clock, gate: gate}
}

// Decision explains whether a switch would currently be allowed.
type Decision struct {
	Allowed           bool        `json:"allowed"`
	From              domain.Role `json:"from"`
	To                domain.Role `json:"to,omitempty"`
	Reason            string      `json:"reason,omitempty"`
	Remediation       string      `json:"remediation,omitempty"`
	ActiveConnections int         `json:"active_connections"`
}

// other is the role on the far side of a switch.
func other(r domain.Role) domain.Role {
	if r == domain.RoleProvider {
		return domain.RoleRequester
	}
	return domain.RoleProvider
}

// evaluate runs every switch rule against u inside q. Refusals come back as
// domain errors alongside the live provider connection count.
func (g *Guard) evaluate(ctx context.Context, q store.Queries, u domain.User) (int, error) {
	if !u.Role.Switchable() {
		return 0, domain.Forbidden("admins cannot switch roles", "use a separate requester or provider account")
	}
	if err := g.gate.Check(ctx, q, u.ID); err != nil {
		return 0, err
	}
	if u.Role != domain.RoleProvider {
		return 0, nil
	}
	n, err := q.CountLiveConnectionsAsProvider(ctx, u.ID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return n, &domain.Error{
			Kind:        domain.KindConflict,
			Message:     fmt.Sprintf("you have %d active connection(s) as a provider", n),
			Remediation: "complete or cancel your active connections first",
			Details:     map[string]any{"active_connections": n},
		}
	}
	return 0, nil
}

func userNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound("user")
	}
	return err
}

// CanSwitch reports whether userID may switch to the other role right now.
func (g *Guard) CanSwitch(ctx context.Context, userID string) (Decision, error) {
	return store.Get(ctx, g.store, func(q store.Queries) (Decision, error) {
		u, err := q.GetUser(ctx, userID, false)
		if err != nil {
			return Decision{}, userNotFound(err)
		}
		d := Decision{From: u.Role}
		if u.Role.Switchable() {
			d.To = other(u.Role)
		}
		n, err := g.evaluate(ctx, q, u)
		d.ActiveConnections = n
		var de *domain.Error
		switch {
		case err == nil:
			d.Allowed = true
		case errors.As(err, &de):
			d.Reason = de.Message
			d.Remediation = de.Remediation
		default:
			return Decision{}, err
		}
		return d, nil
	})
}

// Switch moves userID into role. The old role's profile is deactivated and
// the new one seeded or reactivated, so switching back restores it.
func (g *Guard) Switch(ctx context.Context, userID string, role domain.Role) (domain.User, error) {
	if role == domain.RoleAdmin {
		return domain.User{}, domain.Forbidden("the admin role cannot be requested", "ask an operator to grant admin access")
	}
	if !role.Switchable() {
		return domain.User{}, domain.Validation("role must be requester or provider", "send role requester or provider")
	}

	var out domain.User
	err := g.store.InTx(ctx, func(q store.Queries) error {
		u, err := q.GetUser(ctx, userID, true)
		if err != nil {
			return userNotFound(err)
		}
		if u.Role == role {
			return domain.Conflict("you already have the "+string(role)+" role", "no switch is needed")
		}
		if _, err := g.evaluate(ctx, q, u); err != nil {
			return err
		}

		now := g.clock.Now()
		from := u.Role
		if err := q.InsertRoleChange(ctx, domain.RoleChange{
			ID:        uuid.NewString(),
			UserID:    u.ID,
			FromRole:  from,
			ToRole:    role,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := q.SetUserRole(ctx, u.ID, role); err != nil {
			return err
		}
		if err := q.SetRoleProfile(ctx, domain.RoleProfile{UserID: u.ID, Role: from, Active: false, UpdatedAt: now}); err != nil {
			return err
		}
		if err := q.SetRoleProfile(ctx, domain.RoleProfile{UserID: u.ID, Role: role, Active: true, UpdatedAt: now}); err != nil {
			return err
		}

		wp, err := q.GetWorkProfile(ctx, u.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if role == domain.RoleProvider {
				if err := q.SaveWorkProfile(ctx, domain.DefaultWorkProfile(u.ID, now)); err != nil {
					return err
				}
			}
		case err != nil:
			return err
		default:
			wp.Active = role == domain.RoleProvider
			wp.UpdatedAt = now
			if err := q.SaveWorkProfile(ctx, wp); err != nil {
				return err
			}
		}

		u.Role = role
		out = u
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	log.Printf("[roles] user=%s switched to %s", out.ID, out.Role)
	return out, nil
}

func (g *Guard) History(ctx context.Context, userID string) ([]domain.RoleChange, error) {
	list, err := store.Get(ctx, g.store, func(q store.Queries) ([]domain.RoleChange, error) {
		return q.ListRoleChanges(ctx, userID)
	})
	if list == nil {
		list = []domain.RoleChange{}
	}
	return list, err
}
