// Package profiles manages provider work profiles: what they do, where, and
// when they may be notified.
package profiles

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/matching"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

type Directory struct {
	store store.Store
	clock domain.Clock
}

func NewDirectory(s store.Store, clock domain.Clock) *Directory {
	return &Directory{store: s, clock: clock}
}

// UpdateInput changes only the fields that are present. ClearQuietHours
// removes the window and wins over QuietHours.
type UpdateInput struct {
	Categories           *[]string          `json:"categories"`
	Localities           *[]string          `json:"localities"`
	Available            *bool              `json:"available"`
	NotificationsEnabled *bool              `json:"notifications_enabled"`
	QuietHours           *domain.QuietHours `json:"quiet_hours"`
	ClearQuietHours      bool               `json:"clear_quiet_hours"`
}

// VerificationInput carries the outcome of an external identity or
// subscription check.
type VerificationInput struct {
	Verified *bool                    `json:"verified"`
	Tier     *domain.SubscriptionTier `json:"tier"`
}

// Public is the part of a user visible to anyone.
type Public struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Role      domain.Role          `json:"role"`
	Verified  bool                 `json:"verified"`
	Tier      string               `json:"tier,omitempty"`
	Summary   domain.RatingSummary `json:"rating_summary"`
	CreatedAt time.Time            `json:"created_at"`
}

func profileNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &domain.Error{Kind: domain.KindNotFound, Message: "work profile not found", Remediation: "switch to the provider role to create one"}
	}
	return err
}

// normalize trims, drops blanks and de-duplicates while keeping order.
func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func validQuietHours(qh domain.QuietHours) error {
	if !matching.ValidClock(qh.Start) || !matching.ValidClock(qh.End) {
		return domain.Validation("quiet hours must be HH:MM", "use a 24 hour clock, e.g. 22:00")
	}
	if qh.Start == qh.End {
		return domain.Validation("quiet hours start and end must differ", "send different start and end times, or clear the quiet hours")
	}
	if qh.Timezone != "" {
		if _, err := time.LoadLocation(qh.Timezone); err != nil {
			return domain.Validation("unknown timezone "+qh.Timezone, "use an IANA name such as America/Argentina/Buenos_Aires")
		}
	}
	return nil
}

func (d *Directory) Get(ctx context.Context, providerID string) (domain.WorkProfile, error) {
	return store.Get(ctx, d.store, func(q store.Queries) (domain.WorkProfile, error) {
		p, err := q.GetWorkProfile(ctx, providerID)
		return p, profileNotFound(err)
	})
}

// Update edits the caller's own active work profile.
func (d *Directory) Update(ctx context.Context, providerID string, in UpdateInput) (domain.WorkProfile, error) {
	if in.QuietHours != nil && !in.ClearQuietHours {
		if err := validQuietHours(*in.QuietHours); err != nil {
			return domain.WorkProfile{}, err
		}
	}

	var out domain.WorkProfile
	err := d.store.InTx(ctx, func(q store.Queries) error {
		p, err := q.GetWorkProfile(ctx, providerID)
		if err != nil {
			return profileNotFound(err)
		}
		if !p.Active {
			return domain.Forbidden("your work profile is inactive", "switch to the provider role to edit it")
		}
		if in.Categories != nil {
			p.Categories = normalize(*in.Categories)
		}
		if in.Localities != nil {
			p.Localities = normalize(*in.Localities)
		}
		if in.Available != nil {
			p.Available = *in.Available
		}
		if in.NotificationsEnabled != nil {
			p.NotificationsEnabled = *in.NotificationsEnabled
		}
		switch {
		case in.ClearQuietHours:
			p.QuietHours = nil
		case in.QuietHours != nil:
			qh := *in.QuietHours
			p.QuietHours = &qh
		}
		p.UpdatedAt = d.clock.Now()
		if err := q.SaveWorkProfile(ctx, p); err != nil {
			return err
		}
		out, err = q.GetWorkProfile(ctx, providerID)
		return err
	})
	return out, err
}

// SetVerification applies an admin decision on verification and tier.
func (d *Directory) SetVerification(ctx context.Context, providerID string, in VerificationInput) (domain.WorkProfile, error) {
	if in.Tier != nil && !in.Tier.Valid() {
		return domain.WorkProfile{}, domain.Validation("tier must be free, basic or premium", "send one of free, basic or premium")
	}
	if in.Verified == nil && in.Tier == nil {
		return domain.WorkProfile{}, domain.Validation("nothing to change", "send verified and/or tier")
	}

	var out domain.WorkProfile
	err := d.store.InTx(ctx, func(q store.Queries) error {
		p, err := q.GetWorkProfile(ctx, providerID)
		if err != nil {
			return profileNotFound(err)
		}
		if in.Verified != nil {
			p.Verified = *in.Verified
		}
		if in.Tier != nil {
			p.Tier = *in.Tier
		}
		p.UpdatedAt = d.clock.Now()
		if err := q.SaveWorkProfile(ctx, p); err != nil {
			return err
		}
		out, err = q.GetWorkProfile(ctx, providerID)
		return err
	})
	if err == nil {
		log.Printf("[profiles] provider=%s verified=%t tier=%s", out.ProviderID, out.Verified, out.Tier)
	}
	return out, err
}

// Public returns what anyone may see about userID.
func (d *Directory) Public(ctx context.Context, userID string) (Public, error) {
	return store.Get(ctx, d.store, func(q store.Queries) (Public, error) {
		u, err := q.GetUser(ctx, userID, false)
		if errors.Is(err, store.ErrNotFound) {
			return Public{}, domain.NotFound("user")
		}
		if err != nil {
			return Public{}, err
		}
		sum, err := q.RatingSummary(ctx, userID)
		if err != nil {
			return Public{}, err
		}
		pub := Public{ID: u.ID, Name: u.Name, Role: u.Role, Summary: sum, CreatedAt: u.CreatedAt}
		p, err := q.GetWorkProfile(ctx, userID)
		switch {
		case err == nil:
			pub.Verified = p.Verified
			pub.Tier = string(p.Tier)
		case !errors.Is(err, store.ErrNotFound):
			return Public{}, err
		}
		return pub, nil
	})
}
