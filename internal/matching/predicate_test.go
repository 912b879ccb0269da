package matching

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

var policy = Policy{EligibleTiers: []domain.SubscriptionTier{domain.TierBasic, domain.TierPremium}}

func request(urgency domain.UrgencyTier) domain.ServiceRequest {
	return domain.ServiceRequest{
		ID:          "r1",
		RequesterID: "req",
		CategoryID:  "plumbing",
		Locality:    "rawson",
		UrgencyTier: urgency,
		Status:      domain.RequestActive,
	}
}

func profile() domain.WorkProfile {
	return domain.WorkProfile{
		ProviderID:           "p1",
		Categories:           []string{"plumbing"},
		Localities:           []string{"rawson"},
		Available:            true,
		NotificationsEnabled: true,
		Tier:                 domain.TierBasic,
		Verified:             true,
		Active:               true,
	}
}

func TestCovers_LocalityRules(t *testing.T) {
	r := request(domain.UrgencyHigh)

	p := profile()
	assert.True(t, Covers(r, p))

	p.Localities = []string{domain.AllLocalities}
	assert.True(t, Covers(r, p), "wildcard")

	p.Localities = []string{"trelew", domain.AllLocalities}
	assert.True(t, Covers(r, p), "wildcard alongside a different specific locality")

	p.Localities = []string{"trelew"}
	assert.False(t, Covers(r, p))

	p = profile()
	p.Categories = []string{"electrical"}
	assert.False(t, Covers(r, p))
}

func TestCheck_EachRuleExcludes(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	r := request(domain.UrgencyHigh)

	tests := []struct {
		name   string
		mutate func(*domain.WorkProfile)
		reason string
	}{
		{"inactive", func(p *domain.WorkProfile) { p.Active = false }, "profile inactive"},
		{"own request", func(p *domain.WorkProfile) { p.ProviderID = "req" }, "own request"},
		{"unverified", func(p *domain.WorkProfile) { p.Verified = false }, "not verified"},
		{"free tier", func(p *domain.WorkProfile) { p.Tier = domain.TierFree }, "tier not eligible"},
		{"unavailable", func(p *domain.WorkProfile) { p.Available = false }, "unavailable"},
		{"muted", func(p *domain.WorkProfile) { p.NotificationsEnabled = false }, "notifications disabled"},
		{"quiet", func(p *domain.WorkProfile) { p.QuietHours = &domain.QuietHours{Start: "11:00", End: "13:00"} }, "quiet hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := profile()
			tt.mutate(&p)
			ok, reason := Check(r, p, now, policy)
			assert.False(t, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}

	assert.True(t, Eligible(r, profile(), now, policy))
}

func TestEligible_EmergencyIgnoresQuietHours(t *testing.T) {
	now := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)
	p := profile()
	p.QuietHours = &domain.QuietHours{Start: "22:00", End: "07:00"}

	assert.False(t, Eligible(request(domain.UrgencyLow), p, now, policy))
	assert.True(t, Eligible(request(domain.UrgencyEmergency), p, now, policy))
}

func TestInQuietHours(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }

	wrap := &domain.QuietHours{Start: "22:00", End: "07:00"}
	assert.True(t, InQuietHours(wrap, at(23, 30)))
	assert.True(t, InQuietHours(wrap, at(6, 59)))
	assert.False(t, InQuietHours(wrap, at(7, 0)))
	assert.False(t, InQuietHours(wrap, at(12, 0)))

	day := &domain.QuietHours{Start: "13:00", End: "15:00"}
	assert.True(t, InQuietHours(day, at(13, 0)))
	assert.False(t, InQuietHours(day, at(15, 0)))

	assert.False(t, InQuietHours(nil, at(1, 0)))
	assert.False(t, InQuietHours(&domain.QuietHours{Start: "25:00", End: "07:00"}, at(1, 0)))
	assert.False(t, InQuietHours(&domain.QuietHours{Start: "09:00", End: "09:00"}, at(9, 0)))

	// 02:00 UTC is 23:00 the previous day in Buenos Aires.
	zoned := &domain.QuietHours{Start: "22:00", End: "23:30", Timezone: "America/Argentina/Buenos_Aires"}
	assert.True(t, InQuietHours(zoned, at(2, 0)))
}

func TestRank_OrdersByScoreThenID(t *testing.T) {
	w := Weights{
		Rating:    10,
		TierBonus: map[domain.SubscriptionTier]float64{domain.TierBasic: 5, domain.TierPremium: 15},
		Online:    8,
	}
	a := profile()
	a.ProviderID, a.Rating = "a", 4.0 // 45
	b := profile()
	b.ProviderID, b.Rating, b.Tier = "b", 3.0, domain.TierPremium // 45
	c := profile()
	c.ProviderID, c.Rating = "c", 3.5 // 40 + online 8 = 48

	ranked := Rank([]domain.WorkProfile{b, a, c}, w, onlineSet{"c": true})
	ids := []string{ranked[0].Profile.ProviderID, ranked[1].Profile.ProviderID, ranked[2].Profile.ProviderID}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.True(t, ranked[0].Online)
	assert.InDelta(t, 48.0, ranked[0].Score, 0.001)
}

type onlineSet map[string]bool

func (o onlineSet) Online(id string) bool { return o[id] }
