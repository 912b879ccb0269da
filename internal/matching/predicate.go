// Package matching decides which providers hear about a request and
// delivers those notices.
package matching

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

// Policy holds the platform-level eligibility rules.
type Policy struct {
	EligibleTiers []domain.SubscriptionTier
}

// Covers reports whether the profile serves the request's category and
// locality. A wildcard locality and a specific one are both sufficient.
func Covers(r domain.ServiceRequest, p domain.WorkProfile) bool {
	return p.HasCategory(r.CategoryID) && p.ServesLocality(r.Locality)
}

// Check evaluates every eligibility rule and returns the first that fails.
func Check(r domain.ServiceRequest, p domain.WorkProfile, now time.Time, pol Policy) (bool, string) {
	switch {
	case !p.Active:
		return false, "profile inactive"
	case p.ProviderID == r.RequesterID:
		return false, "own request"
	case !Covers(r, p):
		return false, "does not cover category or locality"
	case !p.Verified:
		return false, "not verified"
	case !slices.Contains(pol.EligibleTiers, p.Tier):
		return false, "tier not eligible"
	case !p.Available:
		return false, "unavailable"
	case !p.NotificationsEnabled:
		return false, "notifications disabled"
	case r.UrgencyTier != domain.UrgencyEmergency && InQuietHours(p.QuietHours, now):
		return false, "quiet hours"
	}
	return true, ""
}

// Eligible is Check without the reason.
func Eligible(r domain.ServiceRequest, p domain.WorkProfile, now time.Time, pol Policy) bool {
	ok, _ := Check(r, p, now, pol)
	return ok
}

// InQuietHours reports whether now falls in [Start, End) in the profile's
// timezone. Windows may wrap midnight. Malformed windows never suppress.
func InQuietHours(q *domain.QuietHours, now time.Time) bool {
	if q == nil {
		return false
	}
	start, ok1 := parseClock(q.Start)
	end, ok2 := parseClock(q.End)
	if !ok1 || !ok2 || start == end {
		return false
	}
	loc := time.UTC
	if q.Timezone != "" {
		l, err := time.LoadLocation(q.Timezone)
		if err != nil {
			return false
		}
		loc = l
	}
	local := now.In(loc)
	m := local.Hour()*60 + local.Minute()
	if start < end {
		return m >= start && m < end
	}
	return m >= start || m < end
}

// parseClock turns "HH:MM" into minutes after midnight.
func parseClock(s string) (int, bool) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// ValidClock reports whether s is a well-formed "HH:MM" time.
func ValidClock(s string) bool {
	_, ok := parseClock(s)
	return ok
}
