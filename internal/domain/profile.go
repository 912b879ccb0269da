package domain

import "time"

// AllLocalities is the locality wildcard a provider may declare.
const AllLocalities = "*"

type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierBasic   SubscriptionTier = "basic"
	TierPremium SubscriptionTier = "premium"
)

func (t SubscriptionTier) Valid() bool {
	return t == TierFree || t == TierBasic || t == TierPremium
}

// QuietHours is a daily window during which non-emergency notices are held.
// Start and End are "HH:MM" in Timezone; a window may wrap past midnight.
type QuietHours struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone,omitempty"`
}

// WorkProfile is a provider's capability set.
type WorkProfile struct {
	ProviderID           string           `json:"provider_id"`
	Categories           []string         `json:"categories"`
	Localities           []string         `json:"localities"`
	Available            bool             `json:"available"`
	NotificationsEnabled bool             `json:"notifications_enabled"`
	Tier                 SubscriptionTier `json:"tier"`
	Verified             bool             `json:"verified"`
	QuietHours           *QuietHours      `json:"quiet_hours,omitempty"`
	Active               bool             `json:"active"`
	// Rating is derived from reviews and is never written back.
	Rating    float64   `json:"rating"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCategory reports whether the profile lists categoryID.
func (p WorkProfile) HasCategory(categoryID string) bool {
	for _, c := range p.Categories {
		if c == categoryID {
			return true
		}
	}
	return false
}

// ServesLocality reports whether the profile lists locality or the wildcard.
// A specific row and a wildcard row are equivalent; either match suffices.
func (p WorkProfile) ServesLocality(locality string) bool {
	for _, l := range p.Localities {
		if l == locality || l == AllLocalities {
			return true
		}
	}
	return false
}
