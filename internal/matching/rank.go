package matching

import (
	"cmp"
	"slices"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

// Weights drive delivery ordering only; they never exclude anyone.
type Weights struct {
	Rating    float64
	TierBonus map[domain.SubscriptionTier]float64
	Online    float64
}

// Presence reports whether a user currently holds a live connection.
type Presence interface {
	Online(userID string) bool
}

type Scored struct {
	Profile domain.WorkProfile
	Score   float64
	Online  bool
}

func Score(p domain.WorkProfile, w Weights, online bool) float64 {
	s := p.Rating*w.Rating + w.TierBonus[p.Tier]
	if online {
		s += w.Online
	}
	return s
}

// Rank orders profiles by descending score, ties broken by provider id.
func Rank(profiles []domain.WorkProfile, w Weights, presence Presence) []Scored {
	out := make([]Scored, 0, len(profiles))
	for _, p := range profiles {
		online := presence != nil && presence.Online(p.ProviderID)
		out = append(out, Scored{Profile: p, Score: Score(p, w, online), Online: online})
	}
	slices.SortStableFunc(out, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Profile.ProviderID, b.Profile.ProviderID)
	})
	return out
}
