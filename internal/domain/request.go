package domain

import "time"

type RequestStatus string

const (
	RequestActive     RequestStatus = "active"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestCancelled  RequestStatus = "cancelled"
	RequestExpired    RequestStatus = "expired"
)

// Valid reports whether s is a known request status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestActive, RequestInProgress, RequestCompleted, RequestCancelled, RequestExpired:
		return true
	}
	return false
}

type UrgencyTier string

const (
	UrgencyEmergency UrgencyTier = "emergency"
	UrgencyHigh      UrgencyTier = "high"
	UrgencyMedium    UrgencyTier = "medium"
	UrgencyLow       UrgencyTier = "low"
)

// UrgencyTiers lists tiers from most to least urgent.
var UrgencyTiers = []UrgencyTier{UrgencyEmergency, UrgencyHigh, UrgencyMedium, UrgencyLow}

func (u UrgencyTier) Valid() bool {
	for _, t := range UrgencyTiers {
		if u == t {
			return true
		}
	}
	return false
}

// ServiceRequest is a need posted by a requester.
type ServiceRequest struct {
	ID                 string        `json:"id"`
	RequesterID        string        `json:"requester_id"`
	CategoryID         string        `json:"category_id"`
	Locality           string        `json:"locality"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	UrgencyTier        UrgencyTier   `json:"urgency_tier"`
	BudgetMin          float64       `json:"budget_min"`
	BudgetMax          float64       `json:"budget_max"`
	InterestedCount    int           `json:"interested_count"`
	Status             RequestStatus `json:"status"`
	SelectedProviderID *string       `json:"selected_provider_id,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	ExpiresAt          time.Time     `json:"expires_at"`
}

// Lapsed reports whether the request is past its expiry instant.
func (r ServiceRequest) Lapsed(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Open reports whether the request still accepts interests at now.
func (r ServiceRequest) Open(now time.Time) bool {
	return r.Status == RequestActive && !r.Lapsed(now)
}
