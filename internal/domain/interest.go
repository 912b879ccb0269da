package domain

import "time"

type InterestStatus string

const (
	InterestPending   InterestStatus = "pending"
	InterestAccepted  InterestStatus = "accepted"
	InterestRejected  InterestStatus = "rejected"
	InterestWithdrawn InterestStatus = "withdrawn"
)

// Interest is a provider's bid on a request.
type Interest struct {
	ID                string         `json:"id"`
	RequestID         string         `json:"request_id"`
	ProviderID        string         `json:"provider_id"`
	ProposedPrice     float64        `json:"proposed_price"`
	Message           string         `json:"message"`
	Status            InterestStatus `json:"status"`
	ViewedByRequester bool           `json:"viewed_by_requester"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
