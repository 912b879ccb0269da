package domain

import "time"

type ConnectionStatus string

const (
	ConnectionActive            ConnectionStatus = "active"
	ConnectionServiceInProgress ConnectionStatus = "service_in_progress"
	ConnectionCompleted         ConnectionStatus = "completed"
	ConnectionCancelled         ConnectionStatus = "cancelled"
)

// Live reports whether the engagement is still running.
func (s ConnectionStatus) Live() bool {
	return s == ConnectionActive || s == ConnectionServiceInProgress
}

// PartyRole identifies which side of a connection a user is on.
type PartyRole string

const (
	PartyRequester PartyRole = "requester"
	PartyProvider  PartyRole = "provider"
)

// Connection is the bilateral engagement created from an accepted interest.
type Connection struct {
	ID                 string           `json:"id"`
	RequesterID        string           `json:"requester_id"`
	ProviderID         string           `json:"provider_id"`
	RequestID          *string          `json:"request_id,omitempty"`
	InterestID         *string          `json:"interest_id,omitempty"`
	ChannelID          string           `json:"channel_id"`
	Status             ConnectionStatus `json:"status"`
	RequesterConfirmed bool             `json:"requester_confirmed"`
	ProviderConfirmed  bool             `json:"provider_confirmed"`
	AgreedPrice        float64          `json:"agreed_price"`
	CreatedAt          time.Time        `json:"created_at"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
}

// RoleOf returns the side userID occupies, or false if they are not a party.
func (c Connection) RoleOf(userID string) (PartyRole, bool) {
	switch userID {
	case c.RequesterID:
		return PartyRequester, true
	case c.ProviderID:
		return PartyProvider, true
	}
	return "", false
}

// Counterpart returns the other party's id.
func (c Connection) Counterpart(userID string) string {
	if userID == c.RequesterID {
		return c.ProviderID
	}
	return c.RequesterID
}

// Confirmed reports whether the given side has attested delivery.
func (c Connection) Confirmed(role PartyRole) bool {
	if role == PartyRequester {
		return c.RequesterConfirmed
	}
	return c.ProviderConfirmed
}

// CompletionConfirmation is one party's attestation that the service was delivered.
type CompletionConfirmation struct {
	ConnectionID     string    `json:"connection_id"`
	PartyID          string    `json:"party_id"`
	Role             PartyRole `json:"role"`
	SatisfactionNote string    `json:"satisfaction_note"`
	EvidenceFlag     bool      `json:"evidence_flag"`
	CreatedAt        time.Time `json:"created_at"`
}
