package domain

import "time"

// ReviewObligation is a pending duty for OwnerID to review CounterpartyID.
type ReviewObligation struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	ConnectionID   string     `json:"connection_id"`
	CounterpartyID string     `json:"counterparty_id"`
	DueAt          time.Time  `json:"due_at"`
	Resolved       bool       `json:"resolved"`
	Blocking       bool       `json:"blocking"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// Overdue reports whether the obligation is unresolved past its due date.
func (o ReviewObligation) Overdue(now time.Time) bool {
	return !o.Resolved && !now.Before(o.DueAt)
}
