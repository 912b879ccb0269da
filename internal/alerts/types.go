package alerts

import "time"

// Task type constants
const (
	TaskDispatchRequest   = "match:dispatch_request"
	TaskEmailNotification = "email:notification"
	TaskSweepRequests     = "sweep:expire_requests"
	TaskSweepObligations  = "sweep:overdue_obligations"
)

// Queue names
const (
	QueueMatching = "matching"
	QueueEmails   = "emails"
	QueueSweeps   = "sweeps"
)

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Dispatch payload: fan a new request out to providers
type DispatchPayload struct {
	RequestID  string    `json:"request_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Email payload mirroring one in-app notification
type EmailPayload struct {
	UserID   string        `json:"user_id"`
	Type     string        `json:"type"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}
