package domain

import "time"

// Notification is an in-app notification row.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Reference string     `json:"reference,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

type NoticeStatus string

const (
	NoticePending NoticeStatus = "pending"
	NoticeSent    NoticeStatus = "sent"
	NoticeFailed  NoticeStatus = "failed"
)

// Stats is the admin dashboard snapshot.
type Stats struct {
	Users               int                      `json:"users"`
	Requests            map[RequestStatus]int    `json:"requests"`
	Connections         map[ConnectionStatus]int `json:"connections"`
	Interests           int                      `json:"interests"`
	OpenObligations     int                      `json:"open_obligations"`
	BlockingObligations int                      `json:"blocking_obligations"`
	Reviews             int                      `json:"reviews"`
}
