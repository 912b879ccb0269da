package domain

import "time"

// ReviewDimensions holds optional per-aspect scores; zero means unset.
type ReviewDimensions struct {
	Quality       int `json:"quality,omitempty"`
	Communication int `json:"communication,omitempty"`
	Punctuality   int `json:"punctuality,omitempty"`
	Value         int `json:"value,omitempty"`
}

// Review is one party's rating of the other for a completed connection.
type Review struct {
	ID            string           `json:"id"`
	ConnectionID  string           `json:"connection_id"`
	AuthorID      string           `json:"author_id"`
	SubjectID     string           `json:"subject_id"`
	Rating        int              `json:"rating"`
	Dimensions    ReviewDimensions `json:"dimensions"`
	Comment       string           `json:"comment"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	EditableUntil time.Time        `json:"editable_until"`
}

// RatingSummary is aggregated rating data for a review subject.
type RatingSummary struct {
	SubjectID     string      `json:"subject_id"`
	TotalReviews  int         `json:"total_reviews"`
	AverageRating float64     `json:"average_rating"`
	RatingCounts  map[int]int `json:"rating_counts"`
}
