// Package reviews records the ratings each party leaves after a completed
// connection. Submitting a review clears the matching obligation.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/events"
	"github.com/zillah777/fixia-platform-sub000/internal/obligations"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

const (
	maxCommentLen = 1000
	defaultLimit  = 10
	maxLimit      = 50
)

type Service struct {
	store      store.Store
	clock      domain.Clock
	events     events.Publisher
	gate       *obligations.Gate
	editWindow time.Duration
}

func NewService(s store.Store, clock domain.Clock, pub events.Publisher, gate *obligations.Gate, editWindow time.Duration) *Service {
	return &Service{store: s, clock: clock, events: pub, gate: gate, editWindow: editWindow}
}

type SubmitInput struct {
	ConnectionID string                  `json:"connection_id"`
	Rating       int                     `json:"rating"`
	Dimensions   domain.ReviewDimensions `json:"dimensions"`
	Comment      string                  `json:"comment"`
}

type UpdateInput struct {
	Rating     *int                     `json:"rating"`
	Dimensions *domain.ReviewDimensions `json:"dimensions"`
	Comment    *string                  `json:"comment"`
}

func validScore(n int) bool { return n >= 1 && n <= 5 }

func validate(rating int, d domain.ReviewDimensions, comment string) error {
	if !validScore(rating) {
		return domain.Validation("rating must be between 1 and 5", "send a whole number from 1 to 5")
	}
	for _, v := range []int{d.Quality, d.Communication, d.Punctuality, d.Value} {
		if v != 0 && !validScore(v) {
			return domain.Validation("dimension scores must be between 1 and 5", "leave a dimension out to skip it")
		}
	}
	if len(comment) > maxCommentLen {
		return domain.Validation(fmt.Sprintf("comment is longer than %d characters", maxCommentLen), "shorten the comment")
	}
	return nil
}

// Submit records authorID's review of the counterpart on a completed
// connection.
func (s *Service) Submit(ctx context.Context, authorID string, in SubmitInput) (domain.Review, error) {
	if in.ConnectionID == "" {
		return domain.Review{}, domain.Validation("connection_id is required", "send the id of the completed connection you are reviewing")
	}
	if err := validate(in.Rating, in.Dimensions, in.Comment); err != nil {
		return domain.Review{}, err
	}

	var rv domain.Review
	err := s.store.InTx(ctx, func(q store.Queries) error {
		c, err := q.GetConnection(ctx, in.ConnectionID, true)
		if errors.Is(err, store.ErrNotFound) {
			return domain.NotFound("connection")
		}
		if err != nil {
			return err
		}
		if _, ok := c.RoleOf(authorID); !ok {
			return domain.Forbidden("you are not part of this connection", "review only connections you took part in")
		}
		if c.Status != domain.ConnectionCompleted {
			return domain.Conflict("only completed connections can be reviewed", "confirm completion first")
		}

		now := s.clock.Now()
		rv = domain.Review{
			ID:            uuid.NewString(),
			ConnectionID:  c.ID,
			AuthorID:      authorID,
			SubjectID:     c.Counterpart(authorID),
			Rating:        in.Rating,
			Dimensions:    in.Dimensions,
			Comment:       in.Comment,
			CreatedAt:     now,
			UpdatedAt:     now,
			EditableUntil: now.Add(s.editWindow),
		}
		if err := q.InsertReview(ctx, rv); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return domain.Conflict("you already reviewed this connection", "edit your existing review instead")
			}
			return err
		}
		_, err = s.gate.Resolve(ctx, q, c.ID, authorID)
		return err
	})
	if err != nil {
		return domain.Review{}, err
	}

	log.Printf("[reviews] connection=%s author=%s rating=%d", rv.ConnectionID, rv.AuthorID, rv.Rating)
	if err := s.events.Publish(ctx, events.Event{
		UserID:    rv.SubjectID,
		Type:      events.ReviewReceived,
		Title:     "You received a review",
		Body:      fmt.Sprintf("You were rated %d out of 5.", rv.Rating),
		Reference: rv.ID,
		Data:      map[string]any{"review_id": rv.ID, "connection_id": rv.ConnectionID, "rating": rv.Rating},
		At:        rv.CreatedAt,
	}); err != nil {
		log.Printf("[reviews] notify review_received user=%s: %v", rv.SubjectID, err)
	}
	return rv, nil
}

// Update edits the author's review while its edit window is open.
func (s *Service) Update(ctx context.Context, authorID, reviewID string, in UpdateInput) (domain.Review, error) {
	var rv domain.Review
	err := s.store.InTx(ctx, func(q store.Queries) error {
		cur, err := q.GetReview(ctx, reviewID, true)
		if errors.Is(err, store.ErrNotFound) {
			return domain.NotFound("review")
		}
		if err != nil {
			return err
		}
		if cur.AuthorID != authorID {
			return domain.Forbidden("only the author can edit a review", "edit one of your own reviews instead")
		}
		now := s.clock.Now()
		if now.After(cur.EditableUntil) {
			return domain.Expired("the edit window for this review has closed")
		}
		if in.Rating != nil {
			cur.Rating = *in.Rating
		}
		if in.Dimensions != nil {
			cur.Dimensions = *in.Dimensions
		}
		if in.Comment != nil {
			cur.Comment = *in.Comment
		}
		if err := validate(cur.Rating, cur.Dimensions, cur.Comment); err != nil {
			return err
		}
		cur.UpdatedAt = now
		rv = cur
		return q.UpdateReview(ctx, cur)
	})
	return rv, err
}

// Page is one page of a subject's reviews with the overall summary.
type Page struct {
	Summary domain.RatingSummary `json:"summary"`
	Reviews []domain.Review      `json:"reviews"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
	Total   int                  `json:"total"`
}

// ListForSubject returns page (1-based) of reviews about subjectID, newest
// first. Out of range paging values fall back to the defaults.
func (s *Service) ListForSubject(ctx context.Context, subjectID string, page, limit int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	return store.Get(ctx, s.store, func(q store.Queries) (Page, error) {
		sum, err := q.RatingSummary(ctx, subjectID)
		if err != nil {
			return Page{}, err
		}
		list, err := q.ListReviewsBySubject(ctx, subjectID, limit, (page-1)*limit)
		if err != nil {
			return Page{}, err
		}
		if list == nil {
			list = []domain.Review{}
		}
		return Page{Summary: sum, Reviews: list, Page: page, Limit: limit, Total: sum.TotalReviews}, nil
	})
}
