// Package store defines the persistence contract shared by the core services.
//
// Every multi-step invariant runs inside a single InTx call. Implementations
// must honour row locks requested with lock=true for the life of the
// transaction and enforce the uniqueness rules documented on each insert.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

var (
	// ErrNotFound indicates no row matched.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate indicates a uniqueness constraint rejected the write.
	ErrDuplicate = errors.New("store: duplicate")

	// ErrTransient indicates a failure that may succeed if the step is retried.
	ErrTransient = errors.New("store: transient failure")

	// ErrUnavailable is returned once the single retry is exhausted.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store runs units of work against the backing database.
type Store interface {
	// InTx runs fn in one transaction. A transient failure is retried once;
	// fn must therefore have no effects outside q.
	InTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
	Close()
}

// Queries is the full statement set available inside a transaction.
type Queries interface {
	UserQueries
	ProfileQueries
	RequestQueries
	InterestQueries
	ConnectionQueries
	ObligationQueries
	ReviewQueries
	NotificationQueries
	Stats(ctx context.Context) (domain.Stats, error)
}

type UserQueries interface {
	// CreateUser fails with ErrDuplicate on an existing email.
	CreateUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id string, lock bool) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	SetUserRole(ctx context.Context, id string, role domain.Role) error
	InsertRoleChange(ctx context.Context, rc domain.RoleChange) error
	ListRoleChanges(ctx context.Context, userID string) ([]domain.RoleChange, error)
	// SetRoleProfile upserts the (user, role) profile row.
	SetRoleProfile(ctx context.Context, p domain.RoleProfile) error
	GetRoleProfile(ctx context.Context, userID string, role domain.Role) (domain.RoleProfile, error)
}

type ProfileQueries interface {
	// GetWorkProfile returns the profile with Rating derived from reviews.
	GetWorkProfile(ctx context.Context, providerID string) (domain.WorkProfile, error)
	SaveWorkProfile(ctx context.Context, p domain.WorkProfile) error
	// ListCandidateProfiles returns active profiles covering categoryID and
	// either locality or the wildcard.
	ListCandidateProfiles(ctx context.Context, categoryID, locality string) ([]domain.WorkProfile, error)
}

type RequestQueries interface {
	InsertRequest(ctx context.Context, r domain.ServiceRequest) error
	GetRequest(ctx context.Context, id string, lock bool) (domain.ServiceRequest, error)
	UpdateRequest(ctx context.Context, r domain.ServiceRequest) error
	// ListRequestsByRequester filters by status when status is non-empty.
	ListRequestsByRequester(ctx context.Context, requesterID string, status domain.RequestStatus) ([]domain.ServiceRequest, error)
	// ExpireDueRequests moves active requests past expiry with no accepted
	// interest to expired and returns their ids.
	ExpireDueRequests(ctx context.Context, now time.Time) ([]string, error)
}

type InterestQueries interface {
	// InsertInterest fails with ErrDuplicate on an existing (request, provider) pair.
	InsertInterest(ctx context.Context, i domain.Interest) error
	GetInterest(ctx context.Context, id string, lock bool) (domain.Interest, error)
	// UpdateInterest fails with ErrDuplicate if it would leave two accepted
	// interests on one request.
	UpdateInterest(ctx context.Context, i domain.Interest) error
	ListInterestsByRequest(ctx context.Context, requestID string) ([]domain.Interest, error)
	ListInterestsByProvider(ctx context.Context, providerID string) ([]domain.Interest, error)
	// RejectPendingInterests rejects every pending interest on requestID
	// except exceptID and returns the rejected rows.
	RejectPendingInterests(ctx context.Context, requestID, exceptID string, now time.Time) ([]domain.Interest, error)
	MarkInterestsViewed(ctx context.Context, requestID string) error
}

type ConnectionQueries interface {
	// InsertConnection fails with ErrDuplicate on an existing interest id.
	InsertConnection(ctx context.Context, c domain.Connection) error
	GetConnection(ctx context.Context, id string, lock bool) (domain.Connection, error)
	GetConnectionByInterest(ctx context.Context, interestID string) (domain.Connection, error)
	UpdateConnection(ctx context.Context, c domain.Connection) error
	ListConnectionsByUser(ctx context.Context, userID string) ([]domain.Connection, error)
	CountLiveConnectionsAsProvider(ctx context.Context, providerID string) (int, error)
	// InsertConfirmation fails with ErrDuplicate on an existing (connection, party) pair.
	InsertConfirmation(ctx context.Context, c domain.CompletionConfirmation) error
	ListConfirmations(ctx context.Context, connectionID string) ([]domain.CompletionConfirmation, error)
}

type ObligationQueries interface {
	// InsertObligation fails with ErrDuplicate on an existing (connection, owner) pair.
	InsertObligation(ctx context.Context, o domain.ReviewObligation) error
	ListObligationsByOwner(ctx context.Context, ownerID string, unresolvedOnly bool) ([]domain.ReviewObligation, error)
	ListObligationsByConnection(ctx context.Context, connectionID string) ([]domain.ReviewObligation, error)
	// MarkOverdueBlocking flips blocking on unresolved, non-blocking
	// obligations due at or before now and returns the flipped rows.
	MarkOverdueBlocking(ctx context.Context, now time.Time) ([]domain.ReviewObligation, error)
	// ResolveObligation reports whether an unresolved obligation was resolved.
	ResolveObligation(ctx context.Context, connectionID, ownerID string, now time.Time) (bool, error)
}

type ReviewQueries interface {
	// InsertReview fails with ErrDuplicate on an existing (connection, author) pair.
	InsertReview(ctx context.Context, r domain.Review) error
	GetReview(ctx context.Context, id string, lock bool) (domain.Review, error)
	UpdateReview(ctx context.Context, r domain.Review) error
	ListReviewsBySubject(ctx context.Context, subjectID string, limit, offset int) ([]domain.Review, error)
	RatingSummary(ctx context.Context, subjectID string) (domain.RatingSummary, error)
}

type NotificationQueries interface {
	// ClaimNotice reserves the (request, provider) delivery slot. It returns
	// false when the notice was already sent or is claimed by a live attempt;
	// failed or stale pending claims are taken over.
	ClaimNotice(ctx context.Context, requestID, providerID string, now time.Time, staleAfter time.Duration) (bool, error)
	SetNoticeStatus(ctx context.Context, requestID, providerID string, status domain.NoticeStatus) error
	InsertNotification(ctx context.Context, n domain.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	// MarkNotificationRead reports whether an unread row owned by userID was updated.
	MarkNotificationRead(ctx context.Context, id, userID string, now time.Time) (bool, error)
}

// Get runs a read-only fn in its own transaction and returns its value.
func Get[T any](ctx context.Context, s Store, fn func(q Queries) (T, error)) (T, error) {
	var out T
	err := s.InTx(ctx, func(q Queries) error {
		v, err := fn(q)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
