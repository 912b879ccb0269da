package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

var _ store.Queries = (*queries)(nil)

type queries struct {
	st *state
}

func byCreatedDesc[T any](items []T, created func(T) time.Time, id func(T) string) {
	slices.SortFunc(items, func(a, b T) int {
		if c := created(b).Compare(created(a)); c != 0 {
			return c
		}
		return cmp.Compare(id(a), id(b))
	})
}

// Users

func (q *queries) CreateUser(_ context.Context, u domain.User) error {
	email := strings.ToLower(u.Email)
	if _, ok := q.st.emails[email]; ok {
		return store.ErrDuplicate
	}
	if _, ok := q.st.users[u.ID]; ok {
		return store.ErrDuplicate
	}
	q.st.users[u.ID] = u
	q.st.emails[email] = u.ID
	return nil
}

func (q *queries) GetUser(_ context.Context, id string, _ bool) (domain.User, error) {
	u, ok := q.st.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	id, ok := q.st.emails[strings.ToLower(email)]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return q.GetUser(ctx, id, false)
}

func (q *queries) SetUserRole(_ context.Context, id string, role domain.Role) error {
	u, ok := q.st.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Role = role
	q.st.users[id] = u
	return nil
}

func (q *queries) InsertRoleChange(_ context.Context, rc domain.RoleChange) error {
	q.st.roleChanges = append(q.st.roleChanges, rc)
	return nil
}

func (q *queries) ListRoleChanges(_ context.Context, userID string) ([]domain.RoleChange, error) {
	var out []domain.RoleChange
	for _, rc := range q.st.roleChanges {
		if rc.UserID == userID {
			out = append(out, rc)
		}
	}
	return out, nil
}

func (q *queries) SetRoleProfile(_ context.Context, p domain.RoleProfile) error {
	q.st.roleProfiles[pair{p.UserID, string(p.Role)}] = p
	return nil
}

func (q *queries) GetRoleProfile(_ context.Context, userID string, role domain.Role) (domain.RoleProfile, error) {
	p, ok := q.st.roleProfiles[pair{userID, string(role)}]
	if !ok {
		return domain.RoleProfile{}, store.ErrNotFound
	}
	return p, nil
}

// Work profiles

func (q *queries) rating(subjectID string) float64 {
	var sum, n int
	for _, r := range q.st.reviews {
		if r.SubjectID == subjectID {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func (q *queries) withRating(p domain.WorkProfile) domain.WorkProfile {
	p.Categories = domain.CloneStrings(p.Categories)
	p.Localities = domain.CloneStrings(p.Localities)
	p.Rating = q.rating(p.ProviderID)
	return p
}

func (q *queries) GetWorkProfile(_ context.Context, providerID string) (domain.WorkProfile, error) {
	p, ok := q.st.profiles[providerID]
	if !ok {
		return domain.WorkProfile{}, store.ErrNotFound
	}
	return q.withRating(p), nil
}

func (q *queries) SaveWorkProfile(_ context.Context, p domain.WorkProfile) error {
	p.Categories = domain.CloneStrings(p.Categories)
	p.Localities = domain.CloneStrings(p.Localities)
	p.Rating = 0
	q.st.profiles[p.ProviderID] = p
	return nil
}

func (q *queries) ListCandidateProfiles(_ context.Context, categoryID, locality string) ([]domain.WorkProfile, error) {
	var out []domain.WorkProfile
	for _, p := range q.st.profiles {
		if p.Active && p.HasCategory(categoryID) && p.ServesLocality(locality) {
			out = append(out, q.withRating(p))
		}
	}
	slices.SortFunc(out, func(a, b domain.WorkProfile) int { return cmp.Compare(a.ProviderID, b.ProviderID) })
	return out, nil
}

// Requests

func (q *queries) InsertRequest(_ context.Context, r domain.ServiceRequest) error {
	if _, ok := q.st.requests[r.ID]; ok {
		return store.ErrDuplicate
	}
	q.st.requests[r.ID] = r
	return nil
}

func (q *queries) GetRequest(_ context.Context, id string, _ bool) (domain.ServiceRequest, error) {
	r, ok := q.st.requests[id]
	if !ok {
		return domain.ServiceRequest{}, store.ErrNotFound
	}
	return r, nil
}

func (q *queries) UpdateRequest(_ context.Context, r domain.ServiceRequest) error {
	if _, ok := q.st.requests[r.ID]; !ok {
		return store.ErrNotFound
	}
	q.st.requests[r.ID] = r
	return nil
}

func (q *queries) ListRequestsByRequester(_ context.Context, requesterID string, status domain.RequestStatus) ([]domain.ServiceRequest, error) {
	var out []domain.ServiceRequest
	for _, r := range q.st.requests {
		if r.RequesterID == requesterID && (status == "" || r.Status == status) {
			out = append(out, r)
		}
	}
	byCreatedDesc(out, func(r domain.ServiceRequest) time.Time { return r.CreatedAt }, func(r domain.ServiceRequest) string { return r.ID })
	return out, nil
}

func (q *queries) hasAccepted(requestID string) bool {
	for _, i := range q.st.interests {
		if i.RequestID == requestID && i.Status == domain.InterestAccepted {
			return true
		}
	}
	return false
}

func (q *queries) ExpireDueRequests(_ context.Context, now time.Time) ([]string, error) {
	var ids []string
	for id, r := range q.st.requests {
		if r.Status != domain.RequestActive || now.Before(r.ExpiresAt) || q.hasAccepted(id) {
			continue
		}
		r.Status = domain.RequestExpired
		r.UpdatedAt = now
		q.st.requests[id] = r
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Interests

func (q *queries) InsertInterest(_ context.Context, i domain.Interest) error {
	key := pair{i.RequestID, i.ProviderID}
	if _, ok := q.st.interestPairs[key]; ok {
		return store.ErrDuplicate
	}
	q.st.interests[i.ID] = i
	q.st.interestPairs[key] = i.ID
	return nil
}

func (q *queries) GetInterest(_ context.Context, id string, _ bool) (domain.Interest, error) {
	i, ok := q.st.interests[id]
	if !ok {
		return domain.Interest{}, store.ErrNotFound
	}
	return i, nil
}

func (q *queries) UpdateInterest(_ context.Context, i domain.Interest) error {
	if _, ok := q.st.interests[i.ID]; !ok {
		return store.ErrNotFound
	}
	if i.Status == domain.InterestAccepted {
		for id, other := range q.st.interests {
			if id != i.ID && other.RequestID == i.RequestID && other.Status == domain.InterestAccepted {
				return store.ErrDuplicate
			}
		}
	}
	q.st.interests[i.ID] = i
	return nil
}

func (q *queries) listInterests(match func(domain.Interest) bool) []domain.Interest {
	var out []domain.Interest
	for _, i := range q.st.interests {
		if match(i) {
			out = append(out, i)
		}
	}
	slices.SortFunc(out, func(a, b domain.Interest) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (q *queries) ListInterestsByRequest(_ context.Context, requestID string) ([]domain.Interest, error) {
	return q.listInterests(func(i domain.Interest) bool { return i.RequestID == requestID }), nil
}

func (q *queries) ListInterestsByProvider(_ context.Context, providerID string) ([]domain.Interest, error) {
	return q.listInterests(func(i domain.Interest) bool { return i.ProviderID == providerID }), nil
}

func (q *queries) RejectPendingInterests(_ context.Context, requestID, exceptID string, now time.Time) ([]domain.Interest, error) {
	rejected := q.listInterests(func(i domain.Interest) bool {
		return i.RequestID == requestID && i.ID != exceptID && i.Status == domain.InterestPending
	})
	for k := range rejected {
		rejected[k].Status = domain.InterestRejected
		rejected[k].UpdatedAt = now
		q.st.interests[rejected[k].ID] = rejected[k]
	}
	return rejected, nil
}

func (q *queries) MarkInterestsViewed(_ context.Context, requestID string) error {
	for id, i := range q.st.interests {
		if i.RequestID == requestID && !i.ViewedByRequester {
			i.ViewedByRequester = true
			q.st.interests[id] = i
		}
	}
	return nil
}

// Connections

func (q *queries) InsertConnection(_ context.Context, c domain.Connection) error {
	if _, ok := q.st.connections[c.ID]; ok {
		return store.ErrDuplicate
	}
	if c.InterestID != nil {
		if _, ok := q.st.connByInterest[*c.InterestID]; ok {
			return store.ErrDuplicate
		}
		q.st.connByInterest[*c.InterestID] = c.ID
	}
	q.st.connections[c.ID] = c
	return nil
}

func (q *queries) GetConnection(_ context.Context, id string, _ bool) (domain.Connection, error) {
	c, ok := q.st.connections[id]
	if !ok {
		return domain.Connection{}, store.ErrNotFound
	}
	return c, nil
}

func (q *queries) GetConnectionByInterest(ctx context.Context, interestID string) (domain.Connection, error) {
	id, ok := q.st.connByInterest[interestID]
	if !ok {
		return domain.Connection{}, store.ErrNotFound
	}
	return q.GetConnection(ctx, id, false)
}

func (q *queries) UpdateConnection(_ context.Context, c domain.Connection) error {
	if _, ok := q.st.connections[c.ID]; !ok {
		return store.ErrNotFound
	}
	q.st.connections[c.ID] = c
	return nil
}

func (q *queries) ListConnectionsByUser(_ context.Context, userID string) ([]domain.Connection, error) {
	var out []domain.Connection
	for _, c := range q.st.connections {
		if c.RequesterID == userID || c.ProviderID == userID {
			out = append(out, c)
		}
	}
	byCreatedDesc(out, func(c domain.Connection) time.Time { return c.CreatedAt }, func(c domain.Connection) string { return c.ID })
	return out, nil
}

func (q *queries) CountLiveConnectionsAsProvider(_ context.Context, providerID string) (int, error) {
	n := 0
	for _, c := range q.st.connections {
		if c.ProviderID == providerID && c.Status.Live() {
			n++
		}
	}
	return n, nil
}

func (q *queries) InsertConfirmation(_ context.Context, c domain.CompletionConfirmation) error {
	key := pair{c.ConnectionID, c.PartyID}
	if _, ok := q.st.confirmations[key]; ok {
		return store.ErrDuplicate
	}
	q.st.confirmations[key] = c
	return nil
}

func (q *queries) ListConfirmations(_ context.Context, connectionID string) ([]domain.CompletionConfirmation, error) {
	var out []domain.CompletionConfirmation
	for _, c := range q.st.confirmations {
		if c.ConnectionID == connectionID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.CompletionConfirmation) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// Obligations

func (q *queries) InsertObligation(_ context.Context, o domain.ReviewObligation) error {
	key := pair{o.ConnectionID, o.OwnerID}
	if _, ok := q.st.obligationPairs[key]; ok {
		return store.ErrDuplicate
	}
	q.st.obligations[o.ID] = o
	q.st.obligationPairs[key] = o.ID
	return nil
}

func (q *queries) listObligations(match func(domain.ReviewObligation) bool) []domain.ReviewObligation {
	var out []domain.ReviewObligation
	for _, o := range q.st.obligations {
		if match(o) {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b domain.ReviewObligation) int {
		if c := a.DueAt.Compare(b.DueAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (q *queries) ListObligationsByOwner(_ context.Context, ownerID string, unresolvedOnly bool) ([]domain.ReviewObligation, error) {
	return q.listObligations(func(o domain.ReviewObligation) bool {
		return o.OwnerID == ownerID && (!unresolvedOnly || !o.Resolved)
	}), nil
}

func (q *queries) ListObligationsByConnection(_ context.Context, connectionID string) ([]domain.ReviewObligation, error) {
	return q.listObligations(func(o domain.ReviewObligation) bool { return o.ConnectionID == connectionID }), nil
}

func (q *queries) MarkOverdueBlocking(_ context.Context, now time.Time) ([]domain.ReviewObligation, error) {
	flipped := q.listObligations(func(o domain.ReviewObligation) bool {
		return !o.Blocking && o.Overdue(now)
	})
	for k := range flipped {
		flipped[k].Blocking = true
		q.st.obligations[flipped[k].ID] = flipped[k]
	}
	return flipped, nil
}

func (q *queries) ResolveObligation(_ context.Context, connectionID, ownerID string, now time.Time) (bool, error) {
	id, ok := q.st.obligationPairs[pair{connectionID, ownerID}]
	if !ok {
		return false, nil
	}
	o := q.st.obligations[id]
	if o.Resolved {
		return false, nil
	}
	o.Resolved = true
	o.Blocking = false
	o.ResolvedAt = &now
	q.st.obligations[id] = o
	return true, nil
}

// Reviews

func (q *queries) InsertReview(_ context.Context, r domain.Review) error {
	key := pair{r.ConnectionID, r.AuthorID}
	if _, ok := q.st.reviewPairs[key]; ok {
		return store.ErrDuplicate
	}
	q.st.reviews[r.ID] = r
	q.st.reviewPairs[key] = r.ID
	return nil
}

func (q *queries) GetReview(_ context.Context, id string, _ bool) (domain.Review, error) {
	r, ok := q.st.reviews[id]
	if !ok {
		return domain.Review{}, store.ErrNotFound
	}
	return r, nil
}

func (q *queries) UpdateReview(_ context.Context, r domain.Review) error {
	if _, ok := q.st.reviews[r.ID]; !ok {
		return store.ErrNotFound
	}
	q.st.reviews[r.ID] = r
	return nil
}

func (q *queries) ListReviewsBySubject(_ context.Context, subjectID string, limit, offset int) ([]domain.Review, error) {
	var out []domain.Review
	for _, r := range q.st.reviews {
		if r.SubjectID == subjectID {
			out = append(out, r)
		}
	}
	byCreatedDesc(out, func(r domain.Review) time.Time { return r.CreatedAt }, func(r domain.Review) string { return r.ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *queries) RatingSummary(_ context.Context, subjectID string) (domain.RatingSummary, error) {
	s := domain.RatingSummary{SubjectID: subjectID, RatingCounts: make(map[int]int)}
	sum := 0
	for _, r := range q.st.reviews {
		if r.SubjectID != subjectID {
			continue
		}
		s.TotalReviews++
		s.RatingCounts[r.Rating]++
		sum += r.Rating
	}
	if s.TotalReviews > 0 {
		s.AverageRating = float64(sum) / float64(s.TotalReviews)
	}
	return s, nil
}

// Notifications

func (q *queries) ClaimNotice(_ context.Context, requestID, providerID string, now time.Time, staleAfter time.Duration) (bool, error) {
	key := pair{requestID, providerID}
	n, ok := q.st.notices[key]
	if ok {
		stale := n.status == domain.NoticePending && now.Sub(time.Unix(0, n.claimedAt)) >= staleAfter
		if n.status != domain.NoticeFailed && !stale {
			return false, nil
		}
	}
	q.st.notices[key] = notice{status: domain.NoticePending, claimedAt: now.UnixNano()}
	return true, nil
}

func (q *queries) SetNoticeStatus(_ context.Context, requestID, providerID string, status domain.NoticeStatus) error {
	key := pair{requestID, providerID}
	n, ok := q.st.notices[key]
	if !ok {
		return store.ErrNotFound
	}
	n.status = status
	q.st.notices[key] = n
	return nil
}

func (q *queries) InsertNotification(_ context.Context, n domain.Notification) error {
	q.st.notifications[n.ID] = n
	return nil
}

func (q *queries) ListNotifications(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range q.st.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	byCreatedDesc(out, func(n domain.Notification) time.Time { return n.CreatedAt }, func(n domain.Notification) string { return n.ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *queries) MarkNotificationRead(_ context.Context, id, userID string, now time.Time) (bool, error) {
	n, ok := q.st.notifications[id]
	if !ok || n.UserID != userID || n.ReadAt != nil {
		return false, nil
	}
	n.ReadAt = &now
	q.st.notifications[id] = n
	return true, nil
}

// Stats

func (q *queries) Stats(_ context.Context) (domain.Stats, error) {
	s := domain.Stats{
		Users:       len(q.st.users),
		Requests:    make(map[domain.RequestStatus]int),
		Connections: make(map[domain.ConnectionStatus]int),
		Interests:   len(q.st.interests),
		Reviews:     len(q.st.reviews),
	}
	for _, r := range q.st.requests {
		s.Requests[r.Status]++
	}
	for _, c := range q.st.connections {
		s.Connections[c.Status]++
	}
	for _, o := range q.st.obligations {
		if !o.Resolved {
			s.OpenObligations++
			if o.Blocking {
				s.BlockingObligations++
			}
		}
	}
	return s, nil
}
