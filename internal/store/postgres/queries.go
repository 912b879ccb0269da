package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

var _ store.Queries = (*queries)(nil)

type queries struct {
	tx pgx.Tx
}

func forUpdate(sql string, lock bool) string {
	if lock {
		return sql + " FOR UPDATE"
	}
	return sql
}

func (q *queries) exec(ctx context.Context, sql string, args ...any) error {
	_, err := q.tx.Exec(ctx, sql, args...)
	return classify(err)
}

// execOne runs an UPDATE that must touch exactly one row.
func (q *queries) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := q.tx.Exec(ctx, sql, args...)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, v)
	}
	return out, classify(rows.Err())
}

// Users

const userCols = `id, name, email, password_hash, role, is_active, created_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	return u, classify(err)
}

func (q *queries) CreateUser(ctx context.Context, u domain.User) error {
	return q.exec(ctx, `INSERT INTO users (`+userCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.IsActive, u.CreatedAt)
}

func (q *queries) GetUser(ctx context.Context, id string, lock bool) (domain.User, error) {
	return scanUser(q.tx.QueryRow(ctx, forUpdate(`SELECT `+userCols+` FROM users WHERE id = $1`, lock), id))
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(q.tx.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
}

func (q *queries) SetUserRole(ctx context.Context, id string, role domain.Role) error {
	return q.execOne(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role)
}

func (q *queries) InsertRoleChange(ctx context.Context, rc domain.RoleChange) error {
	return q.exec(ctx, `INSERT INTO role_changes (id, user_id, from_role, to_role, created_at) VALUES ($1,$2,$3,$4,$5)`,
		rc.ID, rc.UserID, rc.FromRole, rc.ToRole, rc.CreatedAt)
}

func (q *queries) ListRoleChanges(ctx context.Context, userID string) ([]domain.RoleChange, error) {
	rows, err := q.tx.Query(ctx, `
		SELECT id, user_id, from_role, to_role, created_at
		FROM role_changes WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, func(r pgx.Row) (domain.RoleChange, error) {
		var rc domain.RoleChange
		err := r.Scan(&rc.ID, &rc.UserID, &rc.FromRole, &rc.ToRole, &rc.CreatedAt)
		return rc, err
	})
}

func (q *queries) SetRoleProfile(ctx context.Context, p domain.RoleProfile) error {
	return q.exec(ctx, `
		INSERT INTO role_profiles (user_id, role, active, updated_at) VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id, role) DO UPDATE SET active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`,
		p.UserID, p.Role, p.Active, p.UpdatedAt)
}

func (q *queries) GetRoleProfile(ctx context.Context, userID string, role domain.Role) (domain.RoleProfile, error) {
	var p domain.RoleProfile
	err := q.tx.QueryRow(ctx, `
		SELECT user_id, role, active, updated_at FROM role_profiles WHERE user_id = $1 AND role = $2`,
		userID, role).Scan(&p.UserID, &p.Role, &p.Active, &p.UpdatedAt)
	return p, classify(err)
}

// Work profiles

const profileCols = `p.provider_id, p.categories, p.localities, p.available, p.notifications_enabled,
	p.tier, p.verified, p.quiet_start, p.quiet_end, p.quiet_tz, p.active, p.updated_at,
	COALESCE((SELECT AVG(r.rating)::float8 FROM reviews r WHERE r.subject_id = p.provider_id), 0)`

func scanProfile(row pgx.Row) (domain.WorkProfile, error) {
	var (
		p                  domain.WorkProfile
		start, end, zoneID *string
	)
	err := row.Scan(&p.ProviderID, &p.Categories, &p.Localities, &p.Available, &p.NotificationsEnabled,
		&p.Tier, &p.Verified, &start, &end, &zoneID, &p.Active, &p.UpdatedAt, &p.Rating)
	if err != nil {
		return domain.WorkProfile{}, classify(err)
	}
	if start != nil && end != nil {
		p.QuietHours = &domain.QuietHours{Start: *start, End: *end}
		if zoneID != nil {
			p.QuietHours.Timezone = *zoneID
		}
	}
	p.Categories = domain.CloneStrings(p.Categories)
	p.Localities = domain.CloneStrings(p.Localities)
	return p, nil
}

func (q *queries) GetWorkProfile(ctx context.Context, providerID string) (domain.WorkProfile, error) {
	return scanProfile(q.tx.QueryRow(ctx, `SELECT `+profileCols+` FROM work_profiles p WHERE p.provider_id = $1`, providerID))
}

func (q *queries) SaveWorkProfile(ctx context.Context, p domain.WorkProfile) error {
	var start, end, zoneID *string
	if p.QuietHours != nil {
		start, end = &p.QuietHours.Start, &p.QuietHours.End
		if p.QuietHours.Timezone != "" {
			zoneID = &p.QuietHours.Timezone
		}
	}
	return q.exec(ctx, `
		INSERT INTO work_profiles (provider_id, categories, localities, available, notifications_enabled,
			tier, verified, quiet_start, quiet_end, quiet_tz, active, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (provider_id) DO UPDATE SET
			categories = EXCLUDED.categories,
			localities = EXCLUDED.localities,
			available = EXCLUDED.available,
			notifications_enabled = EXCLUDED.notifications_enabled,
			tier = EXCLUDED.tier,
			verified = EXCLUDED.verified,
			quiet_start = EXCLUDED.quiet_start,
			quiet_end = EXCLUDED.quiet_end,
			quiet_tz = EXCLUDED.quiet_tz,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		p.ProviderID, domain.CloneStrings(p.Categories), domain.CloneStrings(p.Localities), p.Available,
		p.NotificationsEnabled, p.Tier, p.Verified, start, end, zoneID, p.Active, p.UpdatedAt)
}

func (q *queries) ListCandidateProfiles(ctx context.Context, categoryID, locality string) ([]domain.WorkProfile, error) {
	rows, err := q.tx.Query(ctx, `
		SELECT `+profileCols+` FROM work_profiles p
		WHERE p.active AND $1 = ANY(p.categories) AND ($2 = ANY(p.localities) OR $3 = ANY(p.localities))
		ORDER BY p.provider_id`, categoryID, locality, domain.AllLocalities)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanProfile)
}

// Requests

const requestCols = `id, requester_id, category_id, locality, title, description, urgency_tier,
	budget_min, budget_max, interested_count, status, selected_provider_id, created_at, updated_at, expires_at`

func scanRequest(row pgx.Row) (domain.ServiceRequest, error) {
	var r domain.ServiceRequest
	err := row.Scan(&r.ID, &r.RequesterID, &r.CategoryID, &r.Locality, &r.Title, &r.Description, &r.UrgencyTier,
		&r.BudgetMin, &r.BudgetMax, &r.InterestedCount, &r.Status, &r.SelectedProviderID, &r.CreatedAt, &r.UpdatedAt, &r.ExpiresAt)
	return r, classify(err)
}

func (q *queries) InsertRequest(ctx context.Context, r domain.ServiceRequest) error {
	return q.exec(ctx, `INSERT INTO service_requests (`+requestCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		r.ID, r.RequesterID, r.CategoryID, r.Locality, r.Title, r.Description, r.UrgencyTier,
		r.BudgetMin, r.BudgetMax, r.InterestedCount, r.Status, r.SelectedProviderID, r.CreatedAt, r.UpdatedAt, r.ExpiresAt)
}

func (q *queries) GetRequest(ctx context.Context, id string, lock bool) (domain.ServiceRequest, error) {
	return scanRequest(q.tx.QueryRow(ctx, forUpdate(`SELECT `+requestCols+` FROM service_requests WHERE id = $1`, lock), id))
}

func (q *queries) UpdateRequest(ctx context.Context, r domain.ServiceRequest) error {
	return q.execOne(ctx, `
		UPDATE service_requests SET category_id = $2, locality = $3, title = $4, description = $5,
			urgency_tier = $6, budget_min = $7, budget_max = $8, interested_count = $9, status = $10,
			selected_provider_id = $11, updated_at = $12, expires_at = $13
		WHERE id = $1`,
		r.ID, r.CategoryID, r.Locality, r.Title, r.Description, r.UrgencyTier, r.BudgetMin, r.BudgetMax,
		r.InterestedCount, r.Status, r.SelectedProviderID, r.UpdatedAt, r.ExpiresAt)
}

func (q *queries) ListRequestsByRequester(ctx context.Context, requesterID string, status domain.RequestStatus) ([]domain.ServiceRequest, error) {
	rows, err := q.tx.Query(ctx, `
		SELECT `+requestCols+` FROM service_requests
		WHERE requester_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id`, requesterID, string(status))
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanRequest)
}

func (q *queries) ExpireDueRequests(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := q.tx.Query(ctx, `
		UPDATE service_requests r SET status = 'expired', updated_at = $1
		WHERE r.status = 'active' AND r.expires_at <= $1
		  AND NOT EXISTS (SELECT 1 FROM interests i WHERE i.request_id = r.id AND i.status = 'accepted')
		RETURNING r.id`, now)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, func(r pgx.Row) (string, error) {
		var id string
		err := r.Scan(&id)
		return id, err
	})
}

// Interests

const interestCols = `id, request_id, provider_id, proposed_price, message, status, viewed_by_requester, created_at, updated_at`

func scanInterest(row pgx.Row) (domain.Interest, error) {
	var i domain.Interest
	err := row.Scan(&i.ID, &i.RequestID, &i.ProviderID, &i.ProposedPrice, &i.Message, &i.Status,
		&i.ViewedByRequester, &i.CreatedAt, &i.UpdatedAt)
	return i, classify(err)
}

func (q *queries) InsertInterest(ctx context.Context, i domain.Interest) error {
	return q.exec(ctx, `INSERT INTO interests (`+interestCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		i.ID, i.RequestID, i.ProviderID, i.ProposedPrice, i.Message, i.Status, i.ViewedByRequester, i.CreatedAt, i.UpdatedAt)
}

func (q *queries) GetInterest(ctx context.Context, id string, lock bool) (domain.Interest, error) {
	return scanInterest(q.tx.QueryRow(ctx, forUpdate(`SELECT `+interestCols+` FROM interests WHERE id = $1`, lock), id))
}

func (q *queries) UpdateInterest(ctx context.Context, i domain.Interest) error {
	return q.execOne(ctx, `
		UPDATE interests SET proposed_price = $2, message = $3, status = $4, viewed_by_requester = $5, updated_at = $6
		WHERE id = $1`, i.ID, i.ProposedPrice, i.Message, i.Status, i.ViewedByRequester, i.UpdatedAt)
}

func (q *queries) ListInterestsByRequest(ctx context.Context, requestID string) ([]domain.Interest, error) {
	rows, err := q.tx.Query(ctx, `SELECT `+interestCols+` FROM interests WHERE request_id = $1 ORDER BY created_at, id`, requestID)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanInterest)
}

func (q *queries) ListInterestsByProvider(ctx context.Context, providerID string) ([]domain.Interest, error) {
	rows, err := q.tx.Query(ctx, `SELECT `+interestCols+` FROM interests WHERE provider_id = $1 ORDER BY created_at, id`, providerID)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanInterest)
}

func (q *queries) RejectPendingInterests(ctx context.Context, requestID, exceptID string, now time.Time) ([]domain.Interest, error) {
	rows, err := q.tx.Query(ctx, `
		UPDATE interests SET status = 'rejected', updated_at = $3
		WHERE request_id = $1 AND id <> $2 AND status = 'pending'
		RETURNING `+interestCols, requestID, exceptID, now)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanInterest)
}

func (q *queries) MarkInterestsViewed(ctx context.Context, requestID string) error {
	return q.exec(ctx, `UPDATE interests SET viewed_by_requester = TRUE WHERE request_id = $1 AND NOT viewed_by_requester`, requestID)
}

// Connections

const connectionCols = `id, requester_id, provider_id, request_id, interest_id, channel_id, status,
	requester_confirmed, provider_confirmed, agreed_price, created_at, completed_at, cancelled_at`

func scanConnection(row pgx.Row) (domain.Connection, error) {
	var c domain.Connection
	err := row.Scan(&c.ID, &c.RequesterID, &c.ProviderID, &c.RequestID, &c.InterestID, &c.ChannelID, &c.Status,
		&c.RequesterConfirmed, &c.ProviderConfirmed, &c.AgreedPrice, &c.CreatedAt, &c.CompletedAt, &c.CancelledAt)
	return c, classify(err)
}

func (q *queries) InsertConnection(ctx context.Context, c domain.Connection) error {
	return q.exec(ctx, `INSERT INTO connections (`+connectionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		c.ID, c.RequesterID, c.ProviderID, c.RequestID, c.InterestID, c.ChannelID, c.Status,
		c.RequesterConfirmed, c.ProviderConfirmed, c.AgreedPrice, c.CreatedAt, c.CompletedAt, c.CancelledAt)
}

func (q *queries) GetConnection(ctx context.Context, id string, lock bool) (domain.Connection, error) {
	return scanConnection(q.tx.QueryRow(ctx, forUpdate(`SELECT `+connectionCols+` FROM connections WHERE id = $1`, lock), id))
}

func (q *queries) GetConnectionByInterest(ctx context.Context, interestID string) (domain.Connection, error) {
	return scanConnection(q.tx.QueryRow(ctx, `SELECT `+connectionCols+` FROM connections WHERE interest_id = $1`, interestID))
}

func (q *queries) UpdateConnection(ctx context.Context, c domain.Connection) error {
	return q.execOne(ctx, `
		UPDATE connections SET status = $2, requester_confirmed = $3, provider_confirmed = $4,
			agreed_price = $5, completed_at = $6, cancelled_at = $7
		WHERE id = $1`,
		c.ID, c.Status, c.RequesterConfirmed, c.ProviderConfirmed, c.AgreedPrice, c.CompletedAt, c.CancelledAt)
}

func (q *queries) ListConnectionsByUser(ctx context.Context, userID string) ([]domain.Connection, error) {
	rows, err := q.tx.Query(ctx, `
		SELECT `+connectionCols+` FROM connections
		WHERE requester_id = $1 OR provider_id = $1
		ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanConnection)
}

func (q *queries) CountLiveConnectionsAsProvider(ctx context.Context, providerID string) (int, error) {
	var n int
	err := q.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM connections
		WHERE provider_id = $1 AND status IN ('active','service_in_progress')`, providerID).Scan(&n)
	return n, classify(err)
}

func (q *queries) InsertConfirmation(ctx context.Context, c domain.CompletionConfirmation) error {
	return q.exec(ctx, `
		INSERT INTO completion_confirmations (connection_id, party_id, role, satisfaction_note, evidence_flag, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ConnectionID, c.PartyID, c.Role, c.SatisfactionNote, c.EvidenceFlag, c.CreatedAt)
}

func (q *queries) ListConfirmations(ctx context.Context, connectionID string) ([]domain.CompletionConfirmation, error) {
	rows, err := q.tx.Query(ctx, `
		SELECT connection_id, party_id, role, satisfaction_note, evidence_flag, created_at
		FROM completion_confirmations WHERE connection_id = $1 ORDER BY created_at`, connectionID)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, func(r pgx.Row) (domain.CompletionConfirmation, error) {
		var c domain.CompletionConfirmation
		err := r.Scan(&c.ConnectionID, &c.PartyID, &c.Role, &c.SatisfactionNote, &c.EvidenceFlag, &c.CreatedAt)
		return c, err
	})
}

// Obligations

const obligationCols = `id, owner_id, connection_id, counterparty_id, due_at, resolved, blocking, created_at, resolved_at`

func scanObligation(row pgx.Row) (domain.ReviewObligation, error) {
	var o domain.ReviewObligation
	err := row.Scan(&o.ID, &o.OwnerID, &o.ConnectionID, &o.CounterpartyID, &o.DueAt, &o.Resolved, &o.Blocking, &o.CreatedAt, &o.ResolvedAt)
	return o, classify(err)
}

func (q *queries) InsertObligation(ctx context.Context, o domain.ReviewObligation) error {
	return q.exec(ctx, `INSERT INTO review_obligations (`+obligationCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		o.ID, o.OwnerID, o.ConnectionID, o.CounterpartyID, o.DueAt, o.Resolved, o.Blocking, o.CreatedAt, o.ResolvedAt)
}

func (q *queries) ListObligationsByOwner(ctx context.Context, ownerID string, unresolvedOnly bool) ([]domain.ReviewObligation, error) {
	rows, err := q.tx.Query(ctx, `
		SELECT `+obligationCols+` FROM review_obligations
		WHERE owner_id = $1 AND (NOT $2 OR NOT resolved)
		ORDER BY due_at, id`, ownerID, unresolvedOnly)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanObligation)
}

func (q *queries) ListObligationsByConnection(ctx context.Context, connectionID string) ([]domain.ReviewObligation, error) {
	rows, err := q.tx.Query(ctx, `SELECT `+obligationCols+` FROM review_obligations WHERE connection_id = $1 ORDER BY due_at, id`, connectionID)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanObligation)
}

func (q *queries) MarkOverdueBlocking(ctx context.Context, now time.Time) ([]domain.ReviewObligation, error) {
	rows, err := q.tx.Query(ctx, `
		UPDATE review_obligations SET blocking = TRUE
		WHERE NOT resolved AND NOT blocking AND due_at <= $1
		RETURNING `+obligationCols, now)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanObligation)
}

func (q *queries) ResolveObligation(ctx context.Context, connectionID, ownerID string, now time.Time) (bool, error) {
	tag, err := q.tx.Exec(ctx, `
		UPDATE review_obligations SET resolved = TRUE, blocking = FALSE, resolved_at = $3
		WHERE connection_id = $1 AND owner_id = $2 AND NOT resolved`, connectionID, ownerID, now)
	if err != nil {
		return false, classify(err)
	}
	return tag.RowsAffected() == 1, nil
}

// Reviews

const reviewCols = `id, connection_id, author_id, subject_id, rating, quality, communication, punctuality, value,
	comment, created_at, updated_at, editable_until`

func scanReview(row pgx.Row) (domain.Review, error) {
	var r domain.Review
	err := row.Scan(&r.ID, &r.ConnectionID, &r.AuthorID, &r.SubjectID, &r.Rating,
		&r.Dimensions.Quality, &r.Dimensions.Communication, &r.Dimensions.Punctuality, &r.Dimensions.Value,
		&r.Comment, &r.CreatedAt, &r.UpdatedAt, &r.EditableUntil)
	return r, classify(err)
}

func (q *queries) InsertReview(ctx context.Context, r domain.Review) error {
	return q.exec(ctx, `INSERT INTO reviews (`+reviewCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		r.ID, r.ConnectionID, r.AuthorID, r.SubjectID, r.Rating,
		r.Dimensions.Quality, r.Dimensions.Communication, r.Dimensions.Punctuality, r.Dimensions.Value,
		r.Comment, r.CreatedAt, r.UpdatedAt, r.EditableUntil)
}

func (q *queries) GetReview(ctx context.Context, id string, lock bool) (domain.Review, error) {
	return scanReview(q.tx.QueryRow(ctx, forUpdate(`SELECT `+reviewCols+` FROM reviews WHERE id = $1`, lock), id))
}

func (q *queries) UpdateReview(ctx context.Context, r domain.Review) error {
	return q.execOne(ctx, `
		UPDATE reviews SET rating = $2, quality = $3, communication = $4, punctuality = $5, value = $6,
			comment = $7, updated_at = $8
		WHERE id = $1`,
		r.ID, r.Rating, r.Dimensions.Quality, r.Dimensions.Communication, r.Dimensions.Punctuality,
		r.Dimensions.Value, r.Comment, r.UpdatedAt)
}

func (q *queries) ListReviewsBySubject(ctx context.Context, subjectID string, limit, offset int) ([]domain.Review, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.tx.Query(ctx, `
		SELECT `+reviewCols+` FROM reviews WHERE subject_id = $1
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, subjectID, limit, offset)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, scanReview)
}

func (q *queries) RatingSummary(ctx context.Context, subjectID string) (domain.RatingSummary, error) {
	s := domain.RatingSummary{SubjectID: subjectID, RatingCounts: make(map[int]int)}
	rows, err := q.tx.Query(ctx, `SELECT rating, COUNT(*) FROM reviews WHERE subject_id = $1 GROUP BY rating`, subjectID)
	if err != nil {
		return s, classify(err)
	}
	defer rows.Close()
	sum := 0
	for rows.Next() {
		var rating, n int
		if err := rows.Scan(&rating, &n); err != nil {
			return s, classify(err)
		}
		s.RatingCounts[rating] = n
		s.TotalReviews += n
		sum += rating * n
	}
	if err := rows.Err(); err != nil {
		return s, classify(err)
	}
	if s.TotalReviews > 0 {
		s.AverageRating = float64(sum) / float64(s.TotalReviews)
	}
	return s, nil
}

// Notifications

func (q *queries) ClaimNotice(ctx context.Context, requestID, providerID string, now time.Time, staleAfter time.Duration) (bool, error) {
	var id string
	err := q.tx.QueryRow(ctx, `
		INSERT INTO request_notices (request_id, provider_id, status, claimed_at) VALUES ($1,$2,'pending',$3)
		ON CONFLICT (request_id, provider_id) DO UPDATE SET status = 'pending', claimed_at = EXCLUDED.claimed_at
		WHERE request_notices.status = 'failed'
		   OR (request_notices.status = 'pending' AND request_notices.claimed_at <= $4)
		RETURNING request_id`, requestID, providerID, now, now.Add(-staleAfter)).Scan(&id)
	if err := classify(err); err != nil {
		if err == store.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (q *queries) SetNoticeStatus(ctx context.Context, requestID, providerID string, status domain.NoticeStatus) error {
	return q.execOne(ctx, `UPDATE request_notices SET status = $3 WHERE request_id = $1 AND provider_id = $2`,
		requestID, providerID, status)
}

func (q *queries) InsertNotification(ctx context.Context, n domain.Notification) error {
	var ref *string
	if n.Reference != "" {
		ref = &n.Reference
	}
	return q.exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, reference, created_at, read_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		n.ID, n.UserID, n.Type, n.Title, n.Body, ref, n.CreatedAt, n.ReadAt)
}

func (q *queries) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.tx.Query(ctx, `
		SELECT id, user_id, type, title, body, COALESCE(reference, ''), created_at, read_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2`, userID, limit)
	if err != nil {
		return nil, classify(err)
	}
	return collect(rows, func(r pgx.Row) (domain.Notification, error) {
		var n domain.Notification
		err := r.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Reference, &n.CreatedAt, &n.ReadAt)
		return n, err
	})
}

func (q *queries) MarkNotificationRead(ctx context.Context, id, userID string, now time.Time) (bool, error) {
	tag, err := q.tx.Exec(ctx, `
		UPDATE notifications SET read_at = $3 WHERE id = $1 AND user_id = $2 AND read_at IS NULL`, id, userID, now)
	if err != nil {
		return false, classify(err)
	}
	return tag.RowsAffected() == 1, nil
}

// Stats

func (q *queries) Stats(ctx context.Context) (domain.Stats, error) {
	s := domain.Stats{
		Requests:    make(map[domain.RequestStatus]int),
		Connections: make(map[domain.ConnectionStatus]int),
	}
	err := q.tx.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM interests),
			(SELECT COUNT(*) FROM reviews),
			(SELECT COUNT(*) FROM review_obligations WHERE NOT resolved),
			(SELECT COUNT(*) FROM review_obligations WHERE NOT resolved AND blocking)`).
		Scan(&s.Users, &s.Interests, &s.Reviews, &s.OpenObligations, &s.BlockingObligations)
	if err != nil {
		return s, classify(err)
	}
	if err := q.countBy(ctx, `SELECT status, COUNT(*) FROM service_requests GROUP BY status`, func(k string, n int) {
		s.Requests[domain.RequestStatus(k)] = n
	}); err != nil {
		return s, err
	}
	if err := q.countBy(ctx, `SELECT status, COUNT(*) FROM connections GROUP BY status`, func(k string, n int) {
		s.Connections[domain.ConnectionStatus(k)] = n
	}); err != nil {
		return s, err
	}
	return s, nil
}

func (q *queries) countBy(ctx context.Context, sql string, put func(string, int)) error {
	rows, err := q.tx.Query(ctx, sql)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return classify(err)
		}
		put(k, n)
	}
	return classify(rows.Err())
}
