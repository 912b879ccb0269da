package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestStore_InTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(q store.Queries) error {
		require.NoError(t, q.CreateUser(ctx, domain.User{ID: "u1", Email: "a@x.io"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Get(ctx, s, func(q store.Queries) (domain.User, error) {
		return q.GetUser(ctx, "u1", false)
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_InTx_RetriesInjectedFailureOnce(t *testing.T) {
	s := New()
	s.FailNext(1)

	err := s.InTx(context.Background(), func(q store.Queries) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, s.Attempts())
}

func TestStore_InTx_UnavailableAfterTwoFailures(t *testing.T) {
	s := New()
	s.FailNext(2)

	err := s.InTx(context.Background(), func(q store.Queries) error { return nil })
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestQueries_CreateUser_DuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.InTx(ctx, func(q store.Queries) error {
		require.NoError(t, q.CreateUser(ctx, domain.User{ID: "u1", Email: "Ana@x.io"}))
		return q.CreateUser(ctx, domain.User{ID: "u2", Email: "ana@x.io"})
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestQueries_UpdateInterest_SingleAccepted(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.InTx(ctx, func(q store.Queries) error {
		for _, id := range []string{"i1", "i2"} {
			require.NoError(t, q.InsertInterest(ctx, domain.Interest{ID: id, RequestID: "r1", ProviderID: "p" + id, Status: domain.InterestPending}))
		}
		require.NoError(t, q.UpdateInterest(ctx, domain.Interest{ID: "i1", RequestID: "r1", ProviderID: "pi1", Status: domain.InterestAccepted}))
		return q.UpdateInterest(ctx, domain.Interest{ID: "i2", RequestID: "r1", ProviderID: "pi2", Status: domain.InterestAccepted})
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestQueries_InsertInterest_DuplicatePair(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.InTx(ctx, func(q store.Queries) error {
		require.NoError(t, q.InsertInterest(ctx, domain.Interest{ID: "i1", RequestID: "r1", ProviderID: "p1"}))
		return q.InsertInterest(ctx, domain.Interest{ID: "i2", RequestID: "r1", ProviderID: "p1"})
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestQueries_ExpireDueRequests(t *testing.T) {
	s := New()
	ctx := context.Background()
	var expired []string
	err := s.InTx(ctx, func(q store.Queries) error {
		require.NoError(t, q.InsertRequest(ctx, domain.ServiceRequest{ID: "due", Status: domain.RequestActive, ExpiresAt: t0}))
		require.NoError(t, q.InsertRequest(ctx, domain.ServiceRequest{ID: "later", Status: domain.RequestActive, ExpiresAt: t0.Add(time.Hour)}))
		require.NoError(t, q.InsertRequest(ctx, domain.ServiceRequest{ID: "taken", Status: domain.RequestActive, ExpiresAt: t0}))
		require.NoError(t, q.InsertInterest(ctx, domain.Interest{ID: "i1", RequestID: "taken", ProviderID: "p1", Status: domain.InterestAccepted}))
		var err error
		expired, err = q.ExpireDueRequests(ctx, t0)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"due"}, expired)
}

func TestQueries_MarkOverdueBlocking(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.InTx(ctx, func(q store.Queries) error {
		require.NoError(t, q.InsertObligation(ctx, domain.ReviewObligation{ID: "o1", OwnerID: "a", ConnectionID: "c1", DueAt: t0}))
		require.NoError(t, q.InsertObligation(ctx, domain.ReviewObligation{ID: "o2", OwnerID: "b", ConnectionID: "c1", DueAt: t0.Add(time.Hour)}))

		flipped, err := q.MarkOverdueBlocking(ctx, t0)
		require.NoError(t, err)
		require.Len(t, flipped, 1)
		assert.Equal(t, "o1", flipped[0].ID)

		again, err := q.MarkOverdueBlocking(ctx, t0)
		require.NoError(t, err)
		assert.Empty(t, again)

		ok, err := q.ResolveObligation(ctx, "c1", "a", t0)
		require.NoError(t, err)
		assert.True(t, ok)

		open, err := q.ListObligationsByOwner(ctx, "a", true)
		require.NoError(t, err)
		assert.Empty(t, open)
		return nil
	})
	require.NoError(t, err)
}

func TestQueries_ClaimNotice(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.InTx(ctx, func(q store.Queries) error {
		ok, err := q.ClaimNotice(ctx, "r1", "p1", t0, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, _ = q.ClaimNotice(ctx, "r1", "p1", t0.Add(time.Second), time.Minute)
		assert.False(t, ok, "live claim")

		ok, _ = q.ClaimNotice(ctx, "r1", "p1", t0.Add(2*time.Minute), time.Minute)
		assert.True(t, ok, "stale claim is taken over")

		require.NoError(t, q.SetNoticeStatus(ctx, "r1", "p1", domain.NoticeSent))
		ok, _ = q.ClaimNotice(ctx, "r1", "p1", t0.Add(time.Hour), time.Minute)
		assert.False(t, ok, "already sent")

		require.NoError(t, q.SetNoticeStatus(ctx, "r1", "p1", domain.NoticeFailed))
		ok, _ = q.ClaimNotice(ctx, "r1", "p1", t0.Add(time.Hour), time.Minute)
		assert.True(t, ok, "failed notice is retried")
		return nil
	})
	require.NoError(t, err)
}

func TestQueries_RatingSummary(t *testing.T) {
	s := New()
	ctx := context.Background()
	sum, err := store.Get(ctx, s, func(q store.Queries) (domain.RatingSummary, error) {
		require.NoError(t, q.SaveWorkProfile(ctx, domain.DefaultWorkProfile("p1", t0)))
		require.NoError(t, q.InsertReview(ctx, domain.Review{ID: "r1", ConnectionID: "c1", AuthorID: "a", SubjectID: "p1", Rating: 5, CreatedAt: t0}))
		require.NoError(t, q.InsertReview(ctx, domain.Review{ID: "r2", ConnectionID: "c2", AuthorID: "b", SubjectID: "p1", Rating: 4, CreatedAt: t0}))
		p, err := q.GetWorkProfile(ctx, "p1")
		require.NoError(t, err)
		assert.InDelta(t, 4.5, p.Rating, 0.001)
		return q.RatingSummary(ctx, "p1")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalReviews)
	assert.Equal(t, map[int]int{4: 1, 5: 1}, sum.RatingCounts)
}
