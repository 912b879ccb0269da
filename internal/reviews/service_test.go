package reviews

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/events"
	"github.com/zillah777/fixia-platform-sub000/internal/obligations"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
	"github.com/zillah777/fixia-platform-sub000/internal/store/memory"
	"github.com/zillah777/fixia-platform-sub000/internal/testutil"
)

const (
	week       = 7 * 24 * time.Hour
	editWindow = 48 * time.Hour
)

type fixture struct {
	store *memory.Store
	clock *testutil.Clock
	pub   *testutil.Publisher
	gate  *obligations.Gate
	svc   *Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	clock := testutil.NewClock(testutil.T0)
	pub := &testutil.Publisher{}
	gate := obligations.New(s, clock, pub, week)
	f := &fixture{store: s, clock: clock, pub: pub, gate: gate, svc: NewService(s, clock, pub, gate, editWindow)}

	testutil.SeedUser(t, s, "req", domain.RoleRequester)
	testutil.SeedProvider(t, s, "pro", "plumbing", "rawson", nil)
	f.connection(t, "done", domain.ConnectionCompleted)
	f.connection(t, "live", domain.ConnectionServiceInProgress)
	return f
}

// connection inserts a connection between req and pro; completed ones get
// their obligation pair.
func (f *fixture) connection(t *testing.T, id string, status domain.ConnectionStatus) {
	t.Helper()
	ctx := context.Background()
	now := f.clock.Now()
	c := domain.Connection{
		ID:          id,
		RequesterID: "req",
		ProviderID:  "pro",
		ChannelID:   "chan_" + id,
		Status:      status,
		CreatedAt:   now,
	}
	if status == domain.ConnectionCompleted {
		c.RequesterConfirmed, c.ProviderConfirmed = true, true
		c.CompletedAt = &now
	}
	require.NoError(t, f.store.InTx(ctx, func(q store.Queries) error {
		if err := q.InsertConnection(ctx, c); err != nil {
			return err
		}
		if status == domain.ConnectionCompleted {
			_, err := f.gate.Open(ctx, q, c, now)
			return err
		}
		return nil
	}))
}

func TestService_Submit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	rv, err := f.svc.Submit(ctx, "req", SubmitInput{
		ConnectionID: "done",
		Rating:       5,
		Dimensions:   domain.ReviewDimensions{Quality: 5, Punctuality: 4},
		Comment:      "Quick and tidy",
	})
	require.NoError(t, err)
	assert.Equal(t, "pro", rv.SubjectID)
	assert.Equal(t, testutil.T0.Add(editWindow), rv.EditableUntil)

	received := f.pub.OfType(events.ReviewReceived)
	require.Len(t, received, 1)
	assert.Equal(t, "pro", received[0].UserID)

	obs, err := f.gate.ListMine(ctx, "req")
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.True(t, obs[0].Resolved, "submitting resolves the author's obligation")

	obs, err = f.gate.ListMine(ctx, "pro")
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.False(t, obs[0].Resolved)

	_, err = f.svc.Submit(ctx, "req", SubmitInput{ConnectionID: "done", Rating: 4})
	assert.ErrorIs(t, err, domain.ErrConflict, "one review per author")
}

func TestService_Submit_Refusals(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		author string
		in     SubmitInput
		want   error
	}{
		{"live connection", "req", SubmitInput{ConnectionID: "live", Rating: 5}, domain.ErrConflict},
		{"stranger", "nobody", SubmitInput{ConnectionID: "done", Rating: 5}, domain.ErrForbidden},
		{"missing connection", "req", SubmitInput{ConnectionID: "nope", Rating: 5}, domain.ErrNotFound},
		{"rating out of range", "req", SubmitInput{ConnectionID: "done", Rating: 6}, domain.ErrValidation},
		{"bad dimension", "req", SubmitInput{ConnectionID: "done", Rating: 3, Dimensions: domain.ReviewDimensions{Value: 9}}, domain.ErrValidation},
		{"no connection id", "req", SubmitInput{Rating: 3}, domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tc.author, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, f.pub.OfType(events.ReviewReceived))
}

func TestService_Submit_UnblocksOwner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.clock.Advance(week + time.Minute)
	_, err := f.gate.SweepOverdue(ctx)
	require.NoError(t, err)
	blocked, err := f.gate.IsBlocked(ctx, "pro")
	require.NoError(t, err)
	require.True(t, blocked)

	_, err = f.svc.Submit(ctx, "pro", SubmitInput{ConnectionID: "done", Rating: 4})
	require.NoError(t, err, "an overdue review can still be written")

	blocked, err = f.gate.IsBlocked(ctx, "pro")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rv, err := f.svc.Submit(ctx, "req", SubmitInput{ConnectionID: "done", Rating: 3})
	require.NoError(t, err)

	rating, comment := 4, "Came back to fix a leak"
	got, err := f.svc.Update(ctx, "req", rv.ID, UpdateInput{Rating: &rating, Comment: &comment})
	require.NoError(t, err)
	assert.Equal(t, 4, got.Rating)
	assert.Equal(t, comment, got.Comment)

	_, err = f.svc.Update(ctx, "pro", rv.ID, UpdateInput{Rating: &rating})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	bad := 0
	_, err = f.svc.Update(ctx, "req", rv.ID, UpdateInput{Rating: &bad})
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.clock.Advance(editWindow + time.Second)
	_, err = f.svc.Update(ctx, "req", rv.ID, UpdateInput{Rating: &rating})
	assert.ErrorIs(t, err, domain.ErrExpired)

	_, err = f.svc.Update(ctx, "req", "missing", UpdateInput{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_ListForSubject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.clock.Advance(time.Hour)
	f.connection(t, "done2", domain.ConnectionCompleted)

	_, err := f.svc.Submit(ctx, "req", SubmitInput{ConnectionID: "done", Rating: 5})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	latest, err := f.svc.Submit(ctx, "req", SubmitInput{ConnectionID: "done2", Rating: 3})
	require.NoError(t, err)

	p, err := f.svc.ListForSubject(ctx, "pro", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, defaultLimit, p.Limit)
	assert.Equal(t, 2, p.Total)
	assert.InDelta(t, 4.0, p.Summary.AverageRating, 1e-9)
	assert.Equal(t, map[int]int{5: 1, 3: 1}, p.Summary.RatingCounts)
	require.Len(t, p.Reviews, 2)
	assert.Equal(t, latest.ID, p.Reviews[0].ID, "newest first")

	p, err = f.svc.ListForSubject(ctx, "pro", 2, 1)
	require.NoError(t, err)
	require.Len(t, p.Reviews, 1)
	assert.NotEqual(t, latest.ID, p.Reviews[0].ID)

	p, err = f.svc.ListForSubject(ctx, "req", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, p.Reviews)
	assert.Equal(t, 0, p.Total)
}
