package connections

import (
	"context"
	"sync"
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

const week = 7 * 24 * time.Hour

type fixture struct {
	store *memory.Store
	clock *testutil.Clock
	pub   *testutil.Publisher
	coord *Coordinator
	conn  domain.Connection
}

// setup opens a connection between "req" and "pro" for request r1.
func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	clock := testutil.NewClock(testutil.T0.Add(time.Hour))
	pub := &testutil.Publisher{}
	co := NewCoordinator(s, clock, pub, obligations.New(s, clock, pub, week))

	testutil.SeedUser(t, s, "req", domain.RoleRequester)
	testutil.SeedProvider(t, s, "pro", "plumbing", "rawson", nil)

	r := domain.ServiceRequest{ID: "r1", RequesterID: "req", Status: domain.RequestInProgress, ExpiresAt: testutil.T0.Add(24 * time.Hour)}
	in := domain.Interest{ID: "i1", RequestID: "r1", ProviderID: "pro", ProposedPrice: 150, Status: domain.InterestAccepted}
	var conn domain.Connection
	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		if err := q.InsertRequest(ctx, r); err != nil {
			return err
		}
		if err := q.InsertInterest(ctx, in); err != nil {
			return err
		}
		var err error
		conn, err = co.Open(ctx, q, r, in)
		return err
	}))
	return &fixture{store: s, clock: clock, pub: pub, coord: co, conn: conn}
}

func (f *fixture) request(t *testing.T) domain.ServiceRequest {
	t.Helper()
	r, err := store.Get(context.Background(), f.store, func(q store.Queries) (domain.ServiceRequest, error) {
		return q.GetRequest(context.Background(), "r1", false)
	})
	require.NoError(t, err)
	return r
}

func TestCoordinator_Open(t *testing.T) {
	f := setup(t)
	assert.Equal(t, domain.ConnectionServiceInProgress, f.conn.Status)
	assert.False(t, f.conn.RequesterConfirmed)
	assert.False(t, f.conn.ProviderConfirmed)
	assert.Regexp(t, `^chan_[0-9a-f-]{36}$`, f.conn.ChannelID)
	assert.Equal(t, 150.0, f.conn.AgreedPrice)

	err := f.store.InTx(context.Background(), func(q store.Queries) error {
		_, err := f.coord.Open(context.Background(), q,
			domain.ServiceRequest{ID: "r1", RequesterID: "req"},
			domain.Interest{ID: "i1", RequestID: "r1", ProviderID: "pro", Status: domain.InterestAccepted})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrConflict, "one connection per interest")
}

func TestCoordinator_Confirm_StateMachine(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.clock.Set(testutil.T0.Add(2 * time.Hour))
	res, err := f.coord.Confirm(ctx, f.conn.ID, "pro", ConfirmInput{Note: "done"})
	require.NoError(t, err)
	assert.Equal(t, OneConfirmed, res.State)
	assert.False(t, res.BothConfirmed)
	assert.True(t, res.Connection.ProviderConfirmed)
	assert.Equal(t, domain.ConnectionServiceInProgress, res.Connection.Status)

	partner := f.pub.OfType(events.PartnerConfirmedCompletion)
	require.Len(t, partner, 1)
	assert.Equal(t, "req", partner[0].UserID)

	_, err = f.coord.Confirm(ctx, f.conn.ID, "pro", ConfirmInput{})
	assert.ErrorIs(t, err, domain.ErrConflict, "double confirm is rejected")

	completedAt := testutil.T0.Add(2*time.Hour + 5*time.Minute)
	f.clock.Set(completedAt)
	res, err = f.coord.Confirm(ctx, f.conn.ID, "req", ConfirmInput{Note: "great"})
	require.NoError(t, err)
	assert.Equal(t, Completed, res.State)
	assert.True(t, res.BothConfirmed)
	assert.Equal(t, domain.ConnectionCompleted, res.Connection.Status)
	require.NotNil(t, res.Connection.CompletedAt)
	assert.Equal(t, completedAt, *res.Connection.CompletedAt)
	assert.Equal(t, domain.RequestCompleted, f.request(t).Status)
	assert.Len(t, f.pub.OfType(events.ServiceMutuallyCompleted), 2)

	st, err := f.coord.Status(ctx, "req", f.conn.ID)
	require.NoError(t, err)
	require.Len(t, st.Obligations, 2)
	for _, o := range st.Obligations {
		assert.Equal(t, testutil.T0.Add(7*24*time.Hour+2*time.Hour+5*time.Minute), o.DueAt)
	}
	assert.Len(t, st.Confirmations, 2)

	_, err = f.coord.Confirm(ctx, f.conn.ID, "req", ConfirmInput{})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCoordinator_Confirm_ConcurrentBothPartiesCompleteOnce(t *testing.T) {
	for range 20 {
		f := setup(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		results := make([]ConfirmResult, 2)
		errs := make([]error, 2)
		for i, party := range []string{"req", "pro"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = f.coord.Confirm(ctx, f.conn.ID, party, ConfirmInput{})
			}()
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		assert.NotEqual(t, results[0].BothConfirmed, results[1].BothConfirmed, "exactly one confirmation completes")

		st, err := f.coord.Status(ctx, "pro", f.conn.ID)
		require.NoError(t, err)
		assert.Equal(t, Completed, st.State)
		assert.Len(t, st.Obligations, 2)
	}
}

func TestCoordinator_Confirm_Refusals(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.coord.Confirm(ctx, f.conn.ID, "stranger", ConfirmInput{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.coord.Confirm(ctx, "missing", "req", ConfirmInput{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.coord.Cancel(ctx, "req", f.conn.ID)
	require.NoError(t, err)
	_, err = f.coord.Confirm(ctx, f.conn.ID, "req", ConfirmInput{})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCoordinator_Confirm_RollsBackOnFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.coord.Confirm(ctx, f.conn.ID, "pro", ConfirmInput{})
	require.NoError(t, err)

	f.store.FailNext(2)
	_, err = f.coord.Confirm(ctx, f.conn.ID, "req", ConfirmInput{})
	require.ErrorIs(t, err, domain.ErrUnavailable)

	st, err := f.coord.Status(ctx, "req", f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, OneConfirmed, st.State)
	assert.Empty(t, st.Obligations)

	res, err := f.coord.Confirm(ctx, f.conn.ID, "req", ConfirmInput{})
	require.NoError(t, err)
	assert.True(t, res.BothConfirmed)
}

func TestCoordinator_Cancel(t *testing.T) {
	t.Run("before any confirmation", func(t *testing.T) {
		f := setup(t)
		c, err := f.coord.Cancel(context.Background(), "pro", f.conn.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ConnectionCancelled, c.Status)
		assert.NotNil(t, c.CancelledAt)
		assert.Equal(t, domain.RequestCancelled, f.request(t).Status)
	})

	t.Run("after a confirmation", func(t *testing.T) {
		f := setup(t)
		ctx := context.Background()
		_, err := f.coord.Confirm(ctx, f.conn.ID, "req", ConfirmInput{})
		require.NoError(t, err)
		_, err = f.coord.Cancel(ctx, "pro", f.conn.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("stranger", func(t *testing.T) {
		f := setup(t)
		_, err := f.coord.Cancel(context.Background(), "stranger", f.conn.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestCoordinator_ListMine(t *testing.T) {
	f := setup(t)
	list, err := f.coord.ListMine(context.Background(), "pro")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f.conn.ID, list[0].ID)

	list, err = f.coord.ListMine(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}
