package obligations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/events"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
	"github.com/zillah777/fixia-platform-sub000/internal/store/memory"
	"github.com/zillah777/fixia-platform-sub000/internal/testutil"
)

const week = 7 * 24 * time.Hour

func newGate(t *testing.T) (*Gate, *memory.Store, *testutil.Clock, *testutil.Publisher) {
	t.Helper()
	s := memory.New()
	clock := testutil.NewClock(testutil.T0)
	pub := &testutil.Publisher{}
	return New(s, clock, pub, week), s, clock, pub
}

func openPair(t *testing.T, g *Gate, s store.Store, completedAt time.Time) []domain.ReviewObligation {
	t.Helper()
	conn := domain.Connection{ID: "c1", RequesterID: "req", ProviderID: "pro"}
	var obs []domain.ReviewObligation
	err := s.InTx(context.Background(), func(q store.Queries) error {
		var err error
		obs, err = g.Open(context.Background(), q, conn, completedAt)
		return err
	})
	require.NoError(t, err)
	return obs
}

func TestGate_Open_CreatesPairDueInSevenDays(t *testing.T) {
	g, s, _, _ := newGate(t)
	obs := openPair(t, g, s, testutil.T0)

	require.Len(t, obs, 2)
	assert.Equal(t, "req", obs[0].OwnerID)
	assert.Equal(t, "pro", obs[0].CounterpartyID)
	assert.Equal(t, "pro", obs[1].OwnerID)
	for _, o := range obs {
		assert.Equal(t, testutil.T0.Add(week), o.DueAt)
		assert.False(t, o.Blocking)
		assert.False(t, o.Resolved)
	}
}

func TestGate_Open_SecondPairRejected(t *testing.T) {
	g, s, _, _ := newGate(t)
	openPair(t, g, s, testutil.T0)

	err := s.InTx(context.Background(), func(q store.Queries) error {
		_, err := g.Open(context.Background(), q, domain.Connection{ID: "c1", RequesterID: "req", ProviderID: "pro"}, testutil.T0)
		return err
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestGate_SweepOverdue_BlocksAndNotifies(t *testing.T) {
	g, s, clock, pub := newGate(t)
	ctx := context.Background()
	openPair(t, g, s, testutil.T0)

	clock.Set(testutil.T0.Add(week - time.Minute))
	n, err := g.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	blocked, err := g.IsBlocked(ctx, "req")
	require.NoError(t, err)
	assert.False(t, blocked, "within the window")

	clock.Set(testutil.T0.Add(week))
	n, err = g.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st, err := g.Status(ctx, "req")
	require.NoError(t, err)
	assert.True(t, st.Blocked)
	assert.Equal(t, 1, st.Count)
	assert.Len(t, st.Reasons, 1)
	assert.Len(t, pub.OfType(events.ReviewObligationOverdue), 2)

	n, err = g.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "sweep is idempotent")
	assert.Len(t, pub.OfType(events.ReviewObligationOverdue), 2)
}

func TestGate_Check_BlockedCarriesRemediation(t *testing.T) {
	g, s, clock, _ := newGate(t)
	ctx := context.Background()
	openPair(t, g, s, testutil.T0)
	clock.Set(testutil.T0.Add(8 * 24 * time.Hour))
	_, err := g.SweepOverdue(ctx)
	require.NoError(t, err)

	err = s.InTx(ctx, func(q store.Queries) error { return g.Check(ctx, q, "pro") })
	require.ErrorIs(t, err, domain.ErrBlocked)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "review 1 counterpart(s) first", derr.Remediation)
	assert.Equal(t, 1, derr.Details["count"])
}

func TestGate_Resolve_Unblocks(t *testing.T) {
	g, s, clock, _ := newGate(t)
	ctx := context.Background()
	openPair(t, g, s, testutil.T0)
	clock.Set(testutil.T0.Add(8 * 24 * time.Hour))
	_, err := g.SweepOverdue(ctx)
	require.NoError(t, err)

	var resolved bool
	err = s.InTx(ctx, func(q store.Queries) error {
		var err error
		resolved, err = g.Resolve(ctx, q, "c1", "req")
		return err
	})
	require.NoError(t, err)
	assert.True(t, resolved)

	blocked, err := g.IsBlocked(ctx, "req")
	require.NoError(t, err)
	assert.False(t, blocked)

	blocked, err = g.IsBlocked(ctx, "pro")
	require.NoError(t, err)
	assert.True(t, blocked, "the other party still owes a review")

	err = s.InTx(ctx, func(q store.Queries) error {
		var err error
		resolved, err = g.Resolve(ctx, q, "c1", "req")
		return err
	})
	require.NoError(t, err)
	assert.False(t, resolved)
}

func TestGate_Status_EmptyForNewUser(t *testing.T) {
	g, _, _, _ := newGate(t)
	st, err := g.Status(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, st.Blocked)
	assert.Empty(t, st.Reasons)
	assert.NotNil(t, st.Obligations)
}

func TestGate_ListMine_EmptyIsNotNil(t *testing.T) {
	g, _, _, _ := newGate(t)
	obs, err := g.ListMine(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, obs)
	assert.Empty(t, obs)
}
