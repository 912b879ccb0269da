package roles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/obligations"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
	"github.com/zillah777/fixia-platform-sub000/internal/store/memory"
	"github.com/zillah777/fixia-platform-sub000/internal/testutil"
)

const week = 7 * 24 * time.Hour

func setup(t *testing.T) (*memory.Store, *testutil.Clock, *obligations.Gate, *Guard) {
	t.Helper()
	s := memory.New()
	clock := testutil.NewClock(testutil.T0)
	gate := obligations.New(s, clock, &testutil.Publisher{}, week)
	return s, clock, gate, NewGuard(s, clock, gate)
}

func candidates(t *testing.T, s store.Store) []domain.WorkProfile {
	t.Helper()
	list, err := store.Get(context.Background(), s, func(q store.Queries) ([]domain.WorkProfile, error) {
		return q.ListCandidateProfiles(context.Background(), "plumbing", "rawson")
	})
	require.NoError(t, err)
	return list
}

func roleProfile(t *testing.T, s store.Store, userID string, role domain.Role) domain.RoleProfile {
	t.Helper()
	p, err := store.Get(context.Background(), s, func(q store.Queries) (domain.RoleProfile, error) {
		return q.GetRoleProfile(context.Background(), userID, role)
	})
	require.NoError(t, err)
	return p
}

func TestGuard_Switch_RequesterToProviderSeedsProfile(t *testing.T) {
	s, _, _, g := setup(t)
	ctx := context.Background()
	testutil.SeedUser(t, s, "ana", domain.RoleRequester)

	u, err := g.Switch(ctx, "ana", domain.RoleProvider)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleProvider, u.Role)

	wp, err := store.Get(ctx, s, func(q store.Queries) (domain.WorkProfile, error) {
		return q.GetWorkProfile(ctx, "ana")
	})
	require.NoError(t, err)
	assert.True(t, wp.Active)
	assert.Equal(t, domain.TierFree, wp.Tier)
	assert.False(t, roleProfile(t, s, "ana", domain.RoleRequester).Active)
	assert.True(t, roleProfile(t, s, "ana", domain.RoleProvider).Active)

	hist, err := g.History(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, domain.RoleRequester, hist[0].FromRole)
	assert.Equal(t, domain.RoleProvider, hist[0].ToRole)
}

func TestGuard_Switch_IsReversible(t *testing.T) {
	s, _, _, g := setup(t)
	ctx := context.Background()
	testutil.SeedProvider(t, s, "pablo", "plumbing", "rawson", nil)
	require.Len(t, candidates(t, s), 1)

	_, err := g.Switch(ctx, "pablo", domain.RoleRequester)
	require.NoError(t, err)
	assert.Empty(t, candidates(t, s), "an inactive work profile is never matched")

	_, err = g.Switch(ctx, "pablo", domain.RoleProvider)
	require.NoError(t, err)
	got := candidates(t, s)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"plumbing"}, got[0].Categories, "the old profile comes back intact")

	hist, err := g.History(ctx, "pablo")
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestGuard_BusyProviderCannotSwitch(t *testing.T) {
	s, _, _, g := setup(t)
	ctx := context.Background()
	testutil.SeedUser(t, s, "ana", domain.RoleRequester)
	testutil.SeedProvider(t, s, "pablo", "plumbing", "rawson", nil)
	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		return q.InsertConnection(ctx, domain.Connection{
			ID: "c1", RequesterID: "ana", ProviderID: "pablo", ChannelID: "chan_c1",
			Status: domain.ConnectionServiceInProgress, CreatedAt: testutil.T0,
		})
	}))

	d, err := g.CanSwitch(ctx, "pablo")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1, d.ActiveConnections)
	assert.NotEmpty(t, d.Remediation)

	_, err = g.Switch(ctx, "pablo", domain.RoleRequester)
	assert.ErrorIs(t, err, domain.ErrConflict)

	d, err = g.CanSwitch(ctx, "ana")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "requester side of a live connection may switch")
	assert.Equal(t, domain.RoleProvider, d.To)
}

func TestGuard_BlockedUserCannotSwitch(t *testing.T) {
	s, clock, gate, g := setup(t)
	ctx := context.Background()
	testutil.SeedUser(t, s, "ana", domain.RoleRequester)
	testutil.SeedProvider(t, s, "pablo", "plumbing", "rawson", nil)

	done := testutil.T0
	conn := domain.Connection{
		ID: "c1", RequesterID: "ana", ProviderID: "pablo", ChannelID: "chan_c1",
		Status: domain.ConnectionCompleted, RequesterConfirmed: true, ProviderConfirmed: true,
		CreatedAt: testutil.T0, CompletedAt: &done,
	}
	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		if err := q.InsertConnection(ctx, conn); err != nil {
			return err
		}
		_, err := gate.Open(ctx, q, conn, done)
		return err
	}))
	clock.Advance(week)
	_, err := gate.SweepOverdue(ctx)
	require.NoError(t, err)

	d, err := g.CanSwitch(ctx, "ana")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "review 1 counterpart(s) first", d.Remediation)

	_, err = g.Switch(ctx, "ana", domain.RoleProvider)
	assert.ErrorIs(t, err, domain.ErrBlocked)

	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		_, err := gate.Resolve(ctx, q, "c1", "ana")
		return err
	}))
	_, err = g.Switch(ctx, "ana", domain.RoleProvider)
	assert.NoError(t, err, "resolving the obligation unblocks the switch")
}

func TestGuard_Switch_Refusals(t *testing.T) {
	s, _, _, g := setup(t)
	ctx := context.Background()
	testutil.SeedUser(t, s, "ana", domain.RoleRequester)
	testutil.SeedUser(t, s, "root", domain.RoleAdmin)

	_, err := g.Switch(ctx, "ana", domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = g.Switch(ctx, "ana", "wizard")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = g.Switch(ctx, "ana", domain.RoleRequester)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = g.Switch(ctx, "root", domain.RoleProvider)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = g.Switch(ctx, "ghost", domain.RoleProvider)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	d, err := g.CanSwitch(ctx, "root")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Empty(t, d.To)
}
