package service_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/service"
	"github.com/warp/star-engine/store/sqlite"
)

// interleavedStore runs next once, right before the next transaction
// starts. It stands in for another process committing between a preview
// and the first chunk of a commit.
type interleavedStore struct {
	incentive.Store
	next func()
}

func (s *interleavedStore) WithTx(ctx context.Context, fn func(incentive.Store) error) error {
	if hook := s.next; hook != nil {
		s.next = nil
		hook()
	}
	return s.Store.WithTx(ctx, fn)
}

// sharedFile opens two stores on one SQLite file, the way the server and
// starctl share a database. Seeding goes through the first.
func sharedFile(t *testing.T) (*fixture, *interleavedStore, *fixture) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stars.db")

	open := func() *sqlite.Store {
		st, err := sqlite.New(path)
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		return st
	}

	hooked := &interleavedStore{Store: open()}
	a := newFixture(t, hooked, service.DefaultOptions())
	b := newFixture(t, open(), service.DefaultOptions())
	a.seedMarch(t)
	return a, hooked, b
}

func TestSharedDB_BonusCommittedElsewhereIsNotReapplied(t *testing.T) {
	a, hooked, b := sharedFile(t)
	ctx := context.Background()
	req := service.BonusRequest{Category: incentive.AllCategories, Window: marchWindow(), Multiplier: decimal.NewFromInt(2)}

	// GIVEN: The first writer previewed a x2 bonus
	preview, err := a.svc.PreviewBonus(ctx, req)
	require.NoError(t, err)

	// AND: The second writer commits the same bonus before the first chunk
	hooked.next = func() {
		p, err := b.svc.PreviewBonus(ctx, req)
		require.NoError(t, err)
		_, err = b.svc.CommitBonus(ctx, req, p.Fingerprint)
		require.NoError(t, err)
	}

	// WHEN: The first writer commits its preview
	commit, err := a.svc.CommitBonus(ctx, req, preview.Fingerprint)
	require.NoError(t, err)

	// THEN: Nothing is rewritten twice: 2 x 6 March stars + 3 April stars
	assert.Zero(t, commit.CommittedEvents)
	assert.Empty(t, commit.StaffDeltas)
	assert.Equal(t, 15, a.stars(t, "anna"))
	assert.Equal(t, 2, a.stars(t, "ben"))
	a.assertNoDrift(t, "anna", "ben")
}

func TestSharedDB_RevertCommittedElsewhereIsNotReapplied(t *testing.T) {
	a, hooked, b := sharedFile(t)
	ctx := context.Background()
	req := service.BonusRequest{Window: marchWindow(), Multiplier: decimal.NewFromInt(2)}

	bonus, err := a.svc.PreviewBonus(ctx, req)
	require.NoError(t, err)
	_, err = a.svc.CommitBonus(ctx, req, bonus.Fingerprint)
	require.NoError(t, err)
	require.Equal(t, 15, a.stars(t, "anna"))

	preview, err := a.svc.PreviewRevertBonus(ctx, req)
	require.NoError(t, err)
	hooked.next = func() {
		p, err := b.svc.PreviewRevertBonus(ctx, req)
		require.NoError(t, err)
		_, err = b.svc.CommitRevertBonus(ctx, req, p.Fingerprint)
		require.NoError(t, err)
	}

	commit, err := a.svc.CommitRevertBonus(ctx, req, preview.Fingerprint)
	require.NoError(t, err)

	assert.Zero(t, commit.CommittedEvents)
	assert.Equal(t, 9, a.stars(t, "anna"))
	assert.Equal(t, 1, a.stars(t, "ben"))
	a.assertNoDrift(t, "anna", "ben")
}

func TestSharedDB_ResetCommittedElsewhereIsNotReversedTwice(t *testing.T) {
	a, hooked, b := sharedFile(t)
	ctx := context.Background()
	req := service.ResetRequest{Window: marchWindow(), StaffID: "anna"}

	// GIVEN: The first writer previewed anna's March reset
	preview, err := a.svc.PreviewReset(ctx, req)
	require.NoError(t, err)
	require.Len(t, preview.Events, 2)

	// AND: The second writer commits the same reset first
	hooked.next = func() {
		p, err := b.svc.PreviewReset(ctx, req)
		require.NoError(t, err)
		_, err = b.svc.CommitReset(ctx, req, p.Fingerprint)
		require.NoError(t, err)
	}

	// WHEN: The first writer commits
	commit, err := a.svc.CommitReset(ctx, req, preview.Fingerprint)
	require.NoError(t, err)

	// THEN: Only the April sale is left, and its 3 stars are the total
	assert.Zero(t, commit.CommittedEvents)
	assert.Equal(t, 3, a.stars(t, "anna"))
	a.assertNoDrift(t, "anna")
}
