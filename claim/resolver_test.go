package claim

import (
	"context"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veristake/veristake/ledger"
	"github.com/veristake/veristake/store"
)

type recordedOutcome struct {
	UserId   string
	Accurate bool
	Rewarded ledger.Amount
}

type stubRecorder struct {
	mtx      sync.Mutex
	outcomes []recordedOutcome
}

func (s *stubRecorder) RecordOutcome(userID string, accurate bool, rewarded ledger.Amount) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.outcomes = append(s.outcomes, recordedOutcome{UserId: userID, Accurate: accurate, Rewarded: rewarded})
	return nil
}

func (s *stubRecorder) byUser(userID string) *recordedOutcome {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for i := range s.outcomes {
		if s.outcomes[i].UserId == userID {
			return &s.outcomes[i]
		}
	}
	return nil
}

func newResolverFixture(t *testing.T) (*fixture, *Resolver, *stubRecorder) {
	f := newFixture(t)
	rec := &stubRecorder{}
	r := NewResolver(f.st, f.cli, rec, time.Second, log.NewNopLogger())
	r.now = func() time.Time { return f.now.Add(25 * time.Hour) }
	return f, r, rec
}

// author stakes 1 support; staker1 0.5 support more, staker2 2 oppose. The
// oppose side wins; winners gain accuracy numerator, losers denominator.
func TestResolveOpposeMajority(t *testing.T) {
	f, r, rec := newResolverFixture(t)
	f.cli.SetBalance(authorAddr, ledger.Units(10))
	f.cli.SetBalance(staker1, ledger.Units(10))
	f.cli.SetBalance(staker2, ledger.Units(10))

	c, err := f.lc.Create(context.Background(), authorAddr, "the moon is cheese", ledger.Units(1))
	require.NoError(t, err)
	_, err = f.lc.PlaceStake(context.Background(), c.Id, staker1, store.SideSupport, ledger.Units(1))
	require.NoError(t, err)
	_, err = f.lc.PlaceStake(context.Background(), c.Id, staker2, store.SideOppose, ledger.Units(2))
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), c.Id)
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeOppose, res.Outcome)
	assert.False(t, res.Degraded)
	assert.Equal(t, ledger.Units(2), res.Tally.SupportTotal)
	assert.Equal(t, ledger.Units(2), res.Tally.OpposeTotal)

	winner := rec.byUser(staker2)
	require.NotNil(t, winner)
	assert.True(t, winner.Accurate)
	assert.Equal(t, ledger.Units(2), winner.Rewarded)

	loser := rec.byUser(staker1)
	require.NotNil(t, loser)
	assert.False(t, loser.Accurate)
	assert.Zero(t, loser.Rewarded)

	got, err := f.st.GetClaim(c.Id)
	require.NoError(t, err)
	assert.Equal(t, store.ClaimStatusResolved, got.Status)
	// counters frozen for audit
	assert.Equal(t, int64(ledger.Units(4)), got.TotalStaked)
	assert.Equal(t, uint64(2), got.VerificationCount)
}

func TestResolveTieReturnsNoDeltas(t *testing.T) {
	f, r, rec := newResolverFixture(t)
	f.cli.SetBalance(authorAddr, ledger.Units(10))
	f.cli.SetBalance(staker1, ledger.Units(10))

	c, err := f.lc.Create(context.Background(), authorAddr, "balanced", ledger.Units(1))
	require.NoError(t, err)
	_, err = f.lc.PlaceStake(context.Background(), c.Id, staker1, store.SideOppose, ledger.Units(1))
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), c.Id)
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeTie, res.Outcome)
	assert.Empty(t, rec.outcomes)
}

func TestResolveIdempotent(t *testing.T) {
	f, r, rec := newResolverFixture(t)
	f.cli.SetBalance(authorAddr, ledger.Units(10))

	c, err := f.lc.Create(context.Background(), authorAddr, "once only", ledger.Units(1))
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), c.Id)
	require.NoError(t, err)
	n := len(rec.outcomes)

	_, err = r.Resolve(context.Background(), c.Id)
	assert.ErrorIs(t, err, store.ErrAlreadyResolved)
	assert.Len(t, rec.outcomes, n)
}

func TestResolveDegradedExcludesUnverifiableStake(t *testing.T) {
	f, r, rec := newResolverFixture(t)
	f.cli.SetBalance(authorAddr, ledger.Units(10))
	f.cli.SetBalance(staker1, ledger.Units(10))
	f.cli.SetBalance(staker2, ledger.Units(10))

	c, err := f.lc.Create(context.Background(), authorAddr, "flaky ledger", ledger.Units(1))
	require.NoError(t, err)
	_, err = f.lc.PlaceStake(context.Background(), c.Id, staker1, store.SideSupport, ledger.Units(1))
	require.NoError(t, err)
	big, err := f.lc.PlaceStake(context.Background(), c.Id, staker2, store.SideOppose, ledger.Units(5))
	require.NoError(t, err)

	// the big oppose stake can no longer be re-verified
	f.cli.FailTxLookups[big.TxId] = true

	res, err := r.Resolve(context.Background(), c.Id)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, 1, res.Tally.Excluded)
	assert.Equal(t, store.OutcomeSupport, res.Outcome)

	// the excluded staker gets no delta either way
	assert.Nil(t, rec.byUser(staker2))

	got, err := f.st.GetClaim(c.Id)
	require.NoError(t, err)
	assert.True(t, got.Degraded)
}

func TestResolveDue(t *testing.T) {
	f, r, _ := newResolverFixture(t)
	f.cli.SetBalance(authorAddr, ledger.Units(10))

	c, err := f.lc.Create(context.Background(), authorAddr, "due soon", ledger.Units(1))
	require.NoError(t, err)

	// not yet due
	r.now = func() time.Time { return f.now.Add(time.Hour) }
	n, err := r.ResolveDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	// past the window
	r.now = func() time.Time { return f.now.Add(25 * time.Hour) }
	n, err = r.ResolveDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.st.GetClaim(c.Id)
	require.NoError(t, err)
	assert.Equal(t, store.ClaimStatusResolved, got.Status)
}
