package store

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addr(c byte) string {
	return "V" + strings.Repeat(string(c), 55)
}

func seedClaim(t *testing.T, s *Store, id string, author string, original int64) *Claim {
	t.Helper()
	c := &Claim{
		Id:              id,
		Author:          author,
		Content:         "the sky is blue",
		OriginalStake:   original,
		TotalStaked:     original,
		Status:          ClaimStatusPending,
		CreateTimestamp: 1000,
		ExpireTimestamp: 1000 + 86400,
	}
	require.NoError(t, s.CreateClaim(c))
	return c
}

func TestAppendStakeMovesCounters(t *testing.T) {
	s := testStore(t)
	author := addr('A')
	staker := addr('B')
	seedClaim(t, s, "c1", author, 100)

	st := &Stake{ClaimId: "c1", Staker: staker, Side: SideSupport, Amount: 50, TxId: "tx-1", PlaceTimestamp: 2000}
	rec := &TxRecord{TxId: "tx-1", ClaimId: "c1", Sender: staker, Amount: 50, Kind: "verification", CreateTimestamp: 2000}
	require.NoError(t, s.AppendStake(st, rec, true))

	c, err := s.GetClaim("c1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), c.TotalStaked)
	assert.Equal(t, uint64(1), c.VerificationCount)

	p, err := s.GetProfile(staker)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.StakeCount)
	assert.Equal(t, int64(50), p.TotalStaked)

	got, err := s.GetTxRecord("tx-1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ClaimId)
}

func TestAppendStakeAuthorDoesNotCountVerification(t *testing.T) {
	s := testStore(t)
	author := addr('A')
	c := &Claim{Id: "c1", Author: author, Content: "x", Status: ClaimStatusDraft}
	require.NoError(t, s.CreateClaim(c))

	st := &Stake{ClaimId: "c1", Staker: author, Side: SideSupport, Amount: 100, TxId: "tx-0", PlaceTimestamp: 1000}
	rec := &TxRecord{TxId: "tx-0", ClaimId: "c1", Sender: author, Amount: 100, Kind: "claim", CreateTimestamp: 1000}
	require.NoError(t, s.AppendStake(st, rec, false))

	got, err := s.GetClaim("c1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.VerificationCount)
}

func TestStakeExists(t *testing.T) {
	s := testStore(t)
	seedClaim(t, s, "c1", addr('A'), 100)

	ok, err := s.StakeExists("c1", addr('B'))
	require.NoError(t, err)
	assert.False(t, ok)

	st := &Stake{ClaimId: "c1", Staker: addr('B'), Side: SideOppose, Amount: 10, TxId: "tx-2", PlaceTimestamp: 2000}
	rec := &TxRecord{TxId: "tx-2", ClaimId: "c1", Sender: addr('B'), Amount: 10, Kind: "verification", CreateTimestamp: 2000}
	require.NoError(t, s.AppendStake(st, rec, true))

	ok, err = s.StakeExists("c1", addr('B'))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkResolvedFence(t *testing.T) {
	s := testStore(t)
	seedClaim(t, s, "c1", addr('A'), 100)

	require.NoError(t, s.MarkResolved("c1", OutcomeSupport, false, 90000))
	err := s.MarkResolved("c1", OutcomeOppose, false, 90001)
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	c, err := s.GetClaim("c1")
	require.NoError(t, err)
	assert.Equal(t, ClaimStatusResolved, c.Status)
	assert.Equal(t, OutcomeSupport, c.Outcome)
}

func TestDueClaims(t *testing.T) {
	s := testStore(t)
	seedClaim(t, s, "due", addr('A'), 100)
	late := seedClaim(t, s, "late", addr('B'), 100)
	late.ExpireTimestamp = 999999
	require.NoError(t, s.SaveClaim(late))

	due, err := s.DueClaims(1000 + 86400)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].Id)
}

func TestDeleteDraftOnly(t *testing.T) {
	s := testStore(t)
	draft := &Claim{Id: "d1", Author: addr('A'), Status: ClaimStatusDraft}
	require.NoError(t, s.CreateClaim(draft))
	seedClaim(t, s, "p1", addr('B'), 100)

	require.NoError(t, s.DeleteDraft("d1"))
	require.NoError(t, s.DeleteDraft("p1")) // no-op, wrong status

	_, err := s.GetClaim("d1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetClaim("p1")
	assert.NoError(t, err)
}

func TestReplaceLeaderboard(t *testing.T) {
	s := testStore(t)
	first := []LeaderboardEntry{
		{UserId: addr('A'), Score: 30, Rank: 1},
		{UserId: addr('B'), Score: 20, Rank: 2},
	}
	require.NoError(t, s.ReplaceLeaderboard("earnings", "all-time", first))

	second := []LeaderboardEntry{
		{UserId: addr('B'), Score: 50, Rank: 1},
	}
	require.NoError(t, s.ReplaceLeaderboard("earnings", "all-time", second))

	entries, err := s.LeaderboardEntries("earnings", "all-time")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, addr('B'), entries[0].UserId)
	assert.Equal(t, 1, entries[0].Rank)

	// other keys untouched
	other, err := s.LeaderboardEntries("accuracy", "all-time")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStakeAggregates(t *testing.T) {
	s := testStore(t)
	seedClaim(t, s, "c1", addr('A'), 100)
	stakes := []Stake{
		{ClaimId: "c1", Staker: addr('B'), Side: SideSupport, Amount: 50, TxId: "tx-1", PlaceTimestamp: 100},
		{ClaimId: "c1", Staker: addr('C'), Side: SideOppose, Amount: 70, TxId: "tx-2", PlaceTimestamp: 200},
	}
	for i := range stakes {
		rec := &TxRecord{TxId: stakes[i].TxId, ClaimId: "c1", Sender: stakes[i].Staker, Amount: stakes[i].Amount, Kind: "verification", CreateTimestamp: stakes[i].PlaceTimestamp}
		require.NoError(t, s.AppendStake(&stakes[i], rec, true))
	}

	all, err := s.StakeAggregates(0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(70), all[addr('C')].Total)
	assert.Equal(t, uint64(1), all[addr('C')].OpposeCount)
	assert.Equal(t, uint64(0), all[addr('B')].OpposeCount)

	recent, err := s.StakeAggregates(150)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, int64(70), recent[addr('C')].Total)
}

func TestKeyMutexScopedToKey(t *testing.T) {
	km := NewKeyMutex()
	unlockA := km.Lock("a")
	// a different key must not block
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}

func TestKeyMutexEvictsIdleEntries(t *testing.T) {
	km := NewKeyMutex()
	unlockA := km.Lock("a")

	// a waiter on the same key keeps the entry alive
	acquired := make(chan struct{})
	go func() {
		unlock := km.Lock("a")
		unlock()
		close(acquired)
	}()
	for {
		km.mtx.Lock()
		waiting := km.locks["a"] != nil && km.locks["a"].refs == 2
		km.mtx.Unlock()
		if waiting {
			break
		}
		time.Sleep(time.Millisecond)
	}
	unlockA()
	<-acquired

	// nothing in flight, nothing retained
	km.mtx.Lock()
	remaining := len(km.locks)
	km.mtx.Unlock()
	assert.Zero(t, remaining)
}
