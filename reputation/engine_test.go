package reputation

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veristake/veristake/ledger"
	"github.com/veristake/veristake/store"
)

func addr(c byte) string {
	return "V" + strings.Repeat(string(c), 55)
}

func newEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "store.db"), log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	e := NewEngine(st, DefaultRewardScore, time.Minute, log.NewNopLogger())
	e.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return e, st
}

func TestParseCategoryRoundTrip(t *testing.T) {
	for _, c := range Categories() {
		got, err := ParseCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCategory("bogus")
	assert.Error(t, err)
}

func TestParsePeriodRoundTrip(t *testing.T) {
	for _, p := range Periods() {
		got, err := ParsePeriod(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePeriod("hourly")
	assert.Error(t, err)
}

func TestComputeScore(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	fresh := now.AddDate(0, 0, -10).Unix() // 10 days old
	old := now.AddDate(0, 0, -90).Unix()

	tests := []struct {
		name     string
		profile  store.Profile
		input    periodInput
		category Category
		want     int64
	}{
		{
			name:     "earnings is staked plus rewarded",
			profile:  store.Profile{TotalRewarded: 40},
			input:    periodInput{staked: 100},
			category: CategoryEarnings,
			want:     140,
		},
		{
			name:     "accuracy is rounded percent",
			profile:  store.Profile{AccurateCount: 2, ResolvedCount: 3},
			category: CategoryAccuracy,
			want:     67,
		},
		{
			name:     "accuracy with no resolutions is zero",
			profile:  store.Profile{},
			category: CategoryAccuracy,
			want:     0,
		},
		{
			name:     "challenges counts oppose stakes",
			input:    periodInput{opposeCount: 5},
			category: CategoryChallenges,
			want:     5,
		},
		{
			name:     "contributions is claims plus stakes",
			input:    periodInput{claimCount: 3, stakeCount: 7},
			category: CategoryContributions,
			want:     10,
		},
		{
			name:     "expertise is reputation",
			profile:  store.Profile{ReputationScore: 55},
			category: CategoryExpertise,
			want:     55,
		},
		{
			name:     "rising star gets freshness bonus",
			profile:  store.Profile{ReputationScore: 50, CreateTimestamp: fresh},
			category: CategoryRisingStars,
			want:     50/10 + (30-10)*2,
		},
		{
			name:     "rising star bonus floors at zero",
			profile:  store.Profile{ReputationScore: 50, CreateTimestamp: old},
			category: CategoryRisingStars,
			want:     5,
		},
		{
			name:     "negative reputation clamps to zero",
			profile:  store.Profile{ReputationScore: -20},
			category: CategoryExpertise,
			want:     0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, computeScore(&tt.profile, tt.input, tt.category, now))
		})
	}
}

func TestRecordOutcome(t *testing.T) {
	e, st := newEngine(t)

	require.NoError(t, e.RecordOutcome(addr('A'), true, ledger.Units(2)))
	require.NoError(t, e.RecordOutcome(addr('A'), false, 0))
	require.NoError(t, e.RecordOutcome(addr('B'), false, 0))

	a, err := st.GetProfile(addr('A'))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), a.AccurateCount)
	assert.Equal(t, uint64(2), a.ResolvedCount)
	assert.Equal(t, int64(DefaultRewardScore), a.ReputationScore)
	assert.Equal(t, int64(ledger.Units(2)), a.TotalRewarded)
	assert.InDelta(t, 0.5, a.AccuracyRate(), 1e-9)

	b, err := st.GetProfile(addr('B'))
	require.NoError(t, err)
	assert.Zero(t, b.AccurateCount)
	assert.Equal(t, uint64(1), b.ResolvedCount)
	assert.Zero(t, b.ReputationScore)
}

func seedProfiles(t *testing.T, st *store.Store) {
	t.Helper()
	profiles := []store.Profile{
		{UserId: addr('A'), ReputationScore: 30, CreateTimestamp: 100},
		{UserId: addr('B'), ReputationScore: 50, CreateTimestamp: 200},
		{UserId: addr('C'), ReputationScore: 30, CreateTimestamp: 300},
	}
	for i := range profiles {
		_, err := st.EnsureProfile(profiles[i].UserId, profiles[i].CreateTimestamp)
		require.NoError(t, err)
		require.NoError(t, st.ApplyOutcome(profiles[i].UserId, true, profiles[i].ReputationScore, 0))
	}
}

func TestRebuildDenseRanksAndTieBreak(t *testing.T) {
	e, st := newEngine(t)
	seedProfiles(t, st)

	entries, err := e.Rebuild(CategoryExpertise, PeriodAllTime)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// B leads, then the two 30-score profiles tie: A is older, so A first
	assert.Equal(t, []int{1, 2, 3}, []int{entries[0].Rank, entries[1].Rank, entries[2].Rank})
	assert.Equal(t, addr('B'), entries[0].UserId)
	assert.Equal(t, addr('A'), entries[1].UserId)
	assert.Equal(t, addr('C'), entries[2].UserId)
	assert.GreaterOrEqual(t, entries[0].Score, entries[1].Score)
	assert.GreaterOrEqual(t, entries[1].Score, entries[2].Score)
}

func TestRebuildIdempotent(t *testing.T) {
	e, st := newEngine(t)
	seedProfiles(t, st)

	first, err := e.Rebuild(CategoryExpertise, PeriodAllTime)
	require.NoError(t, err)
	second, err := e.Rebuild(CategoryExpertise, PeriodAllTime)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].UserId, second[i].UserId)
		assert.Equal(t, first[i].Score, second[i].Score)
		assert.Equal(t, first[i].Rank, second[i].Rank)
	}

	stored, err := st.LeaderboardEntries(CategoryExpertise.String(), PeriodAllTime.String())
	require.NoError(t, err)
	assert.Len(t, stored, len(first))
}

func TestEntriesRebuildsWhenEmpty(t *testing.T) {
	e, st := newEngine(t)
	seedProfiles(t, st)

	entries, err := e.Entries(CategoryAccuracy, PeriodWeekly)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	stored, err := st.LeaderboardEntries(CategoryAccuracy.String(), PeriodWeekly.String())
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestSubscribeAndCancel(t *testing.T) {
	e, st := newEngine(t)
	seedProfiles(t, st)

	calls := 0
	sub := e.Subscribe(CategoryExpertise, PeriodAllTime, func(entries []store.LeaderboardEntry) {
		calls++
	})

	_, err := e.Rebuild(CategoryExpertise, PeriodAllTime)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// other boards do not notify this subscriber
	_, err = e.Rebuild(CategoryAccuracy, PeriodAllTime)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	sub.Cancel()
	_, err = e.Rebuild(CategoryExpertise, PeriodAllTime)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
