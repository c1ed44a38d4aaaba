package reputation

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"cosmossdk.io/log"

	"github.com/veristake/veristake/ledger"
	"github.com/veristake/veristake/store"
)

const (
	// DefaultRewardScore is reputation gained per accurate verification.
	// An economic policy knob, not a structural constant.
	DefaultRewardScore = 10

	DefaultRefreshInterval = 30 * time.Second
)

// Engine owns Profile reputation bookkeeping and the leaderboards derived
// from it. It is the only mutator of reputationScore and accuracy.
type Engine struct {
	logger      log.Logger
	st          *store.Store
	rewardScore int64

	profileLocks *store.KeyMutex
	now          func() time.Time

	mtx     sync.Mutex
	subs    map[string]map[uint64]func([]store.LeaderboardEntry)
	nextSub uint64

	refreshInterval time.Duration
	stopChan        chan struct{}
	stopOnce        sync.Once
}

func NewEngine(st *store.Store, rewardScore int64, refreshInterval time.Duration, logger log.Logger) *Engine {
	if rewardScore == 0 {
		rewardScore = DefaultRewardScore
	}
	if refreshInterval <= 0 {
		refreshInterval = DefaultRefreshInterval
	}
	return &Engine{
		logger:          logger.With("module", "reputation"),
		st:              st,
		rewardScore:     rewardScore,
		profileLocks:    store.NewKeyMutex(),
		now:             time.Now,
		subs:            make(map[string]map[uint64]func([]store.LeaderboardEntry)),
		refreshInterval: refreshInterval,
		stopChan:        make(chan struct{}),
	}
}

// RecordOutcome applies one staker's share of a resolution: the accuracy
// denominator always moves, the numerator and reputation only on a win.
// Profile-scoped lock; resolutions of unrelated users never contend.
func (e *Engine) RecordOutcome(userID string, accurate bool, rewarded ledger.Amount) error {
	unlock := e.profileLocks.Lock(userID)
	defer unlock()
	if _, err := e.st.EnsureProfile(userID, e.now().Unix()); err != nil {
		return err
	}
	return e.st.ApplyOutcome(userID, accurate, e.rewardScore, int64(rewarded))
}

// periodInput is the activity a period window contributes to scoring.
type periodInput struct {
	staked      int64
	stakeCount  uint64
	opposeCount uint64
	claimCount  uint64
}

// computeScore is the pure per-category formula. Scores never go below zero.
func computeScore(p *store.Profile, in periodInput, category Category, now time.Time) int64 {
	var score int64
	switch category {
	case CategoryEarnings:
		score = in.staked + p.TotalRewarded
	case CategoryAccuracy:
		score = int64(math.Round(p.AccuracyRate() * 100))
	case CategoryChallenges:
		score = int64(in.opposeCount)
	case CategoryContributions:
		score = int64(in.claimCount + in.stakeCount)
	case CategoryExpertise:
		score = p.ReputationScore
	case CategoryRisingStars:
		ageDays := int64(now.Sub(time.Unix(p.CreateTimestamp, 0)).Hours() / 24)
		bonus := 30 - ageDays
		if bonus < 0 {
			bonus = 0
		}
		score = p.ReputationScore/10 + bonus*2
	default:
		panic(fmt.Sprintf("unhandled category %d", int(category)))
	}
	if score < 0 {
		return 0
	}
	return score
}

// Rebuild recomputes one (category, period) board wholesale: score every
// profile, order score-desc with ties broken by account creation (oldest
// first), assign dense ranks 1..N and swap the entry set atomically.
func (e *Engine) Rebuild(category Category, period Period) ([]store.LeaderboardEntry, error) {
	profiles, err := e.st.Profiles()
	if err != nil {
		return nil, err
	}
	now := e.now()
	since := period.Start(now)
	aggs, err := e.st.StakeAggregates(since)
	if err != nil {
		return nil, err
	}
	claims, err := e.st.ClaimCounts(since)
	if err != nil {
		return nil, err
	}

	entries := make([]store.LeaderboardEntry, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		agg := aggs[p.UserId]
		in := periodInput{
			staked:      agg.Total,
			stakeCount:  agg.Count,
			opposeCount: agg.OpposeCount,
			claimCount:  claims[p.UserId],
		}
		entries = append(entries, store.LeaderboardEntry{
			UserId: p.UserId,
			Score:  computeScore(p, in, category, now),
		})
	}

	// profiles come back ordered by creation, so a stable sort keeps the
	// oldest account first within a score tie
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	if err := e.st.ReplaceLeaderboard(category.String(), period.String(), entries); err != nil {
		return nil, err
	}
	e.notify(category, period, entries)
	return entries, nil
}

// Entries reads the current board, rebuilding first if the set is empty.
func (e *Engine) Entries(category Category, period Period) ([]store.LeaderboardEntry, error) {
	entries, err := e.st.LeaderboardEntries(category.String(), period.String())
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return e.Rebuild(category, period)
	}
	return entries, nil
}

func subKey(category Category, period Period) string {
	return category.String() + "|" + period.String()
}

// Subscription is the handle returned by Subscribe. Cancel stops future
// notifications; it is safe to call more than once.
type Subscription struct {
	engine *Engine
	key    string
	id     uint64
}

func (s *Subscription) Cancel() {
	s.engine.mtx.Lock()
	defer s.engine.mtx.Unlock()
	if subs, ok := s.engine.subs[s.key]; ok {
		delete(subs, s.id)
	}
}

// Subscribe registers fn to run after each rebuild of (category, period).
func (e *Engine) Subscribe(category Category, period Period, fn func([]store.LeaderboardEntry)) *Subscription {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	key := subKey(category, period)
	if e.subs[key] == nil {
		e.subs[key] = make(map[uint64]func([]store.LeaderboardEntry))
	}
	e.nextSub++
	e.subs[key][e.nextSub] = fn
	return &Subscription{engine: e, key: key, id: e.nextSub}
}

func (e *Engine) notify(category Category, period Period, entries []store.LeaderboardEntry) {
	e.mtx.Lock()
	fns := make([]func([]store.LeaderboardEntry), 0, len(e.subs[subKey(category, period)]))
	for _, fn := range e.subs[subKey(category, period)] {
		fns = append(fns, fn)
	}
	e.mtx.Unlock()
	for _, fn := range fns {
		fn(entries)
	}
}

// subscribedBoards lists the (category, period) keys with live subscribers.
func (e *Engine) subscribedBoards() [][2]string {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	keys := make([][2]string, 0, len(e.subs))
	for key, subs := range e.subs {
		if len(subs) == 0 {
			continue
		}
		for _, c := range Categories() {
			for _, p := range Periods() {
				if subKey(c, p) == key {
					keys = append(keys, [2]string{c.String(), p.String()})
				}
			}
		}
	}
	return keys
}

// Start runs the refresh ticker. Freshness only; a stale board is a valid
// read, so rebuild errors are logged and the loop keeps going.
func (e *Engine) Start() {
	ticker := time.NewTicker(e.refreshInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-e.stopChan:
				return
			case <-ticker.C:
				for _, key := range e.subscribedBoards() {
					c, _ := ParseCategory(key[0])
					p, _ := ParsePeriod(key[1])
					if _, err := e.Rebuild(c, p); err != nil {
						e.logger.Error("leaderboard refresh failed", "category", key[0], "period", key[1], "err", err)
					}
				}
			}
		}
	}()
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
}
