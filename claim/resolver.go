package claim

import (
	"context"
	"errors"
	"time"

	"cosmossdk.io/log"

	"github.com/veristake/veristake/ledger"
	"github.com/veristake/veristake/store"
)

// Recorder receives per-staker outcome bookkeeping from the resolver. The
// reputation engine is the production implementation.
type Recorder interface {
	RecordOutcome(userID string, accurate bool, rewarded ledger.Amount) error
}

type Resolution struct {
	ClaimId  string `json:"claim_id"`
	Outcome  uint64 `json:"outcome"`
	Tally    Tally  `json:"tally"`
	Degraded bool   `json:"degraded"`
}

// Resolver finalizes claims at window expiry. It runs at most once per
// claim: the pending → resolved flip in the store is the idempotency fence.
type Resolver struct {
	logger   log.Logger
	st       *store.Store
	cli      ledger.Client
	recorder Recorder

	scanInterval time.Duration
	now          func() time.Time
}

func NewResolver(st *store.Store, cli ledger.Client, recorder Recorder, scanInterval time.Duration, logger log.Logger) *Resolver {
	if scanInterval <= 0 {
		scanInterval = 30 * time.Second
	}
	return &Resolver{
		logger:       logger.With("module", "resolver"),
		st:           st,
		cli:          cli,
		recorder:     recorder,
		scanInterval: scanInterval,
		now:          time.Now,
	}
}

// Resolve recomputes the tally from confirmed stakes, decides the outcome
// and pushes reputation deltas. A stake whose ledger transaction cannot be
// re-verified is excluded and the resolution marked degraded rather than
// blocking resolution forever.
func (r *Resolver) Resolve(ctx context.Context, claimID string) (*Resolution, error) {
	c, err := r.st.GetClaim(claimID)
	if err != nil {
		return nil, err
	}
	if c.Status == store.ClaimStatusResolved {
		return nil, store.ErrAlreadyResolved
	}

	stakes, err := r.st.StakesByClaim(claimID)
	if err != nil {
		return nil, err
	}

	tally := Tally{}
	degraded := false
	counted := make([]store.Stake, 0, len(stakes))
	for i := range stakes {
		s := &stakes[i]
		tx, err := r.cli.GetTransaction(ctx, s.TxId)
		if err != nil {
			if errors.Is(err, ledger.ErrTxNotFound) {
				r.logger.Error("stake tx missing from ledger", "claim", claimID, "tx", s.TxId)
			} else {
				r.logger.Error("stake tx re-verify failed", "claim", claimID, "tx", s.TxId, "err", err)
			}
			tally.Excluded++
			degraded = true
			continue
		}
		if tx.Status != ledger.TxStatusConfirmed {
			// definitively not part of the escrow, excluded without degrading
			tally.Excluded++
			continue
		}
		tally.add(s)
		counted = append(counted, *s)
	}

	var outcome uint64
	switch {
	case tally.SupportTotal > tally.OpposeTotal:
		outcome = store.OutcomeSupport
	case tally.OpposeTotal > tally.SupportTotal:
		outcome = store.OutcomeOppose
	default:
		outcome = store.OutcomeTie
	}

	// the fence: a concurrent resolution pass loses here and applies nothing
	if err := r.st.MarkResolved(claimID, outcome, degraded, r.now().Unix()); err != nil {
		return nil, err
	}

	if outcome != store.OutcomeTie {
		winningSide := store.SideSupport
		if outcome == store.OutcomeOppose {
			winningSide = store.SideOppose
		}
		for i := range counted {
			s := &counted[i]
			accurate := s.Side == winningSide
			rewarded := ledger.Amount(0)
			if accurate {
				rewarded = ledger.Amount(s.Amount)
			}
			if err := r.recorder.RecordOutcome(s.Staker, accurate, rewarded); err != nil {
				r.logger.Error("record outcome failed", "claim", claimID, "staker", s.Staker, "err", err)
			}
		}
	}

	res := &Resolution{ClaimId: claimID, Outcome: outcome, Tally: tally, Degraded: degraded}
	r.logger.Info("claim resolved", "claim", claimID, "outcome", outcome,
		"support", tally.SupportTotal, "oppose", tally.OpposeTotal,
		"excluded", tally.Excluded, "degraded", degraded)
	return res, nil
}

// ResolveDue resolves every pending claim whose window has expired.
func (r *Resolver) ResolveDue(ctx context.Context) (int, error) {
	due, err := r.st.DueClaims(r.now().Unix())
	if err != nil {
		return 0, err
	}
	resolved := 0
	for i := range due {
		if _, err := r.Resolve(ctx, due[i].Id); err != nil {
			if errors.Is(err, store.ErrAlreadyResolved) {
				continue
			}
			r.logger.Error("resolve failed", "claim", due[i].Id, "err", err)
			continue
		}
		resolved++
	}
	return resolved, nil
}

// Start runs the expiry scan until ctx is cancelled.
func (r *Resolver) Start(ctx context.Context) {
	ticker := time.NewTicker(r.scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ResolveDue(ctx); err != nil {
				r.logger.Error("expiry scan failed", "err", err)
			}
		}
	}
}
