package claim

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"cosmossdk.io/log"
	"github.com/google/uuid"

	"github.com/veristake/veristake/ledger"
	"github.com/veristake/veristake/stake"
	"github.com/veristake/veristake/store"
)

const (
	MaxContentLength = 280

	// DefaultResolutionWindow is how long a claim accepts verification
	// stakes before the resolver finalizes it.
	DefaultResolutionWindow = 24 * time.Hour
)

var (
	ErrContentLength = errors.New("claim content must be 1-280 characters")
	ErrNotDraft      = errors.New("claim is not a draft")
)

// Display statuses. These are read-time projections of the current majority;
// the authoritative transition is pending → resolved, fired only by the
// resolver at window expiry.
const (
	DisplayPending    = "pending"
	DisplayVerified   = "verified"
	DisplayChallenged = "challenged"
	DisplayResolved   = "resolved"
)

type Lifecycle struct {
	logger log.Logger
	st     *store.Store
	stakes *stake.Ledger
	window time.Duration
	now    func() time.Time
}

func NewLifecycle(st *store.Store, stakes *stake.Ledger, window time.Duration, logger log.Logger) *Lifecycle {
	if window <= 0 {
		window = DefaultResolutionWindow
	}
	return &Lifecycle{
		logger: logger.With("module", "claim"),
		st:     st,
		stakes: stakes,
		window: window,
		now:    time.Now,
	}
}

// Create validates content and stake, escrows the author's original stake
// and activates the claim. The draft status exists only inside this call:
// definitive escrow failures delete the draft, while a pending confirmation
// keeps it so Activate can finish the job once the ledger catches up.
func (lc *Lifecycle) Create(ctx context.Context, author, content string, amount ledger.Amount) (*store.Claim, error) {
	if n := utf8.RuneCountInString(content); n == 0 || n > MaxContentLength {
		return nil, ErrContentLength
	}
	if !ledger.IsValidAddress(author) {
		return nil, ledger.ErrInvalidAddress
	}

	now := lc.now()
	draft := &store.Claim{
		Id:              uuid.NewString(),
		Author:          author,
		Content:         content,
		OriginalStake:   int64(amount),
		Status:          store.ClaimStatusDraft,
		CreateTimestamp: now.Unix(),
		ExpireTimestamp: now.Add(lc.window).Unix(),
	}
	if err := lc.st.CreateClaim(draft); err != nil {
		return nil, err
	}

	c, err := lc.activate(ctx, draft, amount)
	if err != nil {
		if errors.Is(err, stake.ErrConfirmationPending) {
			// the payment may have landed; keep the draft for Activate
			return draft, err
		}
		if derr := lc.st.DeleteDraft(draft.Id); derr != nil {
			lc.logger.Error("draft cleanup failed", "claim", draft.Id, "err", derr)
		}
		return nil, err
	}
	return c, nil
}

// Activate finishes a create whose escrow confirmation was still pending.
// The escrow re-queries the journaled transaction, so no second payment is
// ever submitted.
func (lc *Lifecycle) Activate(ctx context.Context, claimID string) (*store.Claim, error) {
	c, err := lc.st.GetClaim(claimID)
	if err != nil {
		return nil, err
	}
	if c.Status != store.ClaimStatusDraft {
		return nil, ErrNotDraft
	}
	return lc.activate(ctx, c, ledger.Amount(c.OriginalStake))
}

func (lc *Lifecycle) activate(ctx context.Context, draft *store.Claim, amount ledger.Amount) (*store.Claim, error) {
	stk, err := lc.stakes.Escrow(ctx, draft.Id, draft.Author, store.SideSupport, amount)
	if err != nil {
		return nil, err
	}

	// reload: the escrow moved the claim counters under us
	c, err := lc.st.GetClaim(draft.Id)
	if err != nil {
		return nil, err
	}
	c.Status = store.ClaimStatusPending
	c.LedgerTxId = stk.TxId
	// the verification window opens when the claim goes pending, not when
	// the draft was inserted; a delayed Activate gets the full window
	c.ExpireTimestamp = lc.now().Add(lc.window).Unix()
	if err := lc.st.SaveClaim(c); err != nil {
		return nil, err
	}
	if err := lc.st.BumpClaimCount(draft.Author); err != nil {
		lc.logger.Error("claim count bump failed", "author", draft.Author, "err", err)
	}
	lc.logger.Info("claim created", "claim", c.Id, "author", c.Author, "stake", amount, "tx", stk.TxId)
	return c, nil
}

func (lc *Lifecycle) Get(claimID string) (*store.Claim, error) {
	return lc.st.GetClaim(claimID)
}

// Tally is derived from Stake rows, never cached across a resolution.
type Tally struct {
	SupportTotal ledger.Amount `json:"support_total"`
	OpposeTotal  ledger.Amount `json:"oppose_total"`
	SupportCount int           `json:"support_count"`
	OpposeCount  int           `json:"oppose_count"`
	Excluded     int           `json:"excluded"`
}

func (t *Tally) add(s *store.Stake) {
	switch s.Side {
	case store.SideSupport:
		t.SupportTotal += ledger.Amount(s.Amount)
		t.SupportCount++
	case store.SideOppose:
		t.OpposeTotal += ledger.Amount(s.Amount)
		t.OpposeCount++
	}
}

// ComputeTally sums the recorded stakes without re-verifying them against
// the ledger. Display only; the resolver builds its own verified tally.
func (lc *Lifecycle) ComputeTally(claimID string) (*Tally, error) {
	stakes, err := lc.st.StakesByClaim(claimID)
	if err != nil {
		return nil, err
	}
	t := &Tally{}
	for i := range stakes {
		t.add(&stakes[i])
	}
	return t, nil
}

// DisplayStatus projects the label shown while a claim is open. It reads
// the current majority and never writes anything.
func DisplayStatus(c *store.Claim, t *Tally) string {
	if c.Status == store.ClaimStatusResolved {
		return DisplayResolved
	}
	switch {
	case t.SupportTotal > t.OpposeTotal:
		return DisplayVerified
	case t.OpposeTotal > t.SupportTotal:
		return DisplayChallenged
	default:
		return DisplayPending
	}
}

// PlaceStake escrows a verification stake on an open claim.
func (lc *Lifecycle) PlaceStake(ctx context.Context, claimID, staker string, side uint64, amount ledger.Amount) (*store.Stake, error) {
	if side != store.SideSupport && side != store.SideOppose {
		return nil, fmt.Errorf("invalid side %d", side)
	}
	return lc.stakes.Escrow(ctx, claimID, staker, side, amount)
}
