package stake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/log"

	"github.com/veristake/veristake/ledger"
	"github.com/veristake/veristake/store"
)

type Config struct {
	MinStake       ledger.Amount
	FeeBuffer      ledger.Amount
	EscrowAccount  string
	ConfirmTimeout time.Duration
}

func DefaultConfig(escrowAccount string) Config {
	return Config{
		MinStake:       ledger.Units(1),
		FeeBuffer:      ledger.Units(0.1),
		EscrowAccount:  escrowAccount,
		ConfirmTimeout: 60 * time.Second,
	}
}

// Ledger is the only component that creates Stake rows or moves a claim's
// totalStaked/verificationCount. Counters move on confirmed transactions
// only; everything before confirmation is journaled, not applied.
type Ledger struct {
	logger  log.Logger
	st      *store.Store
	cli     ledger.Client
	journal *Journal
	cfg     Config

	claimLocks *store.KeyMutex
	now        func() time.Time
}

func NewLedger(st *store.Store, cli ledger.Client, journal *Journal, cfg Config, logger log.Logger) *Ledger {
	return &Ledger{
		logger:     logger.With("module", "stake"),
		st:         st,
		cli:        cli,
		journal:    journal,
		cfg:        cfg,
		claimLocks: store.NewKeyMutex(),
		now:        time.Now,
	}
}

// Escrow validates, submits and confirms a stake payment, then atomically
// records the Stake row and claim counter increments. Serialized per claim
// by a claim-scoped lock; different claims never block each other.
func (l *Ledger) Escrow(ctx context.Context, claimID, staker string, side uint64, amount ledger.Amount) (*store.Stake, error) {
	if amount < l.cfg.MinStake {
		return nil, fmt.Errorf("%w: %s < %s", ErrInsufficientStake, amount, l.cfg.MinStake)
	}
	if !ledger.IsValidAddress(staker) {
		return nil, ledger.ErrInvalidAddress
	}

	unlock := l.claimLocks.Lock(claimID)
	defer unlock()

	claim, err := l.st.GetClaim(claimID)
	if err != nil {
		return nil, err
	}

	// The author's own escrow happens exactly once, while the claim is still
	// draft during create. After that the author is locked out.
	creation := claim.Status == store.ClaimStatusDraft && staker == claim.Author
	if !creation {
		if claim.Status != store.ClaimStatusPending || l.now().Unix() >= claim.ExpireTimestamp {
			return nil, ErrClaimNotAcceptingStakes
		}
		if staker == claim.Author {
			return nil, ErrAuthorStake
		}
	}

	exists, err := l.st.StakeExists(claimID, staker)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateStake
	}

	// Idempotency fence: an earlier attempt may have submitted and timed out
	// waiting for confirmation. Re-query that transaction before considering
	// a fresh submit.
	entry, err := l.journal.Get(claimID, staker)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		st, done, err := l.recoverInFlight(ctx, claim, staker, side, amount, entry)
		if done || err != nil {
			return st, err
		}
	}

	// Fast local check against the cached balance; SubmitStake re-reads a
	// fresh balance right before the wire call.
	balance, err := l.cli.GetBalance(ctx, staker)
	if err != nil {
		return nil, err
	}
	if amount > balance-l.cfg.FeeBuffer {
		return nil, fmt.Errorf("%w: balance %s, need %s plus fee buffer %s",
			ledger.ErrInsufficientFunds, balance, amount, l.cfg.FeeBuffer)
	}

	txID, err := l.cli.SubmitStake(ctx, staker, l.cfg.EscrowAccount, amount, claimID)
	if err != nil {
		return nil, err
	}
	if err := l.journal.Put(claimID, staker, &JournalEntry{
		TxId:        txID,
		Side:        side,
		Amount:      int64(amount),
		SubmittedAt: l.now().Unix(),
	}); err != nil {
		l.logger.Error("journal write failed after submit", "claim", claimID, "staker", staker, "tx", txID, "err", err)
	}

	conf, err := l.cli.AwaitConfirmation(ctx, txID, l.cfg.ConfirmTimeout)
	if err != nil {
		if errors.Is(err, ledger.ErrSubmissionRejected) {
			// definitively failed on the ledger, safe to clear
			l.journal.Delete(claimID, staker)
			return nil, err
		}
		// timeout or cancellation: counters stay untouched, journal entry
		// stays so the retry re-queries by (claimID, staker)
		return nil, fmt.Errorf("%w: %v", ErrConfirmationPending, err)
	}

	return l.finalize(claim, staker, side, amount, txID, conf.BlockRef)
}

// recoverInFlight resolves a journaled earlier submission. done reports that
// Escrow should stop here (either the stake was finalized from the old
// transaction, or its fate is still unknown). Finalization uses the
// journaled side and amount, never the retry's arguments: the ledger moved
// what was submitted, so that is what the stake row and audit trail record.
func (l *Ledger) recoverInFlight(ctx context.Context, claim *store.Claim, staker string, side uint64, amount ledger.Amount, entry *JournalEntry) (*store.Stake, bool, error) {
	if entry.Side != side || entry.Amount != int64(amount) {
		return nil, true, fmt.Errorf("%w: in-flight %s on side %d, requested %s on side %d",
			ErrEscrowMismatch, ledger.Amount(entry.Amount), entry.Side, amount, side)
	}
	tx, err := l.cli.GetTransaction(ctx, entry.TxId)
	if err != nil {
		if errors.Is(err, ledger.ErrTxNotFound) {
			// never reached the ledger, safe to resubmit
			l.journal.Delete(claim.Id, staker)
			return nil, false, nil
		}
		// cannot tell whether the old submission landed, so no resubmit
		return nil, true, fmt.Errorf("%w: %v", ErrConfirmationPending, err)
	}
	switch tx.Status {
	case ledger.TxStatusConfirmed:
		l.logger.Info("recovered confirmed escrow", "claim", claim.Id, "staker", staker, "tx", entry.TxId)
		st, err := l.finalize(claim, staker, entry.Side, ledger.Amount(entry.Amount), entry.TxId, tx.BlockRef)
		return st, true, err
	case ledger.TxStatusFailed:
		l.journal.Delete(claim.Id, staker)
		return nil, false, nil
	default:
		conf, err := l.cli.AwaitConfirmation(ctx, entry.TxId, l.cfg.ConfirmTimeout)
		if err != nil {
			if errors.Is(err, ledger.ErrSubmissionRejected) {
				l.journal.Delete(claim.Id, staker)
				return nil, false, nil
			}
			return nil, true, fmt.Errorf("%w: %v", ErrConfirmationPending, err)
		}
		st, err := l.finalize(claim, staker, entry.Side, ledger.Amount(entry.Amount), entry.TxId, conf.BlockRef)
		return st, true, err
	}
}

func (l *Ledger) finalize(claim *store.Claim, staker string, side uint64, amount ledger.Amount, txID, blockRef string) (*store.Stake, error) {
	now := l.now().Unix()
	verification := staker != claim.Author
	kind := "verification"
	if !verification {
		kind = "claim"
	}
	st := &store.Stake{
		ClaimId:        claim.Id,
		Staker:         staker,
		Side:           side,
		Amount:         int64(amount),
		TxId:           txID,
		PlaceTimestamp: now,
	}
	rec := &store.TxRecord{
		TxId:            txID,
		ClaimId:         claim.Id,
		Sender:          staker,
		Receiver:        l.cfg.EscrowAccount,
		Amount:          int64(amount),
		Kind:            kind,
		BlockRef:        blockRef,
		CreateTimestamp: now,
	}
	if err := l.st.AppendStake(st, rec, verification); err != nil {
		return nil, err
	}
	l.journal.Delete(claim.Id, staker)
	l.logger.Info("stake escrowed", "claim", claim.Id, "staker", staker, "side", side, "amount", amount, "tx", txID)
	return st, nil
}
