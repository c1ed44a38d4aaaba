// Package explorer serves read-only transaction lookups by joining the
// local audit trail with live ledger state.
package explorer

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/log"

	"github.com/veristake/veristake/ledger"
	"github.com/veristake/veristake/store"
)

var (
	ErrNotFound     = errors.New("transaction not found")
	ErrLookupFailed = errors.New("ledger lookup failed")
)

// StatusUnknown marks a record whose live ledger status could not be read.
const StatusUnknown = "unknown"

// Record is one resolved lookup. ClaimId and Kind come from the audit
// trail and are empty for transactions the service never recorded.
type Record struct {
	TxId     string        `json:"txId"`
	ClaimId  string        `json:"claimId,omitempty"`
	Kind     string        `json:"kind,omitempty"`
	Sender   string        `json:"sender"`
	Receiver string        `json:"receiver"`
	Amount   ledger.Amount `json:"amount"`
	Status   string        `json:"status"`
	BlockRef string        `json:"blockRef,omitempty"`
}

type Index struct {
	logger log.Logger
	st     *store.Store
	cli    ledger.Client
}

func NewIndex(st *store.Store, cli ledger.Client, logger log.Logger) *Index {
	return &Index{
		logger: logger.With("module", "explorer"),
		st:     st,
		cli:    cli,
	}
}

// Lookup joins the stored audit row for txID with the ledger's live view.
// When the ledger is unreachable but an audit row exists, the audit half is
// returned with status unknown alongside ErrLookupFailed so callers can
// still render what the service knows.
func (ix *Index) Lookup(ctx context.Context, txID string) (*Record, error) {
	rec, err := ix.st.GetTxRecord(txID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	tx, txErr := ix.cli.GetTransaction(ctx, txID)
	if txErr == nil {
		out := &Record{
			TxId:     tx.TxID,
			Sender:   tx.Sender,
			Receiver: tx.Receiver,
			Amount:   tx.Amount,
			Status:   tx.Status,
			BlockRef: tx.BlockRef,
		}
		if rec != nil {
			out.ClaimId = rec.ClaimId
			out.Kind = rec.Kind
			if out.BlockRef == "" {
				out.BlockRef = rec.BlockRef
			}
		}
		return out, nil
	}

	if errors.Is(txErr, ledger.ErrTxNotFound) {
		if rec == nil {
			return nil, ErrNotFound
		}
		// the audit row outlived the ledger's view of the tx; report what
		// was recorded rather than erroring
		ix.logger.Info("tx missing from ledger, serving audit row", "txId", txID)
		return auditRecord(rec), nil
	}

	if rec == nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, txErr)
	}
	ix.logger.Error("ledger lookup failed, degrading to audit row", "txId", txID, "err", txErr)
	return auditRecord(rec), fmt.Errorf("%w: %v", ErrLookupFailed, txErr)
}

// ByClaim lists the audit rows recorded for one claim's escrow payments.
func (ix *Index) ByClaim(claimID string) ([]Record, error) {
	recs, err := ix.st.TxRecordsByClaim(claimID)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(recs))
	for i := range recs {
		out = append(out, *auditRecord(&recs[i]))
	}
	return out, nil
}

func auditRecord(rec *store.TxRecord) *Record {
	return &Record{
		TxId:     rec.TxId,
		ClaimId:  rec.ClaimId,
		Kind:     rec.Kind,
		Sender:   rec.Sender,
		Receiver: rec.Receiver,
		Amount:   ledger.Amount(rec.Amount),
		Status:   StatusUnknown,
		BlockRef: rec.BlockRef,
	}
}
