package explorer

import (
	"context"
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

func newIndex(t *testing.T) (*Index, *store.Store, *ledger.Mock) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "store.db"), log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	cli := ledger.NewMock()
	return NewIndex(st, cli, log.NewNopLogger()), st, cli
}

func escrowTx(t *testing.T, st *store.Store, cli *ledger.Mock, claimID string) string {
	t.Helper()
	cli.SetBalance(addr('A'), ledger.Units(10))
	txID, err := cli.SubmitStake(context.Background(), addr('A'), addr('E'), ledger.Units(2), claimID)
	require.NoError(t, err)
	require.NoError(t, st.CreateClaim(&store.Claim{
		Id:              claimID,
		Author:          addr('A'),
		Content:         "rain tomorrow",
		Status:          store.ClaimStatusPending,
		CreateTimestamp: time.Now().Unix(),
	}))
	stake := &store.Stake{
		ClaimId:        claimID,
		Staker:         addr('A'),
		Side:           store.SideSupport,
		Amount:         int64(ledger.Units(2)),
		TxId:           txID,
		PlaceTimestamp: time.Now().Unix(),
	}
	rec := &store.TxRecord{
		TxId:            txID,
		ClaimId:         claimID,
		Sender:          addr('A'),
		Receiver:        addr('E'),
		Amount:          int64(ledger.Units(2)),
		Kind:            "claim",
		BlockRef:        "block-1",
		CreateTimestamp: time.Now().Unix(),
	}
	require.NoError(t, st.AppendStake(stake, rec, false))
	return txID
}

func TestLookupJoinsAuditAndLedger(t *testing.T) {
	ix, st, cli := newIndex(t)
	txID := escrowTx(t, st, cli, "claim-1")

	rec, err := ix.Lookup(context.Background(), txID)
	require.NoError(t, err)
	assert.Equal(t, txID, rec.TxId)
	assert.Equal(t, "claim-1", rec.ClaimId)
	assert.Equal(t, "claim", rec.Kind)
	assert.Equal(t, addr('A'), rec.Sender)
	assert.Equal(t, addr('E'), rec.Receiver)
	assert.Equal(t, ledger.Units(2), rec.Amount)
	assert.Equal(t, ledger.TxStatusConfirmed, rec.Status)
	assert.NotEmpty(t, rec.BlockRef)
}

func TestLookupLedgerOnlyTx(t *testing.T) {
	ix, _, cli := newIndex(t)
	cli.SetBalance(addr('B'), ledger.Units(5))
	txID, err := cli.SubmitStake(context.Background(), addr('B'), addr('E'), ledger.Units(1), "outside")
	require.NoError(t, err)

	rec, err := ix.Lookup(context.Background(), txID)
	require.NoError(t, err)
	assert.Empty(t, rec.ClaimId)
	assert.Empty(t, rec.Kind)
	assert.Equal(t, ledger.TxStatusConfirmed, rec.Status)
}

func TestLookupUnknownEverywhere(t *testing.T) {
	ix, _, _ := newIndex(t)
	_, err := ix.Lookup(context.Background(), "no-such-tx")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupDegradesToAuditRow(t *testing.T) {
	ix, st, cli := newIndex(t)
	txID := escrowTx(t, st, cli, "claim-2")

	cli.Unreachable = true
	rec, err := ix.Lookup(context.Background(), txID)
	assert.ErrorIs(t, err, ErrLookupFailed)
	require.NotNil(t, rec)
	assert.Equal(t, StatusUnknown, rec.Status)
	assert.Equal(t, "claim-2", rec.ClaimId)
	assert.Equal(t, ledger.Units(2), rec.Amount)
}

func TestLookupUnreachableWithoutAuditRow(t *testing.T) {
	ix, _, cli := newIndex(t)
	cli.Unreachable = true
	rec, err := ix.Lookup(context.Background(), "no-such-tx")
	assert.ErrorIs(t, err, ErrLookupFailed)
	assert.Nil(t, rec)
}

func TestByClaim(t *testing.T) {
	ix, st, cli := newIndex(t)
	txID := escrowTx(t, st, cli, "claim-3")

	recs, err := ix.ByClaim("claim-3")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, txID, recs[0].TxId)
	assert.Equal(t, StatusUnknown, recs[0].Status)

	empty, err := ix.ByClaim("claim-none")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
