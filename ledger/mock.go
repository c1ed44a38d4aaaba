package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mock is an in-memory Client for offline runs and tests. Balances and
// failure behavior are scriptable; submitted transactions confirm
// immediately unless told otherwise.
type Mock struct {
	mtx sync.Mutex

	balances map[string]Amount
	txs      map[string]*Transaction
	seq      int

	// failure injection
	Unreachable   bool
	DeclineSign   bool
	RejectSubmit  bool
	HoldPending   bool // submitted txs stay pending until ConfirmAll
	FailTxLookups map[string]bool
}

var _ Client = &Mock{}

func NewMock() *Mock {
	return &Mock{
		balances:      make(map[string]Amount),
		txs:           make(map[string]*Transaction),
		FailTxLookups: make(map[string]bool),
	}
}

func (m *Mock) SetBalance(address string, amount Amount) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.balances[address] = amount
}

func (m *Mock) GetBalance(ctx context.Context, address string) (Amount, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.Unreachable {
		return 0, ErrLedgerUnreachable
	}
	if !IsValidAddress(address) {
		return 0, ErrInvalidAddress
	}
	return m.balances[address], nil
}

func (m *Mock) SubmitStake(ctx context.Context, from, to string, amount Amount, memo string) (string, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.Unreachable {
		return "", ErrLedgerUnreachable
	}
	if m.DeclineSign {
		return "", ErrSigningDeclined
	}
	if m.RejectSubmit {
		return "", fmt.Errorf("%w: mock reject", ErrSubmissionRejected)
	}
	if m.balances[from] < amount {
		return "", ErrInsufficientFunds
	}
	m.seq++
	txID := fmt.Sprintf("mocktx-%d", m.seq)
	status := TxStatusConfirmed
	if m.HoldPending {
		status = TxStatusPending
	}
	m.txs[txID] = &Transaction{
		TxID:     txID,
		Sender:   from,
		Receiver: to,
		Amount:   amount,
		Memo:     memo,
		Status:   status,
		BlockRef: fmt.Sprintf("block-%d", m.seq),
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return txID, nil
}

func (m *Mock) GetTransaction(ctx context.Context, txID string) (*Transaction, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.Unreachable || m.FailTxLookups[txID] {
		return nil, ErrLedgerUnreachable
	}
	tx, ok := m.txs[txID]
	if !ok {
		return nil, ErrTxNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *Mock) AwaitConfirmation(ctx context.Context, txID string, timeout time.Duration) (*Confirmation, error) {
	tx, err := m.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	switch tx.Status {
	case TxStatusConfirmed:
		return &Confirmation{TxID: txID, BlockRef: tx.BlockRef}, nil
	case TxStatusFailed:
		return nil, fmt.Errorf("%w: transaction failed", ErrSubmissionRejected)
	default:
		return nil, fmt.Errorf("%w: tx %s", ErrConfirmationTimeout, txID)
	}
}

// ConfirmAll flips every pending transaction to confirmed.
func (m *Mock) ConfirmAll() {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for _, tx := range m.txs {
		if tx.Status == TxStatusPending {
			tx.Status = TxStatusConfirmed
		}
	}
}

// FailTx marks a transaction as failed on the ledger.
func (m *Mock) FailTx(txID string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if tx, ok := m.txs[txID]; ok {
		tx.Status = TxStatusFailed
	}
}
