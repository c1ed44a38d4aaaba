package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cosmossdk.io/log"
)

// TxStatus values reported by the ledger network.
const (
	TxStatusPending   = "pending"
	TxStatusConfirmed = "confirmed"
	TxStatusFailed    = "failed"
)

// rpc error code the network returns for an unknown account or transaction
const rpcCodeNotFound = -32004

type Transaction struct {
	TxID     string `json:"tx_id"`
	Sender   string `json:"from"`
	Receiver string `json:"to"`
	Amount   Amount `json:"amount"`
	Memo     string `json:"memo"`
	Status   string `json:"status"`
	BlockRef string `json:"block_ref,omitempty"`
}

type Confirmation struct {
	TxID     string
	BlockRef string
}

// Client is the boundary to the external ledger network. Balance reads are a
// read-through cache of the network's view, never the source of truth.
type Client interface {
	GetBalance(ctx context.Context, address string) (Amount, error)
	SubmitStake(ctx context.Context, from, to string, amount Amount, memo string) (string, error)
	AwaitConfirmation(ctx context.Context, txID string, timeout time.Duration) (*Confirmation, error)
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
}

// Signer obtains a payment signature from the external signing device. The
// device may decline, which is distinct from being unreachable.
type Signer interface {
	SignPayment(ctx context.Context, from, to string, amount Amount, memo string) (string, error)
}

type Options struct {
	URL          string
	PollInterval time.Duration
	MaxRetries   int
	Timeout      time.Duration
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type HTTPClient struct {
	logger     log.Logger
	opts       Options
	signer     Signer
	httpClient *http.Client
}

var _ Client = &HTTPClient{}

func NewHTTPClient(opts Options, signer Signer, logger log.Logger) *HTTPClient {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &HTTPClient{
		logger:     logger.With("module", "ledger"),
		opts:       opts,
		signer:     signer,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

// call makes a JSON-RPC 2.0 call with bounded retry on transport failure and
// 5xx/429 responses. A non-nil *rpcResponse with Error set is returned for
// RPC-level failures so callers can inspect the code.
func (c *HTTPClient) call(ctx context.Context, method string, params interface{}) (*rpcResponse, error) {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/rpc", c.opts.URL)

	var resp *http.Response
	delay := 200 * time.Millisecond
	for i := 0; i < c.opts.MaxRetries; i++ {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
		if reqErr != nil {
			return nil, reqErr
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err = c.httpClient.Do(httpReq)
		if err == nil {
			if resp.StatusCode >= 500 || resp.StatusCode == 429 {
				resp.Body.Close()
				err = fmt.Errorf("server error: %d", resp.StatusCode)
			} else {
				break
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if i < c.opts.MaxRetries-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http status %d", ErrLedgerUnreachable, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrLedgerUnreachable, err)
	}
	return &rpcResp, nil
}

type accountResult struct {
	Address string `json:"address"`
	Balance Amount `json:"balance"`
}

// GetBalance returns the account balance in base units. A syntactically
// valid but unknown address is an account with zero balance, not an error.
func (c *HTTPClient) GetBalance(ctx context.Context, address string) (Amount, error) {
	if !IsValidAddress(address) {
		return 0, ErrInvalidAddress
	}
	resp, err := c.call(ctx, "get_account", map[string]string{"address": address})
	if err != nil {
		return 0, err
	}
	if resp.Error != nil {
		if resp.Error.Code == rpcCodeNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: rpc error %d: %s", ErrLedgerUnreachable, resp.Error.Code, resp.Error.Message)
	}
	var acct accountResult
	if err := json.Unmarshal(resp.Result, &acct); err != nil {
		return 0, fmt.Errorf("unmarshal account result: %w", err)
	}
	return acct.Balance, nil
}

type submitResult struct {
	TxID string `json:"tx_id"`
}

// SubmitStake signs and submits a payment. The balance is re-read fresh
// immediately before submission so a stale cached balance cannot slip an
// overdraft through.
func (c *HTTPClient) SubmitStake(ctx context.Context, from, to string, amount Amount, memo string) (string, error) {
	if !IsValidAddress(from) || !IsValidAddress(to) {
		return "", ErrInvalidAddress
	}
	balance, err := c.GetBalance(ctx, from)
	if err != nil {
		return "", err
	}
	if balance < amount {
		return "", fmt.Errorf("%w: balance %s, need %s", ErrInsufficientFunds, balance, amount)
	}

	sig, err := c.signer.SignPayment(ctx, from, to, amount, memo)
	if err != nil {
		return "", err
	}

	resp, err := c.call(ctx, "submit_payment", map[string]interface{}{
		"from":      from,
		"to":        to,
		"amount":    amount,
		"memo":      memo,
		"signature": sig,
	})
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrSubmissionRejected, resp.Error.Message)
	}
	var sub submitResult
	if err := json.Unmarshal(resp.Result, &sub); err != nil {
		return "", fmt.Errorf("unmarshal submit result: %w", err)
	}
	c.logger.Info("payment submitted", "tx", sub.TxID, "from", from, "amount", amount)
	return sub.TxID, nil
}

// GetTransaction returns the current status of a submitted transaction.
func (c *HTTPClient) GetTransaction(ctx context.Context, txID string) (*Transaction, error) {
	resp, err := c.call(ctx, "get_transaction", map[string]string{"tx_id": txID})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		if resp.Error.Code == rpcCodeNotFound {
			return nil, ErrTxNotFound
		}
		return nil, fmt.Errorf("%w: rpc error %d: %s", ErrLedgerUnreachable, resp.Error.Code, resp.Error.Message)
	}
	var tx Transaction
	if err := json.Unmarshal(resp.Result, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction result: %w", err)
	}
	return &tx, nil
}

// AwaitConfirmation polls the transaction status at the configured interval
// until it confirms, fails, or the timeout elapses. Cancelling ctx stops the
// wait immediately.
func (c *HTTPClient) AwaitConfirmation(ctx context.Context, txID string, timeout time.Duration) (*Confirmation, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		tx, err := c.GetTransaction(ctx, txID)
		if err == nil {
			switch tx.Status {
			case TxStatusConfirmed:
				return &Confirmation{TxID: txID, BlockRef: tx.BlockRef}, nil
			case TxStatusFailed:
				return nil, fmt.Errorf("%w: transaction failed", ErrSubmissionRejected)
			}
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		} else {
			c.logger.Debug("confirmation poll failed", "tx", txID, "err", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w: tx %s", ErrConfirmationTimeout, txID)
		case <-ticker.C:
		}
	}
}
