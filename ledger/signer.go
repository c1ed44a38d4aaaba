package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"cosmossdk.io/log"
)

// RemoteSigner asks an external signing service to sign a payment on behalf
// of the owning user. The service holds the keys; this process never does.
type RemoteSigner struct {
	URL    string
	logger log.Logger
}

var _ Signer = &RemoteSigner{}

func NewRemoteSigner(url string, logger log.Logger) *RemoteSigner {
	return &RemoteSigner{
		URL:    url,
		logger: logger.With("module", "signer"),
	}
}

type signResponse struct {
	Approved  bool   `json:"approved"`
	Signature string `json:"signature"`
	Reason    string `json:"reason"`
}

func (s *RemoteSigner) SignPayment(ctx context.Context, from, to string, amount Amount, memo string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"from":   from,
		"to":     to,
		"amount": amount,
		"memo":   memo,
	})
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/sign", s.URL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		s.logger.Error("signer unreachable", "err", err)
		return "", fmt.Errorf("%w: signer: %v", ErrLedgerUnreachable, err)
	}
	defer res.Body.Close()
	buf, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read signer response: %w", err)
	}
	var resp signResponse
	if err := json.Unmarshal(buf, &resp); err != nil {
		return "", fmt.Errorf("unmarshal signer response: %w", err)
	}
	if !resp.Approved {
		s.logger.Info("signing declined", "from", from, "reason", resp.Reason)
		return "", fmt.Errorf("%w: %s", ErrSigningDeclined, resp.Reason)
	}
	return resp.Signature, nil
}

// MockSigner approves everything. Offline runs and tests.
type MockSigner struct{}

var _ Signer = &MockSigner{}

func NewMockSigner() *MockSigner {
	return &MockSigner{}
}

func (m *MockSigner) SignPayment(ctx context.Context, from, to string, amount Amount, memo string) (string, error) {
	return "mock-signature", nil
}
