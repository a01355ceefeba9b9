package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/logger"
)

const (
	DefaultPollInterval = 5 * time.Second
	requestTimeout      = 10 * time.Second
	getAttempts         = 4
)

type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.Code, e.Body)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// permanent reports relay errors that polling again won't fix: an unknown
// transaction or a 4xx other than 429.
func permanent(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && !retryable(se)
}

// HTTPClient is a Client for the Safe Transaction Service REST API.
type HTTPClient struct {
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
	retryDelay   time.Duration
	l            *zap.Logger
}

func NewHTTPClient(baseURL string, l *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: requestTimeout},
		pollInterval: DefaultPollInterval,
		retryDelay:   200 * time.Millisecond,
		l:            logger.OrNop(l).With(zap.String("component", "relay")),
	}
}

// WithPollInterval returns a copy polling and retrying at d.
func (c *HTTPClient) WithPollInterval(d time.Duration) *HTTPClient {
	cp := *c
	cp.pollInterval = d
	cp.retryDelay = d
	return &cp
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

type proposalBody struct {
	Safe                    string         `json:"safe"`
	To                      string         `json:"to"`
	Value                   string         `json:"value"`
	Data                    *hexutil.Bytes `json:"data"`
	Operation               uint8          `json:"operation"`
	SafeTxGas               string         `json:"safeTxGas"`
	BaseGas                 string         `json:"baseGas"`
	GasPrice                string         `json:"gasPrice"`
	GasToken                string         `json:"gasToken"`
	RefundReceiver          string         `json:"refundReceiver"`
	Nonce                   uint64         `json:"nonce"`
	ContractTransactionHash string         `json:"contractTransactionHash"`
	Sender                  string         `json:"sender"`
	Signature               hexutil.Bytes  `json:"signature"`
	Origin                  string         `json:"origin,omitempty"`
}

type confirmationBody struct {
	Owner     string        `json:"owner,omitempty"`
	Signature hexutil.Bytes `json:"signature"`
}

type transactionBody struct {
	SafeTxHash            string             `json:"safeTxHash"`
	Nonce                 uint64             `json:"nonce"`
	ConfirmationsRequired int                `json:"confirmationsRequired"`
	Confirmations         []confirmationBody `json:"confirmations"`
	IsExecuted            bool               `json:"isExecuted"`
	IsSuccessful          *bool              `json:"isSuccessful"`
	TransactionHash       *string            `json:"transactionHash"`
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	start := time.Now()
	url := c.baseURL + path

	var requestBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request body: %w", err)
		}
		requestBody = bytes.NewBuffer(jsonBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, requestBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.l.Debug("request failed", zap.String("url", url), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.l.Debug("request completed",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

// Propose is not retried: the service rejects a second proposal with the
// same hash and the first may have landed.
func (c *HTTPClient) Propose(ctx context.Context, p Proposal) error {
	body := proposalBody{
		Safe:                    p.Safe.Hex(),
		To:                      p.To.Hex(),
		Value:                   bigString(p.Value),
		Operation:               p.Operation,
		SafeTxGas:               bigString(p.SafeTxGas),
		BaseGas:                 bigString(p.BaseGas),
		GasPrice:                bigString(p.GasPrice),
		GasToken:                p.GasToken.Hex(),
		RefundReceiver:          p.RefundReceiver.Hex(),
		Nonce:                   p.Nonce,
		ContractTransactionHash: p.SafeTxHash.Hex(),
		Sender:                  p.Sender.Hex(),
		Signature:               p.Signature,
		Origin:                  p.Origin,
	}
	if len(p.Data) > 0 {
		data := hexutil.Bytes(p.Data)
		body.Data = &data
	}
	path := fmt.Sprintf("/api/v1/safes/%s/multisig-transactions/", p.Safe.Hex())
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return safetxcommon.NewTransportError("relay propose", err)
	}
	c.l.Info("proposed safe tx", zap.Stringer("safe_tx_hash", p.SafeTxHash), zap.Uint64("nonce", p.Nonce))
	return nil
}

func (c *HTTPClient) Confirm(ctx context.Context, safeTxHash common.Hash, signature []byte) error {
	path := fmt.Sprintf("/api/v1/multisig-transactions/%s/confirmations/", safeTxHash.Hex())
	if err := c.do(ctx, http.MethodPost, path, confirmationBody{Signature: signature}, nil); err != nil {
		return safetxcommon.NewTransportError("relay confirm", err)
	}
	return nil
}

func (c *HTTPClient) Transaction(ctx context.Context, safeTxHash common.Hash) (*TransactionStatus, error) {
	path := fmt.Sprintf("/api/v1/multisig-transactions/%s/", safeTxHash.Hex())
	var body transactionBody
	err := retry.Do(
		func() error {
			return c.do(ctx, http.MethodGet, path, nil, &body)
		},
		retry.Attempts(getAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.Context(ctx),
	)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			err = fmt.Errorf("%w: %s", ErrNotFound, safeTxHash.Hex())
		}
		return nil, safetxcommon.NewTransportError("relay get transaction", err)
	}
	return body.toStatus(safeTxHash)
}

func (b transactionBody) toStatus(requested common.Hash) (*TransactionStatus, error) {
	result := &TransactionStatus{
		SafeTxHash:            requested,
		Nonce:                 b.Nonce,
		ConfirmationsRequired: b.ConfirmationsRequired,
		IsExecuted:            b.IsExecuted,
		IsSuccessful:          b.IsSuccessful,
	}
	if b.SafeTxHash != "" {
		result.SafeTxHash = common.HexToHash(b.SafeTxHash)
	}
	if b.TransactionHash != nil && *b.TransactionHash != "" {
		result.TransactionHash = common.HexToHash(*b.TransactionHash)
	}
	for _, conf := range b.Confirmations {
		if !common.IsHexAddress(conf.Owner) {
			return nil, safetxcommon.NewTransportError("relay get transaction",
				fmt.Errorf("confirmation with invalid owner %q", conf.Owner))
		}
		result.Confirmations = append(result.Confirmations, Confirmation{
			Owner:     common.HexToAddress(conf.Owner),
			Signature: common.CopyBytes(conf.Signature),
		})
	}
	return result, nil
}

func (c *HTTPClient) WaitExecuted(ctx context.Context, safeTxHash common.Hash, timeout time.Duration) (*TransactionStatus, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.Transaction(ctx, safeTxHash)
		if err == nil && status.IsExecuted {
			return status, nil
		}
		if err != nil {
			if permanent(err) {
				return nil, err
			}
			c.l.Debug("couldn't poll relay, retrying", zap.Stringer("safe_tx_hash", safeTxHash), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil, safetxcommon.NewTransportError("relay wait", ctx.Err())
		case <-deadline.C:
			return nil, fmt.Errorf("%w: safe tx %s not executed after %s", safetxcommon.ErrTimeout, safeTxHash.Hex(), timeout)
		case <-ticker.C:
		}
	}
}
