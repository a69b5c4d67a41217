// Package ledger talks to the settlement contract through a node's HTTP API.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"settlement-gateway/config"
	"settlement-gateway/internal/core/domain"
	"settlement-gateway/internal/core/ports"
	"settlement-gateway/pkg/address"

	"github.com/rs/zerolog"
)

// Contract functions.
const (
	fnRegister = "register-payment"
	fnConfirm  = "confirm-payment-received"
	fnSettle   = "settle-payment"
	fnGet      = "get-payment"
)

const maxResponseBytes = 1 << 20

var errCodePattern = regexp.MustCompile(`\(err u(\d+)\)`)

// contractErrors maps contract error codes to domain sentinels.
var contractErrors = map[string]error{
	"101": domain.ErrAlreadyRegistered,
	"102": domain.ErrLedgerPaymentNotFound,
	"103": domain.ErrLedgerInvalidState,
	"104": domain.ErrLedgerInsufficientFunds,
	"106": domain.ErrAlreadySettled,
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.LedgerClient.
type Client struct {
	http     HTTPClient
	cfg      config.LedgerConfig
	contract string
	version  byte
	vault    ports.KeyVault
	fees     domain.FeeSchedule
	metrics  ports.Metrics
	log      zerolog.Logger
}

// NewClient validates cfg and builds a client. Deposit keys are opened
// through vault only inside Settle.
func NewClient(cfg config.LedgerConfig, vault ports.KeyVault, httpClient HTTPClient, metrics ports.Metrics, log zerolog.Logger) (*Client, error) {
	version, err := address.VersionFor(cfg.Network)
	if err != nil {
		return nil, err
	}
	fees, err := domain.NewFeeSchedule(cfg.PlatformFeeRate, cfg.TransferFee)
	if err != nil {
		return nil, err
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		http:     httpClient,
		cfg:      cfg,
		contract: cfg.ContractAddress + "." + cfg.ContractName,
		version:  version,
		vault:    vault,
		fees:     fees,
		metrics:  metrics,
		log:      log,
	}, nil
}

type callRequest struct {
	Contract       string `json:"contract"`
	Function       string `json:"function"`
	Args           []any  `json:"args"`
	Fee            int64  `json:"fee,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type txResponse struct {
	TxID string `json:"txid"`
}

type readResponse struct {
	Found   bool                  `json:"found"`
	Payment *domain.LedgerPayment `json:"payment"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// Register calls register-payment.
func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (*domain.LedgerTx, error) {
	return c.call(ctx, fnRegister, "register:"+req.PaymentID,
		req.PaymentID, req.MerchantAddress, req.UniqueAddress, req.ExpectedAmount, req.Metadata, req.ExpiresInBlocks)
}

// ConfirmReceived calls confirm-payment-received.
func (c *Client) ConfirmReceived(ctx context.Context, paymentID string, receivedAmount int64, observedTxID string) (*domain.LedgerTx, error) {
	return c.call(ctx, fnConfirm, "confirm:"+paymentID, paymentID, receivedAmount, observedTxID)
}

// GetPayment reads the contract record. It returns nil, nil when the
// contract has none.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*domain.LedgerPayment, error) {
	var out readResponse
	err := c.post(ctx, fnGet, "/v2/contracts/read", callRequest{
		Contract: c.contract,
		Function: fnGet,
		Args:     []any{paymentID},
	}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Found || out.Payment == nil {
		return nil, nil
	}
	if out.Payment.PaymentID == "" {
		out.Payment.PaymentID = paymentID
	}
	return out.Payment, nil
}

func (c *Client) call(ctx context.Context, fn, idempotencyKey string, args ...any) (*domain.LedgerTx, error) {
	var out txResponse
	err := c.post(ctx, fn, "/v2/contracts/call", callRequest{
		Contract:       c.contract,
		Function:       fn,
		Args:           args,
		Fee:            c.cfg.ContractFee,
		IdempotencyKey: idempotencyKey,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.TxID == "" {
		return nil, &domain.LedgerError{Op: fn, Kind: domain.ErrLedgerUnavailable, Err: errors.New("response carried no txid")}
	}
	return &domain.LedgerTx{TxID: out.TxID}, nil
}

// post performs one bounded request and records its outcome.
func (c *Client) post(ctx context.Context, op, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	err := c.do(ctx, op, path, in, out)
	elapsed := time.Since(start)

	outcome := "ok"
	var le *domain.LedgerError
	switch {
	case err == nil:
	case errors.As(err, &le) && le.Retryable():
		outcome = "unavailable"
	default:
		outcome = "rejected"
	}
	if c.metrics != nil {
		c.metrics.LedgerCall(op, outcome, elapsed)
	}

	ev := c.log.Debug()
	if err != nil {
		ev = c.log.Warn().Err(err)
	}
	ev.Str("op", op).Str("outcome", outcome).Dur("duration", elapsed).Msg("ledger call")
	return err
}

func (c *Client) do(ctx context.Context, op, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.LedgerError{Op: op, Kind: domain.ErrLedgerUnavailable, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &domain.LedgerError{Op: op, Kind: domain.ErrLedgerUnavailable, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.Unmarshal(raw, out); err != nil {
			// The node accepted the call; only the answer is unreadable.
			return &domain.LedgerError{Op: op, Kind: domain.ErrLedgerUnavailable, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &domain.LedgerError{Op: op, Kind: domain.ErrLedgerUnavailable, Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	default:
		return rejection(op, resp.StatusCode, raw)
	}
}

func rejection(op string, status int, raw []byte) error {
	var er errorResponse
	_ = json.Unmarshal(raw, &er)

	reason := er.Reason
	if reason == "" {
		reason = er.Error
	}
	if reason == "" {
		reason = fmt.Sprintf("HTTP %d", status)
	}

	kind := domain.ErrLedgerRejected
	if m := errCodePattern.FindStringSubmatch(reason); m != nil {
		if sentinel, ok := contractErrors[m[1]]; ok {
			kind = sentinel
		}
	}
	return &domain.LedgerError{Op: op, Kind: kind, Reason: reason}
}
