package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"settlement-gateway/config"
	"settlement-gateway/internal/core/domain"
	"settlement-gateway/internal/core/ports/mocks"
	"settlement-gateway/internal/service"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testVaultSecret = "8f2a6c1e9b3d5f7a0c2e4a6c8e0a2c4e6a8c0e2a4c6e8a0c2e4a6c8e0a2c4e6a"
	platformAddr    = "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"
	merchantAddr    = "ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG"
)

type recorded struct {
	path string
	body []byte
}

// nodeStub is a contract node answering through respond.
type nodeStub struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recorded
}

func newNodeStub(t *testing.T, respond func(path string, body []byte) (int, string)) *nodeStub {
	t.Helper()
	n := &nodeStub{}
	n.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		n.mu.Lock()
		n.requests = append(n.requests, recorded{path: r.URL.Path, body: body})
		n.mu.Unlock()

		status, resp := respond(r.URL.Path, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(n.Close)
	return n
}

func (n *nodeStub) recorded() []recorded {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recorded(nil), n.requests...)
}

func testLedgerConfig(baseURL string) config.LedgerConfig {
	return config.LedgerConfig{
		BaseURL:         baseURL,
		ContractAddress: "ST000000000000000000002AMW42H",
		ContractName:    "payment-settlement",
		Network:         "testnet",
		CallTimeout:     time.Second,
		ContractFee:     2000,
		TransferFee:     10,
		PlatformAddress: platformAddr,
		PlatformFeeRate: "0.01",
	}
}

func newTestClient(t *testing.T, baseURL string, mutate func(*config.LedgerConfig)) (*Client, *service.KeyVault) {
	t.Helper()
	vault, err := service.NewKeyVault(testVaultSecret, "testnet")
	require.NoError(t, err)

	cfg := testLedgerConfig(baseURL)
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg, vault, http.DefaultClient, nil, zerolog.New(io.Discard))
	require.NoError(t, err)
	return c, vault
}

func TestNewClient_RejectsBadConfig(t *testing.T) {
	cfg := testLedgerConfig("http://node")
	cfg.Network = "regtest"
	_, err := NewClient(cfg, nil, nil, nil, zerolog.Nop())
	assert.Error(t, err)

	cfg = testLedgerConfig("http://node")
	cfg.PlatformFeeRate = "2"
	_, err = NewClient(cfg, nil, nil, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestClient_Register(t *testing.T) {
	node := newNodeStub(t, func(string, []byte) (int, string) {
		return http.StatusOK, `{"txid":"0xabc"}`
	})
	c, _ := newTestClient(t, node.URL, nil)

	tx, err := c.Register(context.Background(), domain.RegisterRequest{
		PaymentID:       "pay_1",
		MerchantAddress: merchantAddr,
		UniqueAddress:   "ST3AM1A56AK2C1XAFJ4115ZSV26EB49BVQ10MGCS0",
		ExpectedAmount:  5000,
		Metadata:        "order 42",
		ExpiresInBlocks: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", tx.TxID)

	reqs := node.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/v2/contracts/call", reqs[0].path)

	var body callRequest
	require.NoError(t, json.Unmarshal(reqs[0].body, &body))
	assert.Equal(t, "ST000000000000000000002AMW42H.payment-settlement", body.Contract)
	assert.Equal(t, "register-payment", body.Function)
	assert.Equal(t, int64(2000), body.Fee)
	assert.Equal(t, "register:pay_1", body.IdempotencyKey)
	assert.Equal(t, []any{"pay_1", merchantAddr, "ST3AM1A56AK2C1XAFJ4115ZSV26EB49BVQ10MGCS0", float64(5000), "order 42", float64(2)}, body.Args)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		kind      error
		retryable bool
	}{
		{"already registered", 400, `{"error":"transaction rejected","reason":"(err u101)"}`, domain.ErrAlreadyRegistered, false},
		{"not found", 400, `{"reason":"(err u102)"}`, domain.ErrLedgerPaymentNotFound, false},
		{"invalid state", 400, `{"reason":"(err u103)"}`, domain.ErrLedgerInvalidState, false},
		{"insufficient funds", 400, `{"reason":"(err u104)"}`, domain.ErrLedgerInsufficientFunds, false},
		{"already settled", 400, `{"reason":"(err u106)"}`, domain.ErrAlreadySettled, false},
		{"unknown contract code", 400, `{"reason":"(err u105)"}`, domain.ErrLedgerRejected, false},
		{"bad request without body", 422, ``, domain.ErrLedgerRejected, false},
		{"server error", 502, `bad gateway`, domain.ErrLedgerUnavailable, true},
		{"rate limited", 429, ``, domain.ErrLedgerUnavailable, true},
		{"garbled success", 200, `{"txid":`, domain.ErrLedgerUnavailable, true},
		{"success without txid", 200, `{}`, domain.ErrLedgerUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := newNodeStub(t, func(string, []byte) (int, string) { return tt.status, tt.body })
			c, _ := newTestClient(t, node.URL, nil)

			_, err := c.ConfirmReceived(context.Background(), "pay_1", 5000, strings.Repeat("ab", 32))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.retryable, domain.IsLedgerRetryable(err))
		})
	}
}

func TestClient_TimeoutIsUnavailable(t *testing.T) {
	node := newNodeStub(t, func(string, []byte) (int, string) {
		time.Sleep(200 * time.Millisecond)
		return http.StatusOK, `{"txid":"0xlate"}`
	})
	c, _ := newTestClient(t, node.URL, func(cfg *config.LedgerConfig) { cfg.CallTimeout = 20 * time.Millisecond })

	_, err := c.Register(context.Background(), domain.RegisterRequest{PaymentID: "pay_1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
	assert.True(t, domain.IsLedgerRetryable(err))
}

func TestClient_ConnectionRefusedIsUnavailable(t *testing.T) {
	node := newNodeStub(t, func(string, []byte) (int, string) { return http.StatusOK, `{}` })
	url := node.URL
	node.Close()

	c, _ := newTestClient(t, url, nil)
	_, err := c.GetPayment(context.Background(), "pay_1")
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
}

func TestClient_GetPayment(t *testing.T) {
	node := newNodeStub(t, func(_ string, body []byte) (int, string) {
		if strings.Contains(string(body), "pay_missing") {
			return http.StatusOK, `{"found":false}`
		}
		return http.StatusOK, `{"found":true,"payment":{"status":"confirmed","merchant":"` + merchantAddr +
			`","expectedAmount":5000,"receivedAmount":5100,"registrationTxId":"0xreg"}}`
	})
	c, _ := newTestClient(t, node.URL, nil)

	lp, err := c.GetPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	require.NotNil(t, lp)
	assert.Equal(t, "pay_1", lp.PaymentID)
	assert.Equal(t, domain.LedgerStatusConfirmed, lp.Status)
	assert.Equal(t, int64(5100), lp.ReceivedAmount)
	assert.Equal(t, "0xreg", lp.RegistrationTxID)

	missing, err := c.GetPayment(context.Background(), "pay_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	var body callRequest
	require.NoError(t, json.Unmarshal(node.recorded()[0].body, &body))
	assert.Equal(t, "get-payment", body.Function)
	assert.Equal(t, "/v2/contracts/read", node.recorded()[0].path)
}

func confirmedPayment(t *testing.T, vault *service.KeyVault, received int64) *domain.Payment {
	t.Helper()
	key, err := vault.GenerateAddress("pay_settle")
	require.NoError(t, err)
	return &domain.Payment{
		PaymentID:           "pay_settle",
		MerchantAddress:     merchantAddr,
		UniqueAddress:       key.Address,
		EncryptedPrivateKey: key.EncryptedPrivateKey,
		ExpectedAmount:      received,
		ReceivedAmount:      received,
		Status:              domain.PaymentStatusConfirmed,
	}
}

func TestClient_Settle(t *testing.T) {
	node := newNodeStub(t, func(path string, body []byte) (int, string) {
		if path == "/v2/transfers" {
			var tr transferRequest
			_ = json.Unmarshal(body, &tr)
			return http.StatusOK, `{"txid":"0x` + tr.IdempotencyKey + `"}`
		}
		return http.StatusOK, `{"txid":"0xcontract"}`
	})
	c, vault := newTestClient(t, node.URL, nil)
	p := confirmedPayment(t, vault, 10_000)

	res, err := c.Settle(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "0xcontract", res.ContractTxID)
	assert.Equal(t, "0xsettle-transfer:pay_settle", res.TransferTxID)
	assert.Equal(t, "0xsettle-fee:pay_settle", res.PlatformTxID)
	assert.Equal(t, int64(100), res.PlatformFee)
	assert.Equal(t, int64(9_880), res.MerchantAmount)

	reqs := node.recorded()
	require.Len(t, reqs, 3)
	assert.Equal(t, "/v2/contracts/call", reqs[0].path)

	var merchant, platform transferRequest
	require.NoError(t, json.Unmarshal(reqs[1].body, &merchant))
	require.NoError(t, json.Unmarshal(reqs[2].body, &platform))

	assert.Equal(t, p.UniqueAddress, merchant.Sender)
	assert.Equal(t, merchantAddr, merchant.Recipient)
	assert.Equal(t, int64(9_880), merchant.Amount)
	assert.Equal(t, "settle:pay_settle", merchant.Memo)
	assert.Equal(t, platformAddr, platform.Recipient)
	assert.Equal(t, int64(100), platform.Amount)

	// The signature recovers to the deposit key.
	for _, tr := range []transferRequest{merchant, platform} {
		sig, err := hex.DecodeString(tr.Signature)
		require.NoError(t, err)
		digest := sha256.Sum256(tr.message())
		pub, compressed, err := ecdsa.RecoverCompact(sig, digest[:])
		require.NoError(t, err)
		assert.True(t, compressed)
		assert.Equal(t, tr.PublicKey, hex.EncodeToString(pub.SerializeCompressed()))
	}

	assert.NotContains(t, string(reqs[1].body), p.EncryptedPrivateKey)
}

func TestClient_Settle_AlreadySettledContinues(t *testing.T) {
	node := newNodeStub(t, func(path string, _ []byte) (int, string) {
		if path == "/v2/transfers" {
			return http.StatusOK, `{"txid":"0xtransfer"}`
		}
		return http.StatusBadRequest, `{"reason":"(err u106)"}`
	})
	c, vault := newTestClient(t, node.URL, func(cfg *config.LedgerConfig) { cfg.PlatformFeeRate = "0" })
	p := confirmedPayment(t, vault, 5000)

	res, err := c.Settle(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, res.ContractTxID)
	assert.Equal(t, "0xtransfer", res.TransferTxID)
	assert.Empty(t, res.PlatformTxID)
	assert.Len(t, node.recorded(), 2, "no platform transfer when the fee is zero")
}

func TestClient_Settle_KeyFailureMovesNothing(t *testing.T) {
	node := newNodeStub(t, func(string, []byte) (int, string) { return http.StatusOK, `{"txid":"0x1"}` })
	c, vault := newTestClient(t, node.URL, nil)

	p := confirmedPayment(t, vault, 5000)
	tail := "00"
	if strings.HasSuffix(p.EncryptedPrivateKey, tail) {
		tail = "ff"
	}
	p.EncryptedPrivateKey = p.EncryptedPrivateKey[:len(p.EncryptedPrivateKey)-2] + tail
	_, err := c.Settle(context.Background(), p)
	assert.ErrorIs(t, err, domain.ErrKeyDecryption)

	other := confirmedPayment(t, vault, 5000)
	other.UniqueAddress = merchantAddr
	_, err = c.Settle(context.Background(), other)
	assert.ErrorIs(t, err, domain.ErrKeyDecryption)

	assert.Empty(t, node.recorded())
}

func TestClient_Settle_FeesExceedDeposit(t *testing.T) {
	node := newNodeStub(t, func(string, []byte) (int, string) { return http.StatusOK, `{"txid":"0x1"}` })
	c, vault := newTestClient(t, node.URL, nil)

	_, err := c.Settle(context.Background(), confirmedPayment(t, vault, 10))
	assert.ErrorIs(t, err, domain.ErrLedgerInsufficientFunds)
	assert.False(t, domain.IsLedgerRetryable(err))
	assert.Empty(t, node.recorded())
}

func TestClient_RecordsMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	metrics := mocks.NewMockMetrics(ctrl)

	node := newNodeStub(t, func(string, []byte) (int, string) { return http.StatusServiceUnavailable, `` })
	vault, err := service.NewKeyVault(testVaultSecret, "testnet")
	require.NoError(t, err)
	c, err := NewClient(testLedgerConfig(node.URL), vault, http.DefaultClient, metrics, zerolog.Nop())
	require.NoError(t, err)

	metrics.EXPECT().LedgerCall("register-payment", "unavailable", gomock.Any())

	_, err = c.Register(context.Background(), domain.RegisterRequest{PaymentID: "pay_1"})
	assert.Error(t, err)
}
