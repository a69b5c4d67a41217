package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"settlement-gateway/config"
	"settlement-gateway/internal/adapter/http/middleware"
	"settlement-gateway/internal/core/domain"
	"settlement-gateway/internal/core/ports"
	"settlement-gateway/internal/core/ports/mocks"
	"settlement-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testPaymentID = "pay_01HZX3K8M4Q2W7E5R9T1Y6V0KP"

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router   *gin.Engine
	svc      *mocks.MockSettlementService
	webhooks *mocks.MockWebhookAdmin
	tokens   *mocks.MockTokenService
	cache    *mocks.MockIdempotencyCache
	merchant uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	ctrl := gomock.NewController(t)
	env := &testEnv{
		svc:      mocks.NewMockSettlementService(ctrl),
		webhooks: mocks.NewMockWebhookAdmin(ctrl),
		tokens:   mocks.NewMockTokenService(ctrl),
		cache:    mocks.NewMockIdempotencyCache(ctrl),
		merchant: uuid.New(),
	}
	env.tokens.EXPECT().Validate("observer").Return(&ports.TokenClaims{Subject: "observer-1", Role: ports.RoleObserver}, nil).AnyTimes()
	env.tokens.EXPECT().Validate("admin").Return(&ports.TokenClaims{Subject: "ops", Role: ports.RoleAdmin}, nil).AnyTimes()

	env.router = SetupRouter(RouterDeps{
		SettlementSvc:  env.svc,
		WebhookAdmin:   env.webhooks,
		TokenSvc:       env.tokens,
		IdemCache:      env.cache,
		RateLimit:      config.RateLimitConfig{Enabled: false},
		MaxBodyBytes:   1 << 20,
		IdempotencyTTL: time.Hour,
		Logger:         zerolog.Nop(),
	})
	return env
}

func (e *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) asMerchant(extra ...string) map[string]string {
	h := map[string]string{middleware.HeaderMerchantID: e.merchant.String()}
	for i := 0; i+1 < len(extra); i += 2 {
		h[extra[i]] = extra[i+1]
	}
	return h
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func samplePayment(merchantID uuid.UUID, status domain.PaymentStatus) *domain.Payment {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Payment{
		PaymentID:           testPaymentID,
		MerchantID:          merchantID,
		UniqueAddress:       "ST1DEPOSIT",
		EncryptedPrivateKey: "v1:secret",
		Currency:            "STX",
		ExpectedAmount:      5000,
		Status:              status,
		ExpiresAt:           now.Add(time.Hour),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// --- Merchant API ---

func TestCreatePayment_Success(t *testing.T) {
	env := newTestEnv(t)

	env.svc.EXPECT().CreatePayment(gomock.Any(), ports.CreatePaymentInput{
		MerchantID:  env.merchant,
		Amount:      5000,
		Currency:    "STX",
		Description: "order #42",
		ExpiresIn:   10 * time.Minute,
	}).Return(samplePayment(env.merchant, domain.PaymentStatusPending), nil)

	w := env.do(http.MethodPost, "/api/v1/payments",
		`{"amount":5000,"currency":"STX","description":"  order #42 ","expiresIn":600}`, env.asMerchant())

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, testPaymentID, data["paymentId"])
	assert.Equal(t, "pending", data["status"])
	assert.NotContains(t, w.Body.String(), "v1:secret")
}

func TestCreatePayment_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"zero amount", `{"amount":0,"currency":"STX"}`},
		{"missing currency", `{"amount":10}`},
		{"bad currency", `{"amount":10,"currency":"$$"}`},
		{"negative expiry", `{"amount":10,"currency":"STX","expiresIn":-5}`},
		{"expiry past 30 days", `{"amount":10,"currency":"STX","expiresIn":2592001}`},
		{"expiry overflowing a duration", `{"amount":10,"currency":"STX","expiresIn":18446744134}`},
		{"malformed", `{"amount":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/v1/payments", tt.body, env.asMerchant())
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VAL_000", decode(t, w)["error_code"])
		})
	}
}

func TestCreatePayment_MissingMerchant(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/payments", `{"amount":10,"currency":"STX"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", decode(t, w)["error_code"])
}

func TestCreatePayment_ServiceError(t *testing.T) {
	env := newTestEnv(t)
	env.svc.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrCurrencyNotAccepted("BTC"))

	w := env.do(http.MethodPost, "/api/v1/payments", `{"amount":10,"currency":"BTC"}`, env.asMerchant())

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "VAL_003", decode(t, w)["error_code"])
}

func TestCreatePayment_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	key := "create:" + env.merchant.String() + ":order-42"

	var stored []byte
	gomock.InOrder(
		env.cache.EXPECT().Reserve(gomock.Any(), key, time.Minute).Return(true, nil),
		env.cache.EXPECT().Get(gomock.Any(), key).Return(nil, nil),
		env.svc.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).Return(samplePayment(env.merchant, domain.PaymentStatusPending), nil),
		env.cache.EXPECT().Set(gomock.Any(), key, gomock.Any(), time.Hour).
			DoAndReturn(func(_ context.Context, _ string, v []byte, _ time.Duration) error {
				stored = v
				return nil
			}),
		env.cache.EXPECT().Release(gomock.Any(), key).Return(nil),
	)

	body := `{"amount":5000,"currency":"STX"}`
	first := env.do(http.MethodPost, "/api/v1/payments", body, env.asMerchant(HeaderIdempotencyKey, "order-42"))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, first.Body.Bytes(), stored)

	gomock.InOrder(
		env.cache.EXPECT().Reserve(gomock.Any(), key, time.Minute).Return(true, nil),
		env.cache.EXPECT().Get(gomock.Any(), key).Return(stored, nil),
		env.cache.EXPECT().Release(gomock.Any(), key).Return(nil),
	)
	second := env.do(http.MethodPost, "/api/v1/payments", body, env.asMerchant(HeaderIdempotencyKey, "order-42"))

	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestCreatePayment_SameKeyInFlight(t *testing.T) {
	env := newTestEnv(t)
	key := "create:" + env.merchant.String() + ":order-7"
	body := `{"amount":5000,"currency":"STX"}`

	// A concurrent request holds the key and has not stored its reply yet.
	env.cache.EXPECT().Reserve(gomock.Any(), key, time.Minute).Return(false, nil)
	env.cache.EXPECT().Get(gomock.Any(), key).Return(nil, nil)

	w := env.do(http.MethodPost, "/api/v1/payments", body, env.asMerchant(HeaderIdempotencyKey, "order-7"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PAY_006", decode(t, w)["error_code"])

	// The holder finished between our reserve and lookup.
	stored := []byte(`{"data":{"paymentId":"` + testPaymentID + `"}}`)
	env.cache.EXPECT().Reserve(gomock.Any(), key, time.Minute).Return(false, nil)
	env.cache.EXPECT().Get(gomock.Any(), key).Return(stored, nil)

	w = env.do(http.MethodPost, "/api/v1/payments", body, env.asMerchant(HeaderIdempotencyKey, "order-7"))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, string(stored), w.Body.String())
}

func TestCreatePayment_CacheFailureStillCreates(t *testing.T) {
	env := newTestEnv(t)

	env.cache.EXPECT().Reserve(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))
	env.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis down"))
	env.svc.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).Return(samplePayment(env.merchant, domain.PaymentStatusPending), nil)
	env.cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	w := env.do(http.MethodPost, "/api/v1/payments", `{"amount":5000,"currency":"STX"}`, env.asMerchant(HeaderIdempotencyKey, "k"))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestGetPayment(t *testing.T) {
	env := newTestEnv(t)
	confirmed := samplePayment(env.merchant, domain.PaymentStatusConfirmed)
	confirmed.ConfirmedAt = domain.Ptr(confirmed.CreatedAt.Add(time.Minute))
	confirmed.ObservedTxID = domain.Ptr("0xobserved")
	env.svc.EXPECT().GetPayment(gomock.Any(), env.merchant, testPaymentID).Return(confirmed, nil)
	env.svc.EXPECT().GetPayment(gomock.Any(), env.merchant, "pay_01HZX3K8M4Q2W7E5R9T1Y6V0KQ").
		Return(nil, apperror.ErrNotFound("Payment"))

	w := env.do(http.MethodGet, "/api/v1/payments/"+testPaymentID, "", env.asMerchant())
	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "confirmed", data["status"])
	timeline := data["timeline"].([]any)
	require.Len(t, timeline, 2)
	assert.Equal(t, "pending", timeline[0].(map[string]any)["status"])
	assert.Equal(t, "0xobserved", timeline[1].(map[string]any)["transactionHash"])

	w = env.do(http.MethodGet, "/api/v1/payments/pay_01HZX3K8M4Q2W7E5R9T1Y6V0KQ", "", env.asMerchant())
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Malformed IDs never reach the service.
	w = env.do(http.MethodGet, "/api/v1/payments/not-a-payment", "", env.asMerchant())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PAY_001", decode(t, w)["error_code"])
}

func TestListPayments(t *testing.T) {
	env := newTestEnv(t)
	env.svc.EXPECT().ListPayments(gomock.Any(), ports.ListPaymentsInput{
		MerchantID: env.merchant,
		Status:     domain.PaymentStatusSettled,
		Page:       2,
		Limit:      5,
	}).Return(&domain.PaymentPage{
		Payments:   []domain.Payment{*samplePayment(env.merchant, domain.PaymentStatusSettled)},
		Pagination: domain.Pagination{Page: 2, Limit: 5, Total: 6},
	}, nil)

	w := env.do(http.MethodGet, "/api/v1/payments?page=2&limit=5&status=settled", "", env.asMerchant())
	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Len(t, data["payments"], 1)
	assert.Equal(t, float64(6), data["pagination"].(map[string]any)["total"])
	assert.NotContains(t, w.Body.String(), "v1:secret")
}

func TestListPayments_Validation(t *testing.T) {
	env := newTestEnv(t)

	for _, query := range []string{"limit=-1", "limit=101", "page=-2", "status=paid", "page=abc"} {
		t.Run(query, func(t *testing.T) {
			w := env.do(http.MethodGet, "/api/v1/payments?"+query, "", env.asMerchant())
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VAL_000", decode(t, w)["error_code"])
		})
	}

	w := env.do(http.MethodGet, "/api/v1/payments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCancelPayment(t *testing.T) {
	env := newTestEnv(t)

	cancelled := samplePayment(env.merchant, domain.PaymentStatusCancelled)
	cancelled.ErrorMessage = domain.Ptr("cancelled by merchant: customer left")
	env.svc.EXPECT().CancelPayment(gomock.Any(), env.merchant, testPaymentID, "customer left").Return(cancelled, nil)

	w := env.do(http.MethodPost, "/api/v1/payments/"+testPaymentID+"/cancel", `{"reason":"customer left"}`, env.asMerchant())
	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "cancelled", data["status"])
	assert.Equal(t, "cancelled by merchant: customer left", data["errorMessage"])
}

func TestCancelPayment_NoBody(t *testing.T) {
	env := newTestEnv(t)
	env.svc.EXPECT().CancelPayment(gomock.Any(), env.merchant, testPaymentID, "").
		Return(nil, apperror.ErrCannotCancel("settled"))

	w := env.do(http.MethodPost, "/api/v1/payments/"+testPaymentID+"/cancel", "", env.asMerchant())
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PAY_003", decode(t, w)["error_code"])
}

func TestRefundPayment(t *testing.T) {
	env := newTestEnv(t)
	env.svc.EXPECT().RefundPayment(gomock.Any(), env.merchant, testPaymentID, "duplicate").
		Return(samplePayment(env.merchant, domain.PaymentStatusRefunded), nil)
	env.svc.EXPECT().RefundPayment(gomock.Any(), env.merchant, testPaymentID, "").
		Return(nil, apperror.ErrSettlementInProgress())

	w := env.do(http.MethodPost, "/api/v1/payments/"+testPaymentID+"/refund", `{"reason":"duplicate"}`, env.asMerchant())
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/v1/payments/"+testPaymentID+"/refund", "", env.asMerchant())
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PAY_005", decode(t, w)["error_code"])

	w = env.do(http.MethodPost, "/api/v1/payments/"+testPaymentID+"/refund", `{"reason":`+`"`+strings.Repeat("x", 501)+`"}`, env.asMerchant())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Service API ---

func TestNotifyDeposit(t *testing.T) {
	env := newTestEnv(t)
	txid := strings.Repeat("ab", 32)

	env.svc.EXPECT().NotifyDeposit(gomock.Any(), domain.DepositNotification{
		PaymentID: testPaymentID, ObservedAmount: 5000, ObservedTxID: txid,
	}).Return(samplePayment(env.merchant, domain.PaymentStatusConfirmed), nil)

	body := `{"paymentId":"` + testPaymentID + `","observedAmount":5000,"observedTxId":"` + txid + `"}`
	w := env.do(http.MethodPost, "/internal/v1/deposits", body, bearer("observer"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/internal/v1/deposits", `{"paymentId":"`+testPaymentID+`","observedAmount":5000,"observedTxId":"short"}`, bearer("observer"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/internal/v1/deposits", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNotifyDeposit_Underpayment(t *testing.T) {
	env := newTestEnv(t)
	env.svc.EXPECT().NotifyDeposit(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrUnderpayment(5000, 10))

	body := `{"paymentId":"` + testPaymentID + `","observedAmount":10,"observedTxId":"0x` + strings.Repeat("cd", 32) + `"}`
	w := env.do(http.MethodPost, "/internal/v1/deposits", body, bearer("admin"))

	assert.Equal(t, "VAL_005", decode(t, w)["error_code"])
}

func TestSettle_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	settled := samplePayment(env.merchant, domain.PaymentStatusSettled)
	settled.SettlementTxID = domain.Ptr("0xsettle")
	env.svc.EXPECT().Settle(gomock.Any(), testPaymentID).Return(settled, nil)

	w := env.do(http.MethodPost, "/internal/v1/payments/"+testPaymentID+"/settle", "", bearer("observer"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/internal/v1/payments/"+testPaymentID+"/settle", "", bearer("admin"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0xsettle", decode(t, w)["data"].(map[string]any)["settlementTxId"])
}

func TestSettle_LedgerUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.svc.EXPECT().Settle(gomock.Any(), testPaymentID).Return(nil, apperror.ErrLedgerUnavailable(errors.New("timeout")))

	w := env.do(http.MethodPost, "/internal/v1/payments/"+testPaymentID+"/settle", "", bearer("admin"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "LDG_001", decode(t, w)["error_code"])
}

func TestResetWebhookStats(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.New()
	env.webhooks.EXPECT().ResetStats(gomock.Any(), id).Return(nil)

	w := env.do(http.MethodPost, "/internal/v1/webhooks/"+id.String()+"/stats/reset", "", bearer("admin"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/internal/v1/webhooks/nope/stats/reset", "", bearer("admin"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Health ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(_ context.Context) error { return s.err }
func (s stubChecker) Name() string                 { return s.name }

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(stubChecker{name: "postgresql"})(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "healthy", resp["checks"].(map[string]any)["postgresql"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(stubChecker{name: "postgresql"}, stubChecker{name: "redis", err: errors.New("connection refused")})(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "degraded", resp["status"])
	assert.Contains(t, resp["checks"].(map[string]any)["redis"], "connection refused")
}

func TestMetricsRoute(t *testing.T) {
	r := SetupRouter(RouterDeps{
		Logger: zerolog.Nop(),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("settlement_payment_transitions_total 1\n"))
		}),
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "settlement_payment_transitions_total")
}
