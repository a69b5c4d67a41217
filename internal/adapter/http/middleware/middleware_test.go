package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"settlement-gateway/internal/core/ports"
	"settlement-gateway/internal/core/ports/mocks"
	"settlement-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.ErrorCode
}

func TestMerchantContext(t *testing.T) {
	merchantID := uuid.New()

	r := gin.New()
	r.GET("/p", MerchantContext(), func(c *gin.Context) {
		c.String(http.StatusOK, c.MustGet(CtxMerchantID).(uuid.UUID).String())
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", merchantID.String(), http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not a uuid", "merchant-1", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tt.header != "" {
				req.Header.Set(HeaderMerchantID, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, merchantID.String(), w.Body.String())
			} else {
				assert.Equal(t, "AUTH_001", errorCode(t, w))
			}
		})
	}
}

func TestServiceAuth(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokens := mocks.NewMockTokenService(ctrl)

	tokens.EXPECT().Validate("observer-token").Return(&ports.TokenClaims{Subject: "chain-observer", Role: RoleObserver}, nil).AnyTimes()
	tokens.EXPECT().Validate("admin-token").Return(&ports.TokenClaims{Subject: "ops", Role: RoleAdmin}, nil).AnyTimes()
	tokens.EXPECT().Validate("expired").Return(nil, errors.New("token is expired")).AnyTimes()

	r := gin.New()
	r.POST("/deposits", ServiceAuth(tokens, zerolog.Nop(), RoleObserver), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/settle", ServiceAuth(tokens, zerolog.Nop()), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name   string
		path   string
		auth   string
		status int
		code   string
	}{
		{"observer on deposits", "/deposits", "Bearer observer-token", http.StatusNoContent, ""},
		{"admin on deposits", "/deposits", "Bearer admin-token", http.StatusNoContent, ""},
		{"observer on admin route", "/settle", "Bearer observer-token", http.StatusForbidden, "AUTH_005"},
		{"admin on admin route", "/settle", "Bearer admin-token", http.StatusNoContent, ""},
		{"missing header", "/deposits", "", http.StatusUnauthorized, "AUTH_003"},
		{"wrong scheme", "/deposits", "Basic abc", http.StatusUnauthorized, "AUTH_003"},
		{"invalid token", "/deposits", "Bearer expired", http.StatusUnauthorized, "AUTH_003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, errorCode(t, w))
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(response.RequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(Recovery(zerolog.New(&buf)))
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SYS_001", errorCode(t, w))
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(), RequestLogger(zerolog.New(&buf)))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, float64(404), entry["status"])
	assert.NotEmpty(t, entry["request_id"])
}

func bodyEcho(c *gin.Context) {
	b, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusRequestEntityTooLarge, "too large")
		return
	}
	c.String(http.StatusOK, string(b))
}

func TestMaxBodySize(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodySize(16))
	r.POST("/echo", bodyEcho)
	r.GET("/empty", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello world")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello world", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("A", 100))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("B", 16))))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/empty", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
