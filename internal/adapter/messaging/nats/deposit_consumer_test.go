package nats

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"settlement-gateway/internal/core/domain"
	"settlement-gateway/internal/core/ports/mocks"
	"settlement-gateway/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

type fakeMsg struct {
	data     []byte
	acked    bool
	termed   bool
	nakDelay time.Duration
	naked    bool
}

func (m *fakeMsg) Data() []byte { return m.data }
func (m *fakeMsg) Ack() error   { m.acked = true; return nil }
func (m *fakeMsg) Term() error  { m.termed = true; return nil }
func (m *fakeMsg) NakWithDelay(d time.Duration) error {
	m.naked = true
	m.nakDelay = d
	return nil
}

const (
	depositTxID = "0x9f2c4e6a8b0d1f3e5c7a9b1d3f5e7c9a0b2d4f6e8a1c3e5b7d9f0a2c4e6b8d0f"
	depositJSON = `{"paymentId":"pay_1","observedAmount":5000,"observedTxId":"` + depositTxID + `"}`
)

func TestDepositConsumer_Handle(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantAck  bool
		wantNak  bool
		wantTerm bool
	}{
		{"applied", nil, true, false, false},
		{"underpayment", apperror.ErrUnderpayment(5000, 10), true, false, false},
		{"unknown payment", apperror.ErrNotFound("Payment"), true, false, false},
		{"expired", apperror.ErrPaymentExpired(), true, false, false},
		{"ledger rejected", apperror.ErrLedgerRejected(domain.ErrLedgerInvalidState), true, false, false},
		{"refused as invalid", apperror.Validation("observedTxId must be a 32-byte hex transaction id"), false, false, true},
		{"ledger unavailable", apperror.ErrLedgerUnavailable(domain.ErrLedgerUnavailable), false, true, false},
		{"database down", apperror.ErrDatabaseError(errors.New("conn refused")), false, true, false},
		{"untyped", errors.New("boom"), false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockSettlementService(ctrl)

			var p *domain.Payment
			if tt.err == nil {
				p = &domain.Payment{PaymentID: "pay_1", Status: domain.PaymentStatusConfirmed}
			}
			svc.EXPECT().
				NotifyDeposit(gomock.Any(), domain.DepositNotification{PaymentID: "pay_1", ObservedAmount: 5000, ObservedTxID: depositTxID}).
				Return(p, tt.err)

			c := NewDepositConsumer(svc, 3*time.Second, zerolog.New(io.Discard))
			msg := &fakeMsg{data: []byte(depositJSON)}
			c.Handle(context.Background(), msg)

			assert.Equal(t, tt.wantAck, msg.acked)
			assert.Equal(t, tt.wantNak, msg.naked)
			assert.Equal(t, tt.wantTerm, msg.termed)
			if tt.wantNak {
				assert.Equal(t, 3*time.Second, msg.nakDelay)
			}
		})
	}
}

func TestDepositConsumer_MalformedIsTerminated(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSettlementService(ctrl)
	c := NewDepositConsumer(svc, time.Second, zerolog.New(io.Discard))

	malformed := []string{
		`not json`,
		`{"observedAmount":5}`,
		`{"paymentId":"pay_1","observedAmount":5000,"observedTxId":"ab12"}`,
		`{"paymentId":"pay_1","observedAmount":5000,"observedTxId":"` + depositTxID + `ff"}`,
		`{"paymentId":"pay_1","observedAmount":5000}`,
		`{"paymentId":"pay_1","observedAmount":0,"observedTxId":"` + depositTxID + `"}`,
	}
	for _, data := range malformed {
		msg := &fakeMsg{data: []byte(data)}
		c.Handle(context.Background(), msg)
		assert.True(t, msg.termed, data)
		assert.False(t, msg.acked)
	}
}

func TestDispositionString(t *testing.T) {
	assert.Equal(t, "ack", ack.String())
	assert.Equal(t, "term", term.String())
	assert.Equal(t, "nak", nak.String())
}
