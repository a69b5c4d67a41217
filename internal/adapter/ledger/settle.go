package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"settlement-gateway/internal/core/domain"
	"settlement-gateway/pkg/address"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

const opTransfer = "transfer"

type transferRequest struct {
	Sender         string `json:"sender"`
	Recipient      string `json:"recipient"`
	Amount         int64  `json:"amount"`
	Fee            int64  `json:"fee"`
	Memo           string `json:"memo"`
	PublicKey      string `json:"publicKey"`
	Signature      string `json:"signature"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// message is the canonical byte string a transfer signature covers.
func (t transferRequest) message() []byte {
	return fmt.Appendf(nil, "%s|%s|%d|%d|%s|%s", t.Sender, t.Recipient, t.Amount, t.Fee, t.Memo, t.IdempotencyKey)
}

// Settle releases a confirmed payment's funds. The deposit key is opened
// before any ledger call, so a key failure moves nothing. Every step carries
// a deterministic idempotency key; re-running Settle after an unknown
// outcome returns the original transactions.
func (c *Client) Settle(ctx context.Context, p *domain.Payment) (*domain.SettlementResult, error) {
	raw, err := c.vault.Decrypt(p.EncryptedPrivateKey, p.PaymentID)
	if err != nil {
		return nil, err
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	clear(raw)
	defer priv.Zero()

	pub := priv.PubKey().SerializeCompressed()
	sender := address.FromPublicKey(pub, c.version)
	if sender != p.UniqueAddress {
		return nil, fmt.Errorf("%w: key does not control deposit address %s", domain.ErrKeyDecryption, p.UniqueAddress)
	}

	split, err := c.fees.Split(p.ReceivedAmount)
	if err != nil {
		return nil, &domain.LedgerError{Op: fnSettle, Kind: domain.ErrLedgerInsufficientFunds, Err: err}
	}

	res := &domain.SettlementResult{MerchantAmount: split.MerchantAmount, PlatformFee: split.PlatformFee}

	tx, err := c.call(ctx, fnSettle, "settle:"+p.PaymentID, p.PaymentID)
	switch {
	case errors.Is(err, domain.ErrAlreadySettled):
		c.log.Info().Str("payment_id", p.PaymentID).Msg("contract already settled, continuing with transfers")
	case err != nil:
		return nil, err
	default:
		res.ContractTxID = tx.TxID
	}

	res.TransferTxID, err = c.transfer(ctx, priv, pub, transferRequest{
		Sender:         sender,
		Recipient:      p.MerchantAddress,
		Amount:         split.MerchantAmount,
		Fee:            c.cfg.TransferFee,
		Memo:           "settle:" + p.PaymentID,
		IdempotencyKey: "settle-transfer:" + p.PaymentID,
	})
	if err != nil {
		return nil, err
	}

	if split.PlatformFee > 0 {
		res.PlatformTxID, err = c.transfer(ctx, priv, pub, transferRequest{
			Sender:         sender,
			Recipient:      c.cfg.PlatformAddress,
			Amount:         split.PlatformFee,
			Fee:            c.cfg.TransferFee,
			Memo:           "fee:" + p.PaymentID,
			IdempotencyKey: "settle-fee:" + p.PaymentID,
		})
		if err != nil {
			return nil, err
		}
	}

	c.log.Info().
		Str("payment_id", p.PaymentID).
		Str("transfer_tx_id", res.TransferTxID).
		Int64("merchant_amount", res.MerchantAmount).
		Int64("platform_fee", res.PlatformFee).
		Msg("settlement transfers broadcast")
	return res, nil
}

func (c *Client) transfer(ctx context.Context, priv *secp256k1.PrivateKey, pub []byte, t transferRequest) (string, error) {
	digest := sha256.Sum256(t.message())
	t.PublicKey = hex.EncodeToString(pub)
	t.Signature = hex.EncodeToString(ecdsa.SignCompact(priv, digest[:], true))

	var out txResponse
	if err := c.post(ctx, opTransfer, "/v2/transfers", t, &out); err != nil {
		return "", err
	}
	if out.TxID == "" {
		return "", &domain.LedgerError{Op: opTransfer, Kind: domain.ErrLedgerUnavailable, Err: errors.New("response carried no txid")}
	}
	return out.TxID, nil
}
