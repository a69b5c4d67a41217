package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStatusConflict is returned by a guarded update whose expected status
	// (or settlement claim) no longer matches the stored record.
	ErrStatusConflict = errors.New("payment status conflict")

	// ErrKeyDecryption means a deposit key blob does not open under the
	// payment it is presented with.
	ErrKeyDecryption = errors.New("deposit key decryption failed")
	// ErrKeyGeneration means no keypair or ciphertext could be produced.
	ErrKeyGeneration = errors.New("deposit key generation failed")

	ErrLedgerUnavailable       = errors.New("ledger unavailable")
	ErrLedgerRejected          = errors.New("ledger rejected")
	ErrAlreadyRegistered       = errors.New("payment already registered on ledger")
	ErrLedgerPaymentNotFound   = errors.New("payment not found on ledger")
	ErrLedgerInvalidState      = errors.New("ledger payment in invalid state")
	ErrLedgerInsufficientFunds = errors.New("insufficient funds for settlement")
	ErrAlreadySettled          = errors.New("payment already settled on ledger")
)

// LedgerError is a classified failure of one ledger call. Kind is one of the
// ErrLedger*/ErrAlready* sentinels and is what errors.Is matches against.
type LedgerError struct {
	Op     string
	Kind   error
	Reason string
	Err    error
}

func (e *LedgerError) Error() string {
	msg := fmt.Sprintf("ledger %s: %v", e.Op, e.Kind)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LedgerError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether the outcome of the call is unknown and it may be
// attempted again after re-querying the ledger.
func (e *LedgerError) Retryable() bool {
	return errors.Is(e.Kind, ErrLedgerUnavailable)
}

// IsLedgerRetryable reports whether err is a ledger failure with an unknown
// outcome.
func IsLedgerRetryable(err error) bool {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Retryable()
	}
	return errors.Is(err, ErrLedgerUnavailable)
}
