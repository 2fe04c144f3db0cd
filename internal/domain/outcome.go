package domain

import (
	"errors"
	"math/big"
	"time"

	"github.com/rovshanmuradov/defilend/internal/transaction"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrReadOnly            = errors.New("no signer configured, session is read-only")
)

// Failure kinds decided before anything is submitted.
const (
	KindInsufficientBalance transaction.FailureKind = "insufficient_balance"
	KindReadOnly            transaction.FailureKind = "read_only"
	KindPrecheckFailed      transaction.FailureKind = "precheck_failed"
)

// Outcome is the result of one user action. Steps holds one Result per
// submitted transaction: an optional approval followed by the lending call.
// Err is set when the action stopped before the first submission.
type Outcome struct {
	ID        string
	Operation Operation
	Amount    *big.Int
	Steps     []transaction.Result
	Err       error
	ErrKind   transaction.FailureKind
	StartedAt time.Time
	EndedAt   time.Time
}

// OK reports whether every step succeeded.
func (o Outcome) OK() bool {
	if o.Err != nil || len(o.Steps) == 0 {
		return false
	}
	for _, s := range o.Steps {
		if !s.OK() {
			return false
		}
	}
	return true
}

// Kind returns the failure kind of the first failing stage, or KindNone.
func (o Outcome) Kind() transaction.FailureKind {
	if o.Err != nil {
		return o.ErrKind
	}
	for _, s := range o.Steps {
		if !s.OK() {
			return s.Kind
		}
	}
	return transaction.KindNone
}

// Error returns the first failure, or nil.
func (o Outcome) Error() error {
	if o.Err != nil {
		return o.Err
	}
	for _, s := range o.Steps {
		if !s.OK() {
			return s.Err
		}
	}
	return nil
}

// Last returns the final step, the lending call when it was reached.
func (o Outcome) Last() (transaction.Result, bool) {
	if len(o.Steps) == 0 {
		return transaction.Result{}, false
	}
	return o.Steps[len(o.Steps)-1], true
}
