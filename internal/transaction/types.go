// internal/transaction/types.go
package transaction

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrConfirmationTimeout = errors.New("transaction confirmation timeout")
	ErrReverted            = errors.New("transaction reverted")
	ErrEmptyCalldata       = errors.New("empty calldata")
	ErrMissingRecipient    = errors.New("missing recipient address")
)

// FailureKind classifies why a submission did not end in a successful receipt.
type FailureKind string

const (
	KindNone           FailureKind = ""
	KindInvalidRequest FailureKind = "invalid_request"
	KindEstimateFailed FailureKind = "estimate_failed"
	KindSigning        FailureKind = "signing"
	KindNetwork        FailureKind = "network"
	KindRejected       FailureKind = "rejected"
	KindReverted       FailureKind = "reverted"
	KindTimeout        FailureKind = "timeout"
	KindCanceled       FailureKind = "canceled"
)

type Config struct {
	MaxRetries         int
	RetryDelay         time.Duration
	ConfirmationTime   time.Duration
	PollInterval       time.Duration
	GasLimitMultiplier uint64 // percent of the estimate, >= 100
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:         3,
		RetryDelay:         500 * time.Millisecond,
		ConfirmationTime:   2 * time.Minute,
		PollInterval:       time.Second,
		GasLimitMultiplier: 120,
	}
}

// Request is a contract call to sign and submit.
type Request struct {
	Label string
	To    common.Address
	Data  []byte
	Value *big.Int

	// OnSent is called once the node accepted the transaction.
	OnSent func(hash common.Hash)
}

// Result is the outcome of one submission: either a mined successful
// transaction or a failure with its kind. TxHash is set once the transaction
// was signed, so failures after broadcast still carry it.
type Result struct {
	Label       string
	TxHash      common.Hash
	Kind        FailureKind
	Err         error
	GasUsed     uint64
	Block       uint64
	SubmittedAt time.Time
	FinishedAt  time.Time
}

func (r Result) OK() bool {
	return r.Kind == KindNone && r.Err == nil
}

func (r Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.SubmittedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.SubmittedAt)
}

func (r Result) String() string {
	if r.OK() {
		return fmt.Sprintf("%s: confirmed %s in block %d", r.Label, r.TxHash.Hex(), r.Block)
	}
	return fmt.Sprintf("%s: %s: %v", r.Label, r.Kind, r.Err)
}

func failed(label string, kind FailureKind, err error) Result {
	return Result{Label: label, Kind: kind, Err: err, FinishedAt: time.Now()}
}
