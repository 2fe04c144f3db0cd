// internal/blockchain/evm/errors.go
package evm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRPCNodes is returned when the pool has no endpoints.
	ErrNoRPCNodes = errors.New("no RPC nodes available")

	// ErrTimeout is returned when a request exceeds the per-request timeout on every node tried.
	ErrTimeout = errors.New("request timeout")

	// ErrChainIDMismatch is returned when a node reports a different chain than configured.
	ErrChainIDMismatch = errors.New("chain id mismatch")
)

// Error is an RPC failure annotated with the node and method that produced it.
type Error struct {
	Err     error
	NodeURL string
	Method  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error [%s] at %s: %v", e.Method, e.NodeURL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with node and method context.
func NewError(err error, nodeURL, method string) error {
	return &Error{
		Err:     err,
		NodeURL: nodeURL,
		Method:  method,
	}
}
