// internal/blockchain/evm/pool.go
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/defilend/internal/blockchain"
)

const (
	DefaultTimeout = 10 * time.Second
	retryDelay     = 300 * time.Millisecond
)

// NodeClient is a single RPC endpoint with its counters.
type NodeClient struct {
	Client blockchain.Backend
	URL    string

	successCount atomic.Uint64
	errorCount   atomic.Uint64
	lastLatency  atomic.Int64
}

// NodeStats is a snapshot of a node's counters.
type NodeStats struct {
	URL         string
	Successes   uint64
	Errors      uint64
	LastLatency time.Duration
}

func (n *NodeClient) record(success bool, latency time.Duration) {
	if success {
		n.successCount.Add(1)
	} else {
		n.errorCount.Add(1)
	}
	n.lastLatency.Store(int64(latency))
}

// Pool spreads requests over several endpoints and fails over to the next
// node on transport errors. It implements blockchain.Backend.
type Pool struct {
	nodes   []*NodeClient
	closers []func()
	current int
	mu      sync.Mutex
	timeout time.Duration
	logger  *zap.Logger
}

var _ blockchain.Backend = (*Pool)(nil)

// Dial connects to every URL with ethclient. Endpoints that fail to dial are
// skipped; at least one must succeed.
func Dial(ctx context.Context, urls []string, timeout time.Duration, logger *zap.Logger) (*Pool, error) {
	if len(urls) == 0 {
		return nil, ErrNoRPCNodes
	}

	var (
		nodes   []*NodeClient
		closers []func()
	)
	for _, url := range urls {
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			logger.Warn("Failed to dial RPC node", zap.String("url", url), zap.Error(err))
			continue
		}
		nodes = append(nodes, &NodeClient{Client: client, URL: url})
		closers = append(closers, client.Close)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("failed to dial any RPC node: %w", ErrNoRPCNodes)
	}

	pool := NewPool(nodes, timeout, logger)
	pool.closers = closers
	return pool, nil
}

// NewPool builds a pool from already constructed nodes.
func NewPool(nodes []*NodeClient, timeout time.Duration, logger *zap.Logger) *Pool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pool{
		nodes:   nodes,
		timeout: timeout,
		logger:  logger.Named("rpc-pool"),
	}
}

// ExecuteWithRetry runs operation against the nodes in round-robin order,
// moving on to the next node only for transport-level failures.
func (p *Pool) ExecuteWithRetry(ctx context.Context, method string, operation func(context.Context, blockchain.Backend) error) error {
	if len(p.nodes) == 0 {
		return ErrNoRPCNodes
	}

	p.mu.Lock()
	start := p.current
	p.current = (p.current + 1) % len(p.nodes)
	p.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < len(p.nodes); attempt++ {
		node := p.nodes[(start+attempt)%len(p.nodes)]

		reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
		began := time.Now()
		err := operation(reqCtx, node.Client)
		cancel()

		if err == nil || !isFailoverError(err) {
			node.record(err == nil || isApplicationError(err), time.Since(began))
			if err != nil {
				return NewError(err, node.URL, method)
			}
			return nil
		}
		node.record(false, time.Since(began))

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout
		}
		lastErr = NewError(err, node.URL, method)

		p.logger.Debug("RPC request failed, trying next node",
			zap.String("url", node.URL),
			zap.String("method", method),
			zap.Error(err),
			zap.Int("attempt", attempt+1))

		if attempt < len(p.nodes)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}

	p.logger.Warn("All RPC nodes failed", zap.String("method", method), zap.Error(lastErr))
	return lastErr
}

// isApplicationError reports errors the node answered with deliberately:
// JSON-RPC errors (reverts, nonce errors) and not-found results.
func isApplicationError(err error) bool {
	if errors.Is(err, ethereum.NotFound) {
		return true
	}
	var rpcErr gethrpc.Error
	return errors.As(err, &rpcErr)
}

func isFailoverError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return !isApplicationError(err)
}

// Stats returns per-node counters.
func (p *Pool) Stats() []NodeStats {
	stats := make([]NodeStats, 0, len(p.nodes))
	for _, n := range p.nodes {
		stats = append(stats, NodeStats{
			URL:         n.URL,
			Successes:   n.successCount.Load(),
			Errors:      n.errorCount.Load(),
			LastLatency: time.Duration(n.lastLatency.Load()),
		})
	}
	return stats
}

// VerifyChainID checks that the pool serves the expected chain. want == 0 only reads it.
func (p *Pool) VerifyChainID(ctx context.Context, want int64) (*big.Int, error) {
	id, err := p.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	if want != 0 && id.Cmp(big.NewInt(want)) != 0 {
		return nil, fmt.Errorf("%w: node reports %s, configured %d", ErrChainIDMismatch, id, want)
	}
	return id, nil
}

// Close closes dialed clients.
func (p *Pool) Close() {
	for _, c := range p.closers {
		c()
	}
}

func (p *Pool) ChainID(ctx context.Context) (*big.Int, error) {
	var result *big.Int
	err := p.ExecuteWithRetry(ctx, "eth_chainId", func(ctx context.Context, c blockchain.Backend) error {
		var err error
		result, err = c.ChainID(ctx)
		return err
	})
	return result, err
}

func (p *Pool) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var result []byte
	err := p.ExecuteWithRetry(ctx, "eth_call", func(ctx context.Context, c blockchain.Backend) error {
		var err error
		result, err = c.CallContract(ctx, call, blockNumber)
		return err
	})
	return result, err
}

func (p *Pool) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var result uint64
	err := p.ExecuteWithRetry(ctx, "eth_getTransactionCount", func(ctx context.Context, c blockchain.Backend) error {
		var err error
		result, err = c.PendingNonceAt(ctx, account)
		return err
	})
	return result, err
}

func (p *Pool) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var result *big.Int
	err := p.ExecuteWithRetry(ctx, "eth_maxPriorityFeePerGas", func(ctx context.Context, c blockchain.Backend) error {
		var err error
		result, err = c.SuggestGasTipCap(ctx)
		return err
	})
	return result, err
}

func (p *Pool) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var result *types.Header
	err := p.ExecuteWithRetry(ctx, "eth_getBlockByNumber", func(ctx context.Context, c blockchain.Backend) error {
		var err error
		result, err = c.HeaderByNumber(ctx, number)
		return err
	})
	return result, err
}

func (p *Pool) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	var result uint64
	err := p.ExecuteWithRetry(ctx, "eth_estimateGas", func(ctx context.Context, c blockchain.Backend) error {
		var err error
		result, err = c.EstimateGas(ctx, call)
		return err
	})
	return result, err
}

// SendTransaction may reach more than one node on failover; resubmitting the
// same signed transaction is harmless.
func (p *Pool) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return p.ExecuteWithRetry(ctx, "eth_sendRawTransaction", func(ctx context.Context, c blockchain.Backend) error {
		return c.SendTransaction(ctx, tx)
	})
}

func (p *Pool) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var result *types.Receipt
	err := p.ExecuteWithRetry(ctx, "eth_getTransactionReceipt", func(ctx context.Context, c blockchain.Backend) error {
		var err error
		result, err = c.TransactionReceipt(ctx, txHash)
		return err
	})
	return result, err
}
