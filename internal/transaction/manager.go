// internal/transaction/manager.go
package transaction

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/defilend/internal/blockchain"
	"github.com/rovshanmuradov/defilend/internal/wallet"
)

// Node messages that will not change on resend.
var permanentSendErrors = []string{
	"nonce too low",
	"insufficient funds",
	"intrinsic gas too low",
	"exceeds block gas limit",
	"invalid sender",
	"max fee per gas less than block base fee",
}

// Manager signs, broadcasts and confirms contract calls for one wallet.
type Manager struct {
	client  blockchain.Backend
	wallet  *wallet.Wallet
	chainID *big.Int
	logger  *zap.Logger
	config  Config
	monitor *Monitor
	metrics *Metrics

	// one submission at a time so pending nonces do not collide
	mu sync.Mutex
}

func NewManager(client blockchain.Backend, w *wallet.Wallet, chainID *big.Int, config Config, metrics *Metrics, logger *zap.Logger) *Manager {
	defaults := DefaultConfig()
	if config.ConfirmationTime <= 0 {
		config.ConfirmationTime = defaults.ConfirmationTime
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if config.GasLimitMultiplier < 100 {
		config.GasLimitMultiplier = defaults.GasLimitMultiplier
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Manager{
		client:  client,
		wallet:  w,
		chainID: chainID,
		logger:  logger.Named("tx-manager"),
		config:  config,
		monitor: NewMonitor(client, logger, config),
		metrics: metrics,
	}
}

// From returns the signing account.
func (tm *Manager) From() common.Address {
	return tm.wallet.Address
}

// Submit runs the full pipeline for req and reports the outcome as a value.
func (tm *Manager) Submit(ctx context.Context, req Request) Result {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	start := time.Now()
	defer tm.metrics.TrackTransaction(start)

	result := tm.submit(ctx, req)
	if result.SubmittedAt.IsZero() {
		result.SubmittedAt = start
	}
	tm.metrics.observe(result)

	if !result.OK() {
		tm.logger.Error("Transaction failed",
			zap.String("label", req.Label),
			zap.String("kind", string(result.Kind)),
			zap.String("tx_hash", hashOrEmpty(result.TxHash)),
			zap.Error(result.Err))
	}
	return result
}

func (tm *Manager) submit(ctx context.Context, req Request) Result {
	if len(req.Data) == 0 {
		return failed(req.Label, KindInvalidRequest, ErrEmptyCalldata)
	}
	if req.To == (common.Address{}) {
		return failed(req.Label, KindInvalidRequest, ErrMissingRecipient)
	}

	tx, kind, err := tm.build(ctx, req)
	if err != nil {
		return failed(req.Label, kind, err)
	}

	signed, err := tm.wallet.SignTx(tx, tm.chainID)
	if err != nil {
		return failed(req.Label, KindSigning, err)
	}

	result := Result{Label: req.Label, TxHash: signed.Hash(), SubmittedAt: time.Now()}
	tm.metrics.submitted.Inc()

	if err := tm.sendWithRetry(ctx, signed); err != nil {
		result.Kind = classifySendError(ctx, err)
		result.Err = fmt.Errorf("failed to send transaction: %w", err)
		result.FinishedAt = time.Now()
		return result
	}

	tm.logger.Info("Transaction sent",
		zap.String("label", req.Label),
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", signed.Nonce()),
		zap.Uint64("gas", signed.Gas()))
	if req.OnSent != nil {
		req.OnSent(signed.Hash())
	}

	receipt, err := tm.monitor.AwaitReceipt(ctx, signed.Hash())
	result.FinishedAt = time.Now()
	if err != nil {
		result.Err = err
		result.Kind = KindTimeout
		if ctx.Err() != nil {
			result.Kind = KindCanceled
		}
		return result
	}

	result.GasUsed = receipt.GasUsed
	if receipt.BlockNumber != nil {
		result.Block = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		result.Kind = KindReverted
		result.Err = ErrReverted
		return result
	}

	tm.logger.Info("Transaction confirmed",
		zap.String("label", req.Label),
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("block", result.Block),
		zap.Uint64("gas_used", result.GasUsed))
	return result
}

// build prepares an unsigned EIP-1559 transaction.
func (tm *Manager) build(ctx context.Context, req Request) (*types.Transaction, FailureKind, error) {
	from := tm.wallet.Address
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := tm.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, networkOrCanceled(ctx), fmt.Errorf("failed to get nonce: %w", err)
	}

	tip, err := tm.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, networkOrCanceled(ctx), fmt.Errorf("failed to get gas tip: %w", err)
	}
	head, err := tm.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, networkOrCanceled(ctx), fmt.Errorf("failed to get latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	to := req.To
	estimate, err := tm.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  req.Data,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, KindCanceled, ctx.Err()
		}
		if isNodeError(err) {
			return nil, KindEstimateFailed, fmt.Errorf("gas estimation failed: %w", err)
		}
		return nil, KindNetwork, fmt.Errorf("gas estimation failed: %w", err)
	}
	gas := estimate * tm.config.GasLimitMultiplier / 100

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   tm.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	}), KindNone, nil
}

func (tm *Manager) sendWithRetry(ctx context.Context, tx *types.Transaction) error {
	operation := func() (struct{}, error) {
		err := tm.client.SendTransaction(ctx, tx)
		switch {
		case err == nil:
			return struct{}{}, nil
		case isAlreadyKnown(err):
			tm.logger.Debug("Transaction already known to node", zap.String("tx_hash", tx.Hash().Hex()))
			return struct{}{}, nil
		case ctx.Err() != nil:
			return struct{}{}, backoff.Permanent(ctx.Err())
		case isPermanentSendError(err):
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = tm.config.RetryDelay

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(tm.config.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			tm.metrics.sendRetries.Inc()
			tm.logger.Warn("Retrying transaction send",
				zap.String("tx_hash", tx.Hash().Hex()),
				zap.Duration("next", next),
				zap.Error(err))
		}),
	)
	return err
}

func classifySendError(ctx context.Context, err error) FailureKind {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if isNodeError(err) || isPermanentSendError(err) {
		return KindRejected
	}
	return KindNetwork
}

func networkOrCanceled(ctx context.Context) FailureKind {
	if ctx.Err() != nil {
		return KindCanceled
	}
	return KindNetwork
}

// isNodeError reports a JSON-RPC error answered by the node.
func isNodeError(err error) bool {
	var rpcErr gethrpc.Error
	return errors.As(err, &rpcErr)
}

func isAlreadyKnown(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already known") || strings.Contains(msg, "known transaction")
}

func isPermanentSendError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range permanentSendErrors {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func hashOrEmpty(h common.Hash) string {
	if h == (common.Hash{}) {
		return ""
	}
	return h.Hex()
}
