// internal/transaction/monitor.go
package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/defilend/internal/blockchain"
)

// Monitor polls for transaction receipts.
type Monitor struct {
	client blockchain.Backend
	logger *zap.Logger
	config Config
}

func NewMonitor(client blockchain.Backend, logger *zap.Logger, config Config) *Monitor {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	return &Monitor{
		client: client,
		logger: logger.Named("tx-monitor"),
		config: config,
	}
}

// AwaitReceipt waits until the transaction is mined or ConfirmationTime
// elapses. A receipt is returned whatever its status.
func (m *Monitor) AwaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	deadline := time.After(m.config.ConfirmationTime)

	for {
		receipt, err := m.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && !errors.Is(err, ethereum.NotFound):
			m.logger.Warn("Receipt check failed", zap.String("tx_hash", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, ErrConfirmationTimeout
		case <-ticker.C:
		}
	}
}
