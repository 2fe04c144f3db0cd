package ui

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/defilend/internal/domain"
	"github.com/rovshanmuradov/defilend/internal/logger"
	"github.com/rovshanmuradov/defilend/internal/storage/models"
)

// Lending is the part of the lending service the screens drive.
type Lending interface {
	Account() common.Address
	ReadOnly() bool
	Execute(ctx context.Context, op domain.Operation, amount *big.Int) domain.Outcome
}

// History lists recorded transactions.
type History interface {
	ListTransactions(ctx context.Context, account string, limit, offset int) ([]*models.TxRecord, error)
}

// PositionFeed exposes the periodic position refresh.
type PositionFeed interface {
	Refresh()
	Last() (domain.Snapshot, bool)
}

// Services bundles what screens need. History and Logs may be nil.
type Services struct {
	Ctx      context.Context
	Lending  Lending
	History  History
	Position PositionFeed
	Logs     *logger.LogBuffer
	Logger   *zap.Logger
}
