// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rovshanmuradov/defilend/internal/storage/models"
)

var ErrNotFound = errors.New("record not found")

// Filter narrows ListFiltered. Zero fields match everything.
type Filter struct {
	Account   string
	Operation string
	Status    string
	From      time.Time
	To        time.Time
	Limit     int
}

// Storage is the transaction history store.
type Storage interface {
	SaveTransaction(ctx context.Context, rec *models.TxRecord) error
	GetTransaction(ctx context.Context, txHash string) (*models.TxRecord, error)
	ListTransactions(ctx context.Context, account string, limit, offset int) ([]*models.TxRecord, error)
	ListFiltered(ctx context.Context, filter Filter) ([]*models.TxRecord, error)
	Stats(ctx context.Context, account string) (*models.Stats, error)

	RunMigrations() error
	Close() error
}
