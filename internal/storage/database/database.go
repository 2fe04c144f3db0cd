// internal/storage/database/database.go
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/defilend/internal/storage"
	"github.com/rovshanmuradov/defilend/internal/storage/models"
)

const migrationLockID = 7101

// gormStorage implements storage.Storage on PostgreSQL or SQLite.
type gormStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// IsPostgresDSN reports whether dsn selects the PostgreSQL driver.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// NewStorage opens the history database: a postgres:// URL uses PostgreSQL,
// anything else is a SQLite path or DSN.
func NewStorage(dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	if dsn == "" {
		return nil, errors.New("history dsn is empty")
	}

	var dialector gorm.Dialector
	if IsPostgresDSN(dsn) {
		dialector = postgres.Open(dsn)
	} else {
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm"), logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if IsPostgresDSN(dsn) {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// SQLite allows one writer
		sqlDB.SetMaxOpenConns(1)
	}

	return &gormStorage{
		db:     db,
		logger: zapLogger.Named("history"),
	}, nil
}

// RunMigrations creates or updates the schema. On PostgreSQL it holds an
// advisory lock so two clients do not migrate at once.
func (s *gormStorage) RunMigrations() error {
	if s.db.Dialector.Name() == "postgres" {
		var lockObtained bool
		if err := s.db.Raw("SELECT pg_try_advisory_lock(?)", migrationLockID).Scan(&lockObtained).Error; err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if !lockObtained {
			return fmt.Errorf("another migration is in progress")
		}
		defer s.db.Exec("SELECT pg_advisory_unlock(?)", migrationLockID)
	}

	if err := s.db.AutoMigrate(&models.TxRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	s.logger.Debug("History schema migrated", zap.String("dialect", s.db.Dialector.Name()))
	return nil
}

func (s *gormStorage) SaveTransaction(ctx context.Context, rec *models.TxRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (s *gormStorage) GetTransaction(ctx context.Context, txHash string) (*models.TxRecord, error) {
	var rec models.TxRecord
	err := s.db.WithContext(ctx).Where("tx_hash = ?", txHash).Order("id desc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", txHash, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *gormStorage) ListTransactions(ctx context.Context, account string, limit, offset int) ([]*models.TxRecord, error) {
	var recs []*models.TxRecord
	q := s.db.WithContext(ctx).Order("created_at desc").Order("id desc")
	if account != "" {
		q = q.Where("account = ?", account)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	err := q.Find(&recs).Error
	return recs, err
}

func (s *gormStorage) ListFiltered(ctx context.Context, filter storage.Filter) ([]*models.TxRecord, error) {
	var recs []*models.TxRecord
	q := s.db.WithContext(ctx).Order("created_at asc").Order("id asc")
	if filter.Account != "" {
		q = q.Where("account = ?", filter.Account)
	}
	if filter.Operation != "" {
		q = q.Where("operation = ?", filter.Operation)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if !filter.From.IsZero() {
		q = q.Where("created_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		q = q.Where("created_at <= ?", filter.To.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}

type countRow struct {
	Name  string
	Count int64
}

func (s *gormStorage) Stats(ctx context.Context, account string) (*models.Stats, error) {
	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.TxRecord{})
		if account != "" {
			q = q.Where("account = ?", account)
		}
		return q
	}

	stats := &models.Stats{
		ByOperation: make(map[string]int64),
		ByFailure:   make(map[string]int64),
	}

	var byStatus []countRow
	if err := base().Select("status AS name, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	for _, row := range byStatus {
		stats.Total += row.Count
		switch row.Name {
		case models.StatusConfirmed:
			stats.Confirmed = row.Count
		case models.StatusFailed:
			stats.Failed = row.Count
		}
	}

	var byOperation []countRow
	if err := base().Select("operation AS name, COUNT(DISTINCT operation_id) AS count").Group("operation").Scan(&byOperation).Error; err != nil {
		return nil, fmt.Errorf("failed to count by operation: %w", err)
	}
	for _, row := range byOperation {
		stats.ByOperation[row.Name] = row.Count
	}

	var byFailure []countRow
	if err := base().Select("failure_kind AS name, COUNT(*) AS count").
		Where("status = ?", models.StatusFailed).
		Group("failure_kind").Scan(&byFailure).Error; err != nil {
		return nil, fmt.Errorf("failed to count by failure kind: %w", err)
	}
	for _, row := range byFailure {
		stats.ByFailure[row.Name] = row.Count
	}

	return stats, nil
}

func (s *gormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
