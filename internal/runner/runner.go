// internal/runner/runner.go
package runner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/defilend/internal/blockchain/evm"
	"github.com/rovshanmuradov/defilend/internal/config"
	"github.com/rovshanmuradov/defilend/internal/events"
	"github.com/rovshanmuradov/defilend/internal/lending"
	"github.com/rovshanmuradov/defilend/internal/logger"
	"github.com/rovshanmuradov/defilend/internal/monitor"
	"github.com/rovshanmuradov/defilend/internal/storage"
	"github.com/rovshanmuradov/defilend/internal/storage/database"
	"github.com/rovshanmuradov/defilend/internal/transaction"
	"github.com/rovshanmuradov/defilend/internal/wallet"
)

const (
	logBufferSize = 2000
	busBufferSize = 256
)

// Options select how the runner is built.
type Options struct {
	ConfigPath string
	// Account forces a read-only session for this address.
	Account string
	// TUI routes logs to an in-memory buffer instead of the terminal.
	TUI bool
	// NoHistory skips opening the history store.
	NoHistory bool
}

// Runner owns every long-lived component of a session.
type Runner struct {
	Config    *config.Config
	Logger    *zap.Logger
	LogBuffer *logger.LogBuffer
	Pool      *evm.Pool
	ChainID   *big.Int
	Wallet    *wallet.Wallet
	Manager   *transaction.Manager
	Store     storage.Storage
	Bus       *events.Bus
	Lending   *lending.Service
	Monitor   *monitor.PositionMonitor
	Registry  *prometheus.Registry

	shutdown *ShutdownHandler
}

// New loads the configuration and connects every component. On error
// everything opened so far is closed.
func New(ctx context.Context, opts Options) (*Runner, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Account != "" {
		if !common.IsHexAddress(opts.Account) {
			return nil, fmt.Errorf("account %q is not a hex address", opts.Account)
		}
		cfg.Account = opts.Account
	}

	r := &Runner{Config: cfg, Registry: prometheus.NewRegistry()}
	if err := r.initLogger(opts.TUI); err != nil {
		return nil, err
	}
	r.shutdown = NewShutdownHandler(r.Logger, 10*time.Second)

	if err := r.init(ctx, opts); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Runner) initLogger(tui bool) error {
	fileCfg := logger.DefaultFileConfig(r.Config.LogFile)
	if !tui {
		l, err := logger.CreatePrettyLogger(r.Config.DebugLogging, fileCfg)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		r.Logger = l
		return nil
	}

	spill := ""
	if r.Config.LogFile != "" {
		spill = filepath.Join(filepath.Dir(r.Config.LogFile), "tui-overflow.log")
	}
	buf, err := logger.NewLogBuffer(logBufferSize, spill)
	if err != nil {
		return fmt.Errorf("failed to init log buffer: %w", err)
	}
	l, err := logger.CreateTUILogger(r.Config.DebugLogging, buf, fileCfg)
	if err != nil {
		_ = buf.Close()
		return fmt.Errorf("failed to init logger: %w", err)
	}
	r.LogBuffer = buf
	r.Logger = l
	return nil
}

func (r *Runner) init(ctx context.Context, opts Options) error {
	cfg := r.Config
	log := r.Logger

	if r.LogBuffer != nil {
		r.shutdown.Add("log buffer", r.LogBuffer)
	}
	r.shutdown.AddFunc("logger", func() error {
		if err := r.Logger.Sync(); err != nil && !isTerminalSyncError(err) {
			return err
		}
		return nil
	})

	r.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pool, err := evm.Dial(ctx, cfg.RPCList, cfg.RPCTimeout, log)
	if err != nil {
		return err
	}
	r.Pool = pool
	r.shutdown.AddFunc("rpc pool", func() error { pool.Close(); return nil })

	chainID, err := pool.VerifyChainID(ctx, cfg.ChainID)
	if err != nil {
		return fmt.Errorf("chain id check failed: %w", err)
	}
	r.ChainID = chainID
	log.Info("Connected to chain", zap.String("chain_id", chainID.String()), zap.Int("nodes", len(cfg.RPCList)))

	if opts.Account == "" && cfg.CanSign() {
		w, err := loadWallet(cfg)
		if err != nil {
			return err
		}
		r.Wallet = w
		txCfg := transaction.DefaultConfig()
		txCfg.MaxRetries = cfg.Retries
		txCfg.ConfirmationTime = cfg.ConfirmTimeout
		txCfg.GasLimitMultiplier = uint64(cfg.GasLimitMultiplier)
		r.Manager = transaction.NewManager(pool, w, chainID, txCfg, transaction.NewMetrics(r.Registry), log)
	}

	var account common.Address
	switch {
	case r.Wallet != nil:
		account = r.Wallet.Address
	case cfg.Account != "":
		account = common.HexToAddress(cfg.Account)
	default:
		log.Warn("No signer and no account configured, showing the zero address")
	}

	var recorder lending.Recorder
	if !opts.NoHistory && cfg.HistoryDSN != "" {
		store, err := database.NewStorage(cfg.HistoryDSN, log)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		r.Store = store
		r.shutdown.Add("history", store)
		if err := store.RunMigrations(); err != nil {
			return fmt.Errorf("failed to migrate history: %w", err)
		}
		recorder = store
	}

	r.Bus = events.NewBus(log, busBufferSize)
	bus := r.Bus
	r.shutdown.AddFunc("event bus", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return bus.Shutdown(ctx)
	})

	svcCfg := lending.Config{
		Reader: pool,
		Contracts: lending.Addresses{
			BorrowFi:        common.HexToAddress(cfg.Contracts.BorrowFi),
			CollateralToken: common.HexToAddress(cfg.Contracts.CLTToken),
			BorrowToken:     common.HexToAddress(cfg.Contracts.BorrowToken),
		},
		Account:   account,
		Recorder:  recorder,
		Publisher: bus,
		Logger:    log,
	}
	if r.Manager != nil {
		svcCfg.Submitter = r.Manager
	}
	svc, err := lending.NewService(svcCfg)
	if err != nil {
		return err
	}
	r.Lending = svc
	r.Monitor = monitor.NewPositionMonitor(svc, cfg.RefreshDelay, bus, log)

	if svc.ReadOnly() {
		log.Info("Read-only session", zap.String("account", account.Hex()))
	} else {
		log.Info("Signer loaded", zap.String("account", account.Hex()))
	}
	return nil
}

func loadWallet(cfg *config.Config) (*wallet.Wallet, error) {
	if cfg.PrivateKey != "" {
		return wallet.NewWallet(cfg.PrivateKey)
	}
	return wallet.LoadKeystore(cfg.KeystorePath, cfg.KeystorePassword)
}

// ServeMetrics exposes the registry on metrics_addr until ctx ends. It
// returns immediately when no address is configured.
func (r *Runner) ServeMetrics(ctx context.Context) {
	addr := r.Config.MetricsAddr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		r.Logger.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.Logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// Close releases every component.
func (r *Runner) Close() error {
	if r.shutdown == nil {
		return nil
	}
	return r.shutdown.Shutdown(context.Background())
}

func isTerminalSyncError(err error) bool {
	if errors.Is(err, os.ErrInvalid) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}
