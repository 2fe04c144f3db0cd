// internal/lending/service.go
package lending

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/defilend/internal/blockchain"
	"github.com/rovshanmuradov/defilend/internal/contracts"
	"github.com/rovshanmuradov/defilend/internal/domain"
	"github.com/rovshanmuradov/defilend/internal/events"
	"github.com/rovshanmuradov/defilend/internal/health"
	"github.com/rovshanmuradov/defilend/internal/storage/models"
	"github.com/rovshanmuradov/defilend/internal/transaction"
	"github.com/rovshanmuradov/defilend/internal/units"
)

// Submitter signs and submits transactions for one account.
type Submitter interface {
	Submit(ctx context.Context, req transaction.Request) transaction.Result
	From() common.Address
}

// Recorder persists submitted steps.
type Recorder interface {
	SaveTransaction(ctx context.Context, rec *models.TxRecord) error
}

// Addresses of the three protocol contracts.
type Addresses struct {
	BorrowFi        common.Address
	CollateralToken common.Address
	BorrowToken     common.Address
}

// Config wires a Service. Submitter nil makes the session read-only, in
// which case Account selects the address to display.
type Config struct {
	Reader    blockchain.Reader
	Contracts Addresses
	Account   common.Address
	Submitter Submitter
	Recorder  Recorder
	Publisher events.Publisher
	Logger    *zap.Logger
}

// Service reads the account position and runs the four lending actions.
type Service struct {
	pool       *contracts.BorrowFi
	collateral *contracts.ERC20
	borrow     *contracts.ERC20
	account    common.Address
	submitter  Submitter
	recorder   Recorder
	publisher  events.Publisher
	logger     *zap.Logger
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Reader == nil {
		return nil, errors.New("reader is required")
	}
	zero := common.Address{}
	if cfg.Contracts.BorrowFi == zero || cfg.Contracts.CollateralToken == zero || cfg.Contracts.BorrowToken == zero {
		return nil, errors.New("all contract addresses are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	account := cfg.Account
	if cfg.Submitter != nil {
		account = cfg.Submitter.From()
	}

	return &Service{
		pool:       contracts.NewBorrowFi(cfg.Contracts.BorrowFi, cfg.Reader),
		collateral: contracts.NewERC20(cfg.Contracts.CollateralToken, "CLT", cfg.Reader),
		borrow:     contracts.NewERC20(cfg.Contracts.BorrowToken, "BFI", cfg.Reader),
		account:    account,
		submitter:  cfg.Submitter,
		recorder:   cfg.Recorder,
		publisher:  cfg.Publisher,
		logger:     logger.Named("lending"),
	}, nil
}

// Account is the address positions are read for.
func (s *Service) Account() common.Address {
	return s.account
}

// ReadOnly reports whether write operations are unavailable.
func (s *Service) ReadOnly() bool {
	return s.submitter == nil
}

// Snapshot reads the account position and protocol totals concurrently.
func (s *Service) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	snap := domain.Snapshot{
		Account:  s.account,
		ReadOnly: s.ReadOnly(),
	}
	user := s.account
	poolAddr := s.pool.Address

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(6)

	read := func(name string, dst **big.Int, fn func(context.Context) (*big.Int, error)) {
		g.Go(func() error {
			v, err := fn(gctx)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			*dst = v
			return nil
		})
	}

	read("collateral", &snap.Collateral, func(ctx context.Context) (*big.Int, error) { return s.pool.CollateralOf(ctx, user) })
	read("loan", &snap.Loan, func(ctx context.Context) (*big.Int, error) { return s.pool.LoanOf(ctx, user) })
	read("CLT balance", &snap.CollateralBalance, func(ctx context.Context) (*big.Int, error) { return s.collateral.BalanceOf(ctx, user) })
	read("BFI balance", &snap.BorrowBalance, func(ctx context.Context) (*big.Int, error) { return s.borrow.BalanceOf(ctx, user) })
	read("available borrow", &snap.AvailableBorrow, func(ctx context.Context) (*big.Int, error) { return s.borrow.BalanceOf(ctx, poolAddr) })
	read("residual collateral", &snap.ResidualCollateral, func(ctx context.Context) (*big.Int, error) { return s.collateral.BalanceOf(ctx, poolAddr) })
	read("total borrowed", &snap.TotalBorrowed, s.pool.TotalBorrowed)
	read("total collateral", &snap.TotalCollateral, s.pool.TotalCollateral)
	read("CLT allowance", &snap.CollateralAllowance, func(ctx context.Context) (*big.Int, error) { return s.collateral.Allowance(ctx, user, poolAddr) })
	read("BFI allowance", &snap.BorrowAllowance, func(ctx context.Context) (*big.Int, error) { return s.borrow.Allowance(ctx, user, poolAddr) })

	// getLTC and isHealthy revert for accounts without a position
	g.Go(func() error {
		ltc, err := s.pool.GetLTC(gctx, user)
		if err != nil {
			s.logger.Debug("getLTC unavailable", zap.Error(err))
			return nil
		}
		snap.LTC = ltc
		return nil
	})
	g.Go(func() error {
		ok, err := s.pool.IsHealthy(gctx, user)
		if err != nil {
			s.logger.Debug("isHealthy unavailable", zap.Error(err))
			return nil
		}
		snap.ContractHealthy = ok
		snap.ContractHealthKnown = true
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.Snapshot{}, err
	}

	snap.SimulatedHealthy = health.IsHealthy(snap.Loan, snap.Collateral)
	if ratio, ok := health.Ratio(snap.Loan, snap.Collateral); ok {
		snap.SimulatedRatio = ratio
	}
	snap.FetchedAt = time.Now()
	return snap, nil
}

// Execute runs op for amount.
func (s *Service) Execute(ctx context.Context, op domain.Operation, amount *big.Int) domain.Outcome {
	switch op {
	case domain.OpAddCollateral:
		return s.AddCollateral(ctx, amount)
	case domain.OpBorrow:
		return s.Borrow(ctx, amount)
	case domain.OpRepay:
		return s.Repay(ctx, amount)
	case domain.OpWithdrawCollateral:
		return s.WithdrawCollateral(ctx, amount)
	}
	o := s.begin(op, amount)
	return s.abort(ctx, o, transaction.KindInvalidRequest, fmt.Errorf("unknown operation %q", op))
}

// AddCollateral deposits CLT, approving the pool for exactly amount first
// when the current allowance is lower. The wallet balance is checked before
// anything is submitted, so unlike the web dApp a short balance never costs
// an approval transaction.
func (s *Service) AddCollateral(ctx context.Context, amount *big.Int) domain.Outcome {
	o := s.begin(domain.OpAddCollateral, amount)
	if kind, err := s.precheck(amount); err != nil {
		return s.abort(ctx, o, kind, err)
	}
	s.started(o)

	balance, err := s.collateral.BalanceOf(ctx, s.account)
	if err != nil {
		return s.abort(ctx, o, domain.KindPrecheckFailed, fmt.Errorf("failed to read CLT balance: %w", err))
	}
	if balance.Cmp(amount) < 0 {
		return s.abort(ctx, o, domain.KindInsufficientBalance, fmt.Errorf("%w: have %s CLT, need %s",
			domain.ErrInsufficientBalance, units.FormatEther(balance), units.FormatEther(amount)))
	}

	if !s.ensureAllowance(ctx, &o, s.collateral, amount) {
		return s.finish(ctx, o)
	}

	data, err := s.pool.AddCollateralData(amount)
	if err != nil {
		return s.abort(ctx, o, transaction.KindInvalidRequest, err)
	}
	s.step(ctx, &o, string(domain.OpAddCollateral), s.pool.Address, data)
	return s.finish(ctx, o)
}

// Borrow draws amount BFI against the deposited collateral.
func (s *Service) Borrow(ctx context.Context, amount *big.Int) domain.Outcome {
	return s.single(ctx, domain.OpBorrow, amount, s.pool.BorrowData)
}

// WithdrawCollateral returns amount CLT to the wallet.
func (s *Service) WithdrawCollateral(ctx context.Context, amount *big.Int) domain.Outcome {
	return s.single(ctx, domain.OpWithdrawCollateral, amount, s.pool.WithdrawCollateralData)
}

// Repay pays back amount BFI, approving the pool first when needed.
func (s *Service) Repay(ctx context.Context, amount *big.Int) domain.Outcome {
	o := s.begin(domain.OpRepay, amount)
	if kind, err := s.precheck(amount); err != nil {
		return s.abort(ctx, o, kind, err)
	}
	s.started(o)

	if !s.ensureAllowance(ctx, &o, s.borrow, amount) {
		return s.finish(ctx, o)
	}

	data, err := s.pool.RepayData(amount)
	if err != nil {
		return s.abort(ctx, o, transaction.KindInvalidRequest, err)
	}
	s.step(ctx, &o, string(domain.OpRepay), s.pool.Address, data)
	return s.finish(ctx, o)
}

func (s *Service) single(ctx context.Context, op domain.Operation, amount *big.Int, pack func(*big.Int) ([]byte, error)) domain.Outcome {
	o := s.begin(op, amount)
	if kind, err := s.precheck(amount); err != nil {
		return s.abort(ctx, o, kind, err)
	}
	s.started(o)

	data, err := pack(amount)
	if err != nil {
		return s.abort(ctx, o, transaction.KindInvalidRequest, err)
	}
	s.step(ctx, &o, string(op), s.pool.Address, data)
	return s.finish(ctx, o)
}

// ensureAllowance approves exactly amount when the allowance is short and
// reports whether the operation may continue.
func (s *Service) ensureAllowance(ctx context.Context, o *domain.Outcome, token *contracts.ERC20, amount *big.Int) bool {
	allowance, err := token.Allowance(ctx, s.account, s.pool.Address)
	if err != nil {
		o.Err = fmt.Errorf("failed to read %s allowance: %w", token.Symbol, err)
		o.ErrKind = domain.KindPrecheckFailed
		return false
	}
	if allowance.Cmp(amount) >= 0 {
		return true
	}

	s.logger.Info("Approval required",
		zap.String("token", token.Symbol),
		zap.String("amount", units.FormatEther(amount)),
		zap.String("allowance", units.FormatEther(allowance)))

	data, err := token.ApproveData(s.pool.Address, amount)
	if err != nil {
		o.Err = err
		o.ErrKind = transaction.KindInvalidRequest
		return false
	}
	return s.step(ctx, o, "approve", token.Address, data).OK()
}

func (s *Service) begin(op domain.Operation, amount *big.Int) domain.Outcome {
	return domain.Outcome{
		ID:        uuid.NewString(),
		Operation: op,
		Amount:    amount,
		StartedAt: time.Now(),
	}
}

func (s *Service) precheck(amount *big.Int) (transaction.FailureKind, error) {
	if s.submitter == nil {
		return domain.KindReadOnly, domain.ErrReadOnly
	}
	if amount == nil || amount.Sign() <= 0 {
		return transaction.KindInvalidRequest, units.ErrZeroAmount
	}
	return transaction.KindNone, nil
}

func (s *Service) started(o domain.Outcome) {
	s.publish(events.OperationStartedEvent{
		BaseEvent:   events.NewBase(events.OperationStarted),
		OperationID: o.ID,
		Operation:   o.Operation,
		Account:     s.account,
		Amount:      o.Amount,
	})
}

// step submits one transaction and records it.
func (s *Service) step(ctx context.Context, o *domain.Outcome, label string, to common.Address, data []byte) transaction.Result {
	op := o.Operation
	id := o.ID
	result := s.submitter.Submit(ctx, transaction.Request{
		Label: label,
		To:    to,
		Data:  data,
		OnSent: func(hash common.Hash) {
			s.publish(events.TxSubmittedEvent{
				BaseEvent:   events.NewBase(events.TxSubmitted),
				OperationID: id,
				Operation:   op,
				Step:        label,
				TxHash:      hash,
			})
		},
	})
	o.Steps = append(o.Steps, result)

	if result.OK() {
		s.publish(events.TxConfirmedEvent{BaseEvent: events.NewBase(events.TxConfirmed), OperationID: id, Operation: op, Result: result})
	} else {
		s.publish(events.TxFailedEvent{BaseEvent: events.NewBase(events.TxFailed), OperationID: id, Operation: op, Result: result})
	}
	s.record(ctx, *o, result)
	return result
}

// abort ends an operation that failed before or between submissions.
func (s *Service) abort(ctx context.Context, o domain.Outcome, kind transaction.FailureKind, err error) domain.Outcome {
	o.Err = err
	o.ErrKind = kind
	return s.finish(ctx, o)
}

func (s *Service) finish(ctx context.Context, o domain.Outcome) domain.Outcome {
	o.EndedAt = time.Now()

	if o.Err != nil {
		s.record(ctx, o, transaction.Result{
			Label:       "precheck",
			Kind:        o.ErrKind,
			Err:         o.Err,
			SubmittedAt: o.StartedAt,
			FinishedAt:  o.EndedAt,
		})
	}

	if o.OK() {
		s.logger.Info("Operation completed",
			zap.String("operation", o.Operation.Title()),
			zap.String("amount", units.FormatEther(o.Amount)),
			zap.Int("steps", len(o.Steps)))
		s.publish(events.OperationCompletedEvent{BaseEvent: events.NewBase(events.OperationCompleted), Outcome: o})
		return o
	}

	s.logger.Warn("Operation failed",
		zap.String("operation", o.Operation.Title()),
		zap.String("kind", string(o.Kind())),
		zap.Error(o.Error()))
	s.publish(events.OperationFailedEvent{BaseEvent: events.NewBase(events.OperationFailed), Outcome: o})
	return o
}

func (s *Service) record(ctx context.Context, o domain.Outcome, r transaction.Result) {
	if s.recorder == nil {
		return
	}
	rec := &models.TxRecord{
		OperationID: o.ID,
		Operation:   string(o.Operation),
		Step:        r.Label,
		Account:     s.account.Hex(),
		Amount:      amountString(o.Amount),
		Status:      models.StatusConfirmed,
		GasUsed:     r.GasUsed,
		Block:       r.Block,
		DurationMs:  r.Duration().Milliseconds(),
	}
	if r.TxHash != (common.Hash{}) {
		rec.TxHash = r.TxHash.Hex()
	}
	if !r.OK() {
		rec.Status = models.StatusFailed
		rec.FailureKind = string(r.Kind)
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
	}

	// history must not be lost to a canceled user action
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.recorder.SaveTransaction(saveCtx, rec); err != nil {
		s.logger.Warn("Failed to record transaction", zap.String("step", r.Label), zap.Error(err))
	}
}

func (s *Service) publish(e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(e); err != nil {
		s.logger.Debug("Event not published", zap.String("event_type", string(e.Type())), zap.Error(err))
	}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
