package cli

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/defilend/internal/domain"
	"github.com/rovshanmuradov/defilend/internal/events"
	"github.com/rovshanmuradov/defilend/internal/storage/models"
	"github.com/rovshanmuradov/defilend/internal/transaction"
	"github.com/rovshanmuradov/defilend/internal/units"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHealthCommand(t *testing.T) {
	out, err := runCmd(t, "health", "80", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "● Healthy")
	assert.Contains(t, out, "80.00%")
	assert.Contains(t, out, "threshold: 70.00%")

	out, err = runCmd(t, "health", "1", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "● Unhealthy")
	assert.Contains(t, out, "50.00%")
}

func TestHealthCommandZeroCollateral(t *testing.T) {
	out, err := runCmd(t, "health", "5", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "● Unhealthy")
	assert.Contains(t, out, "ratio:     n/a")
}

func TestHealthCommandRejectsBadInput(t *testing.T) {
	_, err := runCmd(t, "health", "abc", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, units.ErrInvalidAmount)

	_, err = runCmd(t, "health", "1")
	require.Error(t, err)
}

func TestActionCommandValidatesAmountBeforeConnecting(t *testing.T) {
	_, err := runCmd(t, "borrow", "0", "--config", "does-not-exist.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, units.ErrZeroAmount)

	_, err = runCmd(t, "repay", "1.2.3", "--config", "does-not-exist.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, units.ErrInvalidAmount)
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := runCmd(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"status", "health", "add-collateral", "borrow", "repay", "withdraw", "history", "export", "tui"} {
		assert.Contains(t, out, name)
	}
}

func TestFilterFlags(t *testing.T) {
	f := filterFlags{operation: "withdraw", status: models.StatusFailed, since: time.Hour}
	filter, err := f.filter("0xabc")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", filter.Account)
	assert.Equal(t, string(domain.OpWithdrawCollateral), filter.Operation)
	assert.Equal(t, models.StatusFailed, filter.Status)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), filter.From, time.Minute)

	_, err = (&filterFlags{status: "pending"}).filter("")
	require.Error(t, err)
	_, err = (&filterFlags{operation: "swap"}).filter("")
	require.Error(t, err)
}

type fakeExecutor struct {
	bus     *events.Bus
	outcome domain.Outcome
}

func (f *fakeExecutor) Execute(ctx context.Context, op domain.Operation, amount *big.Int) domain.Outcome {
	for _, s := range f.outcome.Steps {
		_ = f.bus.PublishSync(ctx, events.TxSubmittedEvent{
			BaseEvent: events.NewBase(events.TxSubmitted),
			Operation: op,
			Step:      s.Label,
			TxHash:    s.TxHash,
		})
	}
	return f.outcome
}

func TestRunActionPrintsProgressAndOutcome(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t), 8)
	defer bus.Shutdown(context.Background())

	start := time.Now()
	exec := &fakeExecutor{bus: bus, outcome: domain.Outcome{
		Operation: domain.OpRepay,
		Steps: []transaction.Result{
			{Label: "approve", TxHash: common.HexToHash("0x01"), Block: 10, GasUsed: 46000},
			{Label: "repay", TxHash: common.HexToHash("0x02"), Block: 11, GasUsed: 61000},
		},
		StartedAt: start,
		EndedAt:   start.Add(1500 * time.Millisecond),
	}}

	amount, _ := units.ParseEther("2.5")
	var out bytes.Buffer
	require.NoError(t, runAction(context.Background(), &out, exec, bus, domain.OpRepay, amount))

	s := out.String()
	assert.Contains(t, s, "● Repay 2.5 BFI")
	assert.Contains(t, s, "• approve sent "+common.HexToHash("0x01").Hex())
	assert.Contains(t, s, "• repay sent "+common.HexToHash("0x02").Hex())
	assert.Contains(t, s, "✔ approve confirmed in block 10, gas 46000")
	assert.Contains(t, s, "✔ Repay completed in 1.5s")
}

func TestRunActionFailure(t *testing.T) {
	exec := &fakeExecutor{outcome: domain.Outcome{
		Operation: domain.OpBorrow,
		Steps: []transaction.Result{
			{Label: "borrow", Kind: transaction.KindReverted, Err: errors.New("execution reverted")},
		},
	}}
	exec.bus = events.NewBus(zaptest.NewLogger(t), 8)
	defer exec.bus.Shutdown(context.Background())

	var out bytes.Buffer
	err := runAction(context.Background(), &out, exec, nil, domain.OpBorrow, big.NewInt(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrActionFailed)
	assert.Contains(t, err.Error(), "reverted")
	assert.Contains(t, out.String(), "✘ borrow reverted: execution reverted")
}

func TestPrintOutcomeBeforeSubmission(t *testing.T) {
	var out bytes.Buffer
	err := printOutcome(&out, domain.Outcome{
		Operation: domain.OpWithdrawCollateral,
		Err:       domain.ErrReadOnly,
		ErrKind:   domain.KindReadOnly,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrActionFailed)
	assert.Contains(t, err.Error(), string(domain.KindReadOnly))
	assert.Empty(t, out.String())
}

func TestPrintRecordsAndStats(t *testing.T) {
	var out bytes.Buffer
	printRecords(&out, nil)
	assert.Contains(t, out.String(), "No transactions recorded")

	out.Reset()
	rec := &models.TxRecord{Operation: "borrow", Step: "borrow", Amount: "1500000000000000000", Status: models.StatusConfirmed, TxHash: "0xdead"}
	printRecords(&out, []*models.TxRecord{rec})
	assert.Contains(t, out.String(), "1.5")
	assert.Contains(t, out.String(), "0xdead")

	out.Reset()
	printStats(&out, &models.Stats{Total: 3, Confirmed: 2, Failed: 1,
		ByOperation: map[string]int64{"repay": 1, "borrow": 2},
		ByFailure:   map[string]int64{"reverted": 1}})
	s := out.String()
	assert.Contains(t, s, "● 3 transactions: 2 confirmed, 1 failed")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("borrow")), bytes.Index(out.Bytes(), []byte("repay")))
	assert.Contains(t, s, "failure reverted")
}
