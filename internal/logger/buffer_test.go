package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogBufferConcurrentAccess(t *testing.T) {
	spillFile := filepath.Join(t.TempDir(), "test_spill.log")

	buffer, err := NewLogBuffer(100, spillFile)
	require.NoError(t, err)

	var wg sync.WaitGroup
	numGoroutines := 10
	logsPerGoroutine := 100

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < logsPerGoroutine; j++ {
				fields := map[string]interface{}{"goroutine": id, "iteration": j}
				if err := buffer.Add("info", fmt.Sprintf("Log from goroutine %d, iteration %d", id, j), fields); err != nil {
					t.Errorf("Failed to add log: %v", err)
				}
			}
		}(i)
	}

	go func() {
		for i := 0; i < 50; i++ {
			_ = buffer.GetRecentLogs(10)
			_, _ = buffer.GetStats()
		}
	}()

	wg.Wait()
	require.NoError(t, buffer.Flush())

	total, spilled := buffer.GetStats()
	assert.Equal(t, uint64(numGoroutines*logsPerGoroutine), total)
	assert.Equal(t, total-100, spilled)
	assert.Len(t, buffer.GetRecentLogs(0), 100)

	require.NoError(t, buffer.Close())

	f, err := os.Open(spillFile)
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, numGoroutines*logsPerGoroutine, lines)
}

func TestGetRecentLogsOrder(t *testing.T) {
	buffer, err := NewLogBuffer(3, "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, buffer.Add("info", fmt.Sprintf("m%d", i), nil))
	}

	logs := buffer.GetRecentLogs(0)
	require.Len(t, logs, 3)
	assert.Equal(t, "m2", logs[0].Message)
	assert.Equal(t, "m4", logs[2].Message)

	logs = buffer.GetRecentLogs(2)
	require.Len(t, logs, 2)
	assert.Equal(t, "m3", logs[0].Message)
	assert.Equal(t, "m4", logs[1].Message)
}

func TestTUILoggerWritesToBuffer(t *testing.T) {
	buffer, err := NewLogBuffer(10, "")
	require.NoError(t, err)

	log, err := CreateTUILogger(false, buffer, FileConfig{})
	require.NoError(t, err)

	log.Named("tx-manager").Info("Transaction sent", zap.String("tx_hash", "0xabc"))
	log.Debug("hidden at info level")

	logs := buffer.GetRecentLogs(0)
	require.Len(t, logs, 1)
	assert.Equal(t, "info", logs[0].Level)
	assert.Equal(t, "tx-manager", logs[0].Logger)
	assert.Equal(t, "Transaction sent", logs[0].Message)
	assert.Equal(t, "0xabc", logs[0].Fields["tx_hash"])
	assert.False(t, logs[0].Timestamp.IsZero())
}

func TestCreateTUILoggerRequiresBuffer(t *testing.T) {
	_, err := CreateTUILogger(true, nil, FileConfig{})
	assert.Error(t, err)
}

func TestFormatMessage(t *testing.T) {
	msg := FormatMessage("Transaction failed", []zap.Field{
		zap.String("label", "borrow"),
		zap.String("kind", "reverted"),
		zap.Error(fmt.Errorf("execution reverted")),
	})
	assert.Contains(t, msg, "borrow failed (reverted): execution reverted")

	assert.Equal(t, "plain", FormatMessage("plain", nil))
}
