package runner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestShutdownClosesInReverseOrderOnce(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), time.Second)

	var order []string
	boom := errors.New("boom")
	sh.AddFunc("first", func() error { order = append(order, "first"); return nil })
	sh.AddFunc("second", func() error { order = append(order, "second"); return boom })
	sh.AddFunc("third", func() error { order = append(order, "third"); return nil })

	err := sh.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"third", "second", "first"}, order)

	require.NoError(t, sh.Shutdown(context.Background()))
	assert.Len(t, order, 3)
}

func TestShutdownTimeout(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), 20*time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	sh.AddFunc("stuck", func() error { <-release; return nil })

	err := sh.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stuck: shutdown timeout")
}

// chainServer answers eth_chainId like a node on chain 1337.
func chainServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if req.Method == "eth_chainId" {
			resp["result"] = "0x539"
		} else {
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, values map[string]interface{}) string {
	dir := t.TempDir()
	base := map[string]interface{}{
		"chain_id": 1337,
		"contracts": map[string]string{
			"borrow_fi":    "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			"clt_token":    "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
			"borrow_token": "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0",
		},
		"account":     "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"log_file":    filepath.Join(dir, "logs", "defilend.log"),
		"history_dsn": filepath.Join(dir, "data", "history.db"),
	}
	for k, v := range values {
		base[k] = v
	}
	raw, err := json.Marshal(base)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestNewReadOnlySession(t *testing.T) {
	srv := chainServer(t)
	path := writeConfig(t, map[string]interface{}{"rpc_list": []string{srv.URL}})

	r, err := New(context.Background(), Options{ConfigPath: path, TUI: true})
	require.NoError(t, err)

	assert.Equal(t, int64(1337), r.ChainID.Int64())
	assert.True(t, r.Lending.ReadOnly())
	assert.Nil(t, r.Manager)
	assert.NotNil(t, r.Store)
	assert.NotNil(t, r.LogBuffer)
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", r.Lending.Account().Hex())

	require.NoError(t, r.Close())
}

func TestNewWithSignerAndAccountOverride(t *testing.T) {
	srv := chainServer(t)
	path := writeConfig(t, map[string]interface{}{
		"rpc_list":    []string{srv.URL},
		"private_key": "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	})

	r, err := New(context.Background(), Options{ConfigPath: path, TUI: true, NoHistory: true})
	require.NoError(t, err)
	assert.False(t, r.Lending.ReadOnly())
	assert.NotNil(t, r.Manager)
	assert.Nil(t, r.Store)
	require.NoError(t, r.Close())

	override := "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
	r, err = New(context.Background(), Options{ConfigPath: path, TUI: true, NoHistory: true, Account: override})
	require.NoError(t, err)
	assert.True(t, r.Lending.ReadOnly())
	assert.Equal(t, override, r.Lending.Account().Hex())
	require.NoError(t, r.Close())
}

func TestNewWithoutSignerOrAccountUsesZeroAddress(t *testing.T) {
	srv := chainServer(t)
	path := writeConfig(t, map[string]interface{}{"rpc_list": []string{srv.URL}, "account": ""})

	r, err := New(context.Background(), Options{ConfigPath: path, TUI: true, NoHistory: true})
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, r.Lending.Account())
	assert.True(t, r.Lending.ReadOnly())
	assert.Nil(t, r.Wallet)
	require.NoError(t, r.Close())
}

func TestNewChainIDMismatch(t *testing.T) {
	srv := chainServer(t)
	path := writeConfig(t, map[string]interface{}{"rpc_list": []string{srv.URL}, "chain_id": 1})

	_, err := New(context.Background(), Options{ConfigPath: path, TUI: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain id check failed")
}

func TestNewRejectsBadAccountOverride(t *testing.T) {
	srv := chainServer(t)
	path := writeConfig(t, map[string]interface{}{"rpc_list": []string{srv.URL}})

	_, err := New(context.Background(), Options{ConfigPath: path, Account: "nope"})
	assert.Error(t, err)
}
