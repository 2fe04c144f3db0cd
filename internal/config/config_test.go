// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validConfigJSON = `{
    "rpc_list": [
        "https://rpc.sepolia.org",
        "wss://sepolia.example.org/ws"
    ],
    "chain_id": 11155111,
    "contracts": {
        "borrow_fi": "0x1111111111111111111111111111111111111111",
        "clt_token": "0x2222222222222222222222222222222222222222",
        "borrow_token": "0x3333333333333333333333333333333333333333"
    },
    "keystore_path": "keys/borrower.json",
    "refresh_delay": 2500,
    "debug_logging": true
}`

var invalidConfigJSON = `{
    "rpc_list": [],
    "refresh_delay": -1
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name:    "Valid config",
			content: validConfigJSON,
			check: func(t *testing.T, cfg *Config) {
				assert.Len(t, cfg.RPCList, 2)
				assert.Equal(t, int64(11155111), cfg.ChainID)
				assert.Equal(t, "0x1111111111111111111111111111111111111111", cfg.Contracts.BorrowFi)
				assert.Equal(t, 2500*time.Millisecond, cfg.RefreshDelay)
				assert.True(t, cfg.CanSign())
			},
		},
		{
			name:    "Defaults applied",
			content: validConfigJSON,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultRetries, cfg.Retries)
				assert.Equal(t, DefaultGasLimitMultiplier, cfg.GasLimitMultiplier)
				assert.Equal(t, time.Duration(DefaultConfirmTimeout)*time.Millisecond, cfg.ConfirmTimeout)
				assert.Equal(t, DefaultHistoryDSN, cfg.HistoryDSN)
			},
		},
		{
			name:    "Invalid config - empty required fields",
			content: invalidConfigJSON,
			wantErr: true,
		},
		{
			name: "Invalid contract address",
			content: `{
                "rpc_list": ["https://rpc.example.org"],
                "contracts": {"borrow_fi": "nope", "clt_token": "0x2222222222222222222222222222222222222222", "borrow_token": "0x3333333333333333333333333333333333333333"}
            }`,
			wantErr: true,
		},
		{
			name: "Invalid RPC protocol",
			content: `{
                "rpc_list": ["ftp://rpc.example.org"],
                "contracts": {"borrow_fi": "0x1111111111111111111111111111111111111111", "clt_token": "0x2222222222222222222222222222222222222222", "borrow_token": "0x3333333333333333333333333333333333333333"}
            }`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("DEFILEND_RPC_LIST", " https://a.example.org , ,https://b.example.org")
	t.Setenv("DEFILEND_PRIVATE_KEY", "deadbeef")

	cfg, err := LoadConfig(writeConfig(t, validConfigJSON))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.org", "https://b.example.org"}, cfg.RPCList)
	assert.Equal(t, "deadbeef", cfg.PrivateKey)
}
