// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Contracts holds the deployed protocol addresses.
type Contracts struct {
	BorrowFi    string `mapstructure:"borrow_fi"`
	CLTToken    string `mapstructure:"clt_token"`
	BorrowToken string `mapstructure:"borrow_token"`
}

type Config struct {
	RPCList            []string  `mapstructure:"rpc_list"`
	ChainID            int64     `mapstructure:"chain_id"`
	Contracts          Contracts `mapstructure:"contracts"`
	KeystorePath       string    `mapstructure:"keystore_path"`
	KeystorePassword   string    `mapstructure:"keystore_password"`
	PrivateKey         string    `mapstructure:"private_key"`
	Account            string    `mapstructure:"account"`
	RefreshDelayMS     int       `mapstructure:"refresh_delay"`
	RPCTimeoutMS       int       `mapstructure:"rpc_timeout"`
	ConfirmTimeoutMS   int       `mapstructure:"confirm_timeout"`
	Retries            int       `mapstructure:"retries"`
	GasLimitMultiplier int       `mapstructure:"gas_limit_multiplier"`
	DebugLogging       bool      `mapstructure:"debug_logging"`
	LogFile            string    `mapstructure:"log_file"`
	HistoryDSN         string    `mapstructure:"history_dsn"`
	MetricsAddr        string    `mapstructure:"metrics_addr"`

	RefreshDelay   time.Duration `mapstructure:"-"`
	RPCTimeout     time.Duration `mapstructure:"-"`
	ConfirmTimeout time.Duration `mapstructure:"-"`
}

const (
	DefaultRefreshDelay       = 4000
	DefaultRPCTimeout         = 10000
	DefaultConfirmTimeout     = 120000
	DefaultRetries            = 3
	DefaultGasLimitMultiplier = 120
	DefaultLogFile            = "logs/defilend.log"
	DefaultHistoryDSN         = "data/history.db"

	envPrefix = "DEFILEND"
)

// LoadConfig reads configuration from path, applies defaults and DEFILEND_* overrides, and validates it.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"refresh_delay":        DefaultRefreshDelay,
		"rpc_timeout":          DefaultRPCTimeout,
		"confirm_timeout":      DefaultConfirmTimeout,
		"retries":              DefaultRetries,
		"gas_limit_multiplier": DefaultGasLimitMultiplier,
		"log_file":             DefaultLogFile,
		"history_dsn":          DefaultHistoryDSN,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	loadEnvironmentVariables(v, &cfg)

	cfg.RefreshDelay = time.Duration(cfg.RefreshDelayMS) * time.Millisecond
	cfg.RPCTimeout = time.Duration(cfg.RPCTimeoutMS) * time.Millisecond
	cfg.ConfirmTimeout = time.Duration(cfg.ConfirmTimeoutMS) * time.Millisecond

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CanSign reports whether a signer source is configured.
func (c *Config) CanSign() bool {
	return c.PrivateKey != "" || c.KeystorePath != ""
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http", "ws"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if cfg.ChainID < 0 {
		return errors.New("invalid chain_id")
	}

	addrs := map[string]string{
		"contracts.borrow_fi":    cfg.Contracts.BorrowFi,
		"contracts.clt_token":    cfg.Contracts.CLTToken,
		"contracts.borrow_token": cfg.Contracts.BorrowToken,
	}
	for key, addr := range addrs {
		if addr == "" {
			return fmt.Errorf("missing %s in configuration", key)
		}
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a hex address", key)
		}
	}
	if cfg.Account != "" && !common.IsHexAddress(cfg.Account) {
		return errors.New("account is not a hex address")
	}

	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.RefreshDelayMS <= 0 {
		return errors.New("invalid refresh_delay")
	}
	if cfg.RPCTimeoutMS <= 0 {
		return errors.New("invalid rpc_timeout")
	}
	if cfg.ConfirmTimeoutMS <= 0 {
		return errors.New("invalid confirm_timeout")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.GasLimitMultiplier < 100 {
		return errors.New("gas_limit_multiplier must be at least 100")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocols ...string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	for _, protocol := range protocols {
		if strings.HasPrefix(parsed.Scheme, protocol) {
			urlCache.Store(rawURL, parsed)
			return nil
		}
	}
	return errors.New("invalid URL protocol")
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envKey := v.GetString("PRIVATE_KEY"); envKey != "" {
		cfg.PrivateKey = envKey
	}
	if envPass := v.GetString("KEYSTORE_PASSWORD"); envPass != "" {
		cfg.KeystorePassword = envPass
	}

	envRPCList := v.GetString("RPC_LIST")
	if envRPCList != "" {
		var cleanRPCs []string
		for _, rpc := range strings.Split(envRPCList, ",") {
			clean := strings.TrimSpace(rpc)
			if clean != "" {
				cleanRPCs = append(cleanRPCs, clean)
			}
		}
		if len(cleanRPCs) > 0 {
			cfg.RPCList = cleanRPCs
		}
	}
}
