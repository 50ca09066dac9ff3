package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/memed/arena/pkg/logger"
)

// Refresh policies.
const (
	PolicyInterval = "interval"
	PolicyBlock    = "block"
)

// DefaultCreationFeeWei is 0.0002 BNB.
const DefaultCreationFeeWei = "200000000000000"

type ChainConfig struct {
	RPCURL         string `yaml:"rpc_url"`
	ChainID        int64  `yaml:"chain_id"` // 0 asks the node
	BattleAddress  string `yaml:"battle_address"`
	FactoryAddress string `yaml:"factory_address"`
}

type BattleConfig struct {
	CreationFeeWei   string `yaml:"creation_fee_wei"`
	MinSupply        string `yaml:"min_supply"` // wei; 0 disables the supply pre-check
	LeaderboardLimit int    `yaml:"leaderboard_limit"`
}

type RefreshConfig struct {
	Policy        string        `yaml:"policy"`
	Interval      time.Duration `yaml:"interval"`
	RPCRatePerSec int           `yaml:"rpc_rate_per_sec"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type WalletConfig struct {
	PrivateKey     string `yaml:"private_key"`
	Mnemonic       string `yaml:"mnemonic"`
	DerivationPath string `yaml:"derivation_path"`
	SecretDB       string `yaml:"secret_db"`
	SecretKey      string `yaml:"secret_key"` // 32 bytes hex/base64, encrypts SecretDB
}

type ServerConfig struct {
	Listen         string   `yaml:"listen"`
	DBPath         string   `yaml:"db_path"`
	TmpDir         string   `yaml:"tmp_dir"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
	UploadsPerMin  int      `yaml:"uploads_per_min"`
	CommentsPerMin int      `yaml:"comments_per_min"`
	CORSOrigins    []string `yaml:"cors_origins"`
}

type PinataConfig struct {
	JWT     string        `yaml:"jwt"`
	APIURL  string        `yaml:"api_url"`
	Gateway string        `yaml:"gateway"`
	Timeout time.Duration `yaml:"timeout"`
}

// Config is the full arena configuration.
type Config struct {
	Chain   ChainConfig   `yaml:"chain"`
	Battle  BattleConfig  `yaml:"battle"`
	Refresh RefreshConfig `yaml:"refresh"`
	Cache   CacheConfig   `yaml:"cache"`
	Wallet  WalletConfig  `yaml:"wallet"`
	Server  ServerConfig  `yaml:"server"`
	Pinata  PinataConfig  `yaml:"pinata"`
	Log     logger.Config `yaml:"log"`
}

// Default returns a config with every default filled in.
func Default() *Config {
	return &Config{
		Chain: ChainConfig{RPCURL: "https://bsc-dataseed.bnbchain.org"},
		Battle: BattleConfig{
			CreationFeeWei:   DefaultCreationFeeWei,
			MinSupply:        "0",
			LeaderboardLimit: 10,
		},
		Refresh: RefreshConfig{Policy: PolicyBlock, Interval: 3 * time.Second, RPCRatePerSec: 10},
		Cache:   CacheConfig{TTL: 15 * time.Second},
		Wallet:  WalletConfig{DerivationPath: "m/44'/60'/0'/0/0"},
		Server: ServerConfig{
			Listen:         ":3001",
			DBPath:         "data/arena.db",
			TmpDir:         os.TempDir(),
			MaxUploadMB:    10,
			UploadsPerMin:  30,
			CommentsPerMin: 120,
			CORSOrigins:    []string{"*"},
		},
		Pinata: PinataConfig{
			APIURL:  "https://api.pinata.cloud",
			Gateway: "gateway.pinata.cloud",
			Timeout: 60 * time.Second,
		},
		Log: logger.Config{Level: "info", MaxSize: 100, MaxBackups: 3, MaxAge: 7, Compress: true},
	}
}

// Load reads an optional YAML file over the defaults and then applies
// ARENA_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadConfigFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
	default:
		return fmt.Errorf("unsupported config format %q (want .yaml or .yml)", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Chain.RPCURL = getEnv("ARENA_RPC_URL", c.Chain.RPCURL)
	c.Chain.ChainID = int64(parseIntEnv("ARENA_CHAIN_ID", int(c.Chain.ChainID)))
	c.Chain.BattleAddress = getEnv("ARENA_BATTLE_ADDRESS", c.Chain.BattleAddress)
	c.Chain.FactoryAddress = getEnv("ARENA_FACTORY_ADDRESS", c.Chain.FactoryAddress)

	c.Battle.CreationFeeWei = getEnv("ARENA_CREATION_FEE_WEI", c.Battle.CreationFeeWei)
	c.Battle.MinSupply = getEnv("ARENA_MIN_SUPPLY", c.Battle.MinSupply)
	c.Battle.LeaderboardLimit = parseIntEnv("ARENA_LEADERBOARD_LIMIT", c.Battle.LeaderboardLimit)

	c.Refresh.Policy = getEnv("ARENA_REFRESH_POLICY", c.Refresh.Policy)
	c.Refresh.Interval = parseDurationEnv("ARENA_REFRESH_INTERVAL", c.Refresh.Interval)
	c.Refresh.RPCRatePerSec = parseIntEnv("ARENA_RPC_RATE_PER_SEC", c.Refresh.RPCRatePerSec)
	c.Cache.TTL = parseDurationEnv("ARENA_CACHE_TTL", c.Cache.TTL)

	c.Wallet.PrivateKey = getEnv("ARENA_PRIVATE_KEY", c.Wallet.PrivateKey)
	c.Wallet.Mnemonic = getEnv("ARENA_MNEMONIC", c.Wallet.Mnemonic)
	c.Wallet.DerivationPath = getEnv("ARENA_DERIVATION_PATH", c.Wallet.DerivationPath)
	c.Wallet.SecretDB = getEnv("ARENA_SECRET_DB", c.Wallet.SecretDB)
	c.Wallet.SecretKey = getEnv("ARENA_SECRET_KEY", c.Wallet.SecretKey)

	c.Server.Listen = getEnv("ARENA_LISTEN", c.Server.Listen)
	c.Server.DBPath = getEnv("ARENA_DB_PATH", c.Server.DBPath)
	c.Server.TmpDir = getEnv("ARENA_TMP_DIR", c.Server.TmpDir)
	c.Server.MaxUploadMB = parseIntEnv("ARENA_MAX_UPLOAD_MB", c.Server.MaxUploadMB)
	if v := os.Getenv("ARENA_CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	c.Pinata.JWT = getEnv("ARENA_PINATA_JWT", getEnv("PINATA_JWT", c.Pinata.JWT))
	c.Pinata.APIURL = getEnv("ARENA_PINATA_API_URL", c.Pinata.APIURL)
	c.Pinata.Gateway = getEnv("ARENA_PINATA_GATEWAY", getEnv("GATEWAY_URL", c.Pinata.Gateway))

	c.Log.Level = getEnv("ARENA_LOG_LEVEL", c.Log.Level)
	c.Log.OutputFile = getEnv("ARENA_LOG_FILE", c.Log.OutputFile)
}

// Validate checks the fields every entrypoint relies on.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		errs = append(errs, errors.New("chain.rpc_url is required"))
	}
	for name, addr := range map[string]string{
		"chain.battle_address":  c.Chain.BattleAddress,
		"chain.factory_address": c.Chain.FactoryAddress,
	} {
		if !isHexAddress(addr) {
			errs = append(errs, fmt.Errorf("%s must be a 0x-prefixed 20-byte hex address, got %q", name, addr))
		}
	}
	if _, err := c.CreationFee(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.MinSupplyWei(); err != nil {
		errs = append(errs, err)
	}
	switch c.Refresh.Policy {
	case PolicyInterval, PolicyBlock:
	default:
		errs = append(errs, fmt.Errorf("refresh.policy must be %q or %q, got %q", PolicyInterval, PolicyBlock, c.Refresh.Policy))
	}
	if c.Refresh.Interval <= 0 {
		errs = append(errs, errors.New("refresh.interval must be positive"))
	}
	if c.Battle.LeaderboardLimit <= 0 {
		errs = append(errs, errors.New("battle.leaderboard_limit must be positive"))
	}
	return errors.Join(errs...)
}

// CreationFee parses battle.creation_fee_wei.
func (c *Config) CreationFee() (*big.Int, error) {
	return parseWei("battle.creation_fee_wei", c.Battle.CreationFeeWei)
}

// MinSupplyWei parses battle.min_supply.
func (c *Config) MinSupplyWei() (*big.Int, error) {
	return parseWei("battle.min_supply", c.Battle.MinSupply)
}

func parseWei(name, s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer, got %q", name, s)
	}
	return v, nil
}

func isHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return false
	}
	for _, r := range s[2:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
