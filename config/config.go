package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the immutable configuration snapshot loaded once at startup and
// passed explicitly into every component.
type Config struct {
	Binance    BinanceConfig   `json:"binance"`
	Linear     MarketConfig    `json:"linear"`
	Inverse    MarketConfig    `json:"inverse"`
	Spot       MarketConfig    `json:"spot"`
	Indicators IndicatorConfig `json:"indicators"`
	HTF        HTFConfig       `json:"htf"`
	ATR        ATRConfig       `json:"atr"`
	Logging    LoggingConfig   `json:"logging"`
	Database   DatabaseConfig  `json:"database"`
	Redis      RedisConfig     `json:"redis"`
	Vault      VaultConfig     `json:"vault"`
	Server     ServerConfig    `json:"server"`
	Auth       AuthConfig      `json:"auth"`
}

// BinanceConfig holds venue credentials and endpoints.
type BinanceConfig struct {
	APIKey         string `json:"api_key"`
	SecretKey      string `json:"secret_key"`
	TestNet        bool   `json:"testnet"`
	SpotBaseURL    string `json:"spot_base_url"`
	FuturesBaseURL string `json:"futures_base_url"` // USD-M
	CoinMBaseURL   string `json:"coinm_base_url"`   // COIN-M
}

// MarketConfig holds per-instance trading settings. Quantity is the contract
// count for futures instances; QuoteQuantity is the quote-asset spend for
// spot buys.
type MarketConfig struct {
	Enabled        bool    `json:"enabled"`
	Symbol         string  `json:"symbol"`
	Timeframe      string  `json:"timeframe"`
	Leverage       int     `json:"leverage"`
	MarginType     string  `json:"margin_type"` // CROSSED or ISOLATED
	Quantity       float64 `json:"quantity"`
	QuoteQuantity  float64 `json:"quote_quantity"`
	StopLossPct    float64 `json:"stop_loss_pct"`
	TakeProfitPct  float64 `json:"take_profit_pct"`
	StateFile      string  `json:"state_file"`
	PlaceStopOrder bool    `json:"place_stop_order"` // protective STOP_MARKET at the venue
}

// IndicatorConfig holds the seven condition toggles, their thresholds and
// the consensus minimums.
type IndicatorConfig struct {
	UseSMA        bool `json:"use_sma"`
	UseRSI        bool `json:"use_rsi"`
	UseMACD       bool `json:"use_macd"`
	UseBollinger  bool `json:"use_bb"`
	UseStoch      bool `json:"use_stoch"`
	UseStochCross bool `json:"use_stoch_cross"`
	UseVolume     bool `json:"use_volume"`

	MinEntryConditions int `json:"min_entry_conditions"` // 1-7
	MinExitConditions  int `json:"min_exit_conditions"`  // 1-5

	RSIOversold      float64 `json:"rsi_oversold"`   // 10-90
	RSIOverbought    float64 `json:"rsi_overbought"` // 10-90
	StochOversold    float64 `json:"stoch_oversold"`
	StochOverbought  float64 `json:"stoch_overbought"`
	VolumeMultiplier float64 `json:"volume_multiplier"` // >= 1.0
}

// HTFConfig holds the higher-timeframe trend filter settings.
type HTFConfig struct {
	Enabled   bool   `json:"enabled"`
	Timeframe string `json:"timeframe"`
	SMAShort  int    `json:"sma_short"`
	SMALong   int    `json:"sma_long"`
}

// ATRConfig holds the ATR-based stop/target settings.
type ATRConfig struct {
	Enabled      bool    `json:"enabled"`
	Length       int     `json:"length"`
	SLMultiplier float64 `json:"sl_multiplier"`
	TPMultiplier float64 `json:"tp_multiplier"`
}

type LoggingConfig struct {
	Level   string `json:"level"`   // debug, info, warn, error
	Output  string `json:"output"`  // stdout, stderr, or file path
	Console bool   `json:"console"` // human-readable instead of JSON
}

// DatabaseConfig holds PostgreSQL settings for the trade history table.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslmode"`
}

// RedisConfig holds Redis settings for the position-state mirror.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// VaultConfig holds HashiCorp Vault settings for credential retrieval.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// ServerConfig holds the read-only status API settings.
type ServerConfig struct {
	Enabled        bool   `json:"enabled"`
	Host           string `json:"host"`
	Port           int    `json:"port"`
	AllowedOrigins string `json:"allowed_origins"`
}

// AuthConfig guards the status API. APITokenHash is a bcrypt hash of the
// operator token; a successful login returns a short-lived JWT.
type AuthConfig struct {
	Enabled       bool          `json:"enabled"`
	JWTSecret     string        `json:"jwt_secret"`
	APITokenHash  string        `json:"api_token_hash"`
	TokenDuration time.Duration `json:"token_duration"`
}

// Load reads config.json if present, then applies environment overrides and
// defaults. Validation is a separate step so callers can report fatal
// problems before the loops start.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Binance.APIKey = getEnvOrDefault("BINANCE_API_KEY", cfg.Binance.APIKey)
	cfg.Binance.SecretKey = getEnvOrDefault("BINANCE_SECRET_KEY", cfg.Binance.SecretKey)
	if v := os.Getenv("BINANCE_TESTNET"); v != "" {
		cfg.Binance.TestNet = v == "true"
	}

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", cfg.Logging.Output)
	if v := os.Getenv("LOG_CONSOLE"); v != "" {
		cfg.Logging.Console = v == "true"
	}

	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvIntOrDefault("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnvOrDefault("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Vault.Address = getEnvOrDefault("VAULT_ADDR", cfg.Vault.Address)
	cfg.Vault.Token = getEnvOrDefault("VAULT_TOKEN", cfg.Vault.Token)

	cfg.Server.Port = getEnvIntOrDefault("WEB_PORT", cfg.Server.Port)
	cfg.Auth.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.APITokenHash = getEnvOrDefault("AUTH_API_TOKEN_HASH", cfg.Auth.APITokenHash)
}

func applyDefaults(cfg *Config) {
	if cfg.Binance.SpotBaseURL == "" {
		if cfg.Binance.TestNet {
			cfg.Binance.SpotBaseURL = "https://testnet.binance.vision"
		} else {
			cfg.Binance.SpotBaseURL = "https://api.binance.com"
		}
	}
	if cfg.Binance.FuturesBaseURL == "" {
		if cfg.Binance.TestNet {
			cfg.Binance.FuturesBaseURL = "https://testnet.binancefuture.com"
		} else {
			cfg.Binance.FuturesBaseURL = "https://fapi.binance.com"
		}
	}
	if cfg.Binance.CoinMBaseURL == "" {
		if cfg.Binance.TestNet {
			cfg.Binance.CoinMBaseURL = "https://testnet.binancefuture.com"
		} else {
			cfg.Binance.CoinMBaseURL = "https://dapi.binance.com"
		}
	}

	applyMarketDefaults(&cfg.Linear, "BTCUSDT", "linear_position.json")
	applyMarketDefaults(&cfg.Inverse, "BTCUSD_PERP", "inverse_position.json")
	applyMarketDefaults(&cfg.Spot, "BTCUSDT", "spot_position.json")

	ind := &cfg.Indicators
	if ind.MinEntryConditions == 0 {
		ind.MinEntryConditions = 4
	}
	if ind.MinExitConditions == 0 {
		ind.MinExitConditions = 3
	}
	if ind.RSIOversold == 0 {
		ind.RSIOversold = 30
	}
	if ind.RSIOverbought == 0 {
		ind.RSIOverbought = 70
	}
	if ind.StochOversold == 0 {
		ind.StochOversold = 20
	}
	if ind.StochOverbought == 0 {
		ind.StochOverbought = 80
	}
	if ind.VolumeMultiplier == 0 {
		ind.VolumeMultiplier = 1.2
	}

	if cfg.HTF.Timeframe == "" {
		cfg.HTF.Timeframe = "4h"
	}
	if cfg.HTF.SMAShort == 0 {
		cfg.HTF.SMAShort = 10
	}
	if cfg.HTF.SMALong == 0 {
		cfg.HTF.SMALong = 50
	}

	if cfg.ATR.Length == 0 {
		cfg.ATR.Length = 14
	}
	if cfg.ATR.SLMultiplier == 0 {
		cfg.ATR.SLMultiplier = 2.0
	}
	if cfg.ATR.TPMultiplier == 0 {
		cfg.ATR.TPMultiplier = 3.0
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = "localhost:6379"
	}
	if cfg.Vault.MountPath == "" {
		cfg.Vault.MountPath = "secret"
	}
	if cfg.Vault.SecretPath == "" {
		cfg.Vault.SecretPath = "trading-bot/api-keys"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.AllowedOrigins == "" {
		cfg.Server.AllowedOrigins = "*"
	}
	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 12 * time.Hour
	}
}

func applyMarketDefaults(m *MarketConfig, symbol, stateFile string) {
	if m.Symbol == "" {
		m.Symbol = symbol
	}
	if m.Timeframe == "" {
		m.Timeframe = "1h"
	}
	if m.Leverage == 0 {
		m.Leverage = 3
	}
	if m.MarginType == "" {
		m.MarginType = "ISOLATED"
	}
	if m.StopLossPct == 0 {
		m.StopLossPct = 2.0
	}
	if m.TakeProfitPct == 0 {
		m.TakeProfitPct = 5.0
	}
	if m.StateFile == "" {
		m.StateFile = stateFile
	}
}

// Validate reports the first fatal configuration problem. Any error here
// stops the process before the trading loops start.
func (c *Config) Validate() error {
	anyEnabled := c.Linear.Enabled || c.Inverse.Enabled || c.Spot.Enabled
	if !anyEnabled {
		return fmt.Errorf("no market instance enabled")
	}
	if c.Binance.APIKey == "" || c.Binance.SecretKey == "" {
		if !c.Vault.Enabled {
			return fmt.Errorf("missing Binance API credentials")
		}
	}

	ind := c.Indicators
	if ind.MinEntryConditions < 1 || ind.MinEntryConditions > 7 {
		return fmt.Errorf("min_entry_conditions must be 1-7, got %d", ind.MinEntryConditions)
	}
	if ind.MinExitConditions < 1 || ind.MinExitConditions > 5 {
		return fmt.Errorf("min_exit_conditions must be 1-5, got %d", ind.MinExitConditions)
	}
	if ind.RSIOversold < 10 || ind.RSIOversold > 90 {
		return fmt.Errorf("rsi_oversold must be 10-90, got %v", ind.RSIOversold)
	}
	if ind.RSIOverbought < 10 || ind.RSIOverbought > 90 {
		return fmt.Errorf("rsi_overbought must be 10-90, got %v", ind.RSIOverbought)
	}
	if ind.StochOversold < 10 || ind.StochOversold > 90 {
		return fmt.Errorf("stoch_oversold must be 10-90, got %v", ind.StochOversold)
	}
	if ind.StochOverbought < 10 || ind.StochOverbought > 90 {
		return fmt.Errorf("stoch_overbought must be 10-90, got %v", ind.StochOverbought)
	}
	if ind.VolumeMultiplier < 1.0 {
		return fmt.Errorf("volume_multiplier must be >= 1.0, got %v", ind.VolumeMultiplier)
	}

	for _, mc := range []struct {
		name    string
		cfg     MarketConfig
		futures bool
	}{
		{"linear", c.Linear, true},
		{"inverse", c.Inverse, true},
		{"spot", c.Spot, false},
	} {
		if !mc.cfg.Enabled {
			continue
		}
		if mc.cfg.Symbol == "" {
			return fmt.Errorf("%s: symbol is required", mc.name)
		}
		if mc.futures {
			if mc.cfg.Leverage < 1 {
				return fmt.Errorf("%s: leverage must be >= 1", mc.name)
			}
			if mc.cfg.Quantity <= 0 {
				return fmt.Errorf("%s: quantity must be > 0", mc.name)
			}
			// In fixed-percentage mode the stop must sit inside the
			// liquidation band.
			if !c.ATR.Enabled {
				liquidationPct := (1.0 / float64(mc.cfg.Leverage)) * 100 * 0.9
				if mc.cfg.StopLossPct >= liquidationPct {
					return fmt.Errorf("%s: stop_loss_pct %.2f%% >= liquidation threshold %.2f%% at %dx leverage",
						mc.name, mc.cfg.StopLossPct, liquidationPct, mc.cfg.Leverage)
				}
			}
		} else if mc.cfg.QuoteQuantity <= 0 {
			return fmt.Errorf("%s: quote_quantity must be > 0", mc.name)
		}
		if mc.cfg.StopLossPct <= 0 || mc.cfg.TakeProfitPct <= 0 {
			return fmt.Errorf("%s: stop_loss_pct and take_profit_pct must be > 0", mc.name)
		}
	}

	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth enabled but jwt_secret is empty")
		}
		if c.Auth.APITokenHash == "" {
			return fmt.Errorf("auth enabled but api_token_hash is empty")
		}
	}

	return nil
}

// GenerateSampleConfig writes a starter configuration file.
func GenerateSampleConfig(filename string) error {
	cfg := &Config{
		Binance: BinanceConfig{
			APIKey:    "your_api_key_here",
			SecretKey: "your_secret_key_here",
			TestNet:   true,
		},
		Linear: MarketConfig{
			Enabled:        true,
			Symbol:         "BTCUSDT",
			Timeframe:      "1h",
			Leverage:       3,
			MarginType:     "ISOLATED",
			Quantity:       0.01,
			StopLossPct:    2.0,
			TakeProfitPct:  5.0,
			PlaceStopOrder: true,
		},
		Inverse: MarketConfig{
			Symbol:     "BTCUSD_PERP",
			Timeframe:  "1h",
			Leverage:   3,
			MarginType: "ISOLATED",
			Quantity:   1,
		},
		Spot: MarketConfig{
			Symbol:        "BTCUSDT",
			Timeframe:     "1h",
			QuoteQuantity: 100,
		},
		Indicators: IndicatorConfig{
			UseSMA:             true,
			UseRSI:             true,
			UseMACD:            true,
			UseBollinger:       true,
			UseStoch:           true,
			UseStochCross:      true,
			UseVolume:          true,
			MinEntryConditions: 4,
			MinExitConditions:  3,
			RSIOversold:        30,
			RSIOverbought:      70,
			StochOversold:      20,
			StochOverbought:    80,
			VolumeMultiplier:   1.2,
		},
		HTF: HTFConfig{Enabled: true, Timeframe: "4h", SMAShort: 10, SMALong: 50},
		ATR: ATRConfig{Enabled: true, Length: 14, SLMultiplier: 2.0, TPMultiplier: 3.0},
	}
	applyDefaults(cfg)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
