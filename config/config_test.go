package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{
		Binance: BinanceConfig{APIKey: "k", SecretKey: "s"},
		Linear: MarketConfig{
			Enabled:  true,
			Quantity: 1,
		},
	}
	applyDefaults(cfg)
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("default config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"no market enabled",
			func(c *Config) { c.Linear.Enabled = false },
			"no market instance enabled",
		},
		{
			"missing credentials",
			func(c *Config) { c.Binance.APIKey = "" },
			"credentials",
		},
		{
			"entry threshold too high",
			func(c *Config) { c.Indicators.MinEntryConditions = 8 },
			"min_entry_conditions",
		},
		{
			"entry threshold negative",
			func(c *Config) { c.Indicators.MinEntryConditions = -1 },
			"min_entry_conditions",
		},
		{
			"exit threshold too high",
			func(c *Config) { c.Indicators.MinExitConditions = 6 },
			"min_exit_conditions",
		},
		{
			"rsi bound out of range",
			func(c *Config) { c.Indicators.RSIOversold = 5 },
			"rsi_oversold",
		},
		{
			"volume multiplier below one",
			func(c *Config) { c.Indicators.VolumeMultiplier = 0.5 },
			"volume_multiplier",
		},
		{
			"futures quantity missing",
			func(c *Config) { c.Linear.Quantity = 0 },
			"quantity",
		},
		{
			"spot quote quantity missing",
			func(c *Config) { c.Spot.Enabled = true },
			"quote_quantity",
		},
		{
			"auth without secret",
			func(c *Config) { c.Auth.Enabled = true; c.Auth.APITokenHash = "x" },
			"jwt_secret",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateLiquidationBand(t *testing.T) {
	// At 10x leverage liquidation sits near 10%; the 90% safety band means
	// a fixed stop of 9% or wider is fatal.
	cfg := validConfig()
	cfg.Linear.Leverage = 10
	cfg.Linear.StopLossPct = 9

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "liquidation") {
		t.Errorf("stop inside liquidation band accepted: %v", err)
	}

	cfg.Linear.StopLossPct = 8.9
	if err := cfg.Validate(); err != nil {
		t.Errorf("safe stop rejected: %v", err)
	}

	// In ATR mode the fixed percentage is only a fallback; the check does
	// not apply.
	cfg.Linear.StopLossPct = 9
	cfg.ATR.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("ATR mode rejected by fixed-mode liquidation check: %v", err)
	}
}

func TestVaultSatisfiesCredentialCheck(t *testing.T) {
	cfg := validConfig()
	cfg.Binance.APIKey = ""
	cfg.Binance.SecretKey = ""
	cfg.Vault.Enabled = true

	if err := cfg.Validate(); err != nil {
		t.Errorf("vault-backed credentials rejected: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if cfg.Indicators.MinEntryConditions != 4 || cfg.Indicators.MinExitConditions != 3 {
		t.Errorf("consensus defaults = %d/%d, want 4/3",
			cfg.Indicators.MinEntryConditions, cfg.Indicators.MinExitConditions)
	}
	if cfg.HTF.Timeframe != "4h" || cfg.HTF.SMAShort != 10 || cfg.HTF.SMALong != 50 {
		t.Errorf("HTF defaults = %+v", cfg.HTF)
	}
	if cfg.ATR.Length != 14 || cfg.ATR.SLMultiplier != 2.0 || cfg.ATR.TPMultiplier != 3.0 {
		t.Errorf("ATR defaults = %+v", cfg.ATR)
	}
	if cfg.Linear.StateFile != "linear_position.json" ||
		cfg.Inverse.StateFile != "inverse_position.json" ||
		cfg.Spot.StateFile != "spot_position.json" {
		t.Error("state file defaults wrong")
	}
	if cfg.Binance.SpotBaseURL != "https://api.binance.com" {
		t.Errorf("spot base url = %q", cfg.Binance.SpotBaseURL)
	}
}

func TestTestnetURLs(t *testing.T) {
	cfg := &Config{Binance: BinanceConfig{TestNet: true}}
	applyDefaults(cfg)

	if cfg.Binance.SpotBaseURL != "https://testnet.binance.vision" {
		t.Errorf("testnet spot url = %q", cfg.Binance.SpotBaseURL)
	}
	if cfg.Binance.FuturesBaseURL != "https://testnet.binancefuture.com" {
		t.Errorf("testnet futures url = %q", cfg.Binance.FuturesBaseURL)
	}
}
