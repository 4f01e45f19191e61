package config

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

// clearCredentialEnv pins every credential-related environment variable so
// the developer's shell cannot leak keys into the test pool.
func clearCredentialEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("ALPHA_VANTAGE", "")
	for i := 2; i <= 9; i++ {
		t.Setenv(fmt.Sprintf("ALPHA_VANTAGE%d", i), "")
	}
}

// writeTempConfig creates a configuration file with the given body and
// returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

const minimalConfig = `mononoke:
  name: "mononoke"
  version: "0.1.0"
providers:
  alpha_vantage:
    api_keys: ["k1", "k2"]
targets:
  commodities: [WTI, COPPER]
  cryptocurrencies:
    - [BTC, USD]
`

func TestLoadConfig(t *testing.T) {
	clearCredentialEnv(t)
	path := writeTempConfig(t, minimalConfig)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Mononoke.Name != "mononoke" {
		t.Errorf("unexpected name: %s", cfg.Mononoke.Name)
	}
	if cfg.Extract.Pace != time.Second {
		t.Errorf("unexpected default pace: %v", cfg.Extract.Pace)
	}
	if cfg.Extract.Cooldown != 60*time.Second {
		t.Errorf("unexpected default cooldown: %v", cfg.Extract.Cooldown)
	}
	if cfg.Extract.MaxCooldownRounds != 3 {
		t.Errorf("unexpected default cooldown rounds: %d", cfg.Extract.MaxCooldownRounds)
	}
	if cfg.Extract.OutputSize != "compact" {
		t.Errorf("unexpected default output size: %s", cfg.Extract.OutputSize)
	}
	if cfg.Storage.RawRoot != "artifacts/raw" {
		t.Errorf("unexpected default raw root: %s", cfg.Storage.RawRoot)
	}
	if len(cfg.Providers.AlphaVantage.APIKeys) != 2 {
		t.Errorf("unexpected credential pool: %v", cfg.Providers.AlphaVantage.APIKeys)
	}
}

func TestLoadConfigMergesEnvKeys(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("ALPHA_VANTAGE", "env1")
	t.Setenv("ALPHA_VANTAGE2", "k1") // duplicate of the configured key

	path := writeTempConfig(t, `mononoke:
  name: "mononoke"
  version: "0.1.0"
providers:
  alpha_vantage:
    api_keys: ["k1"]
targets:
  stocks: [AAPL]
`)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	keys := cfg.Providers.AlphaVantage.APIKeys
	if len(keys) != 2 || keys[0] != "k1" || keys[1] != "env1" {
		t.Fatalf("unexpected merged pool: %v", keys)
	}
}

func TestLoadConfigRequiresCredentials(t *testing.T) {
	clearCredentialEnv(t)
	path := writeTempConfig(t, `mononoke:
  name: "mononoke"
  version: "0.1.0"
targets:
  commodities: [WTI]
`)
	defer os.Remove(path)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestLoadConfigRejectsBadPair(t *testing.T) {
	clearCredentialEnv(t)
	path := writeTempConfig(t, `mononoke:
  name: "mononoke"
  version: "0.1.0"
providers:
  alpha_vantage:
    api_keys: ["k1"]
targets:
  cryptocurrencies:
    - [BTC]
`)
	defer os.Remove(path)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for one-element pair")
	}
}

func TestLoadConfigRejectsBadOutputSize(t *testing.T) {
	clearCredentialEnv(t)
	path := writeTempConfig(t, `mononoke:
  name: "mononoke"
  version: "0.1.0"
extract:
  output_size: huge
providers:
  alpha_vantage:
    api_keys: ["k1"]
targets:
  stocks: [AAPL]
`)
	defer os.Remove(path)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid output size")
	}
}

func TestLoadTargets(t *testing.T) {
	content := `targets:
  commodities: [BRENT]
  fx_rates:
    - [USD, JPY]
  companies: [AAPL, MSFT]
`
	f, err := os.CreateTemp("", "targets-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	defer os.Remove(f.Name())

	targets, err := LoadTargets(f.Name())
	if err != nil {
		t.Fatalf("LoadTargets failed: %v", err)
	}
	if len(targets.Commodities) != 1 || targets.Commodities[0] != "BRENT" {
		t.Errorf("unexpected commodities: %v", targets.Commodities)
	}
	if len(targets.FXRates) != 1 || targets.FXRates[0][1] != "JPY" {
		t.Errorf("unexpected fx_rates: %v", targets.FXRates)
	}
	if !targets.HasYahooFinance() {
		t.Error("expected company targets to be detected")
	}
}

func TestLoadConfigRequiresTargets(t *testing.T) {
	clearCredentialEnv(t)
	path := writeTempConfig(t, `mononoke:
  name: "mononoke"
  version: "0.1.0"
providers:
  alpha_vantage:
    api_keys: ["k1", "k2"]
`)
	defer os.Remove(path)

	_, err := LoadConfig(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for empty targets, got %v", err)
	}
}

func TestCurrentEnvironment(t *testing.T) {
	cases := []struct {
		raw  string
		want Environment
	}{
		{"", Development},
		{"prod", Production},
		{"Production", Production},
		{" stag ", Staging},
		{"qa", Environment("qa")},
	}
	for _, c := range cases {
		t.Setenv("APP_ENV", c.raw)
		if got := CurrentEnvironment(); got != c.want {
			t.Errorf("CurrentEnvironment() with APP_ENV=%q = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestProductionLikePoolSize(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("APP_ENV", "production")

	path := writeTempConfig(t, `mononoke:
  name: "mononoke"
  version: "0.1.0"
providers:
  alpha_vantage:
    api_keys: ["only-one"]
targets:
  stocks: [AAPL]
`)
	defer os.Remove(path)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected a single-credential pool to fail in production")
	}

	t.Setenv("APP_ENV", "development")
	if _, err := LoadConfig(path); err != nil {
		t.Fatalf("single credential should be allowed in development: %v", err)
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"valid-bucket", true},
		{"Invalid", false},
		{"ab", false},
		{"my..bucket", false},
	}
	for _, c := range cases {
		if got := isValidS3Bucket(c.name); got != c.valid {
			t.Errorf("isValidS3Bucket(%q) = %v, want %v", c.name, got, c.valid)
		}
	}
}
