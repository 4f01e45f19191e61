package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mononoke  MononokeConfig  `yaml:"mononoke"`
	Logging   LoggingConfig   `yaml:"logging"`
	Extract   ExtractConfig   `yaml:"extract"`
	Providers ProvidersConfig `yaml:"providers"`
	Storage   StorageConfig   `yaml:"storage"`
	Targets   TargetsConfig   `yaml:"targets"`
}

type MononokeConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level         string                 `yaml:"level"`
	Format        string                 `yaml:"format"`
	Output        string                 `yaml:"output"`
	MaxAge        int                    `yaml:"max_age"`
	Fields        map[string]interface{} `yaml:"fields"`
	DashboardName string                 `yaml:"dashboard_name"`
}

// ExtractConfig tunes the acquisition layer: request timeout, minimum spacing
// between provider calls, bounded same-credential retries on network errors,
// and the cooldown protocol used when the whole credential pool is throttled.
type ExtractConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	Pace              time.Duration `yaml:"pace"`
	NetRetries        int           `yaml:"net_retries"`
	Cooldown          time.Duration `yaml:"cooldown"`
	MaxCooldownRounds int           `yaml:"max_cooldown_rounds"`
	OutputSize        string        `yaml:"output_size"`
}

type ProvidersConfig struct {
	AlphaVantage AlphaVantageConfig `yaml:"alpha_vantage"`
	YahooFinance YahooFinanceConfig `yaml:"yahoo_finance"`
}

// AlphaVantageConfig holds the query endpoint and the ordered credential
// pool. Keys from the ALPHA_VANTAGE / ALPHA_VANTAGE<n> environment variables
// are appended to the configured list at load time.
type AlphaVantageConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKeys []string `yaml:"api_keys"`
}

type YahooFinanceConfig struct {
	BaseURL string `yaml:"base_url"`
}

type StorageConfig struct {
	RawRoot       string          `yaml:"raw_root"`
	ProcessedRoot string          `yaml:"processed_root"`
	S3            S3Config        `yaml:"s3"`
	Warehouse     WarehouseConfig `yaml:"warehouse"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// WarehouseConfig controls the parquet mirror of the processed datasets and
// the load catalog consumed by the downstream bulk loader.
type WarehouseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	LocalDir    string `yaml:"local_dir"`
	CatalogDir  string `yaml:"catalog_dir"`
	Compression string `yaml:"compression"`
	Schema      string `yaml:"schema"`
}

// TargetsConfig lists what to fetch per domain. Paired domains use
// two-element [base, quote] lists.
type TargetsConfig struct {
	Commodities      []string   `yaml:"commodities"`
	Cryptocurrencies [][]string `yaml:"cryptocurrencies"`
	Stocks           []string   `yaml:"stocks"`
	Forex            [][]string `yaml:"forex"`
	FXRates          [][]string `yaml:"fx_rates"`
	Companies        []string   `yaml:"companies"`
}

// HasAlphaVantage reports whether any Alpha Vantage domain has targets.
func (t TargetsConfig) HasAlphaVantage() bool {
	return len(t.Commodities) > 0 || len(t.Cryptocurrencies) > 0 ||
		len(t.Stocks) > 0 || len(t.Forex) > 0 || len(t.FXRates) > 0
}

// HasYahooFinance reports whether any company targets are configured.
func (t TargetsConfig) HasYahooFinance() bool {
	return len(t.Companies) > 0
}

// Empty reports whether no domain has any target at all.
func (t TargetsConfig) Empty() bool {
	return !t.HasAlphaVantage() && !t.HasYahooFinance()
}

// ValidationError reports a fatal configuration problem found at startup.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

const defaultConfigPath = "config/config.yml"

var envConfigPaths = map[Environment]string{
	Production: "config/config.production.yml",
	Staging:    "config/config.staging.yml",
}

func LoadConfig(path string) (*Config, error) {
	env := CurrentEnvironment()
	path = env.configPath(path)

	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Extract: ExtractConfig{
			Timeout:           30 * time.Second,
			Pace:              time.Second,
			NetRetries:        2,
			Cooldown:          60 * time.Second,
			MaxCooldownRounds: 3,
			OutputSize:        "compact",
		},
		Providers: ProvidersConfig{
			AlphaVantage: AlphaVantageConfig{
				BaseURL: "https://www.alphavantage.co/query",
			},
			YahooFinance: YahooFinanceConfig{
				BaseURL: "https://query1.finance.yahoo.com",
			},
		},
		Storage: StorageConfig{
			RawRoot:       "artifacts/raw",
			ProcessedRoot: "artifacts/processed",
			Warehouse: WarehouseConfig{
				LocalDir:    "artifacts/warehouse",
				CatalogDir:  "artifacts/warehouse/catalog",
				Compression: "snappy",
				Schema:      "mononoke",
			},
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Merge credential pool entries from the environment after the ones from
	// the file, preserving order and dropping duplicates.
	config.Providers.AlphaVantage.APIKeys = mergeEnvAPIKeys(config.Providers.AlphaVantage.APIKeys)

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config, env); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Validate re-checks the whole configuration. Callers use it after swapping
// the target lists from a standalone file, since target changes can alter
// which provider settings are required.
func (c *Config) Validate() error {
	return validateConfig(c, CurrentEnvironment())
}

// mergeEnvAPIKeys appends credentials from ALPHA_VANTAGE and the numbered
// ALPHA_VANTAGE2..ALPHA_VANTAGE9 variables to the configured pool.
func mergeEnvAPIKeys(keys []string) []string {
	names := []string{"ALPHA_VANTAGE"}
	for i := 2; i <= 9; i++ {
		names = append(names, fmt.Sprintf("ALPHA_VANTAGE%d", i))
	}
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			keys = append(keys, v)
		}
	}

	seen := make(map[string]struct{}, len(keys))
	merged := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, k)
	}
	return merged
}

func validateConfig(cfg *Config, env Environment) error {
	if cfg.Mononoke.Name == "" {
		return &ValidationError{Field: "mononoke.name", Reason: "is required"}
	}

	if cfg.Mononoke.Version == "" {
		return &ValidationError{Field: "mononoke.version", Reason: "is required"}
	}

	if cfg.Extract.Timeout <= 0 {
		return &ValidationError{Field: "extract.timeout", Reason: "must be greater than 0"}
	}
	if cfg.Extract.Pace <= 0 {
		return &ValidationError{Field: "extract.pace", Reason: "must be greater than 0"}
	}
	if cfg.Extract.NetRetries < 0 {
		return &ValidationError{Field: "extract.net_retries", Reason: "must not be negative"}
	}
	if cfg.Extract.Cooldown <= 0 {
		return &ValidationError{Field: "extract.cooldown", Reason: "must be greater than 0"}
	}
	if cfg.Extract.MaxCooldownRounds < 1 {
		return &ValidationError{Field: "extract.max_cooldown_rounds", Reason: "must be at least 1"}
	}
	switch cfg.Extract.OutputSize {
	case "compact", "full":
	default:
		return &ValidationError{Field: "extract.output_size", Reason: "must be 'compact' or 'full'"}
	}

	if cfg.Storage.RawRoot == "" {
		return &ValidationError{Field: "storage.raw_root", Reason: "is required"}
	}
	if cfg.Storage.ProcessedRoot == "" {
		return &ValidationError{Field: "storage.processed_root", Reason: "is required"}
	}

	if err := cfg.Targets.Validate(); err != nil {
		return err
	}
	if cfg.Targets.Empty() {
		return &ValidationError{Field: "targets", Reason: "at least one domain must list targets"}
	}

	if cfg.Targets.HasAlphaVantage() {
		if cfg.Providers.AlphaVantage.BaseURL == "" {
			return &ValidationError{Field: "providers.alpha_vantage.base_url", Reason: "is required when alpha vantage targets are configured"}
		}
		keys := len(cfg.Providers.AlphaVantage.APIKeys)
		if keys == 0 {
			return &ValidationError{Field: "providers.alpha_vantage.api_keys", Reason: "at least one credential is required when alpha vantage targets are configured"}
		}
		// the rotation protocol assumes a pool; insist on it where it matters
		if keys < 2 && env.ProductionLike() {
			return &ValidationError{Field: "providers.alpha_vantage.api_keys", Reason: "at least two credentials are required in production"}
		}
	}

	if cfg.Targets.HasYahooFinance() && cfg.Providers.YahooFinance.BaseURL == "" {
		return &ValidationError{Field: "providers.yahoo_finance.base_url", Reason: "is required when company targets are configured"}
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return &ValidationError{Field: "storage.s3.bucket", Reason: "is required when S3 is enabled"}
		}
		if cfg.Storage.S3.Region == "" {
			return &ValidationError{Field: "storage.s3.region", Reason: "is required when S3 is enabled"}
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return &ValidationError{Field: "storage.s3", Reason: "access_key_id and secret_access_key are required when S3 is enabled"}
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return &ValidationError{Field: "storage.s3.bucket", Reason: fmt.Sprintf("'%s' is invalid", cfg.Storage.S3.Bucket)}
		}
	}

	if cfg.Storage.Warehouse.Enabled {
		if cfg.Storage.Warehouse.LocalDir == "" {
			return &ValidationError{Field: "storage.warehouse.local_dir", Reason: "is required when the warehouse is enabled"}
		}
		if cfg.Storage.Warehouse.CatalogDir == "" {
			return &ValidationError{Field: "storage.warehouse.catalog_dir", Reason: "is required when the warehouse is enabled"}
		}
		switch cfg.Storage.Warehouse.Compression {
		case "", "snappy", "gzip", "lzo", "uncompressed":
		default:
			return &ValidationError{Field: "storage.warehouse.compression", Reason: fmt.Sprintf("unknown codec '%s'", cfg.Storage.Warehouse.Compression)}
		}
	}

	return nil
}

// Validate checks the per-domain target lists. Paired domains must use
// two-element [base, quote] entries.
func (t TargetsConfig) Validate() error {
	checkSymbols := func(field string, symbols []string) error {
		for i, s := range symbols {
			if strings.TrimSpace(s) == "" {
				return &ValidationError{Field: field, Reason: fmt.Sprintf("entry %d is empty", i)}
			}
		}
		return nil
	}
	checkPairs := func(field string, pairs [][]string) error {
		for i, p := range pairs {
			if len(p) != 2 {
				return &ValidationError{Field: field, Reason: fmt.Sprintf("entry %d must be a [base, quote] pair", i)}
			}
			if strings.TrimSpace(p[0]) == "" || strings.TrimSpace(p[1]) == "" {
				return &ValidationError{Field: field, Reason: fmt.Sprintf("entry %d has an empty element", i)}
			}
		}
		return nil
	}

	if err := checkSymbols("targets.commodities", t.Commodities); err != nil {
		return err
	}
	if err := checkPairs("targets.cryptocurrencies", t.Cryptocurrencies); err != nil {
		return err
	}
	if err := checkSymbols("targets.stocks", t.Stocks); err != nil {
		return err
	}
	if err := checkPairs("targets.forex", t.Forex); err != nil {
		return err
	}
	if err := checkPairs("targets.fx_rates", t.FXRates); err != nil {
		return err
	}
	return checkSymbols("targets.companies", t.Companies)
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
