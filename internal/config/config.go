package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
)

// Return method names accepted by Data.ReturnMethod.
const (
	ReturnSimple = "simple"
	ReturnLog    = "log"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the EGP toolkit.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Logging  Logging  `yaml:"logging"`
	Gather   Gather   `yaml:"gather"`
	Data     Data     `yaml:"data"`
	Backtest Backtest `yaml:"backtest"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Gather holds parameters for the daily bar gathering job.
type Gather struct {
	StartDate       string `yaml:"start_date"`
	BatchSize       int    `yaml:"batch_size"`
	MaxWorkers      int    `yaml:"max_workers"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Data selects the price series the pipeline runs on. Prices come either
// from the local bar store (Symbols + date range) or from a wide CSV file
// (CSVPath); the factor symbol must be a column of whichever source is used.
type Data struct {
	Market       domain.Market          `yaml:"market"`
	Symbols      []string               `yaml:"symbols"`
	FactorSymbol string                 `yaml:"factor_symbol"`
	Frequency    domain.SampleFrequency `yaml:"frequency"`
	Start        string                 `yaml:"start"`
	End          string                 `yaml:"end"`
	CSVPath      string                 `yaml:"csv_path"`
	ReturnMethod string                 `yaml:"return_method"`
}

// Backtest holds the allocation and replay parameters.
type Backtest struct {
	EstimationWindow   int                       `yaml:"estimation_window"`
	RebalanceFrequency domain.RebalanceFrequency `yaml:"rebalance_frequency"`
	TransactionCost    float64                   `yaml:"transaction_cost"`
	RiskFreeRate       float64                   `yaml:"risk_free_rate"`
	AllowShort         bool                      `yaml:"allow_short"`
	MaxWeight          float64                   `yaml:"max_weight"`
	MinWeight          float64                   `yaml:"min_weight"`
	InitialCapital     float64                   `yaml:"initial_capital"`
	Allocator          string                    `yaml:"allocator"`
	Workers            int                       `yaml:"workers"`
	Benchmark          bool                      `yaml:"benchmark"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, fills defaults, and then applies environment variable
// overrides. The result is not validated; call Validate before use.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyDefaults fills zero-valued fields so a minimal config file works.
func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/egp.db"
	}

	if cfg.Alpaca.BaseURL == "" {
		cfg.Alpaca.BaseURL = "https://paper-api.alpaca.markets"
	}
	if cfg.Alpaca.DataURL == "" {
		cfg.Alpaca.DataURL = "https://data.alpaca.markets"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Gather.StartDate == "" {
		cfg.Gather.StartDate = "2020-01-01"
	}
	if cfg.Gather.BatchSize == 0 {
		cfg.Gather.BatchSize = 500
	}
	if cfg.Gather.MaxWorkers == 0 {
		cfg.Gather.MaxWorkers = 4
	}
	if cfg.Gather.RateLimitPerMin == 0 {
		cfg.Gather.RateLimitPerMin = 200
	}

	if cfg.Data.Market == "" {
		cfg.Data.Market = domain.MarketUS
	}
	if cfg.Data.Frequency == "" {
		cfg.Data.Frequency = domain.FreqDaily
	}
	if cfg.Data.ReturnMethod == "" {
		cfg.Data.ReturnMethod = ReturnSimple
	}

	if cfg.Backtest.EstimationWindow == 0 {
		cfg.Backtest.EstimationWindow = 252
	}
	if cfg.Backtest.RebalanceFrequency == "" {
		cfg.Backtest.RebalanceFrequency = domain.RebalanceMonthly
	}
	if cfg.Backtest.InitialCapital == 0 {
		cfg.Backtest.InitialCapital = 100000
	}
	if cfg.Backtest.Allocator == "" {
		cfg.Backtest.Allocator = "egp"
	}
	if cfg.Backtest.Workers == 0 {
		cfg.Backtest.Workers = 1
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Gather.Validate(); err != nil {
		return err
	}
	if err := c.Data.Validate(); err != nil {
		return err
	}
	return c.Backtest.Validate()
}

// Validate checks the storage section.
func (s Storage) Validate() error {
	if s.DataDir == "" {
		return domain.Validationf("storage: data_dir must be set")
	}
	if s.SQLitePath == "" {
		return domain.Validationf("storage: sqlite_path must be set")
	}
	return nil
}

// Validate checks the logging section.
func (l Logging) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return domain.Validationf("logging: unknown level %q", l.Level)
	}
	switch l.Format {
	case "text", "json":
	default:
		return domain.Validationf("logging: unknown format %q", l.Format)
	}
	return nil
}

// Validate checks the gather section.
func (g Gather) Validate() error {
	if _, err := time.Parse("2006-01-02", g.StartDate); err != nil {
		return domain.Validationf("gather: start_date %q is not a YYYY-MM-DD date", g.StartDate)
	}
	if g.BatchSize < 1 {
		return domain.Validationf("gather: batch_size must be positive, got %d", g.BatchSize)
	}
	if g.MaxWorkers < 1 {
		return domain.Validationf("gather: max_workers must be positive, got %d", g.MaxWorkers)
	}
	if g.RateLimitPerMin < 1 {
		return domain.Validationf("gather: rate_limit_per_min must be positive, got %d", g.RateLimitPerMin)
	}
	return nil
}

// Validate checks the data section.
func (d Data) Validate() error {
	if d.Market != domain.MarketUS {
		return domain.Validationf("data: unknown market %q", d.Market)
	}
	if !d.Frequency.Valid() {
		return domain.Validationf("data: unknown frequency %q", d.Frequency)
	}
	if d.ReturnMethod != ReturnSimple && d.ReturnMethod != ReturnLog {
		return domain.Validationf("data: unknown return_method %q", d.ReturnMethod)
	}
	if d.FactorSymbol == "" {
		return domain.Validationf("data: factor_symbol must be set")
	}
	if d.CSVPath == "" && len(d.Symbols) == 0 {
		return domain.Validationf("data: either csv_path or symbols must be set")
	}
	var start, end time.Time
	if d.Start != "" {
		t, err := time.Parse("2006-01-02", d.Start)
		if err != nil {
			return domain.Validationf("data: start %q is not a YYYY-MM-DD date", d.Start)
		}
		start = t
	}
	if d.End != "" {
		t, err := time.Parse("2006-01-02", d.End)
		if err != nil {
			return domain.Validationf("data: end %q is not a YYYY-MM-DD date", d.End)
		}
		end = t
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return domain.Validationf("data: end %s is before start %s", d.End, d.Start)
	}
	return nil
}

// StartTime returns the parsed start date, or the zero time when unset.
// Validate must have passed.
func (d Data) StartTime() time.Time {
	if d.Start == "" {
		return time.Time{}
	}
	t, _ := time.Parse("2006-01-02", d.Start)
	return t
}

// EndTime returns the parsed end date, or the zero time when unset.
// Validate must have passed.
func (d Data) EndTime() time.Time {
	if d.End == "" {
		return time.Time{}
	}
	t, _ := time.Parse("2006-01-02", d.End)
	return t
}

// Validate checks the backtest section.
func (b Backtest) Validate() error {
	if b.EstimationWindow < 2 {
		return domain.Validationf("backtest: estimation_window must be at least 2, got %d", b.EstimationWindow)
	}
	if !b.RebalanceFrequency.Valid() {
		return domain.Validationf("backtest: unknown rebalance_frequency %q", b.RebalanceFrequency)
	}
	if b.TransactionCost < 0 {
		return domain.Validationf("backtest: transaction_cost must be non-negative, got %g", b.TransactionCost)
	}
	if b.MaxWeight < 0 {
		return domain.Validationf("backtest: max_weight must be non-negative, got %g", b.MaxWeight)
	}
	if b.MinWeight < 0 {
		return domain.Validationf("backtest: min_weight must be non-negative, got %g", b.MinWeight)
	}
	if !(b.InitialCapital > 0) {
		return domain.Validationf("backtest: initial_capital must be positive, got %g", b.InitialCapital)
	}
	if b.Allocator == "" {
		return domain.Validationf("backtest: allocator must be set")
	}
	if b.Workers < 1 {
		return domain.Validationf("backtest: workers must be positive, got %d", b.Workers)
	}
	return nil
}
