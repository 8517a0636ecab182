// Package config handles application configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config defines the structure for all application configuration.
type Config struct {
	Symbols          []string     `yaml:"symbols"`
	Window           WindowConf   `yaml:"window"`
	Thresholds       ThresholdsConf `yaml:"thresholds"`
	Order            OrderConf    `yaml:"order"`
	Report           ReportConf   `yaml:"report"`
	DBWriter         DBWriterConf `yaml:"db_writer"`
	TestMode         FlexBool     `yaml:"test_mode"`
	TestBalance      float64      `yaml:"test_balance"`
	HTTPAddr         string       `yaml:"http_addr"`

	APIKey     string `yaml:"-"` // Loaded from env
	APISecret  string `yaml:"-"` // Loaded from env
	LogLevel   string `yaml:"-"` // Loaded from env or defaults
	DBHost     string `yaml:"-"`
	DBPort     string `yaml:"-"`
	DBUser     string `yaml:"-"`
	DBPassword string `yaml:"-"`
	DBName     string `yaml:"-"`
}

// WindowConf configures the per-symbol entity window and entity synthesis.
type WindowConf struct {
	Size             int `yaml:"size"`              // entity window capacity
	SubwindowCount   int `yaml:"subwindow_count"`   // contiguous chunks for sub-window verdicts
	OrderbookDepth   int `yaml:"orderbook_depth"`   // depth subscribed and summed for passive volume
	EntityEveryN     int `yaml:"entity_every_n"`    // synthesize an entity every N raw trades
	EntityIntervalMs int `yaml:"entity_interval_ms"` // and at least once per interval
	TradeBufferSize  int `yaml:"trade_buffer_size"` // cap on buffered raw trades per symbol
}

// ThresholdsConf holds the percentage limits for the volume and price-change
// classifiers.
type ThresholdsConf struct {
	BuyVolumesPct       float64 `yaml:"buy_volumes_percentage_limit"`
	SellVolumesPct      float64 `yaml:"sell_volumes_percentage_limit"`
	UpPriceChangePct    float64 `yaml:"up_price_change_percentage_limit"`
	DownPriceChangePct  float64 `yaml:"down_price_change_percentage_limit"`
}

// OrderConf configures the order lifecycle manager.
type OrderConf struct {
	Volume               float64  `yaml:"volume"`                  // order size per signal
	MaxActivePerSymbol   int      `yaml:"max_active_per_symbol"`   // concurrent-orders cap
	TakeProfit           float64  `yaml:"take_profit"`             // price distance from entry, > 0
	StopLoss             float64  `yaml:"stop_loss"`               // price distance from entry, < 0
	ProfitBoundary       float64  `yaml:"profit_boundary"`         // dismiss new orders above this total
	LossBoundary         float64  `yaml:"loss_boundary"`           // dismiss new orders below this total
	CloseOnFavorableMove FlexBool `yaml:"close_on_favorable_move"` // Deprecated: legacy close policy
}

// ReportConf configures the result sink and the periodic stats reporter.
type ReportConf struct {
	DumpFile        string `yaml:"dump_file"`         // CSV dump path; empty writes through the logger
	IntervalSeconds int    `yaml:"interval_seconds"`  // stats report interval
}

// DBWriterConf configures the optional TimescaleDB writer. A BatchSize of zero
// disables persistence entirely.
type DBWriterConf struct {
	BatchSize            int `yaml:"batch_size"`
	WriteIntervalSeconds int `yaml:"write_interval_seconds"`
}

// LoadConfig loads configuration from the specified YAML file path
// and environment variables, and validates it.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		HTTPAddr: ":8080",
		Window: WindowConf{
			Size:             10,
			SubwindowCount:   5,
			OrderbookDepth:   20,
			EntityEveryN:     10,
			EntityIntervalMs: 1000,
			TradeBufferSize:  256,
		},
		Report: ReportConf{IntervalSeconds: 60},
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, err
	}

	// Load sensitive data and overrides from environment variables
	if apiKey := os.Getenv("EXCHANGE_API_KEY"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	if apiSecret := os.Getenv("EXCHANGE_API_SECRET"); apiSecret != "" {
		cfg.APISecret = apiSecret
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		cfg.DBHost = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		cfg.DBPort = dbPort
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		cfg.DBUser = dbUser
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		cfg.DBPassword = dbPassword
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.DBName = dbName
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if c.Window.Size <= 0 {
		return fmt.Errorf("window.size must be positive, got %d", c.Window.Size)
	}
	if c.Window.SubwindowCount <= 0 {
		return fmt.Errorf("window.subwindow_count must be positive, got %d", c.Window.SubwindowCount)
	}
	if c.Window.SubwindowCount > c.Window.Size {
		return fmt.Errorf("window.subwindow_count %d exceeds window.size %d", c.Window.SubwindowCount, c.Window.Size)
	}
	if c.Order.TakeProfit < 0 {
		return fmt.Errorf("order.take_profit must not be negative, got %f", c.Order.TakeProfit)
	}
	if c.Order.StopLoss > 0 {
		return fmt.Errorf("order.stop_loss must not be positive, got %f", c.Order.StopLoss)
	}
	if c.Order.MaxActivePerSymbol <= 0 {
		c.Order.MaxActivePerSymbol = 1
	}
	return nil
}

// DatabaseURL assembles a Postgres connection string from the env-provided
// parts. Empty when no DB host is configured.
func (c *Config) DatabaseURL() string {
	if c.DBHost == "" {
		return ""
	}
	port := c.DBPort
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, port, c.DBName)
}
