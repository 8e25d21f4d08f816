package util

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	TradingModeQuantile    = "quantile"
	TradingModeProbability = "probability"

	DataSourceCsv      = "csv"
	DataSourcePostgres = "postgres"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Data    DataConfig    `yaml:"data"`
	Trading TradingConfig `yaml:"trading"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig overrides the SIM_ENV logger defaults
type LoggingConfig struct {
	// debug, info, warn, error
	Level string `yaml:"level"`
	// json or console
	Encoding string `yaml:"encoding"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DataConfig struct {
	Source  string    `yaml:"source"`
	CsvPath string    `yaml:"csvPath"`
	Db      DbSecrets `yaml:"db"`
}

type DbSecrets struct {
	Host      string `yaml:"host"`
	User      string `yaml:"user"`
	Port      string `yaml:"port"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	EnableSsl bool   `yaml:"enableSsl"`
}

func (t DbSecrets) ToConnectionStr() string {
	x := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s",
		t.Host, t.Port, t.User, t.Password, t.Database)
	if !t.EnableSsl {
		x += " sslmode=disable"
	}
	return x
}

type TradingConfig struct {
	Mode      string  `yaml:"mode"`
	TopPct    float64 `yaml:"topPct"`
	BottomPct float64 `yaml:"bottomPct"`
	// 0 means the Target column is trusted as-is
	HoldingHorizon  int    `yaml:"holdingHorizon"`
	ScoreExpression string `yaml:"scoreExpression"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: 3009,
		},
		Data: DataConfig{
			Source: DataSourceCsv,
		},
		Trading: TradingConfig{
			Mode:      TradingModeQuantile,
			TopPct:    0.2,
			BottomPct: 0.2,
		},
	}
}

func configFile() string {
	if path := os.Getenv("SIM_CONFIG"); path != "" {
		return path
	}
	switch strings.ToLower(os.Getenv("SIM_ENV")) {
	case "dev":
		return "config-dev.yaml"
	case "test":
		return "config-test.yaml"
	}
	return "config.yaml"
}

// LoadConfig reads the yaml file for the current SIM_ENV,
// then applies env overrides (a .env file is honored if present)
func LoadConfig() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	f, err := os.ReadFile(configFile())
	if err != nil {
		return nil, fmt.Errorf("could not open config: %w", err)
	}

	cfg, err := ParseConfig(f)
	if err != nil {
		return nil, err
	}

	if pw := os.Getenv("SIM_DB_PASSWORD"); pw != "" {
		cfg.Data.Db.Password = pw
	}
	if port := os.Getenv("SIM_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid SIM_PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}

	return cfg, nil
}

// ParseConfig decodes yaml over the defaults. unknown
// fields are rejected
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c Config) Validate() error {
	if err := ValidateTradingMode(c.Trading.Mode); err != nil {
		return err
	}
	if err := ValidatePct("topPct", c.Trading.TopPct); err != nil {
		return err
	}
	if err := ValidatePct("bottomPct", c.Trading.BottomPct); err != nil {
		return err
	}
	if c.Trading.HoldingHorizon < 0 {
		return fmt.Errorf("holdingHorizon cannot be negative, got %d", c.Trading.HoldingHorizon)
	}

	if c.Logging.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
			return fmt.Errorf("invalid logging.level %q: %w", c.Logging.Level, err)
		}
	}
	if e := c.Logging.Encoding; e != "" && e != "json" && e != "console" {
		return fmt.Errorf("logging.encoding must be json or console, got %q", e)
	}

	switch c.Data.Source {
	case DataSourceCsv:
		if c.Data.CsvPath == "" {
			return fmt.Errorf("data.csvPath is required for csv source")
		}
	case DataSourcePostgres:
		if c.Data.Db.Host == "" {
			return fmt.Errorf("data.db.host is required for postgres source")
		}
	default:
		return fmt.Errorf("unknown data source %q", c.Data.Source)
	}

	return nil
}

func ValidateTradingMode(mode string) error {
	if mode != TradingModeQuantile && mode != TradingModeProbability {
		return fmt.Errorf("unknown trading mode %q", mode)
	}
	return nil
}

func ValidatePct(name string, pct float64) error {
	if !(pct > 0 && pct <= 1) {
		return fmt.Errorf("%s must be in (0, 1], got %f", name, pct)
	}
	return nil
}
