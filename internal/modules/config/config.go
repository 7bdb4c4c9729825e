package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDir         = "configs"
	defaultConfigFile = "values_local.yaml"
	envPrefix         = "TRADER"
)

// Config ...
type Config struct {
	Service struct {
		Name string `mapstructure:"name"`
		Addr string `mapstructure:"addr"`
	} `mapstructure:"service"`

	Log struct {
		Level string `mapstructure:"level"`
		JSON  bool   `mapstructure:"json"`
	} `mapstructure:"log"`

	ProjectX struct {
		BaseURL  string        `mapstructure:"base_url"`
		UserName string        `mapstructure:"username"`
		APIKey   string        `mapstructure:"api_key"`
		Timeout  time.Duration `mapstructure:"timeout"`
		TokenTTL time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"projectx"`

	Storage struct {
		Driver       string        `mapstructure:"driver"` // memory | postgres | sqlite
		DSN          string        `mapstructure:"dsn"`
		HistoryLimit int           `mapstructure:"history_limit"`
		PingInterval time.Duration `mapstructure:"ping_interval"`
	} `mapstructure:"storage"`

	Trading struct {
		DedupTTL         time.Duration `mapstructure:"dedup_ttl"`
		DefaultOrderSize float64       `mapstructure:"default_order_size"`
		DefaultDirection string        `mapstructure:"default_direction"`
		DefaultOrderType int           `mapstructure:"default_order_type"`
		DefaultTickSize  float64       `mapstructure:"default_tick_size"`
		ContractsFile    string        `mapstructure:"contracts_file"`
	} `mapstructure:"trading"`

	Runner struct {
		Workers   int `mapstructure:"workers"`
		QueueSize int `mapstructure:"queue_size"`
	} `mapstructure:"runner"`

	Monitor struct {
		Interval          time.Duration `mapstructure:"interval"`
		HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
		// legacy: one >= comparison for both sides; mirror: <= for SHORT
		ShortMode string `mapstructure:"short_mode"`
	} `mapstructure:"monitor"`

	Telegram struct {
		Token  string `mapstructure:"token"`
		ChatID int64  `mapstructure:"chat_id"`
	} `mapstructure:"telegram"`

	Tracing struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"tracing"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "signal_trader")
	v.SetDefault("service.addr", ":8000")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)

	v.SetDefault("projectx.base_url", "https://api.topstepx.com/api")
	v.SetDefault("projectx.username", "")
	v.SetDefault("projectx.api_key", "")
	v.SetDefault("projectx.timeout", "5s")
	v.SetDefault("projectx.token_ttl", "23h")

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.history_limit", 100)
	v.SetDefault("storage.ping_interval", "60s")

	v.SetDefault("trading.dedup_ttl", "5s")
	v.SetDefault("trading.default_order_size", 1)
	v.SetDefault("trading.default_direction", "long")
	v.SetDefault("trading.default_order_type", 2)
	v.SetDefault("trading.default_tick_size", 0.01)
	v.SetDefault("trading.contracts_file", "")

	v.SetDefault("runner.workers", 200)
	v.SetDefault("runner.queue_size", 4096)

	v.SetDefault("monitor.interval", "10s")
	v.SetDefault("monitor.heartbeat_interval", "300s")
	v.SetDefault("monitor.short_mode", "legacy")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("tracing.host", "")
	v.SetDefault("tracing.port", 6831)
}

// NewConfig reads configs/$CONFIG_FILE (values_local.yaml by default), .env and
// TRADER_* variables, in increasing priority.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = defaultConfigFile
	}
	return Load(filepath.Join(configDir, configFileName))
}

// Load reads one yaml file; a missing file leaves defaults and env in place.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// credentials keep the names the old deployment used
	_ = v.BindEnv("projectx.username", envPrefix+"_PROJECTX_USERNAME", "TS_USERNAME")
	_ = v.BindEnv("projectx.api_key", envPrefix+"_PROJECTX_API_KEY", "TS_API_KEY")
	_ = v.BindEnv("telegram.token", envPrefix+"_TELEGRAM_TOKEN", "TELEGRAM_TOKEN")
	_ = v.BindEnv("storage.dsn", envPrefix+"_STORAGE_DSN", "DATABASE_DSN")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, pkgerrors.Wrapf(err, "read config %s", path)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, pkgerrors.Wrap(err, "decode config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres", "sqlite":
	default:
		return pkgerrors.Errorf("storage.driver %q: want memory, postgres or sqlite", c.Storage.Driver)
	}
	if c.Storage.Driver != "memory" && c.Storage.DSN == "" {
		return pkgerrors.Errorf("storage.dsn is required for %s", c.Storage.Driver)
	}
	switch c.Monitor.ShortMode {
	case "legacy", "mirror":
	default:
		return pkgerrors.Errorf("monitor.short_mode %q: want legacy or mirror", c.Monitor.ShortMode)
	}
	if c.Runner.Workers <= 0 || c.Runner.QueueSize <= 0 {
		return pkgerrors.New("runner.workers and runner.queue_size must be positive")
	}
	if c.Monitor.Interval <= 0 || c.Monitor.HeartbeatInterval <= 0 || c.Storage.PingInterval <= 0 {
		return pkgerrors.New("monitor.interval, monitor.heartbeat_interval and storage.ping_interval must be positive")
	}
	return nil
}
