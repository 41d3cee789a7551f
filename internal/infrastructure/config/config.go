package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// 环境变量覆盖（可放在 .env 中）
const (
	EnvStreamURL      = "KLINERELAY_STREAM_URL"
	EnvAgentBaseURL   = "KLINERELAY_AGENT_BASE_URL"
	EnvInitialBalance = "KLINERELAY_INITIAL_BALANCE"
	EnvRedisPassword  = "KLINERELAY_REDIS_PASSWORD"
	EnvPostgresDSN    = "KLINERELAY_POSTGRES_DSN"
)

type Config struct {
	App struct {
		LogLevel string `toml:"log_level"`
		Console  bool   `toml:"console"`   // 终端实时行
		HTTPAddr string `toml:"http_addr"` // 查询接口与 WebSocket 推送
	} `toml:"app"`

	Stream struct {
		Exchange        string `toml:"exchange"`
		URL             string `toml:"url"`      // e.g. wss://stream.binance.com:9443/ws/btcusdt@kline_1m
		BaseURL         string `toml:"base_url"` // 为空时使用交易所默认地址
		Symbol          string `toml:"symbol"`
		Interval        string `toml:"interval"`
		FinalBarsOnly   bool   `toml:"final_bars_only"`
		ReadTimeoutSec  int    `toml:"read_timeout_sec"`
		PingIntervalSec int    `toml:"ping_interval_sec"`

		Retry struct {
			InitialDelayMs int     `toml:"initial_delay_ms"`
			MaxDelayMs     int     `toml:"max_delay_ms"`
			Multiplier     float64 `toml:"multiplier"`
		} `toml:"retry"`
	} `toml:"stream"`

	Agent struct {
		BaseURL          string  `toml:"base_url"`
		TimeoutMs        int     `toml:"timeout_ms"`
		ConnectTimeoutMs int     `toml:"connect_timeout_ms"`
		MaxRPS           float64 `toml:"max_rps"`
	} `toml:"agent"`

	Trading struct {
		InitialBalance float64 `toml:"initial_balance"`
	} `toml:"trading"`

	Pipeline struct {
		DiscardStaleDecisions *bool `toml:"discard_stale_decisions"`
	} `toml:"pipeline"`

	Storage struct {
		Redis struct {
			Enabled         bool   `toml:"enabled"`
			Addr            string `toml:"addr"`
			Password        string `toml:"password"`
			DB              int    `toml:"db"`
			Prefix          string `toml:"prefix"`
			TTLSeconds      int    `toml:"ttl_seconds"`
			TickChannel     string `toml:"tick_channel"`
			DecisionChannel string `toml:"decision_channel"`
		} `toml:"redis"`

		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`
	} `toml:"storage"`

	Tracing struct {
		Enabled bool `toml:"enabled"`
	} `toml:"tracing"`
}

// Load 读取 TOML 配置，加载 .env（若存在）后应用环境变量覆盖、默认值并校验
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	_ = godotenv.Load() // best-effort
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvStreamURL)); v != "" {
		cfg.Stream.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAgentBaseURL)); v != "" {
		cfg.Agent.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvInitialBalance)); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvInitialBalance, err)
		}
		cfg.Trading.InitialBalance = f
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Storage.Redis.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = ":8080"
	}
	if cfg.Stream.Exchange == "" {
		cfg.Stream.Exchange = "BINANCE"
	}
	cfg.Stream.Exchange = strings.ToUpper(strings.TrimSpace(cfg.Stream.Exchange))
	// 显式 url 且 symbol 为空时不过滤交易对
	if cfg.Stream.Symbol == "" && strings.TrimSpace(cfg.Stream.URL) == "" {
		cfg.Stream.Symbol = "BTCUSDT"
	}
	cfg.Stream.Symbol = strings.ToUpper(strings.TrimSpace(cfg.Stream.Symbol))
	if cfg.Stream.Interval == "" {
		cfg.Stream.Interval = "1m"
	}
	if cfg.Stream.ReadTimeoutSec <= 0 {
		cfg.Stream.ReadTimeoutSec = 60
	}
	if cfg.Stream.PingIntervalSec <= 0 {
		cfg.Stream.PingIntervalSec = 25
	}
	if cfg.Stream.Retry.InitialDelayMs < 0 {
		cfg.Stream.Retry.InitialDelayMs = 0
	}
	if cfg.Stream.Retry.InitialDelayMs == 0 && cfg.Stream.Retry.MaxDelayMs == 0 {
		cfg.Stream.Retry.InitialDelayMs = 500
	}
	if cfg.Stream.Retry.MaxDelayMs < cfg.Stream.Retry.InitialDelayMs {
		cfg.Stream.Retry.MaxDelayMs = 10000
		if cfg.Stream.Retry.MaxDelayMs < cfg.Stream.Retry.InitialDelayMs {
			cfg.Stream.Retry.MaxDelayMs = cfg.Stream.Retry.InitialDelayMs
		}
	}
	if cfg.Stream.Retry.Multiplier < 1 {
		cfg.Stream.Retry.Multiplier = 2
	}
	if cfg.Agent.TimeoutMs <= 0 {
		cfg.Agent.TimeoutMs = 5000
	}
	if cfg.Agent.ConnectTimeoutMs <= 0 {
		cfg.Agent.ConnectTimeoutMs = 3000
	}
	if cfg.Pipeline.DiscardStaleDecisions == nil {
		v := true
		cfg.Pipeline.DiscardStaleDecisions = &v
	}
	if cfg.Storage.Redis.Addr == "" {
		cfg.Storage.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "klinerelay"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/klinerelay.db"
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Agent.BaseURL) == "" {
		return errors.New("agent.base_url is empty")
	}
	if cfg.Agent.MaxRPS < 0 {
		return errors.New("agent.max_rps must be >= 0")
	}
	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	return nil
}

func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.Agent.TimeoutMs) * time.Millisecond
}

func (c *Config) AgentConnectTimeout() time.Duration {
	return time.Duration(c.Agent.ConnectTimeoutMs) * time.Millisecond
}

func (c *Config) RetryInitialDelay() time.Duration {
	return time.Duration(c.Stream.Retry.InitialDelayMs) * time.Millisecond
}

func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Stream.Retry.MaxDelayMs) * time.Millisecond
}

func (c *Config) DiscardStaleDecisions() bool {
	return c.Pipeline.DiscardStaleDecisions == nil || *c.Pipeline.DiscardStaleDecisions
}
