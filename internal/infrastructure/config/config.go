package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
	BackendMemory   = "memory"
)

type Pair struct {
	Coin         string  `toml:"coin"`
	PerpSymbol   string  `toml:"perp_symbol"`
	FuturePrefix string  `toml:"future_prefix"`
	NotionalUSD  float64 `toml:"notional_usd"`
}

type Config struct {
	App struct {
		LogLevel           string `toml:"log_level"`
		RefreshIntervalMin int    `toml:"refresh_interval_min"`
		ReportConcurrency  int    `toml:"report_concurrency"`
	} `toml:"app"`

	Pairs []Pair `toml:"pairs"`

	Symbols struct {
		Quote string   `toml:"quote"` // 无 [[pairs]] 时按 coin + quote 生成
		Coins []string `toml:"coins"`
	} `toml:"symbols"`

	Strategy struct {
		FeeRate         float64 `toml:"fee_rate"`
		AbsThreshold    float64 `toml:"abs_threshold"`
		RatioMultiplier float64 `toml:"ratio_multiplier"`
		FundingWindow   int     `toml:"funding_window"`
		DefaultLotStep  float64 `toml:"default_lot_step"`
		FallbackDays    int     `toml:"fallback_days"`
	} `toml:"strategy"`

	Exchange struct {
		Binance struct {
			RestURL            string `toml:"rest_url"`
			WsURL              string `toml:"ws_url"`
			TimeoutSec         int    `toml:"timeout_sec"`
			MaxRetries         int    `toml:"max_retries"` // -1 关闭重试
			ExchangeInfoTTLSec int    `toml:"exchange_info_ttl_sec"`
			RecvWindow         int    `toml:"recv_window"`

			// 只从环境变量 / .env 读取
			APIKey    string `toml:"-"`
			APISecret string `toml:"-"`
		} `toml:"binance"`
	} `toml:"exchange"`

	Storage struct {
		Backend string `toml:"backend"`

		JSON struct {
			PositionsPath string `toml:"positions_path"`
			BalancePath   string `toml:"balance_path"`
		} `toml:"json"`

		SQLite struct {
			Path string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			DSN string `toml:"dsn"`
		} `toml:"postgres"`

		S3 struct {
			Enabled      bool   `toml:"enabled"` // 作为镜像写入
			Bucket       string `toml:"bucket"`
			Key          string `toml:"key"`
			Region       string `toml:"region"`
			Endpoint     string `toml:"endpoint"`
			UsePathStyle bool   `toml:"use_path_style"`
			AccessKey    string `toml:"-"`
			SecretKey    string `toml:"-"`
		} `toml:"s3"`

		Redis struct {
			Enabled  bool   `toml:"enabled"`
			Addr     string `toml:"addr"`
			Password string `toml:"password"`
			DB       int    `toml:"db"`
			Prefix   string `toml:"prefix"`
		} `toml:"redis"`
	} `toml:"storage"`

	Balance struct {
		IntervalMin int `toml:"interval_min"`
	} `toml:"balance"`
}

// Load 读取 toml；凭证从环境变量（或 .env）注入
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Exchange.Binance.APIKey = strings.TrimSpace(os.Getenv("BINANCE_API_KEY"))
	cfg.Exchange.Binance.APISecret = strings.TrimSpace(os.Getenv("BINANCE_API_SECRET"))
	cfg.Storage.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
	cfg.Storage.S3.SecretKey = os.Getenv("S3_SECRET_KEY")
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Storage.Redis.Password = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.RefreshIntervalMin <= 0 {
		cfg.App.RefreshIntervalMin = 10
	}
	if cfg.App.ReportConcurrency <= 0 {
		cfg.App.ReportConcurrency = 4
	}

	if cfg.Symbols.Quote == "" {
		cfg.Symbols.Quote = "USDT"
	}
	if len(cfg.Pairs) == 0 {
		coins := cfg.Symbols.Coins
		if len(coins) == 0 {
			coins = []string{"BTC", "ETH"}
		}
		for _, c := range coins {
			cfg.Pairs = append(cfg.Pairs, Pair{Coin: c})
		}
	}
	for i := range cfg.Pairs {
		p := &cfg.Pairs[i]
		p.Coin = strings.ToUpper(strings.TrimSpace(p.Coin))
		if p.PerpSymbol == "" {
			p.PerpSymbol = p.Coin + strings.ToUpper(cfg.Symbols.Quote)
		}
		if p.FuturePrefix == "" {
			p.FuturePrefix = p.PerpSymbol
		}
		p.PerpSymbol = strings.ToUpper(p.PerpSymbol)
		p.FuturePrefix = strings.ToUpper(p.FuturePrefix)
	}

	s := &cfg.Strategy
	if s.FeeRate <= 0 {
		s.FeeRate = 0.0004
	}
	if s.AbsThreshold <= 0 {
		s.AbsThreshold = 0.0003
	}
	if s.RatioMultiplier <= 0 {
		s.RatioMultiplier = 1.5
	}
	if s.FundingWindow <= 0 {
		s.FundingWindow = 3
	}
	if s.DefaultLotStep <= 0 {
		s.DefaultLotStep = 0.001
	}
	if s.FallbackDays <= 0 {
		s.FallbackDays = 90
	}

	b := &cfg.Exchange.Binance
	if b.RestURL == "" {
		b.RestURL = "https://fapi.binance.com"
	}
	if b.WsURL == "" {
		b.WsURL = "wss://fstream.binance.com"
	}
	if b.TimeoutSec <= 0 {
		b.TimeoutSec = 10
	}
	if b.MaxRetries < 0 {
		b.MaxRetries = 0
	} else if b.MaxRetries == 0 {
		b.MaxRetries = 2
	}
	if b.ExchangeInfoTTLSec <= 0 {
		b.ExchangeInfoTTLSec = 300
	}
	if b.RecvWindow <= 0 {
		b.RecvWindow = 5000
	}

	st := &cfg.Storage
	if st.Backend == "" {
		st.Backend = BackendJSON
	}
	st.Backend = strings.ToLower(strings.TrimSpace(st.Backend))
	if st.JSON.PositionsPath == "" {
		st.JSON.PositionsPath = "data/positions.json"
	}
	if st.JSON.BalancePath == "" {
		st.JSON.BalancePath = "data/balance_history.json"
	}
	if st.SQLite.Path == "" {
		st.SQLite.Path = "data/xcarry.db"
	}
	if st.S3.Key == "" {
		st.S3.Key = "xcarry/positions.json"
	}
	if st.S3.Region == "" {
		st.S3.Region = "us-east-1"
	}
	if st.Redis.Addr == "" {
		st.Redis.Addr = "127.0.0.1:6379"
	}
	if st.Redis.Prefix == "" {
		st.Redis.Prefix = "xcarry"
	}

	if cfg.Balance.IntervalMin <= 0 {
		cfg.Balance.IntervalMin = 60
	}
}

func validate(cfg *Config) error {
	seen := map[string]struct{}{}
	for _, p := range cfg.Pairs {
		if p.Coin == "" && p.PerpSymbol == "" {
			return errors.New("pairs: coin or perp_symbol required")
		}
		if _, ok := seen[p.PerpSymbol]; ok {
			return fmt.Errorf("pairs: duplicate perp_symbol %s", p.PerpSymbol)
		}
		seen[p.PerpSymbol] = struct{}{}
		if p.NotionalUSD < 0 {
			return fmt.Errorf("pairs: %s notional_usd must be >= 0", p.PerpSymbol)
		}
	}

	if cfg.Strategy.FeeRate >= 0.01 {
		return fmt.Errorf("strategy.fee_rate %v looks like a percentage", cfg.Strategy.FeeRate)
	}

	switch cfg.Storage.Backend {
	case BackendJSON, BackendSQLite, BackendMemory:
	case BackendPostgres:
		if strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
			return errors.New("storage.postgres.dsn empty but backend is postgres")
		}
	case BackendS3:
		if strings.TrimSpace(cfg.Storage.S3.Bucket) == "" {
			return errors.New("storage.s3.bucket empty but backend is s3")
		}
	default:
		return fmt.Errorf("storage.backend %q unknown", cfg.Storage.Backend)
	}
	if cfg.Storage.S3.Enabled && strings.TrimSpace(cfg.Storage.S3.Bucket) == "" {
		return errors.New("storage.s3.bucket empty but enabled")
	}
	return nil
}

// HasCredentials 是否可以调用签名接口
func (c *Config) HasCredentials() bool {
	return c.Exchange.Binance.APIKey != "" && c.Exchange.Binance.APISecret != ""
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Exchange.Binance.TimeoutSec) * time.Second
}

func (c *Config) ExchangeInfoTTL() time.Duration {
	return time.Duration(c.Exchange.Binance.ExchangeInfoTTLSec) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.App.RefreshIntervalMin) * time.Minute
}

func (c *Config) BalanceInterval() time.Duration {
	return time.Duration(c.Balance.IntervalMin) * time.Minute
}

// FindPair 按 coin 或永续合约代码查找
func (c *Config) FindPair(name string) (Pair, bool) {
	u := strings.ToUpper(strings.TrimSpace(name))
	for _, p := range c.Pairs {
		if p.Coin == u || p.PerpSymbol == u {
			return p, true
		}
	}
	return Pair{}, false
}
