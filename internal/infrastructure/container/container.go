package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	appcontainer "xcarry/internal/application/container"
	"xcarry/internal/application/port"
	"xcarry/internal/application/service"
	"xcarry/internal/domain/model"
	domainsvc "xcarry/internal/domain/service"
	"xcarry/internal/infrastructure/config"
	"xcarry/internal/infrastructure/exchange/binance"
	"xcarry/internal/infrastructure/storage"
	"xcarry/internal/infrastructure/storage/composite"
	"xcarry/internal/infrastructure/storage/jsonfile"
	pgrepo "xcarry/internal/infrastructure/storage/postgres"
	redisrepo "xcarry/internal/infrastructure/storage/redis"
	s3store "xcarry/internal/infrastructure/storage/s3"
	sqliterepo "xcarry/internal/infrastructure/storage/sqlite"
)

// EventReader 可回看的事件日志（sqlite 后端）
type EventReader interface {
	Recent(ctx context.Context, n int) ([]model.PositionEvent, error)
}

// Container 包含所有应用依赖
type Container struct {
	cfg     *config.Config
	clients *binance.Clients
	app     *appcontainer.Container

	positions port.PositionStore
	balances  port.BalanceStore
	publisher *composite.Publisher
	events    EventReader

	closeOnce   sync.Once
	closerChain []func() error
}

// New 创建新的容器实例
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}

	b := cfg.Exchange.Binance
	c.clients = binance.NewClients(binance.Options{
		BaseURL:         b.RestURL,
		APIKey:          b.APIKey,
		APISecret:       b.APISecret,
		Timeout:         cfg.Timeout(),
		MaxRetries:      b.MaxRetries,
		RecvWindow:      b.RecvWindow,
		ExchangeInfoTTL: cfg.ExchangeInfoTTL(),
	})

	var pubs []port.EventPublisher
	if err := c.initStorage(ctx, &pubs); err != nil {
		// 清理已初始化的资源
		_ = c.Close()
		return nil, err
	}
	if cfg.Storage.Redis.Enabled {
		pub, err := c.initRedis(ctx)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("redis init failed: %w", err)
		}
		pubs = append(pubs, pub)
	}
	c.publisher = composite.NewPublisher(pubs...)

	c.app = appcontainer.New(appcontainer.Deps{
		Market:    c.clients.Market,
		Orders:    c.clients.Orders,
		Account:   c.clients.Account,
		Positions: c.positions,
		Balances:  c.balances,
		Publisher: c.publisher,
	}, settingsFrom(cfg))

	return c, nil
}

func settingsFrom(cfg *config.Config) appcontainer.Settings {
	s := cfg.Strategy
	return appcontainer.Settings{
		Engine: service.EngineConfig{
			FeeRate:           s.FeeRate,
			FundingWindow:     s.FundingWindow,
			ReportConcurrency: cfg.App.ReportConcurrency,
		},
		Signal: service.SignalConfig{
			Thresholds: domainsvc.SignalThresholds{
				AbsThreshold:    s.AbsThreshold,
				RatioMultiplier: s.RatioMultiplier,
			},
			FundingWindow: s.FundingWindow,
			FallbackDays:  s.FallbackDays,
		},
		DefaultLotStep:  s.DefaultLotStep,
		BalanceInterval: cfg.BalanceInterval(),
	}
}

// initStorage 按 backend 选择主存储，S3 可作为镜像
func (c *Container) initStorage(ctx context.Context, pubs *[]port.EventPublisher) error {
	st := c.cfg.Storage

	switch st.Backend {
	case config.BackendMemory:
		c.positions = storage.NewInMemoryPositionStore()
		c.balances = storage.NewInMemoryBalanceStore()

	case config.BackendJSON:
		c.positions = jsonfile.NewPositionStore(st.JSON.PositionsPath)
		c.balances = jsonfile.NewBalanceStore(st.JSON.BalancePath)

	case config.BackendSQLite:
		repo, err := sqliterepo.New(st.SQLite.Path)
		if err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
		c.closerChain = append(c.closerChain, func() error {
			log.Info().Msg("closing sqlite connection")
			return repo.Close()
		})
		c.positions = repo.Positions()
		c.balances = repo.Balances()
		events := repo.Events()
		c.events = events
		*pubs = append(*pubs, events)
		log.Info().Str("path", st.SQLite.Path).Msg("sqlite initialized")

	case config.BackendPostgres:
		repo, err := pgrepo.New(st.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
		c.closerChain = append(c.closerChain, func() error {
			log.Info().Msg("closing postgres connection")
			return repo.Close()
		})
		c.positions = repo.Positions()
		c.balances = repo.Balances()
		*pubs = append(*pubs, repo.Events())
		log.Info().Msg("postgres initialized")

	case config.BackendS3:
		store, err := c.newS3(ctx)
		if err != nil {
			return err
		}
		c.positions = store
		c.balances = jsonfile.NewBalanceStore(st.JSON.BalancePath)

	default:
		return fmt.Errorf("unknown storage backend %q", st.Backend)
	}

	if st.S3.Enabled && st.Backend != config.BackendS3 {
		mirror, err := c.newS3(ctx)
		if err != nil {
			return err
		}
		c.positions = composite.NewPositionStore(c.positions, mirror)
		log.Info().Str("bucket", st.S3.Bucket).Str("key", st.S3.Key).Msg("s3 mirror enabled")
	}
	return nil
}

func (c *Container) newS3(ctx context.Context) (*s3store.PositionStore, error) {
	s := c.cfg.Storage.S3
	store, err := s3store.New(ctx, s3store.Config{
		Bucket:       s.Bucket,
		Key:          s.Key,
		Region:       s.Region,
		Endpoint:     s.Endpoint,
		UsePathStyle: s.UsePathStyle,
		AccessKey:    s.AccessKey,
		SecretKey:    s.SecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 init failed: %w", err)
	}
	return store, nil
}

// initRedis 初始化 Redis 连接
func (c *Container) initRedis(ctx context.Context) (*redisrepo.Repo, error) {
	r := c.cfg.Storage.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
	})
	repo := redisrepo.New(rdb, r.Prefix, 0)

	// 测试连接
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := repo.Ping(pctx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	// 注册关闭回调
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return repo.Close()
	})

	log.Info().
		Str("addr", r.Addr).
		Int("db", r.DB).
		Str("stream", repo.StreamKey()).
		Msg("redis initialized")
	return repo, nil
}

// Config 获取配置
func (c *Container) Config() *config.Config { return c.cfg }

// App 应用层服务
func (c *Container) App() *appcontainer.Container { return c.app }

// PriceFeed 标记价格 websocket
func (c *Container) PriceFeed() port.PriceFeed {
	return binance.NewMarkPriceFeed(c.cfg.Exchange.Binance.WsURL)
}

// Market 供 watch 解析合约
func (c *Container) Market() *binance.MarketClient { return c.clients.Market }

// Events 仅 sqlite 后端可回看
func (c *Container) Events() (EventReader, bool) {
	return c.events, c.events != nil
}

// Pairs 配置中的交易对
func (c *Container) Pairs() []service.Pair {
	out := make([]service.Pair, 0, len(c.cfg.Pairs))
	for _, p := range c.cfg.Pairs {
		out = append(out, service.Pair{
			Coin:         p.Coin,
			PerpSymbol:   p.PerpSymbol,
			FuturePrefix: p.FuturePrefix,
			NotionalUSD:  p.NotionalUSD,
		})
	}
	return out
}

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Debug().Msg("container closed")
	})
	return err
}
