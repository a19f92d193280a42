package container

import (
	"time"

	"xcarry/internal/application/port"
	"xcarry/internal/application/service"
	domainsvc "xcarry/internal/domain/service"
)

// Deps 基础设施提供的端口实现
type Deps struct {
	Market    port.MarketData
	Orders    port.OrderExecutor
	Account   port.AccountReader
	Positions port.PositionStore
	Balances  port.BalanceStore
	Publisher port.EventPublisher
}

// Settings 服务参数
type Settings struct {
	Engine          service.EngineConfig
	Signal          service.SignalConfig
	DefaultLotStep  float64
	BalanceInterval time.Duration
}

// Container 按需创建应用服务
type Container struct {
	deps Deps
	set  Settings

	engine      *service.PositionEngine
	signals     *service.SignalService
	snapshotter *service.BalanceSnapshotter
}

func New(deps Deps, set Settings) *Container {
	if deps.Publisher == nil {
		deps.Publisher = service.NopPublisher{}
	}
	return &Container{deps: deps, set: set}
}

func (c *Container) Deps() Deps { return c.deps }

func (c *Container) PositionEngine() *service.PositionEngine {
	if c.engine == nil {
		normalizer := domainsvc.NewQuantityNormalizer(c.deps.Market, c.set.DefaultLotStep)
		c.engine = service.NewPositionEngine(
			c.deps.Market,
			c.deps.Orders,
			c.deps.Positions,
			c.deps.Publisher,
			normalizer,
			c.set.Engine,
		)
	}
	return c.engine
}

func (c *Container) SignalService() *service.SignalService {
	if c.signals == nil {
		c.signals = service.NewSignalService(c.deps.Market, c.deps.Publisher, c.set.Signal)
	}
	return c.signals
}

func (c *Container) BalanceSnapshotter() *service.BalanceSnapshotter {
	if c.snapshotter == nil {
		c.snapshotter = service.NewBalanceSnapshotter(c.deps.Account, c.deps.Balances, c.set.BalanceInterval)
	}
	return c.snapshotter
}
