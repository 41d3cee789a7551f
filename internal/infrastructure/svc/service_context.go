package svc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"klinerelay/internal/application/port"
	"klinerelay/internal/application/usecase/relay"
	"klinerelay/internal/infrastructure/agent"
	"klinerelay/internal/infrastructure/broadcast"
	"klinerelay/internal/infrastructure/config"
	_ "klinerelay/internal/infrastructure/exchange/binance"
	_ "klinerelay/internal/infrastructure/exchange/bybit"
	"klinerelay/internal/infrastructure/klinefeed"
	"klinerelay/internal/infrastructure/storage/composite"
	pgrepo "klinerelay/internal/infrastructure/storage/postgres"
	redisrepo "klinerelay/internal/infrastructure/storage/redis"
	sqliterepo "klinerelay/internal/infrastructure/storage/sqlite"
	"klinerelay/internal/infrastructure/trace"
	"klinerelay/internal/infrastructure/websocket"
	"klinerelay/internal/interfaces/console"
	"klinerelay/internal/interfaces/httpapi"
)

const shutdownTimeout = 5 * time.Second

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层
	stream    port.KlineStream
	agent     *agent.Client
	hub       *websocket.Hub
	redisRepo *redisrepo.Repo
	repos     *composite.Repo
	console   *console.Sink

	// 应用层
	relay  *relay.Service
	server *http.Server

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext，所有依赖按顺序在这里完成初始化
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		closerChain: make([]func() error, 0),
	}
	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

func (sc *ServiceContext) initializeComponents() error {
	if err := trace.Init(sc.Config.Tracing.Enabled); err != nil {
		return fmt.Errorf("tracing initialization failed: %w", err)
	}
	sc.closerChain = append(sc.closerChain, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return trace.Shutdown(ctx)
	})

	// 0. 存储层
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}

	// 1. 行情流
	if err := sc.initializeStream(); err != nil {
		return err
	}

	// 2. 决策代理
	sc.agent = agent.NewClient(agent.Config{
		BaseURL:        sc.Config.Agent.BaseURL,
		Timeout:        sc.Config.AgentTimeout(),
		ConnectTimeout: sc.Config.AgentConnectTimeout(),
		MaxRPS:         sc.Config.Agent.MaxRPS,
	})

	// 3. 推送
	sc.hub = websocket.NewHub()
	sc.closerChain = append(sc.closerChain, sc.hub.Close)
	sinks := []port.Broadcaster{sc.hub}
	if sc.redisRepo != nil {
		sinks = append(sinks, sc.redisRepo)
	}
	if sc.Config.App.Console {
		sc.console = console.NewSink()
		sinks = append(sinks, sc.console)
	}

	// 4. 管道
	sc.relay = relay.NewService(relay.ServiceDeps{
		Stream:                sc.stream,
		Agent:                 sc.agent,
		Broadcaster:           broadcast.New(sinks...),
		Repo:                  sc.repos,
		Symbol:                sc.Config.Stream.Symbol,
		InitialBalance:        sc.Config.Trading.InitialBalance,
		DiscardStaleDecisions: sc.Config.DiscardStaleDecisions(),
	})

	// 5. 查询接口
	sc.server = &http.Server{
		Addr:              sc.Config.App.HTTPAddr,
		Handler:           httpapi.NewHandler(sc.relay, sc.hub, websocket.TopicMarket, websocket.TopicDecision),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().
		Str("exchange", sc.stream.Name()).
		Int("repos", sc.repos.Len()).
		Int("sinks", len(sinks)).
		Msg("✓ All components initialized")
	return nil
}

// initializeStorage 初始化存储层 (Redis、SQLite、Postgres)，都是可选的
// 每个仓储创建后立即注册关闭回调，后续失败时已创建的连接也会被关闭
func (sc *ServiceContext) initializeStorage() error {
	var repos []port.StateRepository
	defer func() {
		sc.repos = composite.New(repos...)
	}()

	if sc.Config.Storage.Redis.Enabled {
		if err := sc.initRedis(); err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		repos = append(repos, sc.redisRepo)
		sc.addCloser("redis", sc.redisRepo.Close)
	}

	if sc.Config.Storage.SQLite.Enabled {
		repo, err := sqliterepo.New(sc.Config.Storage.SQLite.Path)
		if err != nil {
			return fmt.Errorf("sqlite repo creation failed: %w", err)
		}
		repos = append(repos, repo)
		sc.addCloser("sqlite", repo.Close)
		log.Info().Str("path", sc.Config.Storage.SQLite.Path).Msg("✓ SQLite initialized")
	}

	if sc.Config.Storage.Postgres.Enabled {
		repo, err := pgrepo.New(sc.Config.Storage.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("postgres repo creation failed: %w", err)
		}
		repos = append(repos, repo)
		sc.addCloser("postgres", repo.Close)
		log.Info().Msg("✓ Postgres initialized")
	}
	return nil
}

func (sc *ServiceContext) addCloser(name string, fn func() error) {
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Str("resource", name).Msg("closing")
		return fn()
	})
}

// initRedis 初始化 Redis 连接
func (sc *ServiceContext) initRedis() error {
	rcfg := sc.Config.Storage.Redis
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     rcfg.Addr,
		Password: rcfg.Password,
		DB:       rcfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := time.Duration(rcfg.TTLSeconds) * time.Second
	sc.redisRepo = redisrepo.New(rdb, rcfg.Prefix, ttl, rcfg.TickChannel, rcfg.DecisionChannel)

	log.Info().
		Str("addr", rcfg.Addr).
		Int("db", rcfg.DB).
		Str("tick_channel", sc.redisRepo.TickChannel()).
		Str("decision_channel", sc.redisRepo.DecisionChannel()).
		Msg("✓ Redis initialized")
	return nil
}

func (sc *ServiceContext) initializeStream() error {
	factory, ok := klinefeed.Get(sc.Config.Stream.Exchange)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStreamNotRegistered, sc.Config.Stream.Exchange)
	}
	s := sc.Config.Stream
	stream, err := factory(klinefeed.Options{
		URL:             s.URL,
		BaseURL:         s.BaseURL,
		Symbol:          s.Symbol,
		Interval:        s.Interval,
		FinalBarsOnly:   s.FinalBarsOnly,
		RetryInitial:    sc.Config.RetryInitialDelay(),
		RetryMax:        sc.Config.RetryMaxDelay(),
		RetryMultiplier: s.Retry.Multiplier,
		ReadTimeout:     time.Duration(s.ReadTimeoutSec) * time.Second,
		PingInterval:    time.Duration(s.PingIntervalSec) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("kline stream creation failed: %w", err)
	}
	sc.stream = stream
	return nil
}

// Relay 获取转发管道
func (sc *ServiceContext) Relay() *relay.Service {
	return sc.relay
}

// Run 恢复最新状态，启动查询接口，然后运行管道直到 ctx 结束
func (sc *ServiceContext) Run(ctx context.Context) error {
	if err := sc.relay.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("restore latest state failed")
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", sc.server.Addr).Msg("http server listening")
		if err := sc.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err, ok := <-srvErr; ok {
			log.Error().Err(err).Msg("http server failed")
			cancel()
		}
	}()

	err := sc.relay.Run(runCtx)

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if serr := sc.server.Shutdown(shutdownCtx); serr != nil {
		log.Error().Err(serr).Msg("http server shutdown failed")
	}
	if sc.console != nil {
		_ = sc.console.NewLine()
	}

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Close 按照相反的顺序关闭所有资源
func (sc *ServiceContext) Close() error {
	var errs []error
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
			errs = append(errs, err)
		}
	}
	sc.closerChain = nil
	return errors.Join(errs...)
}
