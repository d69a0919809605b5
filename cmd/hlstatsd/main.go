package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/hlstatsd/hlstatsd/internal/archive"
	"github.com/hlstatsd/hlstatsd/internal/config"
	"github.com/hlstatsd/hlstatsd/internal/engine"
	"github.com/hlstatsd/hlstatsd/internal/handler"
	"github.com/hlstatsd/hlstatsd/internal/identity"
	"github.com/hlstatsd/hlstatsd/internal/listener"
	"github.com/hlstatsd/hlstatsd/internal/publish"
	"github.com/hlstatsd/hlstatsd/internal/registry"
	"github.com/hlstatsd/hlstatsd/internal/store"
	"github.com/hlstatsd/hlstatsd/internal/web"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	// Publish payloads carry random UUIDs; fail fast if the entropy
	// source is broken.
	if _, err := uuid.NewRandom(); err != nil {
		return fmt.Errorf("uuid preflight: %w", err)
	}

	// Postgres is required; everything else is optional.
	pool, err := pgxpool.New(startCtx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(startCtx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if err := store.Migrate(startCtx, pool); err != nil {
		return err
	}
	st := store.New(pool, logger)
	logger.Infow("postgres connected")

	var redisClient *redis.Client
	var publisher handler.Publisher
	if cfg.PublishEnabled() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(startCtx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		publisher = publish.NewRedis(redisClient, logger)
		logger.Infow("redis connected, live publishing enabled")
	} else {
		logger.Infow("redis not configured, live publishing disabled")
	}

	var arch *archive.Archive
	var archiver engine.Archiver
	if cfg.ArchiveEnabled() {
		opts, err := clickhouse.ParseDSN(cfg.ClickHouseURL)
		if err != nil {
			return fmt.Errorf("parse clickhouse url: %w", err)
		}
		conn, err := clickhouse.Open(opts)
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		defer conn.Close()
		if err := conn.Ping(startCtx); err != nil {
			return fmt.Errorf("ping clickhouse: %w", err)
		}
		if err := store.MigrateClickHouse(startCtx, conn); err != nil {
			return err
		}
		arch = archive.New(conn, cfg.ArchiveBatchSize, cfg.ArchiveFlushInterval, logger)
		arch.Start()
		archiver = arch
		logger.Infow("clickhouse connected, raw-line archive enabled")
	} else {
		logger.Infow("clickhouse not configured, raw-line archive disabled")
	}

	reg := registry.New(st.Servers, cfg.SkipAuth, cfg.DefaultGame, logger)
	resolver := identity.NewResolver(st.Players, logger)

	ranking := handler.NewRanking(st.Players, st.Weapons, st.Events, logger)
	action := handler.NewAction(st.Events, st.Actions, st.Players, logger)
	serverStats := handler.NewServerStats(st.Servers, publisher, logger)
	handlers := engine.Handlers{
		Persister:   handler.NewPersister(st.Events, action, logger),
		Player:      handler.NewPlayer(st.Players, ranking, logger),
		Weapon:      handler.NewWeapon(st, logger),
		Match:       handler.NewMatch(st, st.Servers, logger),
		ServerStats: serverStats,
		Ranking:     ranking,
	}

	eng := engine.New(engine.Config{
		Lanes:     cfg.WorkerLanes,
		QueueSize: cfg.LaneQueueSize,
		SkipAuth:  cfg.SkipAuth,
		LogBots:   cfg.LogBots,
	}, reg, resolver, handlers, archiver, logger)
	eng.Start()

	udp := listener.New(listener.Config{
		Host:          cfg.UDPHost,
		Port:          cfg.UDPPort,
		MaxPacketSize: cfg.MaxPacketSize,
		RatePerMinute: cfg.RateLimitPerMinute,
		RateBurst:     cfg.RateLimitBurst,
	}, eng, logger)
	if err := udp.Start(); err != nil {
		eng.Stop()
		return fmt.Errorf("start listener: %w", err)
	}

	webCfg := web.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
		StorageCheck:   pool.Ping,
		QueueDepth:     eng.QueueDepth,
		Counters:       eng.Snapshot,
		Sources:        udp.Sources,
		Servers:        st.Servers.List,
		ActivePlayers:  serverStats.ActivePlayersOn,
		Lanes:          cfg.WorkerLanes,
	}
	if publisher != nil {
		webCfg.PublishCheck = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if arch != nil {
		webCfg.ArchiveCheck = arch.Ping
	}
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: web.New(webCfg).Router(),
	}

	logger.Infow("hlstatsd started",
		"udp", fmt.Sprintf("%s:%d", cfg.UDPHost, cfg.UDPPort),
		"http", cfg.HTTPAddr,
		"lanes", cfg.WorkerLanes,
		"skipAuth", cfg.SkipAuth)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infow("shutting down")

		// Stop intake first, drain the pipeline, then flush the
		// archive and close the HTTP surface.
		udp.Stop()
		eng.Stop()
		if arch != nil {
			arch.Stop()
		}

		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Infow("hlstatsd stopped")
	return nil
}

func newLogger(level string) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	log, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return log.Sugar(), nil
}
