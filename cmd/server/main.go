package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mathieu-neron/packprice/packprice-go/internal/config"
	"github.com/mathieu-neron/packprice/packprice-go/internal/db"
	"github.com/mathieu-neron/packprice/packprice-go/internal/handler"
	"github.com/mathieu-neron/packprice/packprice-go/internal/metrics"
	"github.com/mathieu-neron/packprice/packprice-go/internal/middleware"
	"github.com/mathieu-neron/packprice/packprice-go/internal/repository"
	"github.com/mathieu-neron/packprice/packprice-go/internal/router"
	"github.com/mathieu-neron/packprice/packprice-go/internal/service"
)

func main() {
	cfg := config.Load()
	middleware.InitLogger(cfg.LogLevel, "packprice-go")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	metrics.Register(pool)

	// Redis when reachable, otherwise an in-process cache
	var (
		cache service.Cache
		rdb   *redis.Client
	)
	redisCache := service.NewCacheService(cfg.RedisURL)
	if redisCache.Enabled() {
		cache = redisCache
		rdb = redisCache.Client()
		defer redisCache.Close()
	} else {
		mem := service.NewMemoryCache()
		go mem.StartJanitor(ctx, time.Minute)
		cache = mem
	}

	// Repositories
	priceRepo := repository.NewPriceRepo(pool)
	voteRepo := repository.NewVoteRepo(pool)
	storeRepo := repository.NewStoreRepo(pool)

	// Services
	trust := service.NewTrustService(priceRepo)
	gate := service.NewSubmissionGate(
		service.NewRateLimiter(cache, service.PriceRateLimitPrefix),
		trust,
		cache,
		service.GateConfig{
			Window:         cfg.RateLimitWindow,
			MaxSubmissions: cfg.RateLimitMax,
			IPHashSalt:     cfg.IPHashSalt,
		},
	)
	engine := service.NewScoringEngine()
	stats := service.NewStatsService(priceRepo, cache, cfg.StatsCacheTTL)
	prices := service.NewPriceService(priceRepo, storeRepo, gate, trust, engine, stats, cache, service.PriceConfig{
		ProximityRadiusMiles: cfg.ProximityRadiusMiles,
		DistanceCacheTTL:     cfg.DistanceCacheTTL,
	})
	votes := service.NewVoteService(
		voteRepo,
		service.NewRateLimiter(cache, service.VoteRateLimitPrefix),
		cfg.RateLimitWindow,
		cfg.VoteRateLimitMax,
	)
	flags := service.NewFlagService(priceRepo, cache, cfg.FlagBlockThreshold, cfg.IPBlockTTL)

	// Background smart score refresh
	worker := service.NewScoreWorker(priceRepo, engine, cfg.ScoreRefreshInterval, cfg.ScoreWorkerConcurrency)
	go worker.Start(ctx)
	defer worker.Stop()

	app := fiber.New(fiber.Config{
		AppName:      "PackPrice API",
		ServerHeader: "PackPrice",
		TrustProxy:   true,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies:  cfg.TrustedProxies,
			Loopback: true,
		},
	})

	stopThrottles := router.Setup(app, &router.Handlers{
		Price:    handler.NewPriceHandler(prices),
		Vote:     handler.NewVoteHandler(votes),
		Flag:     handler.NewFlagHandler(flags),
		Security: handler.NewSecurityHandler(gate),
		Stats:    handler.NewStatsHandler(stats),
		Health:   handler.NewHealthHandler(pool, rdb),
	}, cfg.CORSOrigins)
	defer stopThrottles()

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("PackPrice Go backend starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}
