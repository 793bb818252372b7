package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/tazhibayda/expired-service/docs"
	"github.com/tazhibayda/expired-service/internal/config"
	"github.com/tazhibayda/expired-service/internal/domain"
	"github.com/tazhibayda/expired-service/internal/expired"
	api "github.com/tazhibayda/expired-service/internal/http"
	"github.com/tazhibayda/expired-service/internal/log"
	"github.com/tazhibayda/expired-service/internal/metrics"
	"github.com/tazhibayda/expired-service/internal/queue"
	"github.com/tazhibayda/expired-service/internal/ratelimit"
	"github.com/tazhibayda/expired-service/internal/repo"
	"github.com/tazhibayda/expired-service/internal/repo/memstore"
	"github.com/tazhibayda/expired-service/internal/report"
	"github.com/tazhibayda/expired-service/internal/search"
	"github.com/tazhibayda/expired-service/internal/security"
	"github.com/tazhibayda/expired-service/internal/view"
	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const cacheChannel = "expired:allowed-categories"

func main() {
	cfg := config.Load()

	logger, err := log.Init(cfg.LogProduction)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.DDTraceEnabled {
		tracer.Start(tracer.WithService("expired-service"))
		defer tracer.Stop()
	}
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	var (
		limiter ratelimit.Limiter = ratelimit.NewMemory()
		bus     *repo.Bus
	)
	if cfg.RedisAddr != "" {
		rds := repo.NewRedis(cfg.RedisAddr)
		defer rds.Close()
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rds.Ping(pctx); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		cancel()
		limiter = ratelimit.NewRedis(rds.C, "rl:")
		bus = rds.Bus(cacheChannel)
		bus.Log = logger
	}

	var pub queue.Publisher = queue.NewNoop()
	if cfg.RabbitURL != "" {
		if pub, err = queue.NewRabbit(cfg.RabbitURL, cfg.RabbitExchange); err != nil {
			logger.Fatal("rabbit publisher", zap.Error(err))
		}
	}
	defer pub.Close()

	cache := expired.NewCategoryCache(store, logger)
	if bus != nil {
		cache.WithBroadcast(bus)
		// retries until shutdown
		go func() { _ = bus.Listen(ctx, cache.Invalidate) }()
	}
	store.OnCategorySaved(cache.OnCategorySaved)

	policy := &expired.Policy{Categories: cache, AllowOnAllCategories: cfg.AllowExpiredOnAllCategories}
	svc := expired.NewService(store, policy, limiter, pub, logger, expired.Options{
		StrictUnexpire: cfg.StrictUnexpire,
		Exchange:       cfg.RabbitExchange,
		Rules: []ratelimit.Rule{
			{Prefix: expired.HourlyRule.Prefix, Max: cfg.HourlyLimit, Window: time.Hour},
			{Prefix: expired.BurstRule.Prefix, Max: cfg.BurstLimit, Window: cfg.BurstWindow},
		},
	})

	views, filters, reports := view.NewRegistry(), search.NewRegistry(), report.NewRegistry()
	(&expired.Projections{Store: store, Policy: policy, Log: logger}).Register(views, filters)
	expired.RegisterReport(reports, store)

	var verifier security.Verifier = security.HMACVerifier{Secret: cfg.JWTSecret}
	if cfg.AuthJWKSURL != "" {
		verifier = security.NewFetcher(cfg.AuthJWKSURL, time.Duration(cfg.JWKSCacheSeconds)*time.Second)
	}

	h := api.NewHandler(store, svc, views, &search.Service{Store: store, Registry: filters}, reports, limiter, cfg.SearchPerMin)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(h, verifier),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe() }()
	logger.Info("expired-service listening", zap.String("port", cfg.Port), zap.String("store", cfg.Store))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-srvErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	}
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

// openStore connects the configured backend and returns its closer.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (domain.ForumStore, func()) {
	if cfg.Store == "memory" {
		logger.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), func() {}
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := repo.NewStore(cctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoTransactions)
	if err != nil {
		logger.Fatal("mongo connect", zap.Error(err))
	}
	if err := store.EnsureIndexes(cctx); err != nil {
		logger.Fatal("mongo indexes", zap.Error(err))
	}
	return store, func() { _ = store.Close(context.Background()) }
}
