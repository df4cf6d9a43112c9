package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/leadtracker/crm/internal/analytics"
	"github.com/leadtracker/crm/internal/config"
	"github.com/leadtracker/crm/internal/db"
	"github.com/leadtracker/crm/internal/httpapi"
	"github.com/leadtracker/crm/internal/httpapi/handlers"
	"github.com/leadtracker/crm/internal/logger"
	"github.com/leadtracker/crm/internal/store"
	"github.com/leadtracker/crm/internal/store/memstore"
	"github.com/leadtracker/crm/internal/store/rabbitmq"
	"github.com/leadtracker/crm/internal/store/redisstore"
	"github.com/leadtracker/crm/internal/users"
)

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty || cfg.IsDevelopment(),
		Service: "crm-server",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(db.DefaultRegistry(), cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database connection failed")
	}
	log.Info().Msg("running database migrations...")
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	if cfg.AdminUsername != "" {
		created, err := users.NewService(users.NewRepo(gdb), log).EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("bootstrap admin failed")
		}
		if created {
			log.Info().Str("username", cfg.AdminUsername).Msg("bootstrap admin created")
		}
	}

	cache, closeCache := openCache(ctx, cfg, log)
	defer closeCache()

	// without a broker, refresh jobs run inline in the request
	var opts []analytics.Option
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq unavailable, analytics refresh runs inline")
	} else {
		defer pub.Close()
		opts = append(opts, analytics.WithPublisher(pub))
	}

	h := handlers.NewHandler(gdb, cfg, cache, log, opts...)
	router := httpapi.NewRouter(h, cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("db_driver", cfg.DBDriver).
			Str("cache", cfg.CacheBackend).
			Msg("starting crm server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server stopped")
}

// openCache returns the configured TTL store. The memory store only works for
// a single process, so the worker and server must both use redis to share
// analytics snapshots.
func openCache(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.TTL, func()) {
	if cfg.CacheBackend == "memory" {
		mem := memstore.New()
		sweepCtx, cancel := context.WithCancel(ctx)
		go mem.Run(sweepCtx, time.Minute)
		log.Info().Msg("using in-memory cache")
		return mem, cancel
	}

	rs, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis connection failed")
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	return rs, func() { _ = rs.Close() }
}
