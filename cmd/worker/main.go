package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/leadtracker/crm/internal/analytics"
	"github.com/leadtracker/crm/internal/config"
	"github.com/leadtracker/crm/internal/db"
	"github.com/leadtracker/crm/internal/logger"
	"github.com/leadtracker/crm/internal/store"
	"github.com/leadtracker/crm/internal/store/memstore"
	"github.com/leadtracker/crm/internal/store/rabbitmq"
	"github.com/leadtracker/crm/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	flags := pflag.NewFlagSet("crm-worker", pflag.ExitOnError)
	once := flags.Bool("once", false, "refresh the analytics snapshot once and exit")
	concurrency := flags.Int("concurrency", cfg.WorkerConcurrency, "number of jobs processed in parallel")
	interval := flags.Duration("interval", cfg.AnalyticsRefreshInterval, "scheduled snapshot refresh interval, 0 disables")
	_ = flags.Parse(os.Args[1:])

	if *concurrency <= 0 {
		*concurrency = 1
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty || cfg.IsDevelopment(),
		Service: "crm-worker",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(db.DefaultRegistry(), cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database connection failed")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	cache, closeCache := openCache(ctx, cfg, log)
	defer closeCache()

	svc := analytics.NewService(analytics.NewRepo(gdb), cache, cfg.AnalyticsSnapshotTTL, log)

	if *once {
		snap, err := svc.Refresh(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("refresh failed")
		}
		log.Info().Int("users", len(snap.Users)).Msg("snapshot refreshed")
		return
	}

	var wg sync.WaitGroup
	if *interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			schedule(ctx, svc, *interval, log)
		}()
	}

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, *concurrency)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq unavailable, running scheduled refresh only")
		<-ctx.Done()
		wg.Wait()
		return
	}
	defer consumer.Close()

	msgs, err := consumer.Deliveries("")
	if err != nil {
		log.Fatal().Err(err).Msg("consume failed")
	}

	log.Info().
		Str("queue", cfg.RabbitQueue).
		Int("concurrency", *concurrency).
		Dur("interval", *interval).
		Msg("worker started")

	// worker pool
	jobs := make(chan amqp.Delivery, *concurrency*2)
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				handle(ctx, svc, d, log.With().Int("worker", workerID).Logger())
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Error().Msg("delivery channel closed")
				stop()
				close(jobs)
				wg.Wait()
				os.Exit(1)
			}
			jobs <- d
		}
	}
}

// handle runs one queued job. Failed jobs are recorded on the job row, so the
// delivery is dropped rather than requeued.
func handle(ctx context.Context, svc *analytics.Service, d amqp.Delivery, log zerolog.Logger) {
	m, err := rabbitmq.DecodeJob(d.Body)
	if err != nil {
		log.Warn().Err(err).Msg("bad message")
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	if err := svc.RunJob(ctx, m.JobID); err != nil {
		log.Error().Err(err).Str("job_id", m.JobID).Dur("cost", time.Since(start)).Msg("job failed")
		_ = d.Nack(false, false)
		return
	}

	if cost := time.Since(start); cost > 2*time.Second {
		log.Info().Str("job_id", m.JobID).Dur("cost", cost).Msg("slow job")
	}
	if err := d.Ack(false); err != nil {
		log.Error().Err(err).Str("job_id", m.JobID).Msg("ack failed")
	}
}

func schedule(ctx context.Context, svc *analytics.Service, every time.Duration, log zerolog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := svc.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("scheduled refresh failed")
			}
		}
	}
}

func openCache(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.TTL, func()) {
	if cfg.CacheBackend == "memory" {
		log.Warn().Msg("in-memory cache is not shared with the server")
		mem := memstore.New()
		sweepCtx, cancel := context.WithCancel(ctx)
		go mem.Run(sweepCtx, time.Minute)
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
	return rs, func() { _ = rs.Close() }
}
