package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nimasrn/sms-verify/internal/bootstrap"
	"github.com/nimasrn/sms-verify/internal/config"
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/internal/processor"
	"github.com/nimasrn/sms-verify/internal/repository"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/nimasrn/sms-verify/pkg/prom"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Sync()

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting worker", "version", version, "commit", commit, "date", date)

	db, err := bootstrap.Postgres(cfg)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := bootstrap.Redis(cfg)
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	upstream, err := bootstrap.Upstream(cfg)
	if err != nil {
		logger.Error("failed to create upstream client", "error", err)
		return
	}
	defer upstream.Close()

	// the worker is the consumer of the audit stream, so its own events go straight to the store
	svc, err := bootstrap.NewServices(cfg, db, redisAdap, upstream, bootstrap.Options{})
	if err != nil {
		logger.Error("failed to build services", "error", err)
		return
	}

	idempotency := processor.NewIdempotencyService(redisAdap, processor.DefaultIdempotencyConfig())
	service := processor.NewProcessorService(redisAdap,
		processor.NewAuditEventProcessor(repository.NewEventRepository(db), idempotency),
		processor.Options{
			Queue:     bootstrap.QueueConfig(cfg),
			Consumers: cfg.QueueConsumers,
			Workers:   cfg.QueueWorkers,
		})

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go prom.ListenAndServer(cfg.PromListenAddr, cfg.PromMetricsPath)

	if err = service.Start(); err != nil {
		logger.Error("failed to start processor", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	runEvery(ctx, &wg, "expiry-sweep", cfg.ExpirySweepInterval, func(ctx context.Context) {
		n, err := svc.Delivery.ExpireStale(ctx)
		if err != nil {
			logger.Error("expiry sweep failed", "error", err)
			return
		}
		if n > 0 {
			logger.Info("expired stale sessions", "count", n)
		}
	})

	runEvery(ctx, &wg, "catalog-sync", cfg.CatalogSyncInterval, func(ctx context.Context) {
		for _, server := range []model.Server{model.ServerOne, model.ServerTwo} {
			if !upstream.HasServer(server) {
				continue
			}
			n, err := svc.Catalog.SyncFromUpstream(ctx, server)
			if err != nil {
				logger.Error("catalog sync failed", "server", server, "error", err)
				continue
			}
			logger.Info("catalog synced", "server", server, "services", n)
		}
	})

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	cancel()
	wg.Wait()
	service.Stop()
}

// runEvery runs job on every tick of interval until ctx is done. A zero interval disables it.
func runEvery(ctx context.Context, wg *sync.WaitGroup, name string, interval time.Duration, job func(ctx context.Context)) {
	if interval <= 0 {
		logger.Info("periodic job disabled", "job", name)
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				job(ctx)
			}
		}
	}()
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Stat(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
