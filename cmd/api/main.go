package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nimasrn/sms-verify/internal/auth"
	"github.com/nimasrn/sms-verify/internal/bootstrap"
	"github.com/nimasrn/sms-verify/internal/config"
	"github.com/nimasrn/sms-verify/internal/handlers"
	xhttp "github.com/nimasrn/sms-verify/pkg/http"
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
	logger.Info("starting api", "version", version, "commit", commit, "date", date)

	s := xhttp.CreateServer()
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.CORSMiddleware(xhttp.CORSOptions{AllowOrigin: cfg.HttpCorsAllowOrigin}))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))

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

	svc, err := bootstrap.NewServices(cfg, db, redisAdap, upstream, bootstrap.Options{UseQueue: cfg.QueueName != ""})
	if err != nil {
		logger.Error("failed to build services", "error", err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go prom.ListenAndServer(cfg.PromListenAddr, cfg.PromMetricsPath)

	requireAuth := auth.Require(auth.NewIssuer(cfg.JwtSecret, cfg.JwtTTL))

	g := s.Router.Group("/api/v1")
	handlers.RegisterSessionRoutes(g, handlers.NewSessionHandler(svc.Numbers, svc.Delivery), requireAuth)
	handlers.RegisterWebhookRoutes(g, handlers.NewWebhookHandler(svc.Payments))
	handlers.RegisterAdminRoutes(g, handlers.NewAdminHandler(svc.Admin), requireAuth)
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(map[string]handlers.HealthCheck{
		"database": bootstrap.Ping(db),
		"redis":    bootstrap.PingRedis(redisAdap),
	}, upstream))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
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
