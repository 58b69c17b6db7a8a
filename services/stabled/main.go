package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	genesis "pegvault/config"
	"pegvault/native/stable"
	"pegvault/observability/logging"
	telemetry "pegvault/observability/otel"
	"pegvault/services/stabled/config"
	"pegvault/services/stabled/ledger"
	"pegvault/services/stabled/server"
	"pegvault/services/stabled/storage"
	kvstore "pegvault/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/stabled/config.yaml", "path to stabled configuration file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("stabled: load config: %v", err)
	}

	env := strings.TrimSpace(os.Getenv("PEGVAULT_ENV"))
	logger, logCloser := logging.SetupWithOptions("stabled", env, logging.Options{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv("stabled", env))
	if err != nil {
		log.Fatalf("stabled: init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	dsn, err := storage.FileDSN(cfg.Database)
	if err != nil {
		log.Fatalf("stabled: resolve storage DSN: %v", err)
	}
	journal, err := storage.Open(dsn)
	if err != nil {
		log.Fatalf("stabled: open journal: %v", err)
	}
	defer journal.Close()

	db, err := kvstore.NewLevelDB(cfg.StateDir)
	if err != nil {
		log.Fatalf("stabled: open state: %v", err)
	}
	defer db.Close()

	bootstrap := func(now int64) (stable.State, error) {
		g, err := genesis.Load(cfg.Genesis)
		if err != nil {
			return stable.State{}, err
		}
		return g.Build(now)
	}
	l, err := ledger.New(db, journal, bootstrap, ledger.WithLogger(logger))
	if err != nil {
		log.Fatalf("stabled: ledger: %v", err)
	}

	auth, err := server.NewAuthenticator(server.AuthConfig{
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		ClockSkew:  cfg.Auth.ClockSkew.Duration,
	}, logger)
	if err != nil {
		log.Fatalf("stabled: configure auth: %v", err)
	}
	srv, err := server.New(server.Config{
		ListenAddress: cfg.ListenAddress,
		MaxOracleAge:  cfg.Quote.MaxOracleAge.Duration,
		RateLimit: server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
	}, l, journal, auth, logger)
	if err != nil {
		log.Fatalf("stabled: server: %v", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("http server error", "error", err)
		os.Exit(1)
	}
}
