package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/recepoksuz/nft-transferd/internal/admin"
	"github.com/recepoksuz/nft-transferd/internal/alert"
	"github.com/recepoksuz/nft-transferd/internal/chain"
	chainrpc "github.com/recepoksuz/nft-transferd/internal/chain/rpc"
	"github.com/recepoksuz/nft-transferd/internal/config"
	"github.com/recepoksuz/nft-transferd/internal/domain/model"
	"github.com/recepoksuz/nft-transferd/internal/journal"
	journalpg "github.com/recepoksuz/nft-transferd/internal/journal/postgres"
	"github.com/recepoksuz/nft-transferd/internal/orchestrator"
	"github.com/recepoksuz/nft-transferd/internal/ratelimit"
	"github.com/recepoksuz/nft-transferd/internal/signer"
	signerrpc "github.com/recepoksuz/nft-transferd/internal/signer/rpc"
	"github.com/recepoksuz/nft-transferd/internal/stream"
	"github.com/recepoksuz/nft-transferd/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	network := model.Network(cfg.Chain.Network)

	logger.Info("starting nft-transferd",
		"network", network,
		"signer_bridge", cfg.Signer.BridgeURL,
		"chain_rpc", cfg.Chain.RPCURL,
		"min_confirmations", cfg.Chain.MinConfirmations,
		"journal_enabled", cfg.DB.URL != "",
		"stream_enabled", cfg.Redis.URL != "",
	)

	shutdownTracing, err := tracing.Init(context.Background(), "nft-transferd", cfg.Tracing.OTLPEndpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()
	if cfg.Tracing.OTLPEndpoint != "" {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.OTLPEndpoint)
	}

	// Journal: Postgres when DB_URL is set, otherwise discard.
	var jrnl journal.Journal = journal.Noop{}
	if cfg.DB.URL != "" {
		db, err := journalpg.New(journalpg.Config{
			URL:             cfg.DB.URL,
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := db.EnsureSchema(context.Background()); err != nil {
			logger.Error("failed to ensure journal schema", "error", err)
			os.Exit(1)
		}
		jrnl = journalpg.NewJournal(db)
		logger.Info("journal connected")
	}
	defer jrnl.Close()

	// Event stream: Redis when REDIS_URL is set, otherwise in-process.
	var publisher stream.Publisher = stream.NewInMemoryPublisher()
	if cfg.Redis.URL != "" {
		rp, err := stream.NewRedisPublisher(cfg.Redis.URL, cfg.Redis.StreamKey, int64(cfg.Redis.MaxLen))
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		publisher = rp
		logger.Info("event stream connected", "stream", cfg.Redis.StreamKey)
	}
	defer publisher.Close()

	// Alerting
	var alerters []alert.Alerter
	if cfg.Alert.SlackWebhookURL != "" {
		alerters = append(alerters, alert.NewSlackAlerter(cfg.Alert.SlackWebhookURL))
	}
	if cfg.Alert.WebhookURL != "" {
		alerters = append(alerters, alert.NewWebhookAlerter(cfg.Alert.WebhookURL))
	}
	var alerter alert.Alerter = &alert.NoopAlerter{}
	if len(alerters) > 0 {
		alerter = alert.NewMultiAlerter(
			time.Duration(cfg.Alert.CooldownSec)*time.Second,
			logger,
			alerters...,
		)
	}

	// Wallet bridge signer
	bridgeClient := signerrpc.NewClient(cfg.Signer.BridgeURL, cfg.Signer.Timeout, logger)
	signerLimiter := ratelimit.NewLimiter(cfg.Signer.RPS, cfg.Signer.Burst, "signer")
	sg := signer.NewClient(bridgeClient, signerLimiter, logger)

	// Chain finality waiter
	chainClient := chainrpc.NewClient(cfg.Chain.RPCURL, logger)
	chainLimiter := ratelimit.NewLimiter(cfg.Chain.RPS, cfg.Chain.Burst, "chain")
	waiter := chain.NewWaiter(
		chainClient,
		chainLimiter,
		int64(cfg.Chain.MinConfirmations),
		time.Duration(cfg.Chain.PollIntervalMs)*time.Millisecond,
		cfg.Chain.ConfirmTimeout,
		logger,
	)

	orch := orchestrator.New(sg, waiter, network, logger,
		orchestrator.WithSettleDelay(time.Duration(cfg.Batch.SettleDelayMs)*time.Millisecond),
		orchestrator.WithStallThreshold(time.Duration(cfg.Batch.StallThresholdSec)*time.Second),
		orchestrator.WithJournal(jrnl),
		orchestrator.WithPublisher(publisher),
		orchestrator.WithAlerter(alerter),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return orch.Run(gCtx)
	})

	g.Go(func() error {
		return runHealthServer(gCtx, cfg.Server.HealthPort, logger)
	})

	g.Go(func() error {
		return runAdminServer(gCtx, cfg.Server.AdminPort, orch, bridgeClient, network, cfg.Batch.MaxUnits, logger)
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("transferd exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("transferd shut down gracefully")
}

func runHealthServer(ctx context.Context, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

func runAdminServer(ctx context.Context, port int, orch *orchestrator.Orchestrator, probe admin.SignerProbe, network model.Network, maxUnits int, logger *slog.Logger) error {
	adminSrv := admin.NewServer(orch, probe, network, maxUnits, logger)
	rl := admin.NewRateLimitMiddleware(logger)
	defer rl.Stop()

	handler := admin.AuditMiddleware(logger, rl.Wrap(adminSrv.Handler()))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("admin server shutdown error", "error", err)
		}
	}()

	logger.Info("admin server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}
