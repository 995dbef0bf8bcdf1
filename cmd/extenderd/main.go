// Command extenderd runs the extension request adjudication daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/ezextender/extenderd/internal/adjudicate"
	"github.com/ezextender/extenderd/internal/clock"
	"github.com/ezextender/extenderd/internal/config"
	"github.com/ezextender/extenderd/internal/embeddings"
	httpapi "github.com/ezextender/extenderd/internal/http"
	"github.com/ezextender/extenderd/internal/logging"
	"github.com/ezextender/extenderd/internal/precedent"
	"github.com/ezextender/extenderd/internal/retrieval"
	"github.com/ezextender/extenderd/internal/reviewbus"
	"github.com/ezextender/extenderd/internal/telemetry"
	"github.com/ezextender/extenderd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("extenderd\nVersion:    %s\nCommit:     %s\nBuild Date: %s\n", version, gitCommit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("extenderd: %v", err)
	}
}

// run wires the full pipeline and blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting extenderd",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("vectorstore", cfg.VectorStore.Backend))

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}

	clk, err := clock.FromEnv()
	if err != nil {
		return fmt.Errorf("configure clock: %w", err)
	}

	embedder, err := embeddings.NewProvider(embeddings.Config{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
		CacheDir: cfg.Embeddings.CacheDir,
	})
	if err != nil {
		return fmt.Errorf("initialize embeddings: %w", err)
	}
	defer embedder.Close()

	store, err := vectorstore.NewStore(vectorstore.FactoryConfig{
		Backend:      cfg.VectorStore.Backend,
		Path:         cfg.VectorStore.Path,
		Compress:     cfg.VectorStore.Compress,
		Host:         cfg.VectorStore.Host,
		Port:         cfg.VectorStore.Port,
		UseTLS:       cfg.VectorStore.UseTLS,
		VectorSize:   int(cfg.VectorStore.VectorSize),
		RetryBackoff: cfg.VectorStore.RetryBackoff.Duration(),
	}, embedder, logger)
	if err != nil {
		return fmt.Errorf("initialize vector store: %w", err)
	}
	defer store.Close()

	var stats *precedent.Stats
	if cfg.Stats.Path != "" {
		stats = precedent.NewStats(cfg.Stats.Path)
	}
	writer, err := precedent.NewWriter(store, clk, stats, logger)
	if err != nil {
		return fmt.Errorf("initialize precedent writer: %w", err)
	}

	retrievalTimeout := cfg.Retrieval.Timeout.Duration()
	service, err := adjudicate.NewService(
		retrieval.NewPolicyRetriever(store, retrievalTimeout, logger),
		retrieval.NewPrecedentRetriever(store, retrievalTimeout, logger),
		writer,
		logger,
		adjudicate.WithClock(clk),
		adjudicate.WithTopK(cfg.Retrieval.TopK),
	)
	if err != nil {
		return fmt.Errorf("initialize adjudication service: %w", err)
	}

	var natsConn *nats.Conn
	var consumer *reviewbus.Consumer
	if cfg.ReviewBus.Enabled {
		natsConn, err = nats.Connect(cfg.ReviewBus.URL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(5),
			nats.ReconnectWait(1*time.Second),
		)
		if err != nil {
			return fmt.Errorf("connect to NATS at %s: %w", cfg.ReviewBus.URL, err)
		}
		defer natsConn.Close()

		consumer, err = reviewbus.NewConsumer(service, natsConn, cfg.ReviewBus.Subject, logger)
		if err != nil {
			return fmt.Errorf("initialize review bus: %w", err)
		}
		if err := consumer.Start(natsConn); err != nil {
			return fmt.Errorf("start review bus: %w", err)
		}
	}

	server, err := httpapi.NewServer(service, logger, &httpapi.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		RateLimit: cfg.Server.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("initialize http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.Warn("review bus drain failed", zap.Error(err))
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown failed", zap.Error(err))
	}

	logger.Info("extenderd stopped")
	return nil
}
