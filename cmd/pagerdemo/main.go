// Command pagerdemo drives a flowpager.Pager over a users directory. Without
// an HTTP address it scrolls through the list on its own, refreshes and exits;
// with one it serves the pager over HTTP.
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

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Alp4ka/flowpager"
)

const _shutdownTimeout = 5 * time.Second

func main() {
	fs := flag.NewFlagSet("pagerdemo", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to configuration file (YAML or JSON)")

	RegisterFlags(fs)

	_ = fs.Parse(os.Args[1:])

	cfg, err := Load(LoadOptions{
		ConfigFile: *configFile,
		Flags:      fs,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Observability.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("Demo failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *Config, logger *zap.Logger) error {
	logger.Info("Starting pager demo",
		zap.String("source", cfg.Source.Kind),
		zap.String("paging", cfg.Source.Paging),
		zap.Int("page_size", cfg.Pager.PageSize),
		zap.Int("max_retained_items", cfg.Pager.MaxRetainedItems),
		zap.Bool("placeholders", cfg.Pager.EnablePlaceholders),
		zap.String("http_addr", cfg.Server.HTTPAddr),
	)

	var metrics *flowpager.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = flowpager.NewMetrics(prometheus.DefaultRegisterer, "flowpager")
	}

	pager, closePager, err := newPager(cfg, metrics, logger.Named("pager"))
	if err != nil {
		return fmt.Errorf("create pager: %w", err)
	}
	defer closePager()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.HTTPAddr == "" {
		return scroll(ctx, pager, cfg.Scroll, logger)
	}

	return serve(ctx, NewHTTPServer(cfg.Server.HTTPAddr, pager, cfg.Observability.MetricsEnabled, logger))
}

func serve(ctx context.Context, server *HTTPServer) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), _shutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)

	return zapCfg.Build()
}
