package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaceandstories/community-feed/internal/analysis"
	"github.com/spaceandstories/community-feed/internal/config"
	"github.com/spaceandstories/community-feed/internal/docstore"
	"github.com/spaceandstories/community-feed/internal/domain"
	"github.com/spaceandstories/community-feed/internal/geminiproxy"
	"github.com/spaceandstories/community-feed/internal/httpserver"
	"github.com/spaceandstories/community-feed/internal/identity"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tokens, err := identity.NewTokenIssuer(cfg.TokenSecret)
	if err != nil {
		return fmt.Errorf("create token issuer: %w", err)
	}

	provider, err := identity.NewProvider(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("create identity provider: %w", err)
	}
	defer provider.Close()

	// A store that fails to open is surfaced but not fatal: the feed stays
	// empty and the write path stays disabled until the next restart.
	var appender domain.RecordAppender
	var source domain.FeedSource
	store, err := docstore.NewStore(cfg.DatabasePath, cfg.Namespace)
	if err != nil {
		logger.Error("document store initialization failed, publishing disabled", "error", err)
	} else {
		defer store.Close()
		appender = store
		source = store
		logger.Info("document store ready", "collection", docstore.CollectionPath(cfg.Namespace))
	}

	publisher := domain.NewPublisher(appender, logger)

	proxy := geminiproxy.NewHandler(cfg.GeminiUpstreamURL, logger)
	llm := analysis.NewClient(fmt.Sprintf("http://127.0.0.1:%d/api/gemini-proxy", cfg.Port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// The shared read session backs the stateless REST feed endpoints.
	feed := domain.NewSession(source, logger)
	go func() {
		if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("feed session exited with error", "error", err)
		}
	}()

	server := httpserver.NewServer(cfg, httpserver.Deps{
		Source:    source,
		Feed:      feed,
		Publisher: publisher,
		Provider:  provider,
		Tokens:    tokens,
		Summaries: analysis.NewSummaryRequester(llm),
		Comfort:   analysis.NewComfortRequester(llm),
		Proxy:     proxy,
	}, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
