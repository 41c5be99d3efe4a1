package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"feedsearch/internal/adapter/events"
	"feedsearch/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API and consume item events",
	Long: `Load exported items, embed any that are missing in the background and serve
the HTTP API. When events are enabled, items published on the configured NATS
subjects are added to or removed from the index as they arrive.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	a, err := openApp(cfg, GetRootDir(), GetRootDir(), nil)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.queue.Credential() == "" {
		logger.Warn("embedding API key not set; search is unavailable until one is provided", "env", cfg.Embedding.APIKeyEnv)
	} else if _, err := a.queue.Enqueue(ctx, a.catalog.List()); err != nil {
		logger.Error("failed to queue catalog items", "error", err)
	}

	var eventsClient *events.Client
	if cfg.Events.Enabled {
		eventsClient, err = events.NewClient(cfg.Events.NATSURL, events.ClientOptions{}, logger)
		if err != nil {
			return err
		}
		defer eventsClient.Close()

		sub := events.NewSubscriber(eventsClient, cfg.Events.SubjectAdded, cfg.Events.SubjectDeleted,
			a.queue, a.store, logger, a.catalog, a.keywords)
		if err := sub.Start(ctx); err != nil {
			return err
		}
		defer sub.Stop()
	}

	router := api.NewRouter(api.Deps{
		Catalog:  a.catalog,
		Keywords: a.keywords,
		Ranker:   a.ranker,
		Queue:    a.queue,
		Vectors:  a.store,
		Events:   eventsClient,
		Search:   cfg.Search,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("feedsearch listening", "addr", cfg.Server.Addr, "items", a.catalog.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
