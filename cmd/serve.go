package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser/rodbrowser"
	"github.com/Glyph8/navermapCrawling/crawlers"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cobra.Command {
	var apiOnly bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and crawl worker",
		Long: `Serves the HTTP API and runs submitted crawls in this process.

With NATS enabled, runs are published to the crawl request subject and
consumed by every serving worker. --api-only skips the browser and the
consumer, leaving runs to other workers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, apiOnly)
		},
	}

	cmd.Flags().BoolVar(&apiOnly, "api-only", false, "serve the API without crawling; requires NATS")
	return cmd
}

func serve(ctx context.Context, apiOnly bool) error {
	in, err := setupInfra(ctx, cfg)
	if err != nil {
		return err
	}
	defer in.Close()

	if apiOnly && in.nats == nil {
		log.Warn().Msg("--api-only needs NATS to hand runs to workers, crawling locally instead")
		apiOnly = false
	}

	server := NewAppHttpServer(cfg)
	server.SetDB(in.db)
	server.SetRepositories(in.repos)

	var local *crawlers.LocalDispatcher
	if !apiOnly {
		b, err := rodbrowser.Connect(ctx, browserConfig(cfg))
		if err != nil {
			return err
		}
		defer func() {
			if err := b.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close browser")
			}
		}()

		runner, err := crawlers.NewRunner(cfg, in.deps(cfg, crawlers.RodOpener(b)))
		if err != nil {
			return err
		}
		local = crawlers.NewLocalDispatcher(ctx, runner, in.work)
	}

	switch {
	case in.nats == nil:
		server.SetDispatcher(local, in.work)
	default:
		if local != nil {
			consumer, err := crawlers.RegisterConsumers(ctx, in.nats, cfg, local)
			if err != nil {
				return err
			}
			defer consumer.Stop()
		}
		server.SetDispatcher(crawlers.NewNatsDispatcher(in.nats, in.work), in.work)
	}
	server.setupRoute()

	errc := make(chan error, 1)
	go func() {
		errc <- server.start()
	}()
	log.Info().Str("address", cfg.Listen.Addr()).Bool("apiOnly", apiOnly).Msg("Server started successfully")

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errc:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	if local != nil {
		// runs see the cancelled base context and finish as cancelled
		done := make(chan struct{})
		go func() {
			local.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			log.Warn().Msg("Crawl runs did not stop before the shutdown timeout")
		}
	}

	log.Info().Msg("Server gracefully stopped")
	return nil
}
