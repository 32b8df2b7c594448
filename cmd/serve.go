package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"reviewminer/internal/api"
	"reviewminer/internal/bootstrap"
	"reviewminer/internal/bootstrap/logging"
	"reviewminer/internal/errs"
	"reviewminer/internal/ports"
	"reviewminer/internal/scraper"
	"reviewminer/internal/usecase/analysis"
	"reviewminer/internal/usecase/export"
	"reviewminer/internal/usecase/ingest"
)

var serveAddr string

type serveDeps struct {
	fx.In

	Reviews      ports.ReviewRepository
	Jobs         ports.JobRepository
	Events       ports.JobEvents
	Scrapers     *scraper.Registry
	Orchestrator *ingest.Orchestrator
	Importer     *ingest.Importer
	Exporter     *export.Exporter
	Engine       *analysis.Engine
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and websocket job stream",
	RunE: withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App, deps serveDeps) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		addr := serveAddr
		if addr == "" {
			addr = app.Config.Server.Addr
		}

		server := api.NewServer(
			ctx,
			app.Config,
			deps.Reviews,
			deps.Jobs,
			deps.Events,
			deps.Scrapers,
			deps.Orchestrator,
			deps.Importer,
			deps.Exporter,
			deps.Engine,
		)

		httpServer := &http.Server{
			Addr:              addr,
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- httpServer.ListenAndServe()
		}()
		logging.Info(ctx, "http server listening", slog.String("addr", addr))

		select {
		case err := <-serveErr:
			return errs.Wrap(err, "serve http")
		case <-ctx.Done():
		}

		logging.Info(ctx, "shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errs.Wrap(err, "shutdown http server")
		}
		if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errs.Wrap(err, "serve http")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, e.g. :8080)")
}
