package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/courserag/internal/app"
	httpserver "github.com/0xcro3dile/courserag/internal/infrastructure/http"
)

func serveCMD(load configLoader) *cobra.Command {
	var addr string
	var watch bool
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Ingest the docs folder and run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			if cmd.Flags().Changed("watch") {
				cfg.Documents.Watch = watch
			}

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			// A failed startup ingestion leaves the server usable.
			if _, err := a.IngestDocuments(ctx, false); err != nil {
				log.Printf("[ERROR] Loading documents: %v", err)
			}
			if cfg.Documents.Watch {
				go watchDocs(ctx, a)
			}

			srv := httpserver.NewServer(a.Query, a.Catalog, httpserver.Options{
				Addr:        cfg.Server.Address,
				FrontendDir: cfg.Server.FrontendDir,
				Metrics:     a.Metrics.Handler(),
			})
			return srv.Start(ctx)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	serve.Flags().BoolVar(&watch, "watch", false, "re-ingest documents when the docs folder changes")
	return serve
}

func watchDocs(ctx context.Context, a *app.App) {
	if err := a.Watch(ctx); err != nil {
		log.Printf("[ERROR] Watching documents: %v", err)
	}
}
