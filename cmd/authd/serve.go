package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/99minutos/identity-service/internal/api"
	"github.com/99minutos/identity-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger.Get()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := build(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer app.close(context.Background(), log)

			e := api.NewRouter(api.RouterDeps{
				Accounts:   app.accounts,
				Authorizer: app.authorizer,
				Checks:     app.checks,
				Logger:     logger.Component("http"),
				Swagger:    cfg.IsDevelopment(),
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info().Str("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("starting server")
				if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info().Msg("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return e.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil {
				return err
			}
			log.Info().Msg("server exited")
			return nil
		},
	}
}
