package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/crackgov/srs/internal/config"
	"github.com/crackgov/srs/internal/review"
	"github.com/crackgov/srs/internal/web"
)

const shutdownTimeout = 15 * time.Second

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the flashcard HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			cfg := a.cfg.Server
			handler := web.NewServer(
				db,
				review.NewService(db, review.NewValidator()),
				web.NewRateLimiter(cfg.RateLimit, cfg.Burst, cfg.MaxClients),
			)
			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				slog.Info("starting server", "addr", cfg.Addr)
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				slog.Info("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					slog.Error("could not stop server gracefully", "error", err)
					return srv.Close()
				}
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().String("addr", config.Default().Server.Addr, "Address to listen on")
	return cmd
}
