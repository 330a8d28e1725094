package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fkhayef/teamtasks/internal/realtime"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.JWTSecret == "" && !a.cfg.DevAuth {
		a.logger.Warn("JWT_SECRET is empty and DEV_AUTH is off; every API request will be rejected")
	}
	if a.cfg.DevAuth {
		a.logger.Warn("DEV_AUTH is on; the X-Test-User-ID header is trusted")
	}

	hub := realtime.NewHub()
	var broker realtime.Broker = hub
	if a.cfg.RedisURL != "" {
		client, err := realtime.NewRedisClient(ctx, a.cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()

		redisBroker := realtime.NewRedisBroker(client, hub, a.logger)
		go func() {
			if err := redisBroker.Run(ctx); err != nil {
				a.logger.Error("redis relay stopped", zap.Error(err))
			}
		}()
		broker = redisBroker
		a.logger.Info("task events relayed through redis")
	}

	handler, drain := newRouter(a.cfg, a.db, broker, a.logger)
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Cancelling ctx ends open task streams so Shutdown can finish.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("port", a.cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		drain()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	drain()
	return err
}
