package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"potluck/config"
	"potluck/routes"
	"potluck/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the roster API and live change feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := config.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	db, err := config.OpenDB(cfg.DB)
	if err != nil {
		return err
	}

	var feed services.ChangeFeed
	if cfg.NATS.URL != "" {
		nc, err := services.ConnectNATS(cfg.NATS.URL, log)
		if err != nil {
			return err
		}
		feed = services.NewNatsFeed(nc, cfg.NATS.Subject, log)
		log.Info("change feed on nats", zap.String("url", cfg.NATS.URL), zap.String("subject", cfg.NATS.Subject))
	} else {
		feed = services.NewLocalFeed()
	}
	defer func() { _ = feed.Close() }()

	store := services.NewGormDishStore(db, feed, log.Named("store"))

	hub := services.NewRealtimeHub(log.Named("realtime"))
	hubSub, err := hub.Attach(ctx, store)
	if err != nil {
		return fmt.Errorf("attach realtime hub: %w", err)
	}
	defer func() { _ = hubSub.Unsubscribe() }()

	roster := services.NewRoster(store, services.WithLogger(log.Named("roster")))
	if err := roster.Start(ctx); err != nil {
		return fmt.Errorf("start roster: %w", err)
	}
	defer func() { _ = roster.Dispose() }()

	if cfg.Log.Format != "console" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           routes.SetupRouter(routes.Deps{Store: store, Roster: roster, Hub: hub, Log: log.Named("http")}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("db", cfg.DB.Driver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	hub.Close()
	return err
}
