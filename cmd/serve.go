package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"webtestflow/recorder/internal/api/handlers"
	"webtestflow/recorder/internal/api/routes"
	"webtestflow/recorder/internal/browser"
	"webtestflow/recorder/internal/capture"
	"webtestflow/recorder/internal/config"
	"webtestflow/recorder/internal/recorder"
	"webtestflow/recorder/internal/review"
	"webtestflow/recorder/internal/services"
	"webtestflow/recorder/internal/snapshot"
	"webtestflow/recorder/internal/storage"
	"webtestflow/recorder/pkg/auth"
	"webtestflow/recorder/pkg/database"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Launch the browser and the operator API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

// openStorage returns the session store and a function releasing it.
func openStorage(cfg *config.Config, log *zap.Logger) (storage.Storage, func(), error) {
	if cfg.Database.Driver == "memory" {
		return storage.NewMemory(), func() {}, nil
	}
	db, err := database.Open(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewGorm(db)
	if err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	return store, func() { _ = database.Close(db) }, nil
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	store, closeStore, err := openStorage(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer closeStore()

	authManager := auth.NewManager(cfg.JWT)
	if !authManager.Enabled() {
		log.Warn("Operator authentication disabled, set JWT_PASSWORD_HASH to enable it")
	}

	tab, err := browser.Launch(ctx, cfg.Chrome, log)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer tab.Close()

	shots := snapshot.New(tab, snapshot.Config{
		Timeout:   cfg.Snapshot.Timeout,
		PerSecond: cfg.Snapshot.PerSecond,
		Burst:     cfg.Snapshot.Burst,
	}, log)

	coord := recorder.NewCoordinator(recorder.Config{
		StorageKey:       cfg.Recorder.StorageKey,
		AlertsHonorPause: cfg.Recorder.AlertsHonorPause,
		InjectTimeout:    cfg.Recorder.InjectTimeout,
	}, store, log,
		recorder.WithFullViewer(shots),
		recorder.WithHandoff(review.NewHandoff(cfg.ReviewBaseURL(), authManager, tab)),
	)

	pipeline := capture.NewPipeline(coord, log, cfg.Recorder.QueueSize)
	coord.SetAttacher(capture.NewInjector(tab, pipeline, log))
	tab.OnBinding(pipeline.Dispatch)

	reviews := review.NewService(store, cfg.Recorder.StorageKey, log)
	janitor := services.NewJanitor(store, cfg.Storage.TTL, log)

	gin.SetMode(cfg.Server.Mode)
	router := routes.SetupRoutes(handlers.New(coord, reviews, authManager, log), authManager, log)
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coord.Run(gctx) })
	g.Go(func() error { return pipeline.Run(gctx) })
	g.Go(func() error { return tab.Forward(gctx, coord) })
	g.Go(func() error { return janitor.Run(gctx, cfg.Storage.JanitorSchedule) })
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.String("mode", cfg.Server.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Recorded steps live only as long as the session.
	clearCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if clearErr := store.Clear(clearCtx); clearErr != nil {
		log.Warn("Failed to clear session storage", zap.Error(clearErr))
	}
	reviews.Reset()

	if errors.Is(err, browser.ErrBrowserClosed) {
		log.Info("Browser closed, ending session")
		err = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Server exited")
	return nil
}
