package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	router "github.com/jaehyeon2650/bootcamp-buddy-up/internal/adapters/http"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/adapters/rtc"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/app"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/app/orch"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/config"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/store/sqlite"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port")
	serveCmd.Flags().String("mode", "", "gin mode (debug, release)")
	serveCmd.Flags().String("store", "", "room store driver (memory, sqlite)")
	_ = v.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	_ = v.BindPFlag("mode", serveCmd.Flags().Lookup("mode"))
	_ = v.BindPFlag("store.driver", serveCmd.Flags().Lookup("store"))
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode == "release" {
		// JSON lines in production.
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogger(cfg)

	opts := orch.Options{
		MaxCapacity:      cfg.Rooms.MaxCapacity,
		LockTimeout:      cfg.Locks.Timeout,
		PriorityTimeout:  cfg.Locks.PriorityTimeout,
		SubscriberBuffer: cfg.Hub.SubscriberBuffer,
		Policy:           app.SimplePolicy{},
		MaxMessageLen:    cfg.Session.MaxMessageLen,
		RateLimit:        cfg.Session.RateLimit,
		RateInterval:     cfg.Session.RateInterval,
		Validator:        rtc.Validator{MaxSDPLen: cfg.RTC.MaxSDPLen},
	}
	if cfg.Store.Driver == "sqlite" {
		store, err := sqlite.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("close room store")
			}
		}()
		opts.Store = store
	}

	o := orch.New(opts)
	if err := o.Registry.Restore(ctx); err != nil {
		return err
	}

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("buddy-up server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}
