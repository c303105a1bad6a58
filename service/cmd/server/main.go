// Command server runs the Rifts of Chaos game server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	engine "github.com/jason-s-yu/rifts/engine"
	"github.com/jason-s-yu/rifts/service/internal/auth"
	"github.com/jason-s-yu/rifts/service/internal/cache"
	"github.com/jason-s-yu/rifts/service/internal/config"
	"github.com/jason-s-yu/rifts/service/internal/database"
	"github.com/jason-s-yu/rifts/service/internal/handlers"
	"github.com/jason-s-yu/rifts/service/internal/lobby"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	holidayJump := flag.Bool("holiday-slider-jump", true, "sliders may jump one friendly piece under Holiday's Rejuvenation")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ConfigureLogger(log.StandardLogger()); err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := run(cfg, *holidayJump); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run(cfg *config.Config, holidayJump bool) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		var result *multierror.Error
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i](); cerr != nil {
				result = multierror.Append(result, cerr)
			}
		}
		if cerr := result.ErrorOrNil(); cerr != nil {
			log.Errorf("Shutdown: %v", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.RoomTTL)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		log.Warn("RIFTS_JWT_SECRET is not set; seat tokens will not survive a restart.")
	}

	opts := lobby.Options{Issuer: issuer, Rules: engine.DefaultHouseRules()}
	opts.Rules.HolidaySliderJump = holidayJump

	if cfg.RedisURL != "" {
		store, err := cache.New(cfg.RedisURL, cfg.RoomTTL)
		if err != nil {
			return err
		}
		closers = append(closers, store.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = store.Ping(pingCtx)
		cancel()
		if err != nil {
			return err
		}
		opts.Store = store
		log.Info("Room snapshots cached in Redis.")
	}

	archive, err := database.Open(ctx, cfg.Archive, cfg.DatabaseURL, cfg.BadgerDir)
	if err != nil {
		return err
	}
	if archive != nil {
		closers = append(closers, archive.Close)
		opts.Archive = archive
		log.WithField("backend", cfg.Archive).Info("Finished games are archived.")
	}

	l := lobby.New(opts)
	closers = append(closers, func() error { l.Close(); return nil })

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlers.New(l, archive).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("HTTP listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
