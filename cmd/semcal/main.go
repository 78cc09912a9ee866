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

	"github.com/robfig/cron/v3"

	"semcal/internal/config"
	appLog "semcal/internal/log"
	"semcal/internal/store"
	"semcal/internal/timetable"
	"semcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	debug      bool
}

func main() {
	appLog.Info("semcal starting", "version", "0.1.0")

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"store_backend", conf.Store.Backend,
		"store_ttl_minutes", conf.Store.TTLMinutes,
		"course_cache_seconds", conf.CourseCacheSeconds,
		"upstream_timeout_seconds", conf.Upstream.TimeoutSeconds,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	st, cleanup, err := buildStore(conf)
	if err != nil {
		appLog.Error("failed to open save-state store", err, "backend", conf.Store.Backend)
		os.Exit(1)
	}
	defer st.Close()
	if cleanup != nil {
		cleanup.Start()
		defer cleanup.Stop()
	}

	gateway := timetable.NewClient(conf.Upstream)
	server := web.NewServer(conf, gateway, st)

	httpServer := &http.Server{
		Addr:              conf.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP server shutdown failed", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}

	appLog.Info("semcal exiting")
}

// buildStore constructs the configured save-state backend. The memory
// backend gets a cron-scheduled sweep of expired entries; badger
// expires entries natively and needs none.
func buildStore(conf *config.Config) (store.Store, *cron.Cron, error) {
	ttl := time.Duration(conf.Store.TTLMinutes) * time.Minute

	switch conf.Store.Backend {
	case "badger":
		st, err := store.NewBadger(conf.Store.BadgerPath, ttl)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil

	default:
		st := store.NewMemory(ttl)

		c := cron.New()
		_, err := c.AddFunc(conf.Store.CleanupCron, func() {
			if removed := st.Sweep(); removed > 0 {
				appLog.Debug("swept expired save-state entries", "removed", removed)
			}
		})
		if err != nil {
			return nil, nil, err
		}
		return st, c, nil
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/semcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
