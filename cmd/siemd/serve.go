package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigilo/siem/internal/siem/archive"
	"github.com/vigilo/siem/internal/siem/config"
	"github.com/vigilo/siem/internal/siem/engine"
	"github.com/vigilo/siem/internal/siem/logger"
	"github.com/vigilo/siem/internal/siem/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the collection engine until interrupted",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	log := logger.L()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := storage.Open(ctx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("open storage backend: %w", err)
	}

	eng := engine.New(cfg, store)
	if cfg.Archive.Enabled {
		arch, err := archive.NewArchiver(context.Background(), cfg.Archive)
		if err != nil {
			store.Close()
			return fmt.Errorf("init archiver: %w", err)
		}
		eng.WithArchiver(arch)
	}

	if err := eng.Start(context.Background()); err != nil {
		store.Close()
		return fmt.Errorf("start engine: %w", err)
	}
	log.Infow("siemd serving",
		"backend", cfg.Storage.Backend,
		"syslog_enabled", cfg.Syslog.Enabled,
		"syslog_addr", fmt.Sprintf("%s:%d", cfg.Syslog.Host, cfg.Syslog.Port))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Infow("shutting down", "signal", s.String())

	return eng.Shutdown()
}
