package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vigilo/siem/internal/siem/config"
	"github.com/vigilo/siem/internal/siem/storage"
)

var flagRetentionDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete events older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		days := flagRetentionDays
		if days <= 0 {
			days = cfg.Retention.Days
		}

		ctx := context.Background()
		store, err := storage.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open storage backend: %w", err)
		}
		defer store.Close()

		deleted, err := store.Cleanup(ctx, days)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d events older than %d days\n", deleted, days)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := storage.Open(ctx, config.Get())
		if err != nil {
			return fmt.Errorf("open storage backend: %w", err)
		}
		defer store.Close()

		deleted, err := store.ClearAll(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d events\n", deleted)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&flagRetentionDays, "days", 0, "retention window override in days")
}
