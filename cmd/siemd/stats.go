package main

import (
	"context"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vigilo/siem/internal/siem/config"
	"github.com/vigilo/siem/internal/siem/engine"
	"github.com/vigilo/siem/internal/siem/storage"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregate event statistics as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := storage.Open(ctx, config.Get())
		if err != nil {
			return fmt.Errorf("open storage backend: %w", err)
		}
		defer store.Close()

		stats := engine.NewFacade(store).Statistics(ctx)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}
