package main

import (
	"context"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vigilo/siem/internal/siem/config"
	"github.com/vigilo/siem/internal/siem/engine"
	"github.com/vigilo/siem/internal/siem/storage"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query stored events as NDJSON",
	RunE:  runQuery,
}

var (
	flagType       string
	flagSeverity   string
	flagEntity     string
	flagDeviceType string
	flagSourceIP   string
	flagSearch     string
	flagStart      string
	flagEnd        string
	flagLimit      int
	flagOffset     int
	flagCountOnly  bool
)

func init() {
	queryCmd.Flags().StringVar(&flagType, "type", "", "filter by event type")
	queryCmd.Flags().StringVar(&flagSeverity, "severity", "", "filter by severity: low|medium|high|critical")
	queryCmd.Flags().StringVar(&flagEntity, "entity", "", "filter by entity id")
	queryCmd.Flags().StringVar(&flagDeviceType, "device-type", "", "filter by device type")
	queryCmd.Flags().StringVar(&flagSourceIP, "source-ip", "", "filter by source IP")
	queryCmd.Flags().StringVar(&flagSearch, "search", "", "substring match on message")
	queryCmd.Flags().StringVar(&flagStart, "start", "", "start time (RFC3339)")
	queryCmd.Flags().StringVar(&flagEnd, "end", "", "end time (RFC3339)")
	queryCmd.Flags().IntVar(&flagLimit, "limit", 0, "max events to return (default 1000)")
	queryCmd.Flags().IntVar(&flagOffset, "offset", 0, "events to skip")
	queryCmd.Flags().BoolVar(&flagCountOnly, "count", false, "print the match count instead of events")
}

func buildFilter() (storage.Filter, error) {
	f := storage.Filter{
		Type:       flagType,
		Severity:   flagSeverity,
		EntityID:   flagEntity,
		DeviceType: flagDeviceType,
		SourceIP:   flagSourceIP,
		Search:     flagSearch,
		Limit:      flagLimit,
		Offset:     flagOffset,
	}
	if flagStart != "" {
		t, err := time.Parse(time.RFC3339, flagStart)
		if err != nil {
			return f, fmt.Errorf("parse --start: %w", err)
		}
		f.Start = t
	}
	if flagEnd != "" {
		t, err := time.Parse(time.RFC3339, flagEnd)
		if err != nil {
			return f, fmt.Errorf("parse --end: %w", err)
		}
		f.End = t
	}
	return f, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	filter, err := buildFilter()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := storage.Open(ctx, config.Get())
	if err != nil {
		return fmt.Errorf("open storage backend: %w", err)
	}
	defer store.Close()

	facade := engine.NewFacade(store)
	if flagCountOnly {
		fmt.Println(facade.Count(ctx, filter))
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	for _, ev := range facade.Query(ctx, filter) {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
	}
	return nil
}
