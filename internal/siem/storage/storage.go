// Package storage persists canonical events behind one backend contract
// with two interchangeable implementations: an embedded SQLite store and a
// remote InfluxDB 1.x store. The Event-to-backend mapping lives entirely
// inside each variant.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vigilo/siem/internal/siem/config"
	"github.com/vigilo/siem/internal/siem/event"
)

// DefaultQueryLimit bounds unpaginated queries.
const DefaultQueryLimit = 1000

// ErrUnsupportedBackend is returned by Open for an unknown backend name.
var ErrUnsupportedBackend = errors.New("unsupported storage backend")

// Filter is the set of optional predicates applied to queries and counts.
// All provided predicates are ANDed; zero values impose no constraint.
type Filter struct {
	Type       string
	Severity   string
	EntityID   string
	DeviceType string
	SourceIP   string
	// Search is a substring predicate on the message field.
	Search string
	// Start and End bound the timestamp, inclusive on both ends.
	Start time.Time
	End   time.Time

	Limit  int
	Offset int
}

// Stats is the aggregate shape both backends agree on regardless of
// storage model. ByType holds the top 20 types by count.
type Stats struct {
	Total      int64            `json:"total_events"`
	BySeverity map[string]int64 `json:"by_severity"`
	ByType     map[string]int64 `json:"by_type"`
	ByDevice   map[string]int64 `json:"by_device"`
}

func NewStats() *Stats {
	return &Stats{
		BySeverity: make(map[string]int64),
		ByType:     make(map[string]int64),
		ByDevice:   make(map[string]int64),
	}
}

// Backend is the storage contract. Insert and query failures are expected
// to be recovered by the caller (logged, pipeline continues); Cleanup never
// fails loudly — backends log and return 0.
type Backend interface {
	// Insert persists one event and returns the backend's row id
	// (zero for backends without serials).
	Insert(ctx context.Context, ev *event.Event) (int64, error)
	// InsertBulk persists many events in one native transaction and
	// returns the number inserted.
	InsertBulk(ctx context.Context, evs []*event.Event) (int, error)
	// Query returns matching events, newest first.
	Query(ctx context.Context, f Filter) ([]*event.Event, error)
	Count(ctx context.Context, f Filter) (int64, error)
	Statistics(ctx context.Context) (*Stats, error)
	// Cleanup deletes events older than now minus retentionDays.
	Cleanup(ctx context.Context, retentionDays int) (int64, error)
	ClearAll(ctx context.Context) (int64, error)
	Close() error
}

// Open constructs the configured backend. A connection failure here is
// fatal to the caller: the service must not accept ingestion against a
// backend it cannot write to.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case "sqlite", "":
		return OpenSQLite(ctx, cfg.Storage.SQLite.Path)
	case "influxdb", "influx":
		return OpenInflux(ctx, cfg.Storage.Influx)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Storage.Backend)
	}
}
