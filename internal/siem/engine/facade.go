package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/vigilo/siem/internal/siem/event"
	"github.com/vigilo/siem/internal/siem/logger"
	"github.com/vigilo/siem/internal/siem/storage"
)

// Facade is the read surface consumers query against. Backend failures
// degrade to empty results so a flaky store never takes a caller down
// with it; the error is logged, not propagated.
type Facade struct {
	store storage.Backend
	log   *zap.SugaredLogger
}

func NewFacade(store storage.Backend) *Facade {
	return &Facade{store: store, log: logger.L()}
}

// Query returns matching events newest first, or an empty slice on
// backend failure.
func (f *Facade) Query(ctx context.Context, filter storage.Filter) []*event.Event {
	evs, err := f.store.Query(ctx, filter)
	if err != nil {
		f.log.Errorw("query events", "err", err)
		return []*event.Event{}
	}
	if evs == nil {
		evs = []*event.Event{}
	}
	return evs
}

// Count returns the number of matching events, or zero on backend failure.
func (f *Facade) Count(ctx context.Context, filter storage.Filter) int64 {
	n, err := f.store.Count(ctx, filter)
	if err != nil {
		f.log.Errorw("count events", "err", err)
		return 0
	}
	return n
}

// Statistics returns aggregate counts, or empty stats on backend failure.
func (f *Facade) Statistics(ctx context.Context) *storage.Stats {
	stats, err := f.store.Statistics(ctx)
	if err != nil {
		f.log.Errorw("event statistics", "err", err)
		return storage.NewStats()
	}
	return stats
}
