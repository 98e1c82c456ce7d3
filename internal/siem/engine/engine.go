// Package engine wires the syslog listener, vendor dispatch, internal
// event classification and storage into one running collection pipeline.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vigilo/siem/internal/siem/archive"
	"github.com/vigilo/siem/internal/siem/classify"
	"github.com/vigilo/siem/internal/siem/config"
	"github.com/vigilo/siem/internal/siem/event"
	"github.com/vigilo/siem/internal/siem/logger"
	"github.com/vigilo/siem/internal/siem/parsers"
	"github.com/vigilo/siem/internal/siem/storage"
	"github.com/vigilo/siem/internal/siem/syslog"
)

const (
	cleanupInterval = time.Hour
	insertTimeout   = 10 * time.Second
)

// exporter is the cold-storage surface the retention sweep hands expiring
// events to.
type exporter interface {
	Export(ctx context.Context, evs []*event.Event) (string, error)
}

// Engine owns the collection pipeline. One datagram or internal signal in,
// at most one stored event out. A store failure drops the event and keeps
// the pipeline running.
type Engine struct {
	store      storage.Backend
	dispatcher *parsers.Dispatcher
	listener   *syslog.Listener
	archiver   exporter

	retentionDays int
	log           *zap.SugaredLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New assembles an engine from config. The listener is created but not
// bound until Start.
func New(cfg *config.Config, store storage.Backend) *Engine {
	e := &Engine{
		store:         store,
		dispatcher:    parsers.NewDispatcher(),
		retentionDays: cfg.Retention.Days,
		log:           logger.L(),
	}
	if cfg.Syslog.Enabled {
		e.listener = syslog.NewListener(cfg.Syslog.Host, cfg.Syslog.Port, e.HandleEnvelope)
	}
	return e
}

// WithArchiver attaches an optional cold-storage exporter.
func (e *Engine) WithArchiver(a *archive.Archiver) *Engine {
	e.archiver = a
	return e
}

// Start binds the listener and launches the hourly retention sweep.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done != nil {
		return nil
	}

	if e.listener != nil {
		if err := e.listener.Start(); err != nil {
			return err
		}
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.retentionLoop(sweepCtx)

	e.log.Infow("engine started", "retention_days", e.retentionDays)
	return nil
}

// Shutdown stops ingestion, waits for the retention sweep to exit and
// closes the store. Safe to call more than once.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listener != nil {
		e.listener.Stop()
	}
	if e.cancel != nil {
		e.cancel()
		<-e.done
		e.cancel = nil
		e.done = nil
	}
	err := e.store.Close()
	e.log.Infow("engine stopped")
	return err
}

// HandleEnvelope is the syslog ingestion path: vendor dispatch, then
// normalization, then a store write. An unclassifiable envelope produces
// nothing.
func (e *Engine) HandleEnvelope(env *syslog.Envelope) {
	draft := e.dispatcher.Dispatch(env)
	if draft == nil {
		return
	}
	e.persist(event.Normalize(draft, env.ReceivedAt))
}

// RecordStateChange ingests an internal platform state transition. Only
// security-relevant entities produce events.
func (e *Engine) RecordStateChange(entityID, oldState, newState string) {
	draft, ok := classify.StateChange(entityID, oldState, newState)
	if !ok {
		return
	}
	e.persist(event.Normalize(draft, time.Now()))
}

// RecordServiceCall ingests a security service invocation.
func (e *Engine) RecordServiceCall(domain, service string, serviceData map[string]any) {
	draft, ok := classify.ServiceCall(domain, service, serviceData)
	if !ok {
		return
	}
	e.persist(event.Normalize(draft, time.Now()))
}

// RecordAutomation ingests an automation trigger signal.
func (e *Engine) RecordAutomation(name, entityID string, data map[string]any) {
	e.persist(event.Normalize(classify.AutomationTrigger(name, entityID, data), time.Now()))
}

// RecordScript ingests a script run signal.
func (e *Engine) RecordScript(name, entityID string, data map[string]any) {
	e.persist(event.Normalize(classify.ScriptRun(name, entityID, data), time.Now()))
}

// RecordNotification inspects a notification for authentication failures.
func (e *Engine) RecordNotification(message string, data map[string]any) {
	draft, ok := classify.Notification(message, data)
	if !ok {
		return
	}
	e.persist(event.Normalize(draft, time.Now()))
}

// archiveExpiring exports events about to fall out of the retention window
// to cold storage. The whole expiring set is paged out, not just the first
// query page. Best-effort: a failed export never blocks the sweep.
func (e *Engine) archiveExpiring(ctx context.Context) {
	if e.archiver == nil {
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -e.retentionDays)

	var expiring []*event.Event
	for offset := 0; ; offset += storage.DefaultQueryLimit {
		page, err := e.store.Query(ctx, storage.Filter{
			End:    cutoff,
			Limit:  storage.DefaultQueryLimit,
			Offset: offset,
		})
		if err != nil {
			e.log.Warnw("query expiring events for archive", "err", err)
			return
		}
		expiring = append(expiring, page...)
		if len(page) < storage.DefaultQueryLimit {
			break
		}
	}
	if len(expiring) == 0 {
		return
	}
	if _, err := e.archiver.Export(ctx, expiring); err != nil {
		e.log.Warnw("archive expiring events", "err", err, "events", len(expiring))
	}
}

func (e *Engine) persist(ev *event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if _, err := e.store.Insert(ctx, ev); err != nil {
		e.log.Errorw("store event",
			"event_type", ev.Type, "severity", ev.Severity, "err", err)
		return
	}
	e.log.Debugw("stored event",
		"event_type", ev.Type, "severity", ev.Severity, "message", ev.Message)
}

func (e *Engine) retentionLoop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.archiveExpiring(ctx)
			deleted, _ := e.store.Cleanup(ctx, e.retentionDays)
			if deleted > 0 {
				e.log.Infow("retention sweep", "deleted", deleted)
			}
		}
	}
}
