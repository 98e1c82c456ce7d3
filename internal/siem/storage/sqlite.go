package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/vigilo/siem/internal/siem/event"
	"github.com/vigilo/siem/internal/siem/logger"
)

// sqliteTimeLayout is fixed-width UTC so lexical order equals
// chronological order in SQLite text comparisons.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	event_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	entity_id TEXT,
	user_id TEXT,
	data TEXT,
	device_type TEXT,
	source_ip TEXT,
	hostname TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

var sqliteIndices = []string{
	"CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp DESC)",
	"CREATE INDEX IF NOT EXISTS idx_event_type ON events(event_type)",
	"CREATE INDEX IF NOT EXISTS idx_severity ON events(severity)",
	"CREATE INDEX IF NOT EXISTS idx_entity_id ON events(entity_id)",
	"CREATE INDEX IF NOT EXISTS idx_device_type ON events(device_type)",
	"CREATE INDEX IF NOT EXISTS idx_source_ip ON events(source_ip)",
	"CREATE INDEX IF NOT EXISTS idx_created_at ON events(created_at)",
}

const sqliteInsert = `
INSERT INTO events (
	event_id, timestamp, event_type, severity, message,
	entity_id, user_id, data, device_type, source_ip, hostname
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLite is the embedded relational backend. WAL mode lets concurrent
// inserts and reads proceed without blocking each other.
type SQLite struct {
	db    *sql.DB
	log   *zap.SugaredLogger
	close sync.Once
}

// OpenSQLite opens (creating if needed) the database file, enables WAL and
// ensures schema and indices. Failure here is a startup error.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=30000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events schema: %w", err)
	}
	for _, idx := range sqliteIndices {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			db.Close()
			return nil, fmt.Errorf("create index: %w", err)
		}
	}

	logger.L().Infow("sqlite backend ready", "path", path)
	return &SQLite{db: db, log: logger.L()}, nil
}

func (s *SQLite) Insert(ctx context.Context, ev *event.Event) (int64, error) {
	args, err := sqliteArgs(ev)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, sqliteInsert, args...)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	ev.RowID = id
	return id, nil
}

func (s *SQLite) InsertBulk(ctx context.Context, evs []*event.Event) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk insert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range evs {
		args, err := sqliteArgs(ev)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("bulk insert event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk insert: %w", err)
	}
	return len(evs), nil
}

func (s *SQLite) Query(ctx context.Context, f Filter) ([]*event.Event, error) {
	where, args := sqliteWhere(f)
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	q := `SELECT id, event_id, timestamp, event_type, severity, message,
		entity_id, user_id, data, device_type, source_ip, hostname
		FROM events` + where + " ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*event.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return out, nil
}

func (s *SQLite) Count(ctx context.Context, f Filter) (int64, error) {
	where, args := sqliteWhere(f)
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *SQLite) Statistics(ctx context.Context) (*Stats, error) {
	stats := NewStats()

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("statistics total: %w", err)
	}

	groups := []struct {
		query string
		into  map[string]int64
	}{
		{"SELECT severity, COUNT(*) FROM events GROUP BY severity", stats.BySeverity},
		{"SELECT event_type, COUNT(*) FROM events GROUP BY event_type ORDER BY COUNT(*) DESC LIMIT 20", stats.ByType},
		{"SELECT device_type, COUNT(*) FROM events WHERE device_type IS NOT NULL AND device_type != '' GROUP BY device_type", stats.ByDevice},
	}
	for _, g := range groups {
		rows, err := s.db.QueryContext(ctx, g.query)
		if err != nil {
			return nil, fmt.Errorf("statistics group: %w", err)
		}
		for rows.Next() {
			var key string
			var n int64
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("statistics group: %w", err)
			}
			g.into[key] = n
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("statistics group: %w", err)
		}
		rows.Close()
	}
	return stats, nil
}

// Cleanup deletes events older than the retention window and compacts the
// file. Failures are logged and reported as zero deletions, never fatal.
func (s *SQLite) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(sqliteTimeLayout)
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE timestamp < ?", cutoff)
	if err != nil {
		s.log.Errorw("cleanup old events", "err", err)
		return 0, nil
	}
	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		s.log.Infow("cleaned up old events", "deleted", deleted, "retention_days", retentionDays)
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			s.log.Warnw("vacuum after cleanup", "err", err)
		}
	}
	return deleted, nil
}

func (s *SQLite) ClearAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events")
	if err != nil {
		return 0, fmt.Errorf("clear events: %w", err)
	}
	deleted, _ := res.RowsAffected()
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		s.log.Warnw("vacuum after clear", "err", err)
	}
	s.log.Infow("cleared all events", "deleted", deleted)
	return deleted, nil
}

func (s *SQLite) Close() error {
	var err error
	s.close.Do(func() {
		err = s.db.Close()
	})
	return err
}

func sqliteArgs(ev *event.Event) ([]any, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("encode event data: %w", err)
	}
	return []any{
		ev.ID,
		ev.Timestamp.UTC().Format(sqliteTimeLayout),
		ev.Type,
		string(ev.Severity),
		ev.Message,
		nullString(ev.EntityID),
		nullString(ev.UserID),
		string(data),
		nullString(ev.DeviceType),
		nullString(ev.SourceIP),
		nullString(ev.Hostname),
	}, nil
}

func sqliteWhere(f Filter) (string, []any) {
	clauses := []string{}
	args := []any{}

	add := func(clause string, val any) {
		clauses = append(clauses, clause)
		args = append(args, val)
	}
	if f.Type != "" {
		add("event_type = ?", f.Type)
	}
	if f.Severity != "" {
		add("severity = ?", f.Severity)
	}
	if f.EntityID != "" {
		add("entity_id = ?", f.EntityID)
	}
	if f.DeviceType != "" {
		add("device_type = ?", f.DeviceType)
	}
	if f.SourceIP != "" {
		add("source_ip = ?", f.SourceIP)
	}
	if f.Search != "" {
		add("message LIKE ?", "%"+f.Search+"%")
	}
	if !f.Start.IsZero() {
		add("timestamp >= ?", f.Start.UTC().Format(sqliteTimeLayout))
	}
	if !f.End.IsZero() {
		add("timestamp <= ?", f.End.UTC().Format(sqliteTimeLayout))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanEvent(rows *sql.Rows) (*event.Event, error) {
	var (
		ev       event.Event
		ts       string
		sev      string
		data     sql.NullString
		entity   sql.NullString
		user     sql.NullString
		device   sql.NullString
		sourceIP sql.NullString
		hostname sql.NullString
	)
	if err := rows.Scan(&ev.RowID, &ev.ID, &ts, &ev.Type, &sev, &ev.Message,
		&entity, &user, &data, &device, &sourceIP, &hostname); err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	if t, err := time.Parse(sqliteTimeLayout, ts); err == nil {
		ev.Timestamp = t
	}
	ev.Severity = event.Severity(sev)
	ev.EntityID = entity.String
	ev.UserID = user.String
	ev.DeviceType = device.String
	ev.SourceIP = sourceIP.String
	ev.Hostname = hostname.String
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &ev.Data); err != nil {
			// Opaque payload stays opaque on decode failure.
			ev.Data = map[string]any{"raw": data.String}
		}
	}
	return &ev, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
