package storage

import (
	"context"
	stdjson "encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	client "github.com/influxdata/influxdb1-client/v2"
	"go.uber.org/zap"

	"github.com/vigilo/siem/internal/siem/config"
	"github.com/vigilo/siem/internal/siem/event"
	"github.com/vigilo/siem/internal/siem/logger"
)

const (
	influxMeasurement    = "siem_events"
	influxRetentionName  = "siem_retention"
	influxRawMessageCap  = 1000
	influxPingTimeout    = 5 * time.Second
	influxQueryPrecision = "ns"
)

// Tag enrichment pulled back out of the raw message so the series can be
// grouped by user and protocol without a field scan.
var (
	influxUserNameRe = regexp.MustCompile(`user_name="([^"]+)"`)
	influxProtocolRe = regexp.MustCompile(`protocol="(\w+)"`)
	influxSrcIPRe    = regexp.MustCompile(`src_ip=([\d.]+)`)
	influxDstIPRe    = regexp.MustCompile(`dst_ip=([\d.]+)`)
)

// Influx is the remote time-series backend, speaking the InfluxDB 1.x
// line protocol and InfluxQL.
type Influx struct {
	cli      client.Client
	database string
	log      *zap.SugaredLogger
}

// OpenInflux connects, verifies the server responds, and ensures database
// and default retention policy exist. An unreachable server is fatal.
func OpenInflux(ctx context.Context, cfg config.InfluxCfg) (*Influx, error) {
	scheme := "http"
	if cfg.SSL {
		scheme = "https"
	}
	addr := fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)

	cli, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:               addr,
		Username:           cfg.Username,
		Password:           cfg.Password,
		InsecureSkipVerify: !cfg.VerifySSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create influxdb client: %w", err)
	}
	if _, _, err := cli.Ping(influxPingTimeout); err != nil {
		cli.Close()
		return nil, fmt.Errorf("ping influxdb at %s: %w", addr, err)
	}

	db := cfg.Database
	s := &Influx{cli: cli, database: db, log: logger.L()}

	if _, err := s.runQuery(fmt.Sprintf("CREATE DATABASE %q", db)); err != nil {
		cli.Close()
		return nil, fmt.Errorf("create influxdb database %s: %w", db, err)
	}
	// Already-exists is a normal outcome on restart, not an error.
	rp := fmt.Sprintf("CREATE RETENTION POLICY %q ON %q DURATION 30d REPLICATION 1 DEFAULT",
		influxRetentionName, db)
	if _, err := s.runQuery(rp); err != nil &&
		!strings.Contains(err.Error(), "already exists") {
		cli.Close()
		return nil, fmt.Errorf("create retention policy: %w", err)
	}

	s.log.Infow("influxdb backend ready", "addr", addr, "database", db)
	return s, nil
}

// Insert writes one point. InfluxDB has no serial row ids, so the returned
// id is always zero.
func (s *Influx) Insert(ctx context.Context, ev *event.Event) (int64, error) {
	bp, err := s.newBatch()
	if err != nil {
		return 0, err
	}
	pt, err := buildPoint(ev)
	if err != nil {
		return 0, err
	}
	bp.AddPoint(pt)
	if err := s.cli.Write(bp); err != nil {
		return 0, fmt.Errorf("write event point: %w", err)
	}
	return 0, nil
}

func (s *Influx) InsertBulk(ctx context.Context, evs []*event.Event) (int, error) {
	bp, err := s.newBatch()
	if err != nil {
		return 0, err
	}
	for _, ev := range evs {
		pt, err := buildPoint(ev)
		if err != nil {
			return 0, err
		}
		bp.AddPoint(pt)
	}
	if err := s.cli.Write(bp); err != nil {
		return 0, fmt.Errorf("write event batch: %w", err)
	}
	return len(evs), nil
}

func (s *Influx) Query(ctx context.Context, f Filter) ([]*event.Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	q := fmt.Sprintf("SELECT * FROM %q%s ORDER BY time DESC LIMIT %d OFFSET %d",
		influxMeasurement, influxWhere(f), limit, f.Offset)

	rows, err := s.runQuery(q)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	var out []*event.Event
	for _, row := range rows {
		cols := map[string]int{}
		for i, c := range row.Columns {
			cols[c] = i
		}
		for _, vals := range row.Values {
			out = append(out, rowToEvent(cols, vals))
		}
	}
	return out, nil
}

func (s *Influx) Count(ctx context.Context, f Filter) (int64, error) {
	q := fmt.Sprintf("SELECT COUNT(message) FROM %q%s", influxMeasurement, influxWhere(f))
	rows, err := s.runQuery(q)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return firstCount(rows), nil
}

func (s *Influx) Statistics(ctx context.Context) (*Stats, error) {
	stats := NewStats()

	rows, err := s.runQuery(fmt.Sprintf("SELECT COUNT(message) FROM %q", influxMeasurement))
	if err != nil {
		return nil, fmt.Errorf("statistics total: %w", err)
	}
	stats.Total = firstCount(rows)

	groups := []struct {
		tag  string
		into map[string]int64
	}{
		{"severity", stats.BySeverity},
		{"event_type", stats.ByType},
		{"device_type", stats.ByDevice},
	}
	for _, g := range groups {
		q := fmt.Sprintf("SELECT COUNT(message) FROM %q GROUP BY %q", influxMeasurement, g.tag)
		rows, err := s.runQuery(q)
		if err != nil {
			return nil, fmt.Errorf("statistics by %s: %w", g.tag, err)
		}
		for _, row := range rows {
			key := row.Tags[g.tag]
			if key == "" {
				continue
			}
			g.into[key] = countValue(row)
		}
	}
	trimTopN(stats.ByType, 20)
	return stats, nil
}

// Cleanup issues an advisory DELETE below the retention policy's own
// horizon. The policy does the real expiry; failures here are logged and
// reported as zero.
func (s *Influx) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)
	q := fmt.Sprintf("DELETE FROM %q WHERE time < '%s'", influxMeasurement, cutoff)
	if _, err := s.runQuery(q); err != nil {
		s.log.Errorw("cleanup old events", "err", err)
		return 0, nil
	}
	// DELETE reports no row count; the retention policy owns the numbers.
	return 0, nil
}

func (s *Influx) ClearAll(ctx context.Context) (int64, error) {
	n, err := s.Count(ctx, Filter{})
	if err != nil {
		n = 0
	}
	if _, err := s.runQuery(fmt.Sprintf("DROP MEASUREMENT %q", influxMeasurement)); err != nil {
		return 0, fmt.Errorf("drop measurement: %w", err)
	}
	s.log.Infow("cleared all events", "deleted", n)
	return n, nil
}

func (s *Influx) Close() error { return s.cli.Close() }

func (s *Influx) newBatch() (client.BatchPoints, error) {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  s.database,
		Precision: influxQueryPrecision,
	})
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	return bp, nil
}

func (s *Influx) runQuery(cmd string) ([]seriesRow, error) {
	resp, err := s.cli.Query(client.NewQuery(cmd, s.database, influxQueryPrecision))
	if err != nil {
		return nil, err
	}
	if resp.Error() != nil {
		return nil, resp.Error()
	}
	var rows []seriesRow
	for _, res := range resp.Results {
		for _, series := range res.Series {
			rows = append(rows, seriesRow{
				Tags:    series.Tags,
				Columns: series.Columns,
				Values:  series.Values,
			})
		}
	}
	return rows, nil
}

// seriesRow is the slice of a response series this backend cares about.
type seriesRow struct {
	Tags    map[string]string
	Columns []string
	Values  [][]any
}

// buildPoint maps an event onto the siem_events measurement. Dimensions
// that queries group or filter by become tags; everything else is fields.
func buildPoint(ev *event.Event) (*client.Point, error) {
	tags := map[string]string{
		"event_type": ev.Type,
		"severity":   string(ev.Severity),
	}
	if ev.DeviceType != "" {
		tags["device_type"] = ev.DeviceType
	}
	if ev.EntityID != "" {
		tags["entity_id"] = ev.EntityID
	}
	if ev.SourceIP != "" {
		tags["source_ip"] = ev.SourceIP
	}

	raw := ""
	if v, ok := ev.Data["raw_message"].(string); ok {
		raw = v
	}
	if user := firstMatch(influxUserNameRe, raw); user != "" {
		tags["user_name"] = user
	}
	if proto := firstMatch(influxProtocolRe, raw); proto != "" {
		tags["protocol"] = proto
	}

	data, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("encode event data: %w", err)
	}
	fields := map[string]any{
		"event_id":  ev.ID,
		"message":   ev.Message,
		"data_json": string(data),
	}
	if ev.EntityID != "" {
		fields["entity_id"] = ev.EntityID
	}
	if ev.UserID != "" {
		fields["user_id"] = ev.UserID
	}
	if ev.SourceIP != "" {
		fields["source_ip"] = ev.SourceIP
	}
	if ev.Hostname != "" {
		fields["hostname"] = ev.Hostname
	}
	if raw != "" {
		if len(raw) > influxRawMessageCap {
			raw = raw[:influxRawMessageCap]
		}
		fields["raw_message"] = raw
		if ip := firstMatch(influxSrcIPRe, raw); ip != "" {
			fields["src_ip"] = ip
		}
		if ip := firstMatch(influxDstIPRe, raw); ip != "" {
			fields["dst_ip"] = ip
		}
	}

	return client.NewPoint(influxMeasurement, tags, fields, ev.Timestamp.UTC())
}

func influxWhere(f Filter) string {
	var clauses []string
	eq := func(key, val string) {
		clauses = append(clauses, fmt.Sprintf("%q = '%s'", key, escapeInflux(val)))
	}
	if f.Type != "" {
		eq("event_type", f.Type)
	}
	if f.Severity != "" {
		eq("severity", f.Severity)
	}
	if f.EntityID != "" {
		eq("entity_id", f.EntityID)
	}
	if f.DeviceType != "" {
		eq("device_type", f.DeviceType)
	}
	if f.SourceIP != "" {
		eq("source_ip", f.SourceIP)
	}
	if f.Search != "" {
		clauses = append(clauses,
			fmt.Sprintf("\"message\" =~ /%s/", regexp.QuoteMeta(f.Search)))
	}
	if !f.Start.IsZero() {
		clauses = append(clauses,
			fmt.Sprintf("time >= '%s'", f.Start.UTC().Format(time.RFC3339Nano)))
	}
	if !f.End.IsZero() {
		clauses = append(clauses,
			fmt.Sprintf("time <= '%s'", f.End.UTC().Format(time.RFC3339Nano)))
	}
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func escapeInflux(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}

func rowToEvent(cols map[string]int, vals []any) *event.Event {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(vals) || vals[i] == nil {
			return ""
		}
		s, _ := vals[i].(string)
		return s
	}

	ev := &event.Event{
		ID:         get("event_id"),
		Type:       get("event_type"),
		Severity:   event.Severity(get("severity")),
		Message:    get("message"),
		EntityID:   get("entity_id"),
		UserID:     get("user_id"),
		DeviceType: get("device_type"),
		SourceIP:   get("source_ip"),
		Hostname:   get("hostname"),
	}
	if ts := get("time"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.Timestamp = t
		}
	} else if i, ok := cols["time"]; ok && i < len(vals) {
		if n, ok := vals[i].(stdjson.Number); ok {
			if ns, err := n.Int64(); err == nil {
				ev.Timestamp = time.Unix(0, ns).UTC()
			}
		}
	}
	if raw := get("data_json"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &ev.Data)
	}
	if ev.Data == nil {
		ev.Data = map[string]any{}
	}
	return ev
}

func firstCount(rows []seriesRow) int64 {
	for _, row := range rows {
		if n := countValue(row); n > 0 {
			return n
		}
	}
	return 0
}

func countValue(row seriesRow) int64 {
	idx := -1
	for i, c := range row.Columns {
		if c == "count" {
			idx = i
		}
	}
	if idx < 0 || len(row.Values) == 0 || idx >= len(row.Values[0]) {
		return 0
	}
	switch v := row.Values[0][idx].(type) {
	case stdjson.Number:
		n, _ := v.Int64()
		return n
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// trimTopN keeps only the n highest-count entries.
func trimTopN(m map[string]int64, n int) {
	if len(m) <= n {
		return
	}
	type kv struct {
		k string
		v int64
	}
	all := make([]kv, 0, len(m))
	for k, v := range m {
		all = append(all, kv{k, v})
	}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].v > all[i].v {
				all[i], all[j] = all[j], all[i]
			}
		}
	}
	for _, e := range all[n:] {
		delete(m, e.k)
	}
}
