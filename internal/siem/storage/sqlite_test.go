package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vigilo/siem/internal/siem/event"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func makeEvent(typ string, sev event.Severity, at time.Time) *event.Event {
	return event.Normalize(&event.Draft{
		Type:       typ,
		Severity:   sev,
		Message:    fmt.Sprintf("%s sample", typ),
		DeviceType: "sophos_xgs",
		SourceIP:   "192.0.2.10",
		Hostname:   "sophos-fw01",
		Data:       map[string]any{"raw_message": "sample line"},
	}, at)
}

func TestSQLite_InsertAndQueryRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2024, 6, 1, 12, 0, 0, 123456789, time.UTC)
	ev := event.Normalize(&event.Draft{
		Type:       event.TypeFirewallBlock,
		Severity:   event.SeverityMedium,
		Message:    "Sophos Firewall Denied: 10.0.0.5 → 93.184.216.34:443",
		EntityID:   "",
		UserID:     "jsmith",
		DeviceType: "sophos_xgs",
		SourceIP:   "192.0.2.10",
		Hostname:   "sophos-fw01",
		Data: map[string]any{
			"action":   "Denied",
			"dst_port": "443",
			"count":    float64(3),
		},
	}, at)

	rowID, err := store.Insert(ctx, ev)
	require.NoError(t, err)
	require.Greater(t, rowID, int64(0))
	require.Equal(t, rowID, ev.RowID)

	got, err := store.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	out := got[0]
	require.Equal(t, ev.ID, out.ID)
	require.Equal(t, rowID, out.RowID)
	require.True(t, out.Timestamp.Equal(at), "timestamp %v != %v", out.Timestamp, at)
	require.Equal(t, ev.Type, out.Type)
	require.Equal(t, ev.Severity, out.Severity)
	require.Equal(t, ev.Message, out.Message)
	require.Equal(t, ev.UserID, out.UserID)
	require.Equal(t, ev.DeviceType, out.DeviceType)
	require.Equal(t, ev.SourceIP, out.SourceIP)
	require.Equal(t, ev.Hostname, out.Hostname)
	require.Equal(t, ev.Data, out.Data)
}

func TestSQLite_QueryFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var batch []*event.Event
	for i := 0; i < 24; i++ {
		typ := event.TypeFirewallAllow
		sev := event.SeverityLow
		switch i % 4 {
		case 1:
			typ, sev = event.TypeFirewallBlock, event.SeverityMedium
		case 2:
			typ, sev = event.TypeIPSAlert, event.SeverityHigh
		case 3:
			typ, sev = event.TypeStateChange, event.SeverityCritical
		}
		batch = append(batch, makeEvent(typ, sev, base.Add(time.Duration(i)*time.Hour)))
	}
	n, err := store.InsertBulk(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 24, n)

	byType, err := store.Query(ctx, Filter{Type: event.TypeIPSAlert})
	require.NoError(t, err)
	require.Len(t, byType, 6)

	bySev, err := store.Query(ctx, Filter{Severity: "critical"})
	require.NoError(t, err)
	require.Len(t, bySev, 6)

	// Predicates are conjunctive.
	both, err := store.Query(ctx, Filter{Type: event.TypeIPSAlert, Severity: "critical"})
	require.NoError(t, err)
	require.Empty(t, both)

	windowed, err := store.Query(ctx, Filter{
		Start: base.Add(2 * time.Hour),
		End:   base.Add(5 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, windowed, 4) // inclusive bounds

	search, err := store.Query(ctx, Filter{Search: "ips_alert"})
	require.NoError(t, err)
	require.Len(t, search, 6)

	count, err := store.Count(ctx, Filter{Type: event.TypeIPSAlert})
	require.NoError(t, err)
	require.Equal(t, int64(6), count)
}

func TestSQLite_QueryOrderAndPaging(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		_, err := store.Insert(ctx, makeEvent(event.TypeFirewallAllow, event.SeverityLow,
			base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	all, err := store.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 10)
	for i := 1; i < len(all); i++ {
		require.False(t, all[i].Timestamp.After(all[i-1].Timestamp), "not newest first at %d", i)
	}

	page, err := store.Query(ctx, Filter{Limit: 3, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.True(t, page[0].Timestamp.Equal(all[2].Timestamp))
}

func TestSQLite_BulkStatistics(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sevs := []event.Severity{
		event.SeverityLow, event.SeverityMedium, event.SeverityHigh, event.SeverityCritical,
	}
	types := []string{
		event.TypeFirewallBlock, event.TypeFirewallAllow, event.TypeIPSAlert,
		event.TypeWifiClient, event.TypeNetworkAuth,
	}
	var batch []*event.Event
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 500; i++ {
		batch = append(batch, makeEvent(types[i%len(types)], sevs[i%len(sevs)],
			base.Add(time.Duration(i)*time.Second)))
	}
	n, err := store.InsertBulk(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 500, n)

	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(500), stats.Total)

	var bySev int64
	for _, c := range stats.BySeverity {
		bySev += c
	}
	require.Equal(t, int64(500), bySev)

	var byType int64
	for _, c := range stats.ByType {
		byType += c
	}
	require.Equal(t, int64(500), byType)
	require.Equal(t, int64(100), stats.ByType[event.TypeIPSAlert])
	require.Equal(t, int64(500), stats.ByDevice["sophos_xgs"])
}

func TestSQLite_CleanupRetentionBoundary(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	old := makeEvent(event.TypeFirewallAllow, event.SeverityLow, now.AddDate(0, 0, -31))
	edge := makeEvent(event.TypeFirewallAllow, event.SeverityLow, now.AddDate(0, 0, -30).Add(time.Hour))
	fresh := makeEvent(event.TypeFirewallAllow, event.SeverityLow, now.AddDate(0, 0, -1))
	_, err := store.InsertBulk(ctx, []*event.Event{old, edge, fresh})
	require.NoError(t, err)

	deleted, err := store.Cleanup(ctx, 30)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	remaining, err := store.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	for _, ev := range remaining {
		require.NotEqual(t, old.ID, ev.ID)
	}
}

func TestSQLite_ClearAll(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.InsertBulk(ctx, []*event.Event{
		makeEvent(event.TypeFirewallAllow, event.SeverityLow, time.Now()),
		makeEvent(event.TypeIPSAlert, event.SeverityHigh, time.Now()),
	})
	require.NoError(t, err)

	deleted, err := store.ClearAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	count, err := store.Count(ctx, Filter{})
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestSQLite_CloseIdempotent(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestSQLite_TimestampLexicalOrder(t *testing.T) {
	// The storage layout relies on fixed-width timestamps comparing
	// lexically in chronological order.
	a := time.Date(2024, 6, 1, 12, 0, 0, 5, time.UTC).Format(sqliteTimeLayout)
	b := time.Date(2024, 6, 1, 12, 0, 0, 40, time.UTC).Format(sqliteTimeLayout)
	require.Less(t, a, b)
	require.Len(t, a, len(b))
}
