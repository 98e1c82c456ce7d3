package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	require.NoError(t, Load(v))

	cfg := Get()
	require.Equal(t, "info", cfg.Logging.Level)
	require.True(t, cfg.Syslog.Enabled)
	require.Equal(t, "0.0.0.0", cfg.Syslog.Host)
	require.Equal(t, 5514, cfg.Syslog.Port)
	require.Equal(t, 30, cfg.Retention.Days)
	require.Equal(t, 50000, cfg.Retention.MaxEvents)
	require.Equal(t, "sqlite", cfg.Storage.Backend)
	require.Equal(t, "siem.db", cfg.Storage.SQLite.Path)
	require.Equal(t, "localhost", cfg.Storage.Influx.Host)
	require.Equal(t, 8086, cfg.Storage.Influx.Port)
	require.Equal(t, "siem", cfg.Storage.Influx.Database)
	require.False(t, cfg.Storage.Influx.SSL)
	require.False(t, cfg.Archive.Enabled)
	require.Equal(t, "siem", cfg.Archive.Prefix)
	require.Equal(t, "5s", cfg.Archive.Timeout)
	require.Equal(t, 3, cfg.Archive.Retries)
}

func TestLoad_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("syslog.port", 1514)
	v.Set("storage.backend", "influxdb")
	v.Set("storage.influxdb.host", "tsdb.internal")
	v.Set("retention.days", 7)
	require.NoError(t, Load(v))

	cfg := Get()
	require.Equal(t, 1514, cfg.Syslog.Port)
	require.Equal(t, "influxdb", cfg.Storage.Backend)
	require.Equal(t, "tsdb.internal", cfg.Storage.Influx.Host)
	require.Equal(t, 7, cfg.Retention.Days)
	// untouched keys keep their defaults
	require.Equal(t, "siem.db", cfg.Storage.SQLite.Path)
}
