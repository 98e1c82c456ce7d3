package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type LoggingCfg struct {
	Level string `mapstructure:"level"`
}

type SyslogCfg struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

type RetentionCfg struct {
	Days int `mapstructure:"days"`
	// MaxEvents is advisory; the hourly sweep enforces age, not count.
	MaxEvents int `mapstructure:"max_events"`
}

type SQLiteCfg struct {
	Path string `mapstructure:"path"`
}

type InfluxCfg struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Database  string `mapstructure:"database"`
	SSL       bool   `mapstructure:"ssl"`
	VerifySSL bool   `mapstructure:"verify_ssl"`
}

type StorageCfg struct {
	Backend string    `mapstructure:"backend"`
	SQLite  SQLiteCfg `mapstructure:"sqlite"`
	Influx  InfluxCfg `mapstructure:"influxdb"`
}

type ArchiveCfg struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
	Timeout string `mapstructure:"timeout"`
	Retries int    `mapstructure:"retries"`
}

type Config struct {
	Logging   LoggingCfg   `mapstructure:"logging"`
	Syslog    SyslogCfg    `mapstructure:"syslog"`
	Retention RetentionCfg `mapstructure:"retention"`
	Storage   StorageCfg   `mapstructure:"storage"`
	Archive   ArchiveCfg   `mapstructure:"archive"`
}

var cfg *Config

// Load populates global config from a viper instance
func Load(v *viper.Viper) error {
	// set defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("syslog.enabled", true)
	v.SetDefault("syslog.host", "0.0.0.0")
	v.SetDefault("syslog.port", 5514)
	v.SetDefault("retention.days", 30)
	v.SetDefault("retention.max_events", 50000)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.sqlite.path", "siem.db")
	v.SetDefault("storage.influxdb.host", "localhost")
	v.SetDefault("storage.influxdb.port", 8086)
	v.SetDefault("storage.influxdb.database", "siem")
	v.SetDefault("storage.influxdb.ssl", false)
	v.SetDefault("storage.influxdb.verify_ssl", false)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.prefix", "siem")
	v.SetDefault("archive.timeout", "5s")
	v.SetDefault("archive.retries", 3)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	cfg = &c
	return nil
}

func Get() *Config {
	if cfg == nil {
		cfg = &Config{}
	}
	return cfg
}
