package config

import (
	logx "remindbot/pkg/logx"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Reminder ReminderConfig `json:"reminder"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ReminderConfig controls the due-sweep and reply formatting.
//
// Defaults (when omitted/zero):
//   - sweep_interval: "60s" (minimum "1s")
//   - send_timeout: "10s"
//   - rate_per_sec: 20 (negative disables limiting)
//   - time_format: "15:04:05"
type ReminderConfig struct {
	SweepInterval string `json:"sweep_interval,omitempty"`
	SendTimeout   string `json:"send_timeout,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	TimeFormat    string `json:"time_format,omitempty"`
}

// StorageConfig controls the optional audit log.
//
// Example:
//
//	storage: { driver: file, path: ./remindbot_audit }
type StorageConfig struct {
	Driver      string       `json:"driver"`
	Path        string       `json:"path,omitempty"`
	BusyTimeout string       `json:"busy_timeout,omitempty"` // sqlite
	Redis       *RedisConfig `json:"redis,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Key      string `json:"key,omitempty"`
	// MaxLen caps the audit list; 0 means 10000.
	MaxLen int64 `json:"max_len,omitempty"`
}

// Logx converts the logging section to the logger service config.
func (c LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}
