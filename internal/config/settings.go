package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultSweepInterval = 60 * time.Second
	DefaultSendTimeout   = 10 * time.Second
	DefaultRatePerSec    = 20
	DefaultTimeFormat    = "15:04:05"
	DefaultPollTimeout   = 10 * time.Second
)

// Reminder is the resolved reminder section.
type Reminder struct {
	SweepInterval time.Duration
	SendTimeout   time.Duration
	RatePerSec    int
	TimeFormat    string
}

// ResolveReminder applies defaults and validates the reminder section.
func (c *Config) ResolveReminder() (Reminder, error) {
	var (
		out Reminder
		err error
	)
	rc := c.Reminder
	if out.SweepInterval, err = durationOrDefault("reminder.sweep_interval", rc.SweepInterval, DefaultSweepInterval); err != nil {
		return Reminder{}, err
	}
	if out.SweepInterval < time.Second {
		return Reminder{}, fmt.Errorf("reminder.sweep_interval: must be >= 1s, got %s", out.SweepInterval)
	}
	if out.SendTimeout, err = durationOrDefault("reminder.send_timeout", rc.SendTimeout, DefaultSendTimeout); err != nil {
		return Reminder{}, err
	}
	out.RatePerSec = rc.RatePerSec
	if out.RatePerSec == 0 {
		out.RatePerSec = DefaultRatePerSec
	}
	out.TimeFormat = strings.TrimSpace(rc.TimeFormat)
	if out.TimeFormat == "" {
		out.TimeFormat = DefaultTimeFormat
	}
	return out, nil
}

// PollTimeout returns telegram.poll_timeout or its default.
func (c *Config) PollTimeout() (time.Duration, error) {
	return durationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, DefaultPollTimeout)
}

// StorageBusyTimeout returns storage.busy_timeout, or 0 when unset.
func (c *Config) StorageBusyTimeout() (time.Duration, error) {
	if c.Storage == nil {
		return 0, nil
	}
	return durationOrDefault("storage.busy_timeout", c.Storage.BusyTimeout, 0)
}

// Validate checks every section that can be checked without side effects.
// Used both at startup and before a hot reload is published.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if _, err := c.ResolveReminder(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.PollTimeout(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if s := c.Storage; s != nil {
		if _, err := c.StorageBusyTimeout(); err != nil {
			errs = append(errs, err)
		}
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		case "redis":
			if s.Redis == nil || strings.TrimSpace(s.Redis.Addr) == "" {
				errs = append(errs, errors.New("storage.redis.addr: required for driver redis"))
			}
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
	}
	return errors.Join(errs...)
}

func durationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
