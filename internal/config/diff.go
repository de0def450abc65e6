package config

import (
	"reflect"
	"strings"

	logx "remindbot/pkg/logx"
)

// Change lists which sections differ between two configs.
type Change struct {
	Telegram bool
	Logging  bool
	Reminder bool
	Storage  bool
}

func (c Change) Any() bool { return c.Telegram || c.Logging || c.Reminder || c.Storage }

// Sections returns the changed section names in a fixed order.
func (c Change) Sections() []string {
	var out []string
	if c.Telegram {
		out = append(out, "telegram")
	}
	if c.Logging {
		out = append(out, "logging")
	}
	if c.Reminder {
		out = append(out, "reminder")
	}
	if c.Storage {
		out = append(out, "storage")
	}
	return out
}

// SummarizeConfigChange compares two configs and returns the change set plus
// log fields describing the new values. Secrets (token, redis password) are
// never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) (Change, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) {
		ch.Telegram = true
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		ch.Logging = true
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Reminder != newCfg.Reminder {
		ch.Reminder = true
		attrs = append(attrs,
			logx.String("reminder.sweep_interval", newCfg.Reminder.SweepInterval),
			logx.String("reminder.send_timeout", newCfg.Reminder.SendTimeout),
			logx.Int("reminder.rate_per_sec", newCfg.Reminder.RatePerSec),
			logx.String("reminder.time_format", newCfg.Reminder.TimeFormat),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		ch.Storage = true
		driver := ""
		if newCfg.Storage != nil {
			driver = newCfg.Storage.Driver
		}
		attrs = append(attrs, logx.String("storage.driver", driver))
	}

	return ch, attrs
}
