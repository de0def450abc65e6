package app

import (
	"context"
	"strings"

	"remindbot/internal/config"
	"remindbot/internal/reminder"
	"remindbot/internal/scheduler"
	logx "remindbot/pkg/logx"
)

// reloadLoop applies published configs until ctx is done.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			if newCfg == nil {
				continue
			}
			a.applyConfig(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	change, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if !change.Any() {
		a.log.Info("config reloaded (no changes)")
		return
	}
	sections := strings.Join(change.Sections(), ",")
	a.log.Debug("config change summary", append([]logx.Field{logx.String("changed", sections)}, attrs...)...)

	if change.Telegram {
		a.log.Warn("telegram config changed; restart required for changes to take effect")
	}
	if change.Storage {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if change.Logging {
		a.logs.Apply(newCfg.Logging.Logx())
	}
	if change.Reminder {
		a.applyReminder(newCfg)
	}

	a.log.Info("config reloaded", logx.String("changed", sections))
}

func (a *App) applyReminder(cfg *config.Config) {
	rc, err := cfg.ResolveReminder()
	if err != nil {
		// Validated before publish; keep the running settings if it still fails.
		a.log.Warn("invalid reminder config; keeping previous", logx.Err(err))
		return
	}
	a.sweeper.Apply(reminder.SweepConfig{SendTimeout: rc.SendTimeout, RatePerSec: rc.RatePerSec})
	a.handlers.SetTimeFormat(rc.TimeFormat)

	if rc.SweepInterval == a.sweepEvery {
		return
	}
	a.sched.Remove(SweepJob)
	if err := a.sched.AddInterval(SweepJob, rc.SweepInterval, 0, scheduler.TaskOptions{}, a.sweeper.Run); err != nil {
		a.log.Error("sweep re-registration failed", logx.Err(err))
		return
	}
	a.log.Info("sweep interval changed",
		logx.Duration("old", a.sweepEvery),
		logx.Duration("new", rc.SweepInterval))
	a.sweepEvery = rc.SweepInterval
}
