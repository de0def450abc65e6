package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/bot"
	"remindbot/internal/config"
	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	"remindbot/internal/router"
	"remindbot/internal/runtime/supervisor"
	"remindbot/internal/scheduler"
	"remindbot/internal/storage"
	kit "remindbot/internal/transport"
	telegram "remindbot/internal/transport/telegram/adapter"
	logx "remindbot/pkg/logx"
)

// SweepJob is the scheduler name of the due-sweep.
const SweepJob = "reminder.sweep"

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	audit storage.Store

	adapter kit.Adapter

	reminders *reminder.Store
	sweeper   *reminder.Sweeper
	handlers  *bot.Handlers
	cmdm      *router.CommandManager
	sched     *scheduler.Service

	sweepEvery time.Duration
	updates    chan kit.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	pollTimeout, err := cfg.PollTimeout()
	if err != nil {
		return nil, err
	}
	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}
	return newApp(cfgm, cfg, ad)
}

// newApp wires everything behind the transport adapter.
func newApp(cfgm *config.ConfigManager, cfg *config.Config, ad kit.Adapter) (*App, error) {
	rc, err := cfg.ResolveReminder()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.Logging.Logx())
	log = log.With(logx.String("comp", "app"))

	if tg, ok := ad.(*telegram.Adapter); ok {
		tg.SetLogger(logSvc.Logger().With(logx.String("comp", "telegram")))
	}

	// Audit storage (optional)
	var audit storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		octx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		st, err := storage.Open(octx, sc, log)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("open audit storage: %w", err)
		}
		audit = st
		log.Info("audit storage enabled", logx.String("driver", sc.Driver))
	}

	bus := eventbus.New()
	reminders := reminder.NewStore()

	sweeper := reminder.NewSweeper(reminders, ad, reminder.SweepConfig{
		SendTimeout: rc.SendTimeout,
		RatePerSec:  rc.RatePerSec,
	}, log.With(logx.String("comp", "sweep")), reminder.WithBus(bus))

	handlers := bot.New(reminders, log.With(logx.String("comp", "bot")),
		bot.WithBus(bus), bot.WithTimeFormat(rc.TimeFormat))

	cmdm := router.NewCommandManager(log.With(logx.String("comp", "commands")), ad)
	cmdm.SetRegistry(handlers.Commands())

	sched := scheduler.New(log.With(logx.String("comp", "scheduler")))
	if err := sched.AddInterval(SweepJob, rc.SweepInterval, 0, scheduler.TaskOptions{RunNow: true}, sweeper.Run); err != nil {
		if audit != nil {
			_ = audit.Close()
		}
		return nil, err
	}

	return &App{
		cfgm:       cfgm,
		log:        log,
		logs:       logSvc,
		bus:        bus,
		audit:      audit,
		adapter:    ad,
		reminders:  reminders,
		sweeper:    sweeper,
		handlers:   handlers,
		cmdm:       cmdm,
		sched:      sched,
		sweepEvery: rc.SweepInterval,
		updates:    make(chan kit.Update, 256),
	}, nil
}

// Reminders exposes the in-memory reminder store.
func (a *App) Reminders() *reminder.Store { return a.reminders }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		// The adapter holds the token for its lifetime; refuse a reload that
		// would leave the file without one.
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return errors.New("telegram.token: cannot be cleared while running")
		}
		_, _, err := mapStorageConfig(cfg)
		return err
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.sched.Start(a.sup.Context())

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	a.sup.Go0("commands.menu", func(c context.Context) {
		if err := a.cmdm.UpdateMenu(c); err != nil && c.Err() == nil {
			a.log.Warn("menu update failed", logx.Err(err))
		}
	})

	if a.audit != nil {
		events, unsub := a.bus.Subscribe(256, "reminder.", "task.")
		a.sup.Go0("audit.append", func(c context.Context) {
			defer unsub()
			a.auditLoop(c, events)
		})
	}

	// Keep this debug-level; sweep.done fires every interval.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.Duration("sweep_interval", a.sweepEvery))
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel first so background loops start unwinding immediately.
	a.sup.Cancel()

	step(ctx, a.log, "scheduler", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step(ctx, a.log, "adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step(ctx, a.log, "supervisor", 4*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	// After the supervisor so the audit loop has drained.
	step(ctx, a.log, "storage", 1*time.Second, func(c context.Context) error {
		if a.audit != nil {
			return a.audit.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown step bounded by max and the caller's deadline, so
// one component can't stall the whole stop.
func step(ctx context.Context, log logx.Logger, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		// fn must honor stepCtx; if it doesn't, report when it finally returns.
		log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)))
		go func() {
			err := <-done
			log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", time.Since(start)), logx.Err(err))
		}()
	}
}
