package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"remindbot/internal/eventbus"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// CompletedText is the confirmation sent after a reminder was delivered.
const CompletedText = "Status: Reminder completed and marked as 'Completed'."

// ReminderText renders the primary notification for a due reminder.
func ReminderText(message string) string { return "Reminder: " + message }

// SweepConfig controls delivery behaviour of a Sweeper.
//
// Defaults (zero values): SendTimeout 10s, RatePerSec 20.
// A negative RatePerSec disables rate limiting.
type SweepConfig struct {
	SendTimeout time.Duration
	RatePerSec  int
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Checked       int // records seen
	Due           int // active records with due_at <= now
	Delivered     int // primary notification sent
	Failed        int // primary notification failed; record left Active
	Superseded    int // delivered, but the record was replaced before the flip
	ConfirmFailed int // confirmation failed after the flip
}

// Sweeper delivers due reminders from a Store.
type Sweeper struct {
	store  *Store
	sender kit.Sender
	log    logx.Logger
	bus    eventbus.Bus
	now    func() time.Time

	// sweepMu serializes passes, including ones started by a re-registered job.
	sweepMu sync.Mutex

	mu      sync.Mutex
	cfg     SweepConfig
	limiter *rate.Limiter
}

type SweeperOption func(*Sweeper)

// WithClock replaces time.Now for the sweep's single "now" capture.
func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBus publishes delivery events on bus.
func WithBus(bus eventbus.Bus) SweeperOption {
	return func(s *Sweeper) { s.bus = bus }
}

func NewSweeper(store *Store, sender kit.Sender, cfg SweepConfig, log logx.Logger, opts ...SweeperOption) *Sweeper {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Sweeper{store: store, sender: sender, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.applyLocked(cfg)
	return s
}

// Apply swaps delivery settings; the next send uses them.
func (s *Sweeper) Apply(cfg SweepConfig) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Sweeper) applyLocked(cfg SweepConfig) {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = 20
	}
	s.cfg = cfg
	if cfg.RatePerSec < 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Run is the scheduler entry point. Delivery failures are handled inside the
// sweep; only cancellation is reported.
func (s *Sweeper) Run(ctx context.Context) error {
	s.Sweep(ctx)
	return ctx.Err()
}

// Sweep performs one pass over the store.
//
// now is captured once for the whole pass. For each due record the reminder
// is sent first; only a successful send flips the record to Completed, after
// which a separate confirmation is sent. A failure for one chat never stops
// the pass.
func (s *Sweeper) Sweep(ctx context.Context) SweepResult {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	start := time.Now()
	now := s.now()
	var res SweepResult

	for id, rec := range s.store.List() {
		res.Checked++
		if !rec.Due(now) {
			continue
		}
		res.Due++
		if ctx.Err() != nil {
			// Out of time for this tick; the rest stay Active for the next one.
			res.Failed++
			continue
		}

		log := s.log.With(logx.Int64("chat_id", int64(id)), logx.Uint64("rev", rec.Revision))

		if err := s.deliver(ctx, id, ReminderText(rec.Message)); err != nil {
			res.Failed++
			log.Warn("reminder delivery failed", logx.Err(err))
			s.publish(EventFailed, id, rec, err)
			continue
		}
		res.Delivered++

		if !s.store.CompleteRevision(id, rec.Revision) {
			res.Superseded++
			log.Debug("reminder replaced during delivery; leaving new record active")
			s.publish(EventDelivered, id, rec, nil)
			continue
		}
		s.publish(EventDelivered, id, rec, nil)
		log.Info("reminder delivered", logx.Time("due_at", rec.DueAt))

		if err := s.deliver(ctx, id, CompletedText); err != nil {
			res.ConfirmFailed++
			log.Warn("completion notice failed", logx.Err(err))
		}
	}

	fields := []logx.Field{
		logx.Int("checked", res.Checked),
		logx.Int("due", res.Due),
		logx.Int("delivered", res.Delivered),
		logx.Int("failed", res.Failed),
		logx.Duration("took", time.Since(start)),
	}
	if res.Due > 0 {
		s.log.Info("sweep done", fields...)
	} else {
		s.log.Debug("sweep done", fields...)
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: EventSweepDone, Data: res})
	}
	return res
}

func (s *Sweeper) deliver(ctx context.Context, id ConversationID, text string) error {
	s.mu.Lock()
	timeout := s.cfg.SendTimeout
	lim := s.limiter
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := lim.Wait(cctx); err != nil {
		return fmt.Errorf("%w: chat %d: rate limit: %w", ErrDeliveryFailure, id, err)
	}
	to := kit.ChatTarget{ChatID: int64(id)}
	if _, err := s.sender.SendText(cctx, to, text, &kit.SendOptions{DisablePreview: true}); err != nil {
		return fmt.Errorf("%w: chat %d: %w", ErrDeliveryFailure, id, err)
	}
	return nil
}

func (s *Sweeper) publish(typ string, id ConversationID, rec Record, err error) {
	if s.bus == nil {
		return
	}
	ev := DeliveryEvent{ChatID: int64(id), Message: rec.Message, DueAt: rec.DueAt, Revision: rec.Revision}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
