package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "remindbot/pkg/logx"
)

var (
	ErrDuplicate       = errors.New("scheduler: job already registered")
	ErrInvalidInterval = errors.New("scheduler: interval must be >= 1s")
)

// OverlapPolicy decides what happens when a trigger fires while the previous
// run of the same job is still going.
type OverlapPolicy int

const (
	OverlapSkipIfRunning OverlapPolicy = iota
	OverlapAllow
)

type TaskOptions struct {
	// RunNow fires the job once immediately when it is registered on a
	// running scheduler (or when the scheduler starts).
	RunNow  bool
	Overlap OverlapPolicy
}

// JobInfo is a point-in-time view of one registered job.
type JobInfo struct {
	Name    string
	Spec    string
	Next    time.Time
	Runs    uint64
	Skipped uint64
	LastErr string
}

type job struct {
	name    string
	spec    string
	timeout time.Duration
	opt     TaskOptions
	fn      func(ctx context.Context) error
	entryID cron.EntryID

	running atomic.Bool
	runs    atomic.Uint64
	skipped atomic.Uint64
	lastErr atomic.Value // string
}

// Service triggers interval jobs through robfig/cron.
//
// Jobs may be added before Start; they are registered with cron when the
// service starts and survive Stop/Start cycles.
type Service struct {
	mu sync.Mutex

	log  logx.Logger
	loc  *time.Location
	c    *cron.Cron
	jobs map[string]*job

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{log: log, loc: time.Local, jobs: map[string]*job{}}
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c != nil
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithLocation(s.loc), cron.WithLogger(cronLogger{log: s.log}))

	for _, j := range s.jobs {
		if err := s.registerLocked(j); err != nil {
			s.log.Warn("job registration failed", logx.String("job", j.name), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.Int("jobs", len(s.jobs)), logx.String("tz", s.loc.String()))
}

// Stop halts triggers, cancels running jobs and waits for them until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	cancel()
	cronDone := c.Stop().Done()

	done := make(chan struct{})
	go func() {
		<-cronDone
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; jobs still running", logx.Err(ctx.Err()))
	}
}

// AddInterval registers fn to run every `every`. timeout bounds each run;
// zero means the interval itself, so a run never outlives its slot.
func (s *Service) AddInterval(name string, every, timeout time.Duration, opt TaskOptions, fn func(ctx context.Context) error) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return errors.New("scheduler: name and job are required")
	}
	if every < time.Second {
		return fmt.Errorf("%w: got %s", ErrInvalidInterval, every)
	}
	if timeout <= 0 {
		timeout = every
	}
	j := &job{
		name:    name,
		spec:    "@every " + every.String(),
		timeout: timeout,
		opt:     opt,
		fn:      fn,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	s.jobs[name] = j
	if s.c == nil {
		return nil
	}
	if err := s.registerLocked(j); err != nil {
		delete(s.jobs, name)
		return err
	}
	return nil
}

// Remove unregisters the job. A run in progress is not interrupted.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	delete(s.jobs, name)
	if s.c != nil && j.entryID != 0 {
		s.c.Remove(j.entryID)
	}
	return true
}

// Snapshot returns the registered jobs sorted by name.
func (s *Service) Snapshot() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		info := JobInfo{Name: j.name, Spec: j.spec, Runs: j.runs.Load(), Skipped: j.skipped.Load()}
		if v, ok := j.lastErr.Load().(string); ok {
			info.LastErr = v
		}
		if s.c != nil && j.entryID != 0 {
			info.Next = s.c.Entry(j.entryID).Next
		}
		out = append(out, info)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func (s *Service) registerLocked(j *job) error {
	id, err := s.c.AddFunc(j.spec, func() { s.fire(j) })
	if err != nil {
		return fmt.Errorf("scheduler: add %s: %w", j.name, err)
	}
	j.entryID = id
	if j.opt.RunNow {
		go s.fire(j)
	}
	return nil
}

func (s *Service) fire(j *job) {
	s.mu.Lock()
	ctx := s.runCtx
	if s.c == nil || ctx == nil || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if j.opt.Overlap == OverlapSkipIfRunning {
		if !j.running.CompareAndSwap(false, true) {
			j.skipped.Add(1)
			s.log.Debug("job still running; tick skipped", logx.String("job", j.name))
			return
		}
		defer j.running.Store(false)
	}

	s.exec(ctx, j)
}

func (s *Service) exec(ctx context.Context, j *job) {
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("job panicked", logx.String("job", j.name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return j.fn(runCtx)
	}()
	j.runs.Add(1)

	took := time.Since(start)
	if err != nil && !errors.Is(err, context.Canceled) {
		j.lastErr.Store(err.Error())
		s.log.Warn("job failed", logx.String("job", j.name), logx.Duration("took", took), logx.Err(err))
		return
	}
	j.lastErr.Store("")
	s.log.Debug("job ok", logx.String("job", j.name), logx.Duration("took", took))
}

// cronLogger routes robfig/cron's internal logging into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Trace("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
