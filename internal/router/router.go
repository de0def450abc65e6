package router

import (
	"context"
	"errors"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"remindbot/internal/runtime/supervisor"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

const (
	UnknownCommandText = "Unknown command. Try /help"
	BusyText           = "busy, try again"
)

type Command struct {
	Name        string
	Description string
	Usage       string
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	// Args are the whitespace-separated words after the command. Quotes are
	// plain text.
	Args  []string
	ReqID string

	Adapter kit.Sender
	Logger  logx.Logger
}

// Reply sends text back to the conversation the request came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	if r.Adapter == nil {
		return errors.New("router: request has no adapter")
	}
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

type Option func(*CommandManager)

// WithWorkers sets the handler pool size. Default: NumCPU, at least 2.
func WithWorkers(n int) Option { return func(m *CommandManager) { m.workers = n } }

// WithQueueSize sets how many requests may wait for a worker. Default: 256.
func WithQueueSize(n int) Option { return func(m *CommandManager) { m.queueSize = n } }

// WithDefaultTimeout bounds handlers whose Command.Timeout is zero.
func WithDefaultTimeout(d time.Duration) Option { return func(m *CommandManager) { m.defTimeout = d } }

type CommandManager struct {
	mu    sync.RWMutex
	cmds  map[string]Command
	order []string

	log        logx.Logger
	adapter    kit.Adapter
	workers    int
	queueSize  int
	defTimeout time.Duration

	runMu   sync.Mutex
	running bool
	jobs    chan func()
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, opts ...Option) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &CommandManager{
		cmds:       map[string]Command{},
		log:        log,
		adapter:    adapter,
		workers:    max(runtime.NumCPU(), 2),
		queueSize:  256,
		defTimeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(m)
	}
	if m.workers < 1 {
		m.workers = 1
	}
	if m.queueSize < 1 {
		m.queueSize = 1
	}
	return m
}

// SetRegistry replaces the routable command set. Names are matched
// case-insensitively; later duplicates lose.
func (m *CommandManager) SetRegistry(cmds []Command) {
	table := make(map[string]Command, len(cmds))
	order := make([]string, 0, len(cmds))
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		if _, dup := table[name]; dup {
			m.log.Warn("duplicate command ignored", logx.String("cmd", name))
			continue
		}
		c.Name = name
		table[name] = c
		order = append(order, name)
	}
	m.mu.Lock()
	m.cmds = table
	m.order = order
	m.mu.Unlock()
}

// Commands returns the registered commands in registration order.
func (m *CommandManager) Commands() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Command, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.cmds[name])
	}
	return out
}

func (m *CommandManager) lookup(word string) (Command, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cmds[strings.ToLower(word)]
	return c, ok
}

// UpdateMenu publishes the visible commands to adapters that support a
// command menu. Other adapters are left alone.
func (m *CommandManager) UpdateMenu(ctx context.Context) error {
	up, ok := m.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return up.UpdateMenuCommands(ctx, buildMenuCommands(m.Commands()))
}

func (m *CommandManager) setRunning(jobs chan func(), running bool) {
	m.runMu.Lock()
	m.jobs = jobs
	m.running = running
	m.runMu.Unlock()
}

// tryEnqueue never blocks; it reports false when the queue is full or the
// dispatcher is not running.
func (m *CommandManager) tryEnqueue(fn func()) bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return false
	}
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

// DispatchLoop routes updates until ctx is done or updates is closed.
// Handlers run on a bounded worker pool.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(m.log.With(logx.String("comp", "router"))))
	jobs := make(chan func(), m.queueSize)
	m.setRunning(jobs, true)

	m.log.Info("command dispatcher started", logx.Int("workers", m.workers), logx.Int("job_queue_cap", cap(jobs)))

	for i := 0; i < m.workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-jobs:
					if !ok {
						return nil
					}
					m.runJob(idx, job)
				}
			}
		}, supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	defer func() {
		m.setRunning(nil, false)
		close(jobs)
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		sup.Cancel()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.routeUpdate(ctx, up)
		}
	}
}

func (m *CommandManager) runJob(worker int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	job()
}

func (m *CommandManager) routeUpdate(ctx context.Context, up kit.Update) {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return
	}
	msg := up.Message
	word, args, ok := splitCommand(msg.Text)
	if !ok {
		return
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	cmd, found := m.lookup(word)
	if !found {
		m.log.Debug("unknown command", logx.String("cmd", word), logx.Int64("chat_id", msg.ChatID))
		m.replyAsync(ctx, chat, UnknownCommandText)
		return
	}

	rid := uuid.NewString()
	req := &Request{
		Update:  up,
		Chat:    chat,
		FromID:  msg.FromID,
		Command: cmd.Name,
		Args:    args,
		ReqID:   rid,
		Adapter: m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = m.defTimeout
	}
	final := Chain(
		cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(timeout),
	)

	if !m.tryEnqueue(func() { _ = final(ctx, req) }) {
		req.Logger.Warn("command queue full; rejecting request")
		m.replyAsync(ctx, chat, BusyText)
	}
}

// replyAsync answers from the dispatcher without blocking routing on the network.
func (m *CommandManager) replyAsync(ctx context.Context, to kit.ChatTarget, text string) {
	go func() {
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if _, err := m.adapter.SendText(sctx, to, text, nil); err != nil {
			m.log.Debug("reply failed", logx.Int64("chat_id", to.ChatID), logx.Err(err))
		}
	}()
}

// splitCommand parses "/cmd@bot arg1 arg2". ok is false for text that is not
// a command.
func splitCommand(text string) (word string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	word = strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return "", nil, false
	}
	return word, fields[1:], true
}
