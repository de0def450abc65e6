// Package bot implements the chat command surface on top of the reminder store.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	"remindbot/internal/router"
	logx "remindbot/pkg/logx"
)

const (
	StartText = "Hello! I am your assistant bot. Use /help for instructions."

	HelpText = "I can assist you with the following commands:\n" +
		"/start - Start interacting with the bot.\n" +
		"/help - List all available commands.\n" +
		"/remindme <time> <message> - Set a reminder (e.g., /remindme 10m Take a break).\n" +
		"/tasks - View your tasks.\n" +
		"/addtask <task> - Add a new task.\n" +
		"/status - View current status of tasks and reminders."

	RemindUsageText   = "Usage: /remindme <time> <message> (e.g., /remindme 10m Take a break)."
	InvalidFormatText = "Invalid time format. Please use a format like '10m'."
	TaskUsageText     = "Usage: /addtask <task> (e.g., /addtask Finish project)."
	NoTasksText       = "No tasks set."
	NoStatusText      = "No tasks or reminders set."
)

// Handlers owns the dependencies shared by all commands.
type Handlers struct {
	store *reminder.Store
	bus   eventbus.Bus
	log   logx.Logger
	now   func() time.Time

	mu         sync.RWMutex
	timeFormat string
}

type Option func(*Handlers)

func WithClock(now func() time.Time) Option {
	return func(h *Handlers) {
		if now != nil {
			h.now = now
		}
	}
}

func WithBus(bus eventbus.Bus) Option { return func(h *Handlers) { h.bus = bus } }

// WithTimeFormat sets the Go layout used for due times in listings.
func WithTimeFormat(layout string) Option { return func(h *Handlers) { h.SetTimeFormat(layout) } }

func New(store *reminder.Store, log logx.Logger, opts ...Option) *Handlers {
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &Handlers{store: store, log: log, now: time.Now, timeFormat: "15:04:05"}
	for _, o := range opts {
		o(h)
	}
	return h
}

// SetTimeFormat swaps the listing layout; empty keeps the current one.
func (h *Handlers) SetTimeFormat(layout string) {
	layout = strings.TrimSpace(layout)
	if layout == "" {
		return
	}
	h.mu.Lock()
	h.timeFormat = layout
	h.mu.Unlock()
}

func (h *Handlers) format(t time.Time) string {
	h.mu.RLock()
	layout := h.timeFormat
	h.mu.RUnlock()
	return t.Format(layout)
}

// Commands returns the command table in menu order.
func (h *Handlers) Commands() []router.Command {
	return []router.Command{
		{Name: "start", Description: "Start interacting with the bot", Handle: h.start},
		{Name: "help", Description: "List all available commands", Handle: h.help},
		{Name: "remindme", Description: "Set a reminder, e.g. /remindme 10m Take a break", Usage: "/remindme <time> <message>", Handle: h.remindMe},
		{Name: "tasks", Description: "View your tasks", Handle: h.tasks},
		{Name: "addtask", Description: "Add a new task", Usage: "/addtask <task>", Handle: h.addTask},
		{Name: "status", Description: "View current status of tasks and reminders", Handle: h.status},
	}
}

func (h *Handlers) start(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, StartText)
}

func (h *Handlers) help(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, HelpText)
}

func (h *Handlers) remindMe(ctx context.Context, req *router.Request) error {
	r, err := reminder.ParseRemindArgs(req.Args)
	switch {
	case errors.Is(err, reminder.ErrInvalidFormat):
		req.Logger.Debug("remindme rejected", logx.Err(err))
		return req.Reply(ctx, InvalidFormatText)
	case err != nil:
		req.Logger.Debug("remindme rejected", logx.Err(err))
		return req.Reply(ctx, RemindUsageText)
	}

	id := reminder.ConversationID(req.Chat.ChatID)
	rec := h.store.Set(id, h.now().Add(r.Delay()), r.Message)
	h.publish(reminder.EventSet, req, rec)
	req.Logger.Info("reminder set", logx.Time("due_at", rec.DueAt), logx.Int64("minutes", r.Minutes))

	return req.Reply(ctx, fmt.Sprintf("Reminder set for %d minutes from now: %s", r.Minutes, r.Message))
}

func (h *Handlers) addTask(ctx context.Context, req *router.Request) error {
	task, err := reminder.ParseTaskArgs(req.Args)
	if err != nil {
		return req.Reply(ctx, TaskUsageText)
	}

	id := reminder.ConversationID(req.Chat.ChatID)
	rec := h.store.Set(id, h.now(), task)
	h.publish(reminder.EventTaskAdded, req, rec)
	req.Logger.Info("task added", logx.Time("due_at", rec.DueAt))

	return req.Reply(ctx, "Task added: "+task)
}

func (h *Handlers) tasks(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, h.render("Your tasks:\n", NoTasksText, false))
}

func (h *Handlers) status(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, h.render("Current Status:\n", NoStatusText, true))
}

// render lists every record in the store. Listings are global, not per chat.
func (h *Handlers) render(header, empty string, withStatus bool) string {
	var b strings.Builder
	b.WriteString(header)
	n := 0
	for _, rec := range h.store.List() {
		if n > 0 {
			b.WriteByte('\n')
		}
		n++
		fmt.Fprintf(&b, "- %s (at %s)", rec.Message, h.format(rec.DueAt))
		if withStatus {
			b.WriteString(" - Status: " + rec.Status.String())
		}
	}
	if n == 0 {
		b.WriteString(empty)
	}
	return b.String()
}

func (h *Handlers) publish(typ string, req *router.Request, rec reminder.Record) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(eventbus.Event{Type: typ, Data: reminder.SetEvent{
		ChatID:   req.Chat.ChatID,
		FromID:   req.FromID,
		Message:  rec.Message,
		DueAt:    rec.DueAt,
		Revision: rec.Revision,
		ReqID:    req.ReqID,
	}})
}
