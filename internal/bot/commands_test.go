package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	"remindbot/internal/router"
	kit "remindbot/internal/transport"
	"remindbot/internal/transport/transporttest"
	logx "remindbot/pkg/logx"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)

type fixture struct {
	store *reminder.Store
	rec   *transporttest.Recorder
	h     *Handlers
	cmds  map[string]router.Command
}

func newFixture(opts ...Option) *fixture {
	store := reminder.NewStore()
	h := New(store, logx.Nop(), append([]Option{WithClock(func() time.Time { return t0 })}, opts...)...)
	cmds := map[string]router.Command{}
	for _, c := range h.Commands() {
		cmds[c.Name] = c
	}
	return &fixture{store: store, rec: transporttest.New(), h: h, cmds: cmds}
}

// run invokes a command for chatID and returns the single reply.
func (f *fixture) run(t *testing.T, chatID int64, name string, args ...string) string {
	t.Helper()
	before := len(f.rec.SentTo(chatID))
	req := &router.Request{
		Chat:    kit.ChatTarget{ChatID: chatID},
		FromID:  chatID,
		Command: name,
		Args:    args,
		ReqID:   "test",
		Adapter: f.rec,
		Logger:  logx.Nop(),
	}
	if err := f.cmds[name].Handle(context.Background(), req); err != nil {
		t.Fatalf("/%s: %v", name, err)
	}
	sent := f.rec.SentTo(chatID)
	if len(sent) != before+1 {
		t.Fatalf("/%s sent %d replies, want 1", name, len(sent)-before)
	}
	return sent[len(sent)-1]
}

func TestStartAndHelp(t *testing.T) {
	t.Parallel()
	f := newFixture()
	if got := f.run(t, 1, "start"); got != StartText {
		t.Fatalf("start = %q", got)
	}
	got := f.run(t, 1, "help")
	for _, cmd := range []string{"/start", "/help", "/remindme", "/tasks", "/addtask", "/status"} {
		if !strings.Contains(got, cmd) {
			t.Fatalf("help text missing %s: %q", cmd, got)
		}
	}
}

func TestRemindMeSetsRecord(t *testing.T) {
	t.Parallel()
	f := newFixture()
	got := f.run(t, 42, "remindme", "10m", "Take", "a", "break")
	if got != "Reminder set for 10 minutes from now: Take a break" {
		t.Fatalf("reply = %q", got)
	}
	rec, ok := f.store.Get(42)
	if !ok {
		t.Fatal("no record stored")
	}
	if !rec.DueAt.Equal(t0.Add(10*time.Minute)) || rec.Status != reminder.StatusActive || rec.Message != "Take a break" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestRemindMeRejectsBadInput(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"bad unit", []string{"10x", "stretch"}, InvalidFormatText},
		{"not a number", []string{"tenm", "stretch"}, InvalidFormatText},
		{"zero", []string{"0m", "stretch"}, InvalidFormatText},
		{"no message", []string{"10m"}, RemindUsageText},
		{"no args", nil, RemindUsageText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.run(t, 7, "remindme", "5m", "original")
			before, _ := f.store.Get(7)

			if got := f.run(t, 7, "remindme", tc.args...); got != tc.want {
				t.Fatalf("reply = %q, want %q", got, tc.want)
			}
			after, _ := f.store.Get(7)
			if after != before {
				t.Fatalf("record changed: %+v -> %+v", before, after)
			}
		})
	}
}

func TestRemindMeOverwrites(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.run(t, 3, "remindme", "5m", "first")
	f.run(t, 3, "remindme", "20m", "second")

	rec, _ := f.store.Get(3)
	if rec.Message != "second" || !rec.DueAt.Equal(t0.Add(20*time.Minute)) {
		t.Fatalf("record = %+v", rec)
	}
	if f.store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", f.store.Len())
	}
}

func TestAddTaskIsDueImmediately(t *testing.T) {
	t.Parallel()
	f := newFixture()
	if got := f.run(t, 9, "addtask", "Finish", "project"); got != "Task added: Finish project" {
		t.Fatalf("reply = %q", got)
	}
	rec, _ := f.store.Get(9)
	if !rec.DueAt.Equal(t0) || rec.Status != reminder.StatusActive {
		t.Fatalf("record = %+v", rec)
	}

	sw := reminder.NewSweeper(f.store, f.rec, reminder.SweepConfig{RatePerSec: -1}, logx.Nop(),
		reminder.WithClock(func() time.Time { return t0 }))
	if res := sw.Sweep(context.Background()); res.Delivered != 1 {
		t.Fatalf("sweep = %+v", res)
	}
	rec, _ = f.store.Get(9)
	if rec.Status != reminder.StatusCompleted {
		t.Fatalf("status after sweep = %v", rec.Status)
	}

	if got := f.run(t, 9, "addtask"); got != TaskUsageText {
		t.Fatalf("empty addtask reply = %q", got)
	}
}

func TestListingsOnEmptyStore(t *testing.T) {
	t.Parallel()
	f := newFixture()
	if got := f.run(t, 1, "tasks"); got != "Your tasks:\n"+NoTasksText {
		t.Fatalf("tasks = %q", got)
	}
	if got := f.run(t, 1, "status"); got != "Current Status:\n"+NoStatusText {
		t.Fatalf("status = %q", got)
	}
}

func TestListingsShowAllRecords(t *testing.T) {
	t.Parallel()
	f := newFixture(WithTimeFormat("15:04"))
	f.run(t, 1, "remindme", "10m", "stretch")
	f.run(t, 2, "addtask", "ship")
	f.store.MarkCompleted(2)

	got := f.run(t, 5, "tasks")
	want := "Your tasks:\n- stretch (at 09:10)\n- ship (at 09:00)"
	if got != want {
		t.Fatalf("tasks = %q, want %q", got, want)
	}

	got = f.run(t, 5, "status")
	want = "Current Status:\n- stretch (at 09:10) - Status: Active\n- ship (at 09:00) - Status: Completed"
	if got != want {
		t.Fatalf("status = %q, want %q", got, want)
	}
}

func TestPublishesSetEvents(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()
	f := newFixture(WithBus(bus))

	f.run(t, 11, "remindme", "1m", "tea")
	f.run(t, 11, "remindme", "1h", "bad")
	f.run(t, 12, "addtask", "call mom")

	e := <-ch
	ev := e.Data.(reminder.SetEvent)
	if e.Type != reminder.EventSet || ev.ChatID != 11 || ev.Message != "tea" || ev.ReqID != "test" {
		t.Fatalf("first event = %s %+v", e.Type, ev)
	}
	e = <-ch
	if e.Type != reminder.EventTaskAdded || e.Data.(reminder.SetEvent).ChatID != 12 {
		t.Fatalf("second event = %+v", e)
	}
	select {
	case e := <-ch:
		t.Fatalf("rejected command published %+v", e)
	default:
	}
}
