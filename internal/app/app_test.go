package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"remindbot/internal/config"
	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	kit "remindbot/internal/transport"
	"remindbot/internal/transport/transporttest"
	logx "remindbot/pkg/logx"
)

func writeConfig(t *testing.T, path, dir, interval string) {
	t.Helper()
	body := fmt.Sprintf(`telegram:
  token: "123:test"
logging:
  level: debug
  console: false
  file: { enabled: true, path: %q }
reminder:
  sweep_interval: %q
  rate_per_sec: -1
storage:
  driver: file
  path: %q
`, filepath.Join(dir, "bot.log"), interval, filepath.Join(dir, "audit"))
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func newTestApp(t *testing.T) (*App, *transporttest.Recorder, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, dir, "1s")

	cfgm := config.NewConfigManager(path)
	cfg, err := cfgm.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rec := transporttest.New()
	a, err := newApp(cfgm, cfg, rec)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	return a, rec, dir
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func stopApp(t *testing.T, a *App) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(ctx, StopAppStop); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestAppDeliversTaskAndAudits(t *testing.T) {
	a, rec, dir := newTestApp(t)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stopApp(t, a)

	waitFor(t, "menu", func() bool { return len(rec.Menu()) == 6 })

	rec.Push(kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ID: 1, ChatID: 5, FromID: 5, Text: "/addtask ship"}})

	// A sweep tick may land before the reply, so order is not asserted.
	want := []string{"Task added: ship", reminder.ReminderText("ship"), reminder.CompletedText}
	waitFor(t, "delivery", func() bool {
		got := rec.SentTo(5)
		if len(got) != len(want) {
			return false
		}
		for _, w := range want {
			if !slices.Contains(got, w) {
				return false
			}
		}
		return true
	})

	got, ok := a.Reminders().Get(5)
	if !ok || got.Status != reminder.StatusCompleted {
		t.Fatalf("record = %+v, %v", got, ok)
	}

	st, err := storage.Open(context.Background(), storage.Config{Driver: "file", Path: filepath.Join(dir, "audit")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	waitFor(t, "audit entries", func() bool {
		entries, err := st.RecentAudit(context.Background(), 10)
		if err != nil {
			return false
		}
		var added, delivered bool
		for _, e := range entries {
			added = added || (e.Action == storage.ActionTaskAdded && e.ChatID == 5)
			delivered = delivered || (e.Action == storage.ActionReminderDelivered && e.ChatID == 5 && e.OK)
		}
		return added && delivered
	})
}

func TestAppReloadChangesSweepInterval(t *testing.T) {
	a, _, dir := newTestApp(t)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stopApp(t, a)

	sweepSpec := func() string {
		for _, j := range a.sched.Snapshot() {
			if j.Name == SweepJob {
				return j.Spec
			}
		}
		return ""
	}
	if got := sweepSpec(); got != "@every 1s" {
		t.Fatalf("spec = %q", got)
	}

	writeConfig(t, a.cfgm.Path(), dir, "2s")
	if _, err := a.cfgm.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	waitFor(t, "new sweep spec", func() bool { return sweepSpec() == "@every 2s" })
}

func TestAuditEntry(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	due := at.Add(10 * time.Minute)
	cases := []struct {
		name   string
		event  eventbus.Event
		want   storage.AuditEntry
		wantOK bool
	}{
		{
			name:   "reminder set",
			event:  eventbus.Event{Type: reminder.EventSet, Time: at, Data: reminder.SetEvent{ChatID: 1, FromID: 2, Message: "tea", DueAt: due, ReqID: "r1"}},
			want:   storage.AuditEntry{At: at, ChatID: 1, FromID: 2, Action: storage.ActionReminderSet, Message: "tea", DueAt: due, OK: true, ReqID: "r1"},
			wantOK: true,
		},
		{
			name:   "task added",
			event:  eventbus.Event{Type: reminder.EventTaskAdded, Time: at, Data: reminder.SetEvent{ChatID: 3, Message: "ship", DueAt: at}},
			want:   storage.AuditEntry{At: at, ChatID: 3, Action: storage.ActionTaskAdded, Message: "ship", DueAt: at, OK: true},
			wantOK: true,
		},
		{
			name:   "delivery failed",
			event:  eventbus.Event{Type: reminder.EventFailed, Time: at, Data: reminder.DeliveryEvent{ChatID: 4, Message: "x", DueAt: due, Error: "blocked"}},
			want:   storage.AuditEntry{At: at, ChatID: 4, Action: storage.ActionReminderFailed, Message: "x", DueAt: due, Error: "blocked"},
			wantOK: true,
		},
		{
			name:  "sweep summary skipped",
			event: eventbus.Event{Type: reminder.EventSweepDone, Time: at, Data: reminder.SweepResult{Checked: 1}},
		},
		{
			name:  "mismatched type skipped",
			event: eventbus.Event{Type: reminder.EventDelivered, Time: at, Data: reminder.SetEvent{ChatID: 1}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := auditEntry(tc.event)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if got != tc.want {
				t.Fatalf("entry = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	if _, enabled, err := mapStorageConfig(&config.Config{}); enabled || err != nil {
		t.Fatalf("nil storage: enabled=%v err=%v", enabled, err)
	}
	cfg := &config.Config{Storage: &config.StorageConfig{
		Driver:      " SQLite ",
		Path:        " ./audit.db ",
		BusyTimeout: "3s",
		Redis:       &config.RedisConfig{Addr: "127.0.0.1:6379", Key: "k"},
	}}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled {
		t.Fatalf("enabled=%v err=%v", enabled, err)
	}
	if sc.Driver != "sqlite" || sc.Path != "./audit.db" || sc.BusyTimeout != 3*time.Second || sc.Redis.Key != "k" {
		t.Fatalf("mapped = %+v", sc)
	}
	cfg.Storage.BusyTimeout = "soon"
	if _, _, err := mapStorageConfig(cfg); err == nil {
		t.Fatal("bad busy_timeout accepted")
	}
}
