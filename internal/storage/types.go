package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file at Path
//   - "sqlite": SQLite database file at Path
//   - "redis": list at Redis.Key on Redis.Addr
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Redis       RedisConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	MaxLen   int64
}

// Audit actions.
const (
	ActionReminderSet       = "reminder.set"
	ActionTaskAdded         = "task.added"
	ActionReminderDelivered = "reminder.delivered"
	ActionReminderFailed    = "reminder.failed"
)

// AuditEntry records one reminder lifecycle step.
type AuditEntry struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	ChatID  int64     `json:"chat_id"`
	FromID  int64     `json:"from_id,omitempty"`
	Action  string    `json:"action"`
	Message string    `json:"message,omitempty"`
	DueAt   time.Time `json:"due_at,omitzero"`
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
	ReqID   string    `json:"req_id,omitempty"`
}

// normalize fills ID and At when the caller left them empty.
func (e *AuditEntry) normalize() {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
}
