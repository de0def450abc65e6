package app

import (
	"context"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

// auditLoop appends reminder lifecycle events to the audit store until ctx
// is done. Write failures are logged and never reach the chat.
func (a *App) auditLoop(ctx context.Context, events <-chan eventbus.Event) {
	log := a.log.With(logx.String("comp", "audit"))
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			entry, ok := auditEntry(e)
			if !ok {
				continue
			}
			// Detached from ctx so the last entries still land during shutdown.
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			err := a.audit.AppendAudit(wctx, entry)
			cancel()
			if err != nil {
				log.Warn("audit append failed", logx.String("action", entry.Action), logx.Err(err))
			}
		}
	}
}

// auditEntry maps a bus event to an audit entry. Unknown events are skipped.
func auditEntry(e eventbus.Event) (storage.AuditEntry, bool) {
	switch d := e.Data.(type) {
	case reminder.SetEvent:
		var action string
		switch e.Type {
		case reminder.EventSet:
			action = storage.ActionReminderSet
		case reminder.EventTaskAdded:
			action = storage.ActionTaskAdded
		default:
			return storage.AuditEntry{}, false
		}
		return storage.AuditEntry{
			At:      e.Time,
			ChatID:  d.ChatID,
			FromID:  d.FromID,
			Action:  action,
			Message: d.Message,
			DueAt:   d.DueAt,
			OK:      true,
			ReqID:   d.ReqID,
		}, true
	case reminder.DeliveryEvent:
		var action string
		switch e.Type {
		case reminder.EventDelivered:
			action = storage.ActionReminderDelivered
		case reminder.EventFailed:
			action = storage.ActionReminderFailed
		default:
			return storage.AuditEntry{}, false
		}
		return storage.AuditEntry{
			At:      e.Time,
			ChatID:  d.ChatID,
			Action:  action,
			Message: d.Message,
			DueAt:   d.DueAt,
			OK:      d.Error == "",
			Error:   d.Error,
		}, true
	}
	return storage.AuditEntry{}, false
}
