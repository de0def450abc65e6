package reminder

import "time"

// Event types published on the bus.
const (
	EventSet       = "reminder.set"
	EventTaskAdded = "task.added"
	EventDelivered = "reminder.delivered"
	EventFailed    = "reminder.failed"
	EventSweepDone = "sweep.done"
)

// SetEvent is the Data of EventSet and EventTaskAdded.
type SetEvent struct {
	ChatID   int64
	FromID   int64
	Message  string
	DueAt    time.Time
	Revision uint64
	ReqID    string
}

// DeliveryEvent is the Data of EventDelivered and EventFailed.
type DeliveryEvent struct {
	ChatID   int64
	Message  string
	DueAt    time.Time
	Revision uint64
	Error    string
}
