// Package reminder holds the per-conversation reminder store and the
// periodic due-sweep that delivers reminders once their time has come.
package reminder

import "time"

// ConversationID names the chat a reminder belongs to and is delivered to.
type ConversationID int64

type Status int

const (
	StatusActive Status = iota
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Record is the single reminder kept for a conversation.
//
// DueAt never changes after Set. Status only moves Active -> Completed.
// Revision is assigned by the store on every Set and identifies this exact
// record, so a concurrent overwrite is never mistaken for the record that was
// delivered.
type Record struct {
	DueAt    time.Time
	Message  string
	Status   Status
	Revision uint64
}

// Due reports whether the record is still active and its due time is at or
// before now.
func (r Record) Due(now time.Time) bool {
	return r.Status == StatusActive && !r.DueAt.After(now)
}
