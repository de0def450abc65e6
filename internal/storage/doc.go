// Package storage keeps the operator audit trail: one entry per reminder
// set, task added, delivery and delivery failure.
//
// Drivers: "file" (JSON Lines), "sqlite" (modernc.org/sqlite), "redis"
// (a capped list). Reminders themselves are never read back from here.
package storage
