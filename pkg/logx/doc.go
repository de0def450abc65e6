// Package logx wraps zerolog for remindbot.
//
// Components receive a Logger and derive their own with With(String("comp", ...)).
// The Service owned by the app re-points every derived Logger when Apply is
// called on config reload. Console lines carry a short file:line caller; the
// optional log file is JSON.
package logx
