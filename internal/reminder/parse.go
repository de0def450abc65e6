package reminder

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidFormat is returned for a delay token that is not "<N>m".
	ErrInvalidFormat = errors.New("invalid time format")
	// ErrMissingArguments is returned when the delay or the message is absent.
	ErrMissingArguments = errors.New("missing arguments")
	// ErrDeliveryFailure wraps any error from sending a reminder to a chat.
	ErrDeliveryFailure = errors.New("delivery failed")
)

const minuteSuffix = "m"

// maxMinutes keeps minutes*time.Minute inside time.Duration.
const maxMinutes = math.MaxInt64 / int64(time.Minute)

// Request is a parsed /remindme invocation.
type Request struct {
	Minutes int64
	Message string
}

// Delay returns the offset from now at which the reminder is due.
func (r Request) Delay() time.Duration { return time.Duration(r.Minutes) * time.Minute }

// ParseDelay parses a "<positive integer>m" token into a minute count.
func ParseDelay(token string) (int64, error) {
	token = strings.TrimSpace(token)
	digits, ok := strings.CutSuffix(token, minuteSuffix)
	if !ok || digits == "" {
		return 0, ErrInvalidFormat
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, ErrInvalidFormat
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 || n > maxMinutes {
		return 0, ErrInvalidFormat
	}
	return n, nil
}

// ParseRemindArgs parses the arguments of /remindme: a delay token followed by
// one or more message tokens.
func ParseRemindArgs(args []string) (Request, error) {
	if len(args) < 2 {
		return Request{}, ErrMissingArguments
	}
	minutes, err := ParseDelay(args[0])
	if err != nil {
		return Request{}, err
	}
	msg := joinArgs(args[1:])
	if msg == "" {
		return Request{}, ErrMissingArguments
	}
	return Request{Minutes: minutes, Message: msg}, nil
}

// ParseTaskArgs parses the arguments of /addtask into the task text.
func ParseTaskArgs(args []string) (string, error) {
	task := joinArgs(args)
	if task == "" {
		return "", ErrMissingArguments
	}
	return task, nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
