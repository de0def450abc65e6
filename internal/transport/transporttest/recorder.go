// Package transporttest provides an in-memory transport.Adapter for tests.
package transporttest

import (
	"context"
	"sync"

	kit "remindbot/internal/transport"
)

// Sent is one recorded SendText call.
type Sent struct {
	To   kit.ChatTarget
	Text string
}

// Recorder records outgoing messages and can be told to fail or block for
// specific chats.
type Recorder struct {
	mu      sync.Mutex
	sent    []Sent
	fail    map[int64]error
	block   map[int64]bool
	menu    []kit.BotCommand
	nextID  int
	started bool
	out     chan<- kit.Update
}

var _ kit.Adapter = (*Recorder)(nil)

func New() *Recorder {
	return &Recorder{fail: map[int64]error{}, block: map[int64]bool{}}
}

// FailChat makes every send to chatID return err. A nil err clears it.
func (r *Recorder) FailChat(chatID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, chatID)
		return
	}
	r.fail[chatID] = err
}

// BlockChat makes sends to chatID wait until their context is done.
func (r *Recorder) BlockChat(chatID int64) {
	r.mu.Lock()
	r.block[chatID] = true
	r.mu.Unlock()
}

func (r *Recorder) SendText(ctx context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	err := r.fail[to.ChatID]
	block := r.block[to.ChatID]
	r.mu.Unlock()

	if block {
		<-ctx.Done()
		return kit.MessageRef{}, ctx.Err()
	}
	if err != nil {
		return kit.MessageRef{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.sent = append(r.sent, Sent{To: to, Text: text})
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: r.nextID}, nil
}

func (r *Recorder) Start(_ context.Context, out chan<- kit.Update) error {
	r.mu.Lock()
	r.started = true
	r.out = out
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Stop(context.Context) error {
	r.mu.Lock()
	r.started = false
	r.out = nil
	r.mu.Unlock()
	return nil
}

func (r *Recorder) UpdateMenuCommands(_ context.Context, cmds []kit.BotCommand) error {
	r.mu.Lock()
	r.menu = append([]kit.BotCommand(nil), cmds...)
	r.mu.Unlock()
	return nil
}

// Sent returns a copy of all recorded messages.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// SentTo returns the texts sent to chatID, in order.
func (r *Recorder) SentTo(chatID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.sent {
		if s.To.ChatID == chatID {
			out = append(out, s.Text)
		}
	}
	return out
}

// Menu returns the last menu passed to UpdateMenuCommands.
func (r *Recorder) Menu() []kit.BotCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kit.BotCommand(nil), r.menu...)
}

// Started reports whether Start was called without a matching Stop.
func (r *Recorder) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Push delivers an update to the channel passed to Start.
// It reports false if the recorder is not started.
func (r *Recorder) Push(up kit.Update) bool {
	r.mu.Lock()
	out := r.out
	r.mu.Unlock()
	if out == nil {
		return false
	}
	out <- up
	return true
}
