// Package notify delivers user-visible messages. Notifications are fire and
// forget and never affect control flow.
package notify

import (
	"log/slog"
	"sync"
)

// Notifier receives user-visible messages.
type Notifier interface {
	Notify(message string)
}

// Func adapts a function to the Notifier interface.
type Func func(message string)

// Notify calls f(message).
func (f Func) Notify(message string) { f(message) }

// Nop discards every message.
var Nop Notifier = Func(func(string) {})

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier logging at info level.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(message string) {
	n.logger.Info("notification", "message", message)
}

// Recorder keeps every message in memory. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

// Notify implements Notifier.
func (r *Recorder) Notify(message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}
