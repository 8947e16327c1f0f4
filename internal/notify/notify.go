// Package notify delivers short user-visible messages ("toasts") raised by
// the cart, session and checkout flows.
package notify

import (
	"sync"

	"go.uber.org/zap"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(n Notice)
}

func Success(n Notifier, msg string) { n.Notify(Notice{Level: LevelSuccess, Message: msg}) }
func Info(n Notifier, msg string)    { n.Notify(Notice{Level: LevelInfo, Message: msg}) }
func Error(n Notifier, msg string)   { n.Notify(Notice{Level: LevelError, Message: msg}) }

// Nop drops every notice.
type Nop struct{}

func (Nop) Notify(Notice) {}

// Log writes notices to a zap logger.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Notify(n Notice) {
	l.Logger.Info("notice", zap.String("level", string(n.Level)), zap.String("message", n.Message))
}

// Inbox queues notices until the presentation layer drains them.
// Older notices are dropped once capacity is reached.
type Inbox struct {
	mu       sync.Mutex
	notices  []Notice
	capacity int
}

func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = 20
	}
	return &Inbox{capacity: capacity}
}

func (b *Inbox) Notify(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = append(b.notices, n)
	if over := len(b.notices) - b.capacity; over > 0 {
		b.notices = b.notices[over:]
	}
}

// Drain returns queued notices oldest first and empties the inbox.
func (b *Inbox) Drain() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.notices
	b.notices = nil
	return out
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notice) {
	for _, x := range m {
		x.Notify(n)
	}
}
