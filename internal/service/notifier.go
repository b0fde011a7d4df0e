package service

import (
	"sync"

	"github.com/makeasinger/moviegen/internal/model"
)

// Notifier is the user notification capability (a toast in the UI).
type Notifier interface {
	Notify(n model.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n model.Notification)

func (f NotifierFunc) Notify(n model.Notification) {
	f(n)
}

// MultiNotifier fans a notification out to every member in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(n model.Notification) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(n)
		}
	}
}

// NotificationLog keeps the most recent notifications of one session.
type NotificationLog struct {
	mu    sync.Mutex
	limit int
	items []model.Notification
}

func NewNotificationLog(limit int) *NotificationLog {
	if limit <= 0 {
		limit = 50
	}
	return &NotificationLog{limit: limit}
}

func (l *NotificationLog) Notify(n model.Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, n)
	if len(l.items) > l.limit {
		l.items = l.items[len(l.items)-l.limit:]
	}
}

// List returns a copy, oldest first.
func (l *NotificationLog) List() []model.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Notification, len(l.items))
	copy(out, l.items)
	return out
}
