package tui

import (
	"time"

	"github.com/hylla/draip/internal/app"
)

type Option func(*Model)

// WithUpdates makes the dashboard redraw on every snapshot pushed by the
// session subscription.
func WithUpdates(updates <-chan app.Snapshot) Option {
	return func(m *Model) {
		m.updates = updates
	}
}

// WithClipboard replaces the system clipboard writer used by the yank key.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

func WithActionTimeout(timeout time.Duration) Option {
	return func(m *Model) {
		if timeout > 0 {
			m.actionTimeout = timeout
		}
	}
}

func WithLogTail(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.logTail = n
		}
	}
}
