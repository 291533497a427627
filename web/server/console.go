package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "debug", "info", "warn", "error"
}

// ConsoleHandler is a slog.Handler that mirrors records to a console channel
// before passing them on to the server's handler
type ConsoleHandler struct {
	next        slog.Handler
	consoleChan chan<- ConsoleMessage
	attrs       []slog.Attr
}

// NewConsoleLogger creates a logger for a single render that streams its
// records to consoleChan and to next
func NewConsoleLogger(consoleChan chan<- ConsoleMessage, next slog.Handler) *slog.Logger {
	return slog.New(&ConsoleHandler{next: next, consoleChan: consoleChan})
}

// Enabled defers to the wrapped handler
func (h *ConsoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle sends the formatted record to the console without blocking
func (h *ConsoleHandler) Handle(ctx context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})

	if h.consoleChan != nil {
		select {
		case h.consoleChan <- ConsoleMessage{
			Message:   b.String(),
			Timestamp: r.Time,
			Level:     strings.ToLower(r.Level.String()),
		}:
		default:
			// Channel full, skip (don't block)
		}
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs returns a handler that includes attrs in every message
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ConsoleHandler{
		next:        h.next.WithAttrs(attrs),
		consoleChan: h.consoleChan,
		attrs:       append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
	}
}

// WithGroup groups attributes in the wrapped handler only
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	return &ConsoleHandler{
		next:        h.next.WithGroup(name),
		consoleChan: h.consoleChan,
		attrs:       h.attrs,
	}
}
