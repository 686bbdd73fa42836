// Package notify carries transient user-facing notifications (the toasts the
// scanner view shows) from the HTTP layer to whoever renders them.
package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/raysh454/stockscan/internal/logging"
)

type Level string

const (
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

const (
	WarningDuration = 8 * time.Second
	ErrorDuration   = 5 * time.Second
)

// Notification is a single non-blocking message shown to the user for Duration.
type Notification struct {
	ID       string        `json:"id"`
	Level    Level         `json:"type"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"-"`
	Created  time.Time     `json:"created_at"`
}

// MarshalJSON encodes Duration in milliseconds, the unit the view expects.
func (n Notification) MarshalJSON() ([]byte, error) {
	type alias Notification
	return json.Marshal(struct {
		alias
		DurationMS int64 `json:"duration_ms"`
	}{alias: alias(n), DurationMS: n.Duration.Milliseconds()})
}

// Warning builds a warning notification with the default duration.
func Warning(message string) Notification {
	return Notification{
		ID:       uuid.New().String(),
		Level:    LevelWarning,
		Title:    "Warning",
		Message:  message,
		Duration: WarningDuration,
		Created:  time.Now().UTC(),
	}
}

// Error builds an error notification with the default duration.
func Error(message string) Notification {
	return Notification{
		ID:       uuid.New().String(),
		Level:    LevelError,
		Title:    "Error",
		Message:  message,
		Duration: ErrorDuration,
		Created:  time.Now().UTC(),
	}
}

// Notifier emits notifications. Implementations must not block the caller
// for longer than a write to their sink.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(n Notification)

func (f Func) Notify(n Notification) { f(n) }

// Multi fans a notification out to every non-nil notifier.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(n)
		}
	}
}

// Durations sets how long each level stays on screen. Zero keeps the default.
type Durations struct {
	Warning time.Duration
	Error   time.Duration
}

// WithDurations returns a Notifier that rewrites Duration by level before
// passing the notification to next.
func WithDurations(next Notifier, d Durations) Notifier {
	return Func(func(n Notification) {
		switch {
		case n.Level == LevelWarning && d.Warning > 0:
			n.Duration = d.Warning
		case n.Level == LevelError && d.Error > 0:
			n.Duration = d.Error
		}
		next.Notify(n)
	})
}

// LogNotifier writes notifications to a logger; used by the CLI where there is
// no view to show toasts.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(logging.Field{Key: "component", Value: "notify"})}
}

func (ln *LogNotifier) Notify(n Notification) {
	fields := []logging.Field{
		{Key: "title", Value: n.Title},
		{Key: "duration", Value: n.Duration.String()},
	}
	switch n.Level {
	case LevelError:
		ln.logger.Error(n.Message, fields...)
	default:
		ln.logger.Warn(n.Message, fields...)
	}
}
