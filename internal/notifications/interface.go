package notifications

import (
	"sync"

	"github.com/ducminhle1904/genome-consensus-bot/internal/logger"
)

// Alert levels
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelSuccess = "success"
)

// Notifier defines the interface for notification services
type Notifier interface {
	// SendAlert sends an alert with the specified level and message
	SendAlert(level, message string) error
}

// LogNotifier writes alerts to the engine log
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a notifier backed by log
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("alerts")}
}

func (n *LogNotifier) SendAlert(level, message string) error {
	switch level {
	case LevelError:
		n.log.Error("%s", message)
	case LevelWarning:
		n.log.Warning("%s", message)
	default:
		n.log.Info("%s", message)
	}
	return nil
}

// Recorder keeps alerts in memory
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

// Alert is one recorded notification
type Alert struct {
	Level   string
	Message string
}

func (r *Recorder) SendAlert(level, message string) error {
	r.mu.Lock()
	r.alerts = append(r.alerts, Alert{Level: level, Message: message})
	r.mu.Unlock()
	return nil
}

// Alerts returns what has been sent so far
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}

// Multi fans an alert out to several notifiers and returns the first error
type Multi []Notifier

func (m Multi) SendAlert(level, message string) error {
	var first error
	for _, n := range m {
		if err := n.SendAlert(level, message); err != nil && first == nil {
			first = err
		}
	}
	return first
}
