// Package alert emits severity-graded events to configured delivery
// channels. Delivery is best-effort: a failed channel is logged and never
// fails the run that raised the alert.
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/climacast/recoverd/internal/redact"
)

// Severity grades an alert.
type Severity int

const (
	Info Severity = iota
	Warning
	High
	Critical
)

// String returns the lower-case wire name of the Severity.
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText makes Severity render as its string form in payloads.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the wire name back into a Severity.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity maps a wire name to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "info":
		return Info, nil
	case "warning":
		return Warning, nil
	case "high":
		return High, nil
	case "critical":
		return Critical, nil
	default:
		return Info, fmt.Errorf("alert: unknown severity %q", s)
	}
}

// Event is one alert. Fire-and-forget: it has no lifecycle beyond
// emission.
type Event struct {
	Severity  Severity          `json:"severity"`
	Service   string            `json:"service"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
}

// NewEvent assembles an Event stamped with the current UTC time.
func NewEvent(severity Severity, service, source, message string, details map[string]string) Event {
	return Event{
		Severity:  severity,
		Service:   service,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		Source:    source,
	}
}

// Channel is a delivery backend.
type Channel interface {
	Name() string
	Send(ctx context.Context, e Event) error
}

type registered struct {
	ch  Channel
	min Severity
}

// Dispatcher routes events to every channel registered at or below the
// event's severity.
type Dispatcher struct {
	mu       sync.RWMutex
	channels []registered
	log      *zap.Logger
	redactor *redact.Redactor
}

// NewDispatcher creates a Dispatcher. A nil logger is replaced with a
// no-op; a nil redactor disables scrubbing.
func NewDispatcher(log *zap.Logger, r *redact.Redactor) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{log: log, redactor: r}
}

// Register adds a channel that receives events of severity min and above.
func (d *Dispatcher) Register(ch Channel, min Severity) error {
	if ch.Name() == "" {
		return fmt.Errorf("alert: channel name cannot be empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, registered{ch: ch, min: min})
	return nil
}

// Dispatch delivers the event to every matching channel. Channel failures
// are logged and swallowed; reporting is terminal, not participatory.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	e = d.scrub(e)

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, reg := range d.channels {
		if e.Severity < reg.min {
			continue
		}
		if err := reg.ch.Send(ctx, e); err != nil {
			d.log.Warn("alert delivery failed",
				zap.String("channel", reg.ch.Name()),
				zap.String("severity", e.Severity.String()),
				zap.Error(err))
		}
	}
}

// scrub redacts the outbound copy of the event.
func (d *Dispatcher) scrub(e Event) Event {
	if d.redactor == nil {
		return e
	}
	e.Message = d.redactor.Redact(e.Message)
	e.Details = d.redactor.RedactMap(e.Details)
	return e
}

// LogChannel writes alerts to the structured log. Always available, so an
// environment with no webhook still satisfies the non-empty-log guarantee.
type LogChannel struct {
	log *zap.Logger
}

// NewLogChannel creates a log-backed channel.
func NewLogChannel(log *zap.Logger) *LogChannel {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogChannel{log: log}
}

// Name returns "log".
func (c *LogChannel) Name() string { return "log" }

// Send writes the event at a level matching its severity.
func (c *LogChannel) Send(ctx context.Context, e Event) error {
	fields := []zap.Field{
		zap.String("severity", e.Severity.String()),
		zap.String("service", e.Service),
		zap.String("source", e.Source),
	}
	for k, v := range e.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}
	switch {
	case e.Severity >= High:
		c.log.Error(e.Message, fields...)
	case e.Severity == Warning:
		c.log.Warn(e.Message, fields...)
	default:
		c.log.Info(e.Message, fields...)
	}
	return nil
}
