package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ScanEvent describes a step in a scan's lifecycle.
type ScanEvent struct {
	EventType EventType              `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	ScanID    string                 `json:"scan_id,omitempty"`
	Stage     string                 `json:"stage,omitempty"`
	Outcome   string                 `json:"outcome,omitempty"`
	Elapsed   time.Duration          `json:"elapsed"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of scan event
type EventType string

const (
	ScanStarted   EventType = "scan_started"
	StageEntered  EventType = "stage_entered"
	StageDegraded EventType = "stage_degraded"
	ScanFinished  EventType = "scan_finished"
)

// Observer receives scan events. Implementations must be safe for concurrent use.
type Observer interface {
	OnEvent(ctx context.Context, event ScanEvent)
	Name() string
}

// Subject fans events out to observers.
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	Notify(ctx context.Context, event ScanEvent)
}

// LoggingObserver writes scan events to a logrus logger.
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) OnEvent(ctx context.Context, event ScanEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"scan_id":    event.ScanID,
	}
	if event.Stage != "" {
		fields["stage"] = event.Stage
	}
	if event.Outcome != "" {
		fields["outcome"] = event.Outcome
		fields["duration_ms"] = event.Elapsed.Milliseconds()
	}
	if event.Error != "" {
		fields["error"] = event.Error
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case ScanStarted:
		entry.Debug("Scan started")
	case StageEntered:
		entry.Debug("Scan stage entered")
	case StageDegraded:
		entry.Warn("Scan stage failed, continuing with previous image")
	case ScanFinished:
		if event.Outcome == "failed" {
			entry.Error("Scan failed")
		} else {
			entry.Info("Scan finished")
		}
	default:
		entry.Info("Scan event")
	}
}

func (o *LoggingObserver) Name() string {
	return "logging_observer"
}

// MetricsObserver keeps running totals of scan outcomes.
type MetricsObserver struct {
	mu            sync.RWMutex
	started       int64
	outcomes      map[string]int64
	degradations  map[string]int64
	totalDuration time.Duration
	finished      int64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		outcomes:     make(map[string]int64),
		degradations: make(map[string]int64),
	}
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event ScanEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case ScanStarted:
		o.started++
	case StageDegraded:
		o.degradations[event.Stage]++
	case ScanFinished:
		o.finished++
		o.outcomes[event.Outcome]++
		o.totalDuration += event.Elapsed
	}
}

func (o *MetricsObserver) Name() string {
	return "metrics_observer"
}

// Snapshot returns the current totals.
func (o *MetricsObserver) Snapshot() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avg := time.Duration(0)
	if o.finished > 0 {
		avg = o.totalDuration / time.Duration(o.finished)
	}

	outcomes := make(map[string]int64, len(o.outcomes))
	for k, v := range o.outcomes {
		outcomes[k] = v
	}
	degradations := make(map[string]int64, len(o.degradations))
	for k, v := range o.degradations {
		degradations[k] = v
	}

	return map[string]interface{}{
		"scans_started":      o.started,
		"scans_finished":     o.finished,
		"outcomes":           outcomes,
		"stage_degradations": degradations,
		"avg_duration_ms":    avg.Milliseconds(),
	}
}

// EventPublisher implements Subject. Observers are called synchronously in
// subscription order; a panicking observer is logged and skipped.
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(observers ...Observer) *EventPublisher {
	p := &EventPublisher{}
	for _, o := range observers {
		p.Subscribe(o)
	}
	return p
}

func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.Name() == observer.Name() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

func (p *EventPublisher) Notify(ctx context.Context, event ScanEvent) {
	if p == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		notifyOne(ctx, obs, event)
	}
}

func notifyOne(ctx context.Context, obs Observer, event ScanEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("observer", obs.Name()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
