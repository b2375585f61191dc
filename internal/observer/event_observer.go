package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BatchEvent represents a batch progress event
type BatchEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	Image          string                 `json:"image,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of batch event
type EventType string

const (
	// BatchStarted when the image list is known
	BatchStarted EventType = "batch_started"
	// BatchCompleted when the table is assembled
	BatchCompleted EventType = "batch_completed"
	// BatchFailed when the batch aborts
	BatchFailed EventType = "batch_failed"
	// ImageMeasured when every region of an image was measured
	ImageMeasured EventType = "image_measured"
	// ImageFailed when an image could not be decoded or measured
	ImageFailed EventType = "image_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event BatchEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event BatchEvent)
}

// LoggingObserver logs batch events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles batch events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event BatchEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}
	if event.Image != "" {
		fields["image"] = event.Image
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch event.EventType {
	case BatchStarted:
		o.logger.WithFields(fields).Info("Batch started")
	case BatchCompleted:
		o.logger.WithFields(fields).Info("Batch completed")
	case BatchFailed:
		o.logger.WithFields(fields).Error("Batch failed")
	case ImageMeasured:
		o.logger.WithFields(fields).Debug("Image measured")
	case ImageFailed:
		o.logger.WithFields(fields).Warn("Image failed")
	default:
		o.logger.WithFields(fields).Info("Batch event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters from batch events
type MetricsObserver struct {
	mu                  sync.RWMutex
	batches             int64
	failedBatches       int64
	imagesMeasured      int64
	imagesFailed        int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles batch events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event BatchEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case BatchStarted:
		o.batches++
	case BatchFailed:
		o.failedBatches++
	case ImageMeasured:
		o.imagesMeasured++
		o.totalProcessingTime += event.ProcessingTime
	case ImageFailed:
		o.imagesFailed++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.imagesMeasured > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.imagesMeasured)
	}

	return map[string]interface{}{
		"batches":               o.batches,
		"failed_batches":        o.failedBatches,
		"images_measured":       o.imagesMeasured,
		"images_failed":         o.imagesFailed,
		"total_processing_time": o.totalProcessingTime,
		"avg_processing_time":   avgProcessingTime,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	pending   sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event without blocking the caller
func (p *EventPublisher) NotifyObservers(ctx context.Context, event BatchEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		p.pending.Add(1)
		go func(obs Observer) {
			defer p.pending.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until every notification sent so far was handled.
func (p *EventPublisher) Wait() {
	p.pending.Wait()
}
