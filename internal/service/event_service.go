package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/models"
	"github.com/noah-isme/course-ledger-api/pkg/jobs"
)

type eventSink interface {
	Publish(ctx context.Context, event models.LedgerEvent) (int64, error)
}

// EventServiceConfig sizes the delivery queue.
type EventServiceConfig struct {
	Enabled    bool
	Workers    int
	BufferSize int
	MaxRetries int
}

// EventService publishes committed ledger changes in the background.
// Delivery is best effort and never changes the outcome of a ledger operation.
type EventService struct {
	sink    eventSink
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
	now     func() time.Time
}

// NewEventService constructs the service. Call Start before publishing.
func NewEventService(sink eventSink, metrics *MetricsService, logger *zap.Logger, cfg EventServiceConfig) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EventService{
		sink:    sink,
		metrics: metrics,
		logger:  logger,
		enabled: cfg.Enabled && sink != nil,
		now:     func() time.Time { return time.Now().UTC() },
	}
	s.queue = jobs.NewQueue("ledger-events", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *EventService) Start(ctx context.Context) {
	if s == nil || !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop halts delivery; buffered events are dropped.
func (s *EventService) Stop() {
	if s == nil || !s.enabled {
		return
	}
	s.queue.Stop()
}

// Publish queues an event without blocking the caller.
func (s *EventService) Publish(eventType models.LedgerEventType, payload interface{}) {
	if s == nil || !s.enabled {
		return
	}
	event := models.LedgerEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: s.now(),
		Payload:    payload,
	}
	job := jobs.Job{ID: event.ID, Type: string(eventType), Payload: event}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.metrics.RecordEvent(string(eventType), false)
		s.logger.Warn("ledger event dropped", zap.String("event_id", event.ID), zap.String("type", string(eventType)), zap.Error(err))
	}
}

func (s *EventService) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.LedgerEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	receivers, err := s.sink.Publish(ctx, event)
	s.metrics.RecordEvent(job.Type, err == nil)
	if err != nil {
		s.metrics.RecordDependencyFailure(DependencyEvents)
		return err
	}
	s.logger.Debug("ledger event delivered", zap.String("event_id", event.ID), zap.String("type", job.Type), zap.Int64("receivers", receivers))
	return nil
}
