package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sibec-dev/becas-api/pkg/config"
	"github.com/sibec-dev/becas-api/pkg/jobs"
)

// Notification carries an event destined for an external channel
// (institutional mail, in-app inbox). Delivery happens off the request path.
type Notification struct {
	Event      string                 `json:"event"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Notifier is the send side exposed to the workflow services.
type Notifier interface {
	Dispatch(event, resource, resourceID string, payload map[string]interface{})
}

// NotificationService fans workflow events out through a worker queue.
type NotificationService struct {
	queue   *jobs.Queue
	logger  *zap.Logger
	metrics *MetricsService
}

// NewNotificationService builds the dispatch queue. Start must be called
// before notifications are accepted.
func NewNotificationService(cfg config.NotificationsConfig, logger *zap.Logger, metrics *MetricsService) *NotificationService {
	s := &NotificationService{logger: logger, metrics: metrics}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Dispatch enqueues a notification. Failures are logged, never propagated:
// a missed notification must not roll back the workflow decision it follows.
func (s *NotificationService) Dispatch(event, resource, resourceID string, payload map[string]interface{}) {
	n := Notification{
		Event:      event,
		Resource:   resource,
		ResourceID: resourceID,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}

	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.New().String(),
		Type:    event,
		Payload: n,
	})
	if err != nil {
		s.logger.Sugar().Warnw("notification dropped", "event", event, "resource", resource, "resource_id", resourceID, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.NotificationQueued()
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(Notification)
	if !ok {
		s.logger.Sugar().Errorw("notification with unexpected payload", "job_id", job.ID, "type", job.Type)
		return nil
	}

	// Channel integrations (SMTP, push) plug in here. Until then delivery
	// is a structured log line that downstream shipping can consume.
	s.logger.Sugar().Infow("notification delivered",
		"event", n.Event,
		"resource", n.Resource,
		"resource_id", n.ResourceID,
		"created_at", n.CreatedAt,
	)
	return nil
}
