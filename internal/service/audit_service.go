package service

import (
	"context"
	"sync"

	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/pkg/events"
	pktNats "inventory-assistant-be/pkg/nats"
)

const auditDurable = "inventory-audit-worker"

// AuditService keeps an audit log of every domain event on the bus and
// counts them per type for the health endpoint.
type AuditService struct {
	subscriber *pktNats.Subscriber
	logger     logger.ILogger

	mu     sync.Mutex
	counts map[string]int64
}

func NewAuditService(sub *pktNats.Subscriber, log logger.ILogger) *AuditService {
	return &AuditService{
		subscriber: sub,
		logger:     log,
		counts:     make(map[string]int64),
	}
}

// Start subscribes to events.> with a durable consumer.
func (s *AuditService) Start(ctx context.Context) error {
	if err := s.subscriber.Subscribe(ctx, pktNats.SubjectPrefix+">", auditDurable, s.HandleEvent); err != nil {
		s.logger.Error("AuditService", "Failed to start audit subscriber", map[string]interface{}{"error": err})
		return err
	}
	s.logger.Info("AuditService", "Audit service listening", map[string]interface{}{"subject": pktNats.SubjectPrefix + ">"})
	return nil
}

func (s *AuditService) HandleEvent(_ context.Context, event events.Event) error {
	s.mu.Lock()
	s.counts[event.EventType()]++
	s.mu.Unlock()

	details := map[string]interface{}{
		"type":        event.EventType(),
		"occurred_at": event.Timestamp(),
	}
	for k, v := range event.Payload() {
		details[k] = v
	}
	s.logger.Info("Audit", "Domain event recorded", details)
	return nil
}

// Counts returns a copy of the per type counters.
func (s *AuditService) Counts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
