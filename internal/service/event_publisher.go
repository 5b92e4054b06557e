package service

import (
	"context"

	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/pkg/events"
)

// EventPublisher forwards domain events to the bus when one is connected and
// always leaves a log line, so a NATS outage never blocks a workflow.
type EventPublisher struct {
	bus    events.Publisher
	logger logger.ILogger
}

func NewEventPublisher(bus events.Publisher, log logger.ILogger) *EventPublisher {
	return &EventPublisher{bus: bus, logger: log}
}

var _ events.Publisher = (*EventPublisher)(nil)

func (p *EventPublisher) Publish(ctx context.Context, event events.Event) error {
	p.logger.Debug("Events", "Domain event", map[string]interface{}{
		"type":    event.EventType(),
		"payload": event.Payload(),
	})
	if p.bus == nil {
		return nil
	}
	return p.bus.Publish(ctx, event)
}
