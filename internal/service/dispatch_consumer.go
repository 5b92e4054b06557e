package service

import (
	"context"
	"encoding/json"
	"time"

	"inventory-assistant-be/internal/dto"
	"inventory-assistant-be/internal/mapper"
	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/internal/pkg/workerpool"
	"inventory-assistant-be/pkg/dialog"

	"github.com/ThreeDotsLabs/watermill/message"
)

const ChatEventsTopic = "chat.events"

// Dispatcher is satisfied by the router.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *dialog.Event) error
}

type IDispatchConsumer interface {
	Consume(ctx context.Context) error
}

// DispatchConsumer feeds bus events to the router through the keyed worker
// pool, so one user's events are handled in order while users run in parallel.
type DispatchConsumer struct {
	subscriber message.Subscriber
	topicName  string
	pool       *workerpool.Pool
	dispatcher Dispatcher
	jobTimeout time.Duration
	logger     logger.ILogger
}

func NewDispatchConsumer(
	subscriber message.Subscriber,
	topicName string,
	pool *workerpool.Pool,
	dispatcher Dispatcher,
	jobTimeout time.Duration,
	log logger.ILogger,
) *DispatchConsumer {
	return &DispatchConsumer{
		subscriber: subscriber,
		topicName:  topicName,
		pool:       pool,
		dispatcher: dispatcher,
		jobTimeout: jobTimeout,
		logger:     log,
	}
}

func (cs *DispatchConsumer) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
		cs.logger.Info("DispatchConsumer", "Subscription closed", map[string]interface{}{"topic": cs.topicName})
	}()
	return nil
}

func (cs *DispatchConsumer) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.ChatEventMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Warn("DispatchConsumer", "Dropping undecodable event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack()
		return
	}

	ev := mapper.ToDialogEvent(payload)
	if ev == nil || ev.UserID == "" {
		cs.logger.Warn("DispatchConsumer", "Dropping event of unknown type", map[string]interface{}{
			"event_id": payload.EventID,
			"type":     payload.Type,
		})
		msg.Ack()
		return
	}

	// the job outlives the subscription context so shutdown drains in-flight events
	jobCtx := context.WithoutCancel(ctx)
	err := cs.pool.Submit(ev.UserID, func() {
		runCtx, cancel := context.WithTimeout(jobCtx, cs.jobTimeout)
		defer cancel()
		if err := cs.dispatcher.Dispatch(runCtx, ev); err != nil {
			cs.logger.Warn("DispatchConsumer", "Event dispatched with delivery error", map[string]interface{}{
				"event_id": ev.ID,
				"user_id":  ev.UserID,
				"error":    err.Error(),
			})
		}
	})
	if err != nil {
		cs.logger.Error("DispatchConsumer", "Failed to queue event", map[string]interface{}{
			"event_id": ev.ID,
			"user_id":  ev.UserID,
			"error":    err,
		})
		msg.Nack()
		return
	}
	msg.Ack()
}
